package paymentmethod

import (
	"github.com/FoodCourtHub/server/internal/errors"
)

// Details carries the structured payload a tender may attach to a counter
// transaction. Exactly the variant matching the tender's category may be
// set; the free-form JSON blob of earlier systems is gone.
type Details struct {
	Card   *CardDetails   `json:"card,omitempty"`
	Crypto *CryptoDetails `json:"crypto,omitempty"`
	Points *PointsDetails `json:"points,omitempty"`
	Note   string         `json:"note,omitempty"`
}

// CardDetails is attached by card tenders.
type CardDetails struct {
	LastFour   string `json:"last_four"`
	Brand      string `json:"brand,omitempty"`
	ApprovalNo string `json:"approval_no,omitempty"`
}

// CryptoDetails is attached by crypto tenders. TxHash is the on-chain
// transaction signature the watcher polls for confirmation.
type CryptoDetails struct {
	TxHash     string `json:"tx_hash"`
	Address    string `json:"address,omitempty"`
	CryptoType string `json:"crypto_type,omitempty"`
}

// PointsDetails is attached by points tenders.
type PointsDetails struct {
	Program    string `json:"program,omitempty"`
	PointsUsed int64  `json:"points_used"`
}

// Validate rejects detail payloads that do not match the tender's category.
func (d *Details) Validate(m Method) error {
	if d == nil {
		return nil
	}
	cat := m.CategoryOf()
	if d.Card != nil && cat != CategoryCard {
		return errors.E(errors.ErrCodeInvalidField, "card details not valid for %s tender", cat)
	}
	if d.Crypto != nil && cat != CategoryCrypto {
		return errors.E(errors.ErrCodeInvalidField, "crypto details not valid for %s tender", cat)
	}
	if d.Points != nil && cat != CategoryPoints {
		return errors.E(errors.ErrCodeInvalidField, "points details not valid for %s tender", cat)
	}
	if d.Crypto != nil && d.Crypto.TxHash == "" {
		return errors.E(errors.ErrCodeMissingField, "crypto details require tx_hash")
	}
	return nil
}
