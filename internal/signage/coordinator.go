// Package signage is the in-process channel between a POS terminal and its
// customer-facing display. The POS publishes a QR to show; the matching
// rail callback flips the slot to paid; the display acknowledges and the
// slot clears. Nothing persists: a restart simply blanks every screen until
// the next publish.
package signage

import (
	"sync"
	"time"

	"github.com/FoodCourtHub/server/internal/errors"
	"github.com/FoodCourtHub/server/internal/money"
)

// State is the display state of one slot.
type State string

const (
	StateWaitingPayment State = "waiting_payment"
	StatePaid           State = "paid"
)

// Slot is the current content of one merchant's display.
type Slot struct {
	MerchantID int64        `json:"store_id"`
	QRImage    string       `json:"qr_image"`
	Amount     money.Amount `json:"amount"`
	State      State        `json:"status"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

// Coordinator holds the per-merchant slots. One writer at a time per key;
// reads return copies.
type Coordinator struct {
	mu    sync.RWMutex
	slots map[int64]*Slot
}

// NewCoordinator builds an empty coordinator.
func NewCoordinator() *Coordinator {
	return &Coordinator{slots: make(map[int64]*Slot)}
}

// SetDisplay publishes a QR to a merchant's display and arms the slot for
// payment. Publishing over an existing slot replaces it, including a slot
// stuck in paid that was never acknowledged.
func (c *Coordinator) SetDisplay(merchantID int64, qrImage string, amount money.Amount) (*Slot, error) {
	if qrImage == "" {
		return nil, errors.E(errors.ErrCodeMissingField, "missing qr_image")
	}
	if !amount.IsPositive() {
		return nil, errors.E(errors.ErrCodeInvalidAmount, "display amount must be positive")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	slot := &Slot{
		MerchantID: merchantID,
		QRImage:    qrImage,
		Amount:     amount,
		State:      StateWaitingPayment,
		UpdatedAt:  time.Now().UTC(),
	}
	c.slots[merchantID] = slot
	cp := *slot
	return &cp, nil
}

// Display returns a snapshot of the merchant's slot, or ok=false when the
// display has nothing to show.
func (c *Coordinator) Display(merchantID int64) (*Slot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	slot, ok := c.slots[merchantID]
	if !ok {
		return nil, false
	}
	cp := *slot
	return &cp, true
}

// MarkPaid flips a waiting slot to paid. Slots in any other state are left
// alone: a paid slot stays paid until acknowledged, and a payment landing
// with no armed display has nothing to flip.
func (c *Coordinator) MarkPaid(merchantID int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	slot, ok := c.slots[merchantID]
	if !ok || slot.State != StateWaitingPayment {
		return false
	}
	slot.State = StatePaid
	slot.UpdatedAt = time.Now().UTC()
	return true
}

// AckPaid clears a paid slot after the display has shown the confirmation.
func (c *Coordinator) AckPaid(merchantID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	slot, ok := c.slots[merchantID]
	if !ok {
		return errors.E(errors.ErrCodeResourceNotFound, "no display slot for store %d", merchantID)
	}
	if slot.State != StatePaid {
		return errors.E(errors.ErrCodeIllegalTransition, "display slot for store %d is %s, not paid", merchantID, slot.State)
	}
	delete(c.slots, merchantID)
	return nil
}

// Cancel clears a slot regardless of state, for an abandoned checkout.
func (c *Coordinator) Cancel(merchantID int64) {
	c.mu.Lock()
	delete(c.slots, merchantID)
	c.mu.Unlock()
}
