package signage

import (
	"sync"
	"testing"

	"github.com/FoodCourtHub/server/internal/errors"
)

func TestDisplayLifecycle(t *testing.T) {
	c := NewCoordinator()

	if _, ok := c.Display(1); ok {
		t.Error("fresh coordinator should have no slot")
	}

	slot, err := c.SetDisplay(1, "data:image/png;base64,AAAA", 5000)
	if err != nil {
		t.Fatal(err)
	}
	if slot.State != StateWaitingPayment || slot.Amount != 5000 {
		t.Errorf("slot = %+v", slot)
	}

	if !c.MarkPaid(1) {
		t.Fatal("waiting slot should flip to paid")
	}
	got, ok := c.Display(1)
	if !ok || got.State != StatePaid {
		t.Errorf("display after paid: %+v ok=%v", got, ok)
	}

	// A paid slot cannot silently return to waiting.
	if c.MarkPaid(1) {
		t.Error("paid slot should not flip again")
	}
	got, _ = c.Display(1)
	if got.State != StatePaid {
		t.Errorf("state = %s, want paid", got.State)
	}

	if err := c.AckPaid(1); err != nil {
		t.Fatal(err)
	}
	if _, ok := c.Display(1); ok {
		t.Error("acked slot should be gone")
	}
}

func TestSetDisplayValidation(t *testing.T) {
	c := NewCoordinator()
	if _, err := c.SetDisplay(1, "", 5000); !errors.Is(err, errors.ErrCodeMissingField) {
		t.Errorf("empty image: %v", err)
	}
	if _, err := c.SetDisplay(1, "qr", 0); !errors.Is(err, errors.ErrCodeInvalidAmount) {
		t.Errorf("zero amount: %v", err)
	}
}

func TestAckRequiresPaid(t *testing.T) {
	c := NewCoordinator()
	if err := c.AckPaid(1); !errors.Is(err, errors.ErrCodeResourceNotFound) {
		t.Errorf("ack on empty slot: %v", err)
	}
	if _, err := c.SetDisplay(1, "qr", 100); err != nil {
		t.Fatal(err)
	}
	if err := c.AckPaid(1); !errors.Is(err, errors.ErrCodeIllegalTransition) {
		t.Errorf("ack while waiting: %v", err)
	}
}

func TestMarkPaidWithoutSlot(t *testing.T) {
	c := NewCoordinator()
	if c.MarkPaid(42) {
		t.Error("payment with no armed display has nothing to flip")
	}
}

func TestRepublishOverPaidSlot(t *testing.T) {
	c := NewCoordinator()
	if _, err := c.SetDisplay(1, "qr1", 100); err != nil {
		t.Fatal(err)
	}
	c.MarkPaid(1)

	// Next checkout rearms the slot even though the last one was never acked.
	slot, err := c.SetDisplay(1, "qr2", 200)
	if err != nil {
		t.Fatal(err)
	}
	if slot.State != StateWaitingPayment || slot.QRImage != "qr2" {
		t.Errorf("republished slot: %+v", slot)
	}
}

func TestCancelClearsAnyState(t *testing.T) {
	c := NewCoordinator()
	if _, err := c.SetDisplay(1, "qr", 100); err != nil {
		t.Fatal(err)
	}
	c.Cancel(1)
	if _, ok := c.Display(1); ok {
		t.Error("cancelled slot should be gone")
	}
	// Cancel on an empty slot is a no-op.
	c.Cancel(2)
}

func TestConcurrentAccess(t *testing.T) {
	c := NewCoordinator()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				if _, err := c.SetDisplay(id, "qr", 100); err != nil {
					t.Error(err)
					return
				}
				c.MarkPaid(id)
				c.Display(id)
				_ = c.AckPaid(id)
			}
		}(int64(i % 4))
	}
	wg.Wait()
}
