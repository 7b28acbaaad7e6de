package budget

import (
	"errors"
	"testing"
)

func TestChargeWithinCap(t *testing.T) {
	b := New(1000, 1000)
	if err := b.Charge(CostValDeser, 10); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.CPUConsumed() == 0 {
		t.Error("expected cpu consumption to be non-zero")
	}
}

func TestChargeExceedsCap(t *testing.T) {
	b := New(1, 1000)
	err := b.Charge(CostValDeser, 10_000)
	if err == nil {
		t.Fatal("expected budget exceeded error")
	}
	if !errors.Is(err, ErrExceeded) {
		t.Errorf("expected errors.Is(err, ErrExceeded), got %v", err)
	}
}

func TestChargeIsAtomic(t *testing.T) {
	b := New(100, 100)
	before := b.CPUConsumed()
	_ = b.Charge(CostValDeser, 10_000)
	if b.CPUConsumed() != before {
		t.Errorf("expected no partial charge on failure, consumed changed from %d to %d", before, b.CPUConsumed())
	}
}

func TestWithShadowNeverSurfaces(t *testing.T) {
	b := New(1000, 1000)
	before := b.CPUConsumed()

	b.WithShadow(func() error {
		return b.Charge(CostValDeser, 1_000_000) // exceeds shadow cap, swallowed
	})

	if b.CPUConsumed() != before {
		t.Errorf("shadow charge leaked into main budget: %d != %d", b.CPUConsumed(), before)
	}
}

func TestWithShadowChargesDoNotCountAgainstMainBudget(t *testing.T) {
	b := New(10, 1000)
	b.WithShadow(func() error {
		return b.Charge(CostValDeser, 1)
	})
	if b.CPUConsumed() != 0 {
		t.Errorf("expected shadow charges to not affect main consumed counter, got %d", b.CPUConsumed())
	}
	// Main budget is still fully available afterwards.
	if err := b.Charge(CostValDeser, 1); err != nil {
		t.Errorf("main budget should be untouched by shadow scope: %v", err)
	}
}

func TestReset(t *testing.T) {
	b := New(1000, 1000)
	_ = b.Charge(CostValDeser, 10)
	b.Reset(2000)
	if b.CPUConsumed() != 0 {
		t.Errorf("expected reset to zero cpu consumed, got %d", b.CPUConsumed())
	}
	if err := b.Charge(CostValDeser, 10); err != nil {
		t.Errorf("unexpected error after reset: %v", err)
	}
}
