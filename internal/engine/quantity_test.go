package engine

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestComputeQuantity_FloorsToStep(t *testing.T) {
	formatted, qty, err := ComputeQuantity("BTCUSDT",
		decimal.RequireFromString("50.0055"),
		decimal.RequireFromString("100"),
		decimal.RequireFromString("0.001"),
		decimal.RequireFromString("0.001"),
	)
	if err != nil {
		t.Fatalf("err=%v want=nil", err)
	}
	// raw 0.500055 floors to the 0.001 grid
	if formatted != "0.500" {
		t.Fatalf("formatted=%q want=%q", formatted, "0.500")
	}
	if qty.Cmp(decimal.RequireFromString("0.5")) != 0 {
		t.Fatalf("qty=%s want=0.5", qty.String())
	}
}

func TestComputeQuantity_StepWithTrailingZeros(t *testing.T) {
	// exchangeInfo reports steps zero-padded
	formatted, _, err := ComputeQuantity("ETHUSDT",
		decimal.RequireFromString("100"),
		decimal.RequireFromString("2000"),
		decimal.RequireFromString("0.01000000"),
		decimal.RequireFromString("0.01"),
	)
	if err != nil {
		t.Fatalf("err=%v want=nil", err)
	}
	if formatted != "0.05" {
		t.Fatalf("formatted=%q want=%q", formatted, "0.05")
	}
}

func TestComputeQuantity_IntegerStep(t *testing.T) {
	formatted, _, err := ComputeQuantity("SHIBUSDT",
		decimal.RequireFromString("10"),
		decimal.RequireFromString("0.00002"),
		decimal.RequireFromString("1"),
		decimal.RequireFromString("1"),
	)
	if err != nil {
		t.Fatalf("err=%v want=nil", err)
	}
	if formatted != "500000" {
		t.Fatalf("formatted=%q want=%q", formatted, "500000")
	}
}

func TestComputeQuantity_QuoteBelowExchangeMinimum(t *testing.T) {
	_, _, err := ComputeQuantity("BTCUSDT",
		decimal.RequireFromString("5"),
		decimal.RequireFromString("100000"),
		decimal.RequireFromString("0.001"),
		decimal.RequireFromString("0.001"),
	)
	var qe *QuantityError
	if !errors.As(err, &qe) {
		t.Fatalf("err=%v want QuantityError", err)
	}
}

func TestComputeQuantity_FlooredBelowMinQty(t *testing.T) {
	// raw quantity 0.0025 floors to 0.002, below minQty 0.0021, while
	// price*minQty still fits the quote amount
	_, _, err := ComputeQuantity("BTCUSDT",
		decimal.RequireFromString("0.25"),
		decimal.RequireFromString("100"),
		decimal.RequireFromString("0.002"),
		decimal.RequireFromString("0.0021"),
	)
	var qe *QuantityError
	if !errors.As(err, &qe) {
		t.Fatalf("err=%v want QuantityError", err)
	}
}

func TestComputeQuantity_InvalidInputs(t *testing.T) {
	_, _, err := ComputeQuantity("BTCUSDT",
		decimal.RequireFromString("50"),
		decimal.Zero,
		decimal.RequireFromString("0.001"),
		decimal.Zero,
	)
	var qe *QuantityError
	if !errors.As(err, &qe) {
		t.Fatalf("err=%v want QuantityError", err)
	}
}
