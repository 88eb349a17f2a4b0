package asset_test

import (
	"testing"

	"github.com/fd1az/cryptofeed/internal/asset"
	"github.com/shopspring/decimal"
)

func TestAmount_Basic(t *testing.T) {
	oneBTC := asset.NewAmount(asset.BTC, decimal.NewFromInt(1))

	if oneBTC.IsZero() {
		t.Error("expected non-zero amount")
	}
	if oneBTC.String() != "1 BTC" {
		t.Errorf("expected '1 BTC', got '%s'", oneBTC.String())
	}
}

func TestAmount_Add(t *testing.T) {
	one := asset.NewAmount(asset.BTC, decimal.NewFromInt(1))
	two := asset.NewAmount(asset.BTC, decimal.NewFromInt(2))

	sum, err := one.Add(two)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !sum.Value().Equal(decimal.NewFromInt(3)) {
		t.Errorf("expected 3, got %s", sum.Value().String())
	}
}

func TestAmount_CannotAddDifferentAssets(t *testing.T) {
	oneBTC := asset.NewAmount(asset.BTC, decimal.NewFromInt(1))
	oneUSDT := asset.NewAmount(asset.USDT, decimal.NewFromInt(1))

	_, err := oneBTC.Add(oneUSDT)
	if err == nil {
		t.Error("expected error when adding different assets")
	}
}

func TestAmount_Sub(t *testing.T) {
	three := asset.NewAmount(asset.BTC, decimal.NewFromInt(3))
	one := asset.NewAmount(asset.BTC, decimal.NewFromInt(1))

	diff, err := three.Sub(one)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !diff.Value().Equal(decimal.NewFromInt(2)) {
		t.Errorf("expected 2, got %s", diff.Value().String())
	}
}

func TestAmount_SubNegativeError(t *testing.T) {
	one := asset.NewAmount(asset.BTC, decimal.NewFromInt(1))
	two := asset.NewAmount(asset.BTC, decimal.NewFromInt(2))

	_, err := one.Sub(two)
	if err == nil {
		t.Error("expected error for negative result")
	}
}

func TestParseString(t *testing.T) {
	amount, err := asset.ParseString(asset.BTC, "1.5")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !amount.Value().Equal(decimal.NewFromFloat(1.5)) {
		t.Errorf("expected 1.5, got %s", amount.Value().String())
	}
}

func TestParseString_Negative(t *testing.T) {
	_, err := asset.ParseString(asset.BTC, "-1")
	if err == nil {
		t.Error("expected error for negative amount")
	}
}

func TestPrice_Convert(t *testing.T) {
	price := asset.NewPriceNow(asset.BTC, asset.USDT, decimal.NewFromInt(30000))

	oneBTC := asset.NewAmount(asset.BTC, decimal.NewFromInt(1))

	usdt, err := price.Convert(oneBTC)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !usdt.Value().Equal(decimal.NewFromInt(30000)) {
		t.Errorf("expected 30000, got %s", usdt.Value().String())
	}
}

func TestPrice_Invert(t *testing.T) {
	price := asset.NewPriceNow(asset.BTC, asset.USDT, decimal.NewFromInt(2000))

	inverted := price.Invert()

	expected := decimal.NewFromFloat(0.0005)
	diff := inverted.Rate().Sub(expected).Abs()
	if diff.GreaterThan(decimal.NewFromFloat(0.0000001)) {
		t.Errorf("expected ~0.0005, got %s", inverted.Rate().String())
	}
}

func TestSymbol_CaseInsensitiveIdentity(t *testing.T) {
	a := asset.NewSymbol("btc")
	b := asset.NewSymbol("BTC")

	if !a.Equals(b) {
		t.Error("symbols should compare equal regardless of case")
	}
	if a.String() != "BTC" {
		t.Errorf("expected normalized 'BTC', got %q", a.String())
	}
}

func TestRegistry(t *testing.T) {
	r := asset.DefaultRegistry()

	btc, ok := r.GetBySymbol("btc")
	if !ok {
		t.Fatal("BTC not found in registry")
	}
	if btc.Symbol() != "BTC" {
		t.Errorf("expected BTC, got %s", btc.Symbol())
	}

	usdt, ok := r.GetBySymbol("USDT")
	if !ok {
		t.Fatal("USDT not found in registry")
	}
	if usdt.Decimals() != 6 {
		t.Errorf("expected 6 decimals, got %d", usdt.Decimals())
	}
}
