package calculator

import (
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/mmynk/rentledger/internal/models"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestSplitCommission(t *testing.T) {
	tests := []struct {
		name           string
		gross          string
		rate           string
		wantErr        bool
		wantCommission string
		wantOwner      string
	}{
		{name: "default rate on 1000", gross: "1000.00", rate: "15", wantCommission: "150", wantOwner: "850"},
		{name: "half cent rounds up", gross: "100.10", rate: "15", wantCommission: "15.02", wantOwner: "85.08"},
		{name: "fractional rate", gross: "333.33", rate: "12.5", wantCommission: "41.67", wantOwner: "291.66"},
		{name: "zero rate", gross: "750", rate: "0", wantCommission: "0", wantOwner: "750"},
		{name: "full rate", gross: "750", rate: "100", wantCommission: "750", wantOwner: "0"},
		{name: "zero gross", gross: "0", rate: "15", wantCommission: "0", wantOwner: "0"},
		{name: "negative gross should error", gross: "-10", rate: "15", wantErr: true},
		{name: "rate above 100 should error", gross: "10", rate: "100.01", wantErr: true},
		{name: "negative rate should error", gross: "10", rate: "-1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			split, err := SplitCommission(dec(tt.gross), dec(tt.rate))
			if (err != nil) != tt.wantErr {
				t.Fatalf("SplitCommission() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if !split.Commission.Equal(dec(tt.wantCommission)) {
				t.Errorf("Commission = %s, want %s", split.Commission, tt.wantCommission)
			}
			if !split.OwnerShare.Equal(dec(tt.wantOwner)) {
				t.Errorf("OwnerShare = %s, want %s", split.OwnerShare, tt.wantOwner)
			}
		})
	}
}

// Every cent amount and rate must split with no cent lost or gained.
func TestSplitCommissionIsExact(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 5000; i++ {
		gross := decimal.New(rng.Int63n(10_000_000), -2)
		rate := decimal.New(rng.Int63n(10_001), -2)

		split, err := SplitCommission(gross, rate)
		if err != nil {
			t.Fatalf("SplitCommission(%s, %s) failed: %v", gross, rate, err)
		}
		if !split.Commission.Add(split.OwnerShare).Equal(gross) {
			t.Fatalf("gross %s rate %s: %s + %s != gross", gross, rate, split.Commission, split.OwnerShare)
		}
		if split.Commission.Exponent() < -2 || split.OwnerShare.Exponent() < -2 {
			t.Fatalf("gross %s rate %s: parts not in cents: %s, %s", gross, rate, split.Commission, split.OwnerShare)
		}
	}
}

func TestBreakdownCommission(t *testing.T) {
	b, err := BreakdownCommission(dec("41.67"), DefaultManagementRate, DefaultServiceRate)
	if err != nil {
		t.Fatalf("BreakdownCommission failed: %v", err)
	}
	if !b.Management.Equal(dec("27.78")) {
		t.Errorf("Management = %s, want 27.78", b.Management)
	}
	if !b.Management.Add(b.Service).Equal(dec("41.67")) {
		t.Errorf("parts %s + %s do not sum to commission", b.Management, b.Service)
	}

	if _, err := BreakdownCommission(dec("10"), decimal.Zero, decimal.Zero); err == nil {
		t.Error("Expected error for zero rates")
	}
}

func TestFoldBalance(t *testing.T) {
	events := []EventForBalance{
		{Period: "2024-01", Kind: models.EventAllocation, Amount: dec("850"), TransactionID: 1},
		{Period: "2024-01", Kind: models.EventExpense, Amount: dec("120.50"), TransactionID: 2},
		{Period: "2024-02", Kind: models.EventAllocation, Amount: dec("850"), TransactionID: 3},
		{Period: "2024-02", Kind: models.EventPayment, Amount: dec("1000"), TransactionID: 4},
		{Period: "2024-02", Kind: models.EventExpense, Amount: dec("-30"), TransactionID: 5},
		{Period: "2024-03", Kind: models.EventAllocation, Amount: dec("850"), TransactionID: 6},
	}

	tests := []struct {
		name        string
		period      string
		wantOpening string
		wantClosing string
		wantLast    int64
	}{
		{name: "first month has no opening", period: "2024-01", wantOpening: "0", wantClosing: "729.5", wantLast: 2},
		{name: "carried forward", period: "2024-02", wantOpening: "729.5", wantClosing: "549.5", wantLast: 5},
		{name: "empty later month carries closing", period: "2024-05", wantOpening: "1399.5", wantClosing: "1399.5", wantLast: 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := FoldBalance(events, tt.period)
			if !b.Opening.Equal(dec(tt.wantOpening)) {
				t.Errorf("Opening = %s, want %s", b.Opening, tt.wantOpening)
			}
			if !b.Closing.Equal(dec(tt.wantClosing)) {
				t.Errorf("Closing = %s, want %s", b.Closing, tt.wantClosing)
			}
			if b.LastTransactionID == nil || *b.LastTransactionID != tt.wantLast {
				t.Errorf("LastTransactionID = %v, want %d", b.LastTransactionID, tt.wantLast)
			}
		})
	}

	t.Run("no events", func(t *testing.T) {
		b := FoldBalance(nil, "2024-01")
		if !b.Closing.IsZero() || b.LastTransactionID != nil {
			t.Errorf("FoldBalance(nil) = %+v, want zero", b)
		}
	})
}

// balance == opening + ΣA − ΣE − ΣP for any event sequence.
func TestFoldBalanceMatchesSums(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	kinds := []models.BalanceEventKind{models.EventAllocation, models.EventExpense, models.EventPayment}

	for round := 0; round < 200; round++ {
		var events []EventForBalance
		sums := map[models.BalanceEventKind]decimal.Decimal{}
		n := rng.Intn(40)
		for i := 0; i < n; i++ {
			kind := kinds[rng.Intn(len(kinds))]
			amount := decimal.New(rng.Int63n(500_000), -2)
			events = append(events, EventForBalance{Period: "2024-06", Kind: kind, Amount: amount, TransactionID: int64(i + 1)})
			sums[kind] = sums[kind].Add(amount)
		}

		b := FoldBalance(events, "2024-06")
		want := sums[models.EventAllocation].Sub(sums[models.EventExpense]).Sub(sums[models.EventPayment])
		if !b.Closing.Equal(want) {
			t.Fatalf("round %d: Closing = %s, want %s", round, b.Closing, want)
		}
	}
}
