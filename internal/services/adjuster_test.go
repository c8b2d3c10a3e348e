package services

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/quantfolio/insights/internal/models"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestParseSplitRatio(t *testing.T) {
	testCases := []struct {
		name     string
		ratio    string
		expected float64
		warns    bool
	}{
		{name: "forward split", ratio: "2:1", expected: 2.0},
		{name: "reverse split", ratio: "1:10", expected: 0.1},
		{name: "uneven split", ratio: "3:2", expected: 1.5},
		{name: "whitespace tolerated", ratio: " 4 : 1 ", expected: 4.0},
		{name: "not a ratio", ratio: "abc", expected: 1.0, warns: true},
		{name: "missing denominator", ratio: "2", expected: 1.0, warns: true},
		{name: "zero denominator", ratio: "2:0", expected: 1.0, warns: true},
		{name: "negative numerator", ratio: "-1:2", expected: 1.0, warns: true},
		{name: "zero numerator", ratio: "0:1", expected: 1.0, warns: true},
		{name: "empty", ratio: "", expected: 1.0, warns: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ctx, wc := NewWarningContext(context.Background())
			split := models.SplitEvent{AssetID: 7, Date: day(2024, 6, 10), Ratio: tc.ratio}

			got := ParseSplitRatio(ctx, &split)
			assert.InDelta(t, tc.expected, got, 1e-12)

			warnings := wc.GetWarnings()
			if tc.warns {
				if len(warnings) != 1 {
					t.Fatalf("expected 1 warning for ratio %q, got %d", tc.ratio, len(warnings))
				}
				assert.Equal(t, models.WarnMalformedSplitRatio, warnings[0].Code)
			} else {
				assert.Empty(t, warnings)
			}
		})
	}
}

func TestAdjustTransactions_ForwardSplit(t *testing.T) {
	ctx := context.Background()
	txs := []models.Transaction{
		{AssetID: 1, Date: day(2024, 1, 10), Type: models.TransactionBuy, Quantity: 10, Price: 100},
	}
	splits := []models.SplitEvent{
		{AssetID: 1, Date: day(2024, 6, 1), Ratio: "2:1"},
	}

	adjusted := AdjustTransactions(ctx, txs, splits)
	if len(adjusted) != 1 {
		t.Fatalf("expected 1 adjusted transaction, got %d", len(adjusted))
	}
	assert.InDelta(t, 20.0, adjusted[0].Quantity, 1e-9)
	assert.InDelta(t, 50.0, adjusted[0].Price, 1e-9)
	// Cost basis is split-invariant.
	assert.InDelta(t, 1000.0, adjusted[0].Quantity*adjusted[0].Price, 1e-9)

	// Inputs must not be mutated.
	assert.InDelta(t, 10.0, txs[0].Quantity, 1e-12)
	assert.InDelta(t, 100.0, txs[0].Price, 1e-12)
}

func TestAdjustTransactions_OnSplitDateIsPreSplit(t *testing.T) {
	ctx := context.Background()
	splitDate := day(2024, 6, 1)
	txs := []models.Transaction{
		{AssetID: 1, Date: splitDate, Type: models.TransactionBuy, Quantity: 10, Price: 100},
		{AssetID: 1, Date: splitDate.AddDate(0, 0, 1), Type: models.TransactionBuy, Quantity: 10, Price: 50},
	}
	splits := []models.SplitEvent{{AssetID: 1, Date: splitDate, Ratio: "2:1"}}

	adjusted := AdjustTransactions(ctx, txs, splits)

	// The on-date transaction is treated as pre-split, so the split applies.
	assert.InDelta(t, 20.0, adjusted[0].Quantity, 1e-9)
	assert.InDelta(t, 50.0, adjusted[0].Price, 1e-9)
	// The next-day transaction is already in post-split terms.
	assert.InDelta(t, 10.0, adjusted[1].Quantity, 1e-9)
	assert.InDelta(t, 50.0, adjusted[1].Price, 1e-9)
}

func TestAdjustTransactions_MultipleSplitsCompound(t *testing.T) {
	ctx := context.Background()
	txs := []models.Transaction{
		{AssetID: 1, Date: day(2023, 1, 5), Type: models.TransactionBuy, Quantity: 10, Price: 600},  // before both
		{AssetID: 1, Date: day(2023, 8, 1), Type: models.TransactionBuy, Quantity: 10, Price: 300},  // between
		{AssetID: 1, Date: day(2024, 8, 1), Type: models.TransactionSell, Quantity: 5, Price: 120}, // after both
	}
	splits := []models.SplitEvent{
		{AssetID: 1, Date: day(2024, 3, 1), Ratio: "3:1"},
		{AssetID: 1, Date: day(2023, 6, 1), Ratio: "2:1"},
	}

	adjusted := AdjustTransactions(ctx, txs, splits)

	assert.InDelta(t, 60.0, adjusted[0].Quantity, 1e-9) // ×2×3
	assert.InDelta(t, 100.0, adjusted[0].Price, 1e-9)
	assert.InDelta(t, 30.0, adjusted[1].Quantity, 1e-9) // ×3 only
	assert.InDelta(t, 100.0, adjusted[1].Price, 1e-9)
	assert.InDelta(t, 5.0, adjusted[2].Quantity, 1e-9) // untouched
	assert.InDelta(t, 120.0, adjusted[2].Price, 1e-9)
}

// Each adjusted quantity must equal the raw quantity times the cumulative
// ratio of splits dated on or after that transaction.
func TestAdjustTransactions_QuantityMatchesCumulativeRatio(t *testing.T) {
	ctx := context.Background()
	splits := []models.SplitEvent{
		{AssetID: 1, Date: day(2023, 6, 1), Ratio: "2:1"},
		{AssetID: 1, Date: day(2024, 3, 1), Ratio: "1:4"},
		{AssetID: 1, Date: day(2024, 9, 1), Ratio: "3:2"},
	}
	txDates := []time.Time{
		day(2023, 1, 2), day(2023, 6, 1), day(2023, 6, 2),
		day(2024, 2, 28), day(2024, 3, 1), day(2024, 12, 31),
	}
	var txs []models.Transaction
	for _, d := range txDates {
		txs = append(txs, models.Transaction{AssetID: 1, Date: d, Type: models.TransactionBuy, Quantity: 100, Price: 10})
	}

	adjusted := AdjustTransactions(ctx, txs, splits)
	for i, tx := range adjusted {
		factor := 1.0
		for j := range splits {
			if !splits[j].Date.Before(tx.Date) {
				factor *= ParseSplitRatio(ctx, &splits[j])
			}
		}
		if math.Abs(tx.Quantity-100*factor) > 1e-9 {
			t.Errorf("tx %d on %s: quantity %.6f, want %.6f", i, tx.Date.Format("2006-01-02"), tx.Quantity, 100*factor)
		}
	}
}

func TestAdjustTransactions_MalformedRatioIsNoOp(t *testing.T) {
	ctx, wc := NewWarningContext(context.Background())
	txs := []models.Transaction{
		{AssetID: 1, Date: day(2024, 1, 10), Type: models.TransactionBuy, Quantity: 10, Price: 100},
	}
	splits := []models.SplitEvent{{AssetID: 1, Date: day(2024, 6, 1), Ratio: "2-for-1"}}

	adjusted := AdjustTransactions(ctx, txs, splits)
	assert.InDelta(t, 10.0, adjusted[0].Quantity, 1e-12)
	assert.InDelta(t, 100.0, adjusted[0].Price, 1e-12)

	warnings := wc.GetWarnings()
	if len(warnings) != 1 {
		t.Fatalf("expected 1 warning, got %d", len(warnings))
	}
	assert.Equal(t, models.WarnMalformedSplitRatio, warnings[0].Code)
}

func TestAdjustTransactions_NoSplits(t *testing.T) {
	ctx := context.Background()
	txs := []models.Transaction{
		{AssetID: 1, Date: day(2024, 1, 10), Type: models.TransactionBuy, Quantity: 10, Price: 100},
	}
	adjusted := AdjustTransactions(ctx, txs, nil)
	assert.Equal(t, txs, adjusted)

	assert.Nil(t, AdjustTransactions(ctx, nil, nil))
}

func TestCumulativeSplitRatio(t *testing.T) {
	ctx := context.Background()
	splits := []models.SplitEvent{
		{AssetID: 1, Date: day(2023, 6, 1), Ratio: "2:1"},
		{AssetID: 1, Date: day(2024, 3, 1), Ratio: "3:1"},
	}

	testCases := []struct {
		name        string
		observation time.Time
		expected    float64
	}{
		{name: "before both", observation: day(2023, 1, 1), expected: 1.0},
		{name: "on first split date", observation: day(2023, 6, 1), expected: 2.0},
		{name: "between splits", observation: day(2023, 12, 1), expected: 2.0},
		{name: "after both", observation: day(2024, 6, 1), expected: 6.0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := CumulativeSplitRatio(ctx, splits, tc.observation)
			assert.InDelta(t, tc.expected, got, 1e-12)
		})
	}
}

func TestSplitAdjusterFutureRatio(t *testing.T) {
	ctx := context.Background()
	adj := newSplitAdjuster(ctx, []models.SplitEvent{
		{AssetID: 1, Date: day(2024, 3, 1), Ratio: "3:1"},
		{AssetID: 1, Date: day(2023, 6, 1), Ratio: "2:1"},
	})

	// A close printed before a split is divided by the splits still to come;
	// one printed on the split date is already post-split.
	assert.InDelta(t, 6.0, adj.futureRatio(day(2023, 1, 1)), 1e-12)
	assert.InDelta(t, 3.0, adj.futureRatio(day(2023, 6, 1)), 1e-12)
	assert.InDelta(t, 3.0, adj.futureRatio(day(2023, 12, 1)), 1e-12)
	assert.InDelta(t, 1.0, adj.futureRatio(day(2024, 3, 1)), 1e-12)
	assert.InDelta(t, 1.0, adj.futureRatio(day(2024, 6, 1)), 1e-12)

	empty := newSplitAdjuster(ctx, nil)
	assert.InDelta(t, 1.0, empty.futureRatio(day(2024, 1, 1)), 1e-12)
}
