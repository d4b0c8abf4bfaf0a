package scoring

import "testing"

func TestReorderScore(t *testing.T) {
	tests := []struct {
		name  string
		stock Stock
		score float64
		level ReorderLevel
	}{
		{name: "critical stock-out", stock: Stock{Quantity: 0, ReorderLevel: 10, Critical: true}, score: 70, level: ReorderHigh},
		{name: "very low with short cover", stock: Stock{Quantity: 2, ReorderLevel: 10, AverageDailyUsage: 1}, score: 50, level: ReorderMedium},
		{name: "just at level", stock: Stock{Quantity: 10, ReorderLevel: 10, AverageDailyUsage: 0.5}, score: 10, level: ReorderLow},
		{name: "half level with a week of cover", stock: Stock{Quantity: 5, ReorderLevel: 10, AverageDailyUsage: 1}, score: 30, level: ReorderLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ReorderScore(tt.stock)
			if got.Score != tt.score || got.Level != tt.level {
				t.Fatalf("got %v/%s, want %v/%s (reasons %v)", got.Score, got.Level, tt.score, tt.level, got.Reasons)
			}
		})
	}
}

func TestNeedsReorder(t *testing.T) {
	if !NeedsReorder(Stock{Quantity: 5, ReorderLevel: 5}) {
		t.Fatal("stock at the reorder level needs a reorder")
	}
	if NeedsReorder(Stock{Quantity: 6, ReorderLevel: 5}) {
		t.Fatal("stock above the reorder level does not")
	}
}
