package domain

import "testing"

func TestSelectWinnerZeroImpressions(t *testing.T) {
	t.Parallel()

	winner := SelectWinner([]Variant{
		{VariantID: "A"},
		{VariantID: "B"},
	})
	if winner != nil {
		t.Fatalf("expected no winner, got %s", *winner)
	}
	if SelectWinner(nil) != nil {
		t.Fatalf("expected no winner for empty input")
	}
}

func TestSelectWinnerTieKeepsInputOrder(t *testing.T) {
	t.Parallel()

	variants := []Variant{
		{VariantID: "A", Impressions: 100, Engagements: 50},
		{VariantID: "B", Impressions: 50, Engagements: 25},
	}
	winner := SelectWinner(variants)
	if winner == nil || *winner != "A" {
		t.Fatalf("expected A on tie, got %v", winner)
	}

	reversed := []Variant{variants[1], variants[0]}
	winner = SelectWinner(reversed)
	if winner == nil || *winner != "B" {
		t.Fatalf("expected B first in reversed order, got %v", winner)
	}
}

func TestSelectWinnerPicksHighestRate(t *testing.T) {
	t.Parallel()

	winner := SelectWinner([]Variant{
		{VariantID: "A", Impressions: 1000, Engagements: 10},
		{VariantID: "B", Impressions: 0, Engagements: 0},
		{VariantID: "C", Impressions: 3, Engagements: 1},
		{VariantID: "D", Impressions: 1000, Engagements: 333},
	})
	if winner == nil || *winner != "C" {
		t.Fatalf("expected C (33.3%%), got %v", winner)
	}
}

func TestSelectWinnerIsDeterministic(t *testing.T) {
	t.Parallel()

	sets := [][]Variant{
		{{VariantID: "A", Impressions: 7, Engagements: 3}, {VariantID: "B", Impressions: 9, Engagements: 4}},
		{{VariantID: "A", Impressions: 1 << 40, Engagements: 1 << 39}, {VariantID: "B", Impressions: 1<<40 + 1, Engagements: 1 << 39}},
		{{VariantID: "A"}, {VariantID: "B", Impressions: 5}},
	}
	for i, set := range sets {
		first := SelectWinner(set)
		second := SelectWinner(set)
		if (first == nil) != (second == nil) || (first != nil && *first != *second) {
			t.Fatalf("set %d: winner changed between calls: %v vs %v", i, first, second)
		}
	}
}

func TestSelectWinnerLargeCountsCompareExactly(t *testing.T) {
	t.Parallel()

	winner := SelectWinner([]Variant{
		{VariantID: "A", Impressions: 1<<40 + 1, Engagements: 1 << 39},
		{VariantID: "B", Impressions: 1 << 40, Engagements: 1 << 39},
	})
	if winner == nil || *winner != "B" {
		t.Fatalf("expected B with the marginally higher rate, got %v", winner)
	}
}

func TestEngagementRate(t *testing.T) {
	t.Parallel()

	if EngagementRate(0, 10) != 0 {
		t.Fatalf("expected zero rate without impressions")
	}
	if EngagementRate(200, 50) != 0.25 {
		t.Fatalf("expected 0.25")
	}
}
