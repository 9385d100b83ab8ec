package service_test

import (
	"math"
	"testing"

	"github.com/ndewijer/Portfolio-Analysis-Backend/internal/model"
	"github.com/ndewijer/Portfolio-Analysis-Backend/internal/service"
)

func rate(v float64) *float64 { return &v }

// TestValueProportions tests conversion of holdings into portfolio weights.
//
// WHY: Weights drive every portfolio statistic. They must be computed on USD values, sum to
// one and degrade to zero rather than dividing by zero when nothing can be valued.
func TestValueProportions(t *testing.T) {
	t.Run("weights by USD value", func(t *testing.T) {
		holdings := []model.Holding{
			{Symbol: "AAA", Value: 100, Currency: "USD"},
			{Symbol: "BBB", Value: 100, Currency: "eur"},
			{Symbol: "CCC", Value: 50, Currency: "GBP"},
		}
		rates := map[string]*float64{"USD": rate(1), "EUR": rate(1.1), "GBP": rate(1.8)}

		weights := service.ValueProportions(holdings, rates)

		want := map[string]float64{"AAA": 100.0 / 300, "BBB": 110.0 / 300, "CCC": 90.0 / 300}
		if len(weights) != 3 {
			t.Fatalf("Expected 3 weights, got %d", len(weights))
		}
		var sum float64
		for _, w := range weights {
			sum += w.ValueProportion
			if math.Abs(w.ValueProportion-want[w.Symbol]) > 1e-12 {
				t.Errorf("Expected %s weight %v, got %v", w.Symbol, want[w.Symbol], w.ValueProportion)
			}
		}
		if math.Abs(sum-1) > 1e-12 {
			t.Errorf("Expected weights to sum to 1, got %v", sum)
		}
		if weights[0].Symbol != "AAA" || weights[2].Symbol != "CCC" {
			t.Errorf("Expected holding order to be kept, got %v", weights)
		}
	})

	t.Run("merges repeated symbols", func(t *testing.T) {
		holdings := []model.Holding{
			{Symbol: "AAA", Value: 30, Currency: "USD"},
			{Symbol: "BBB", Value: 40, Currency: "USD"},
			{Symbol: "aaa", Value: 30, Currency: "USD"},
		}

		weights := service.ValueProportions(holdings, map[string]*float64{"USD": rate(1)})

		if len(weights) != 2 {
			t.Fatalf("Expected 2 weights, got %v", weights)
		}
		if math.Abs(weights[0].ValueProportion-0.6) > 1e-12 {
			t.Errorf("Expected AAA weight 0.6, got %v", weights[0].ValueProportion)
		}
	})

	t.Run("missing rate counts as zero", func(t *testing.T) {
		holdings := []model.Holding{
			{Symbol: "AAA", Value: 100, Currency: "USD"},
			{Symbol: "BBB", Value: 100, Currency: "JPY"},
		}

		weights := service.ValueProportions(holdings, map[string]*float64{"USD": rate(1), "JPY": nil})

		if weights[0].ValueProportion != 1 || weights[1].ValueProportion != 0 {
			t.Errorf("Expected weights 1 and 0, got %v", weights)
		}
	})

	t.Run("zero total gives zero weights", func(t *testing.T) {
		holdings := []model.Holding{
			{Symbol: "AAA", Value: 0, Currency: "USD"},
			{Symbol: "BBB", Value: 0, Currency: "USD"},
		}

		weights := service.ValueProportions(holdings, map[string]*float64{"USD": rate(1)})

		for _, w := range weights {
			if w.ValueProportion != 0 {
				t.Errorf("Expected zero weight for %s, got %v", w.Symbol, w.ValueProportion)
			}
		}
	})
}
