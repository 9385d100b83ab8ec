package model

import (
	"encoding/json"
	"math"
	"testing"
)

func TestFloat_MarshalJSON(t *testing.T) {
	data, err := json.Marshal(map[string]Float{"nan": Float(math.NaN()), "inf": Float(math.Inf(-1)), "x": 1.5})
	if err != nil {
		t.Fatalf("Marshal() returned unexpected error: %v", err)
	}
	want := `{"inf":null,"nan":null,"x":1.5}`
	if string(data) != want {
		t.Errorf("Expected %s, got %s", want, data)
	}
}

func TestWeightMap(t *testing.T) {
	m := WeightMap([]Weight{{Symbol: "AAA", ValueProportion: 0.2}, {Symbol: "AAA", ValueProportion: 0.3}, {Symbol: "BBB", ValueProportion: 0.5}})
	if len(m) != 2 || m["AAA"] != 0.3 || m["BBB"] != 0.5 {
		t.Errorf("Unexpected map %v", m)
	}
}
