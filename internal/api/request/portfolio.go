package request

// HoldingRequest is one position in the optimise request body.
// Value is a pointer so a missing value can be told apart from zero.
type HoldingRequest struct {
	Symbol   string   `json:"symbol"`
	Value    *float64 `json:"value"`
	Currency string   `json:"currency"`
}

// DrawdownRequest represents the request body for computing drawdowns.
// Weights are optional; without them only per-symbol drawdowns are returned.
type DrawdownRequest struct {
	Symbols []string           `json:"symbols"`
	Weights map[string]float64 `json:"weights,omitempty"`
}
