package jupiter

import (
	"encoding/json"
	"fmt"

	"lukechampine.com/uint128"
)

// QuoteSummary is a read-only view over an opaque quote, used for logs and
// metrics. The quote itself is never rebuilt from it.
type QuoteSummary struct {
	InputMint            string
	OutputMint           string
	SwapMode             string
	InAmount             uint128.Uint128
	OutAmount            uint128.Uint128
	OtherAmountThreshold uint128.Uint128
	SlippageBps          int
	PriceImpactPct       string
	Hops                 int
}

type quoteFields struct {
	InputMint            string            `json:"inputMint"`
	OutputMint           string            `json:"outputMint"`
	SwapMode             string            `json:"swapMode"`
	InAmount             string            `json:"inAmount"`
	OutAmount            string            `json:"outAmount"`
	OtherAmountThreshold string            `json:"otherAmountThreshold"`
	SlippageBps          int               `json:"slippageBps"`
	PriceImpactPct       string            `json:"priceImpactPct"`
	RoutePlan            []json.RawMessage `json:"routePlan"`
}

// Summarize extracts the well-known fields from a v6 quote. Amount fields
// that are absent stay zero.
func Summarize(quote json.RawMessage) (QuoteSummary, error) {
	var f quoteFields
	if err := json.Unmarshal(quote, &f); err != nil {
		return QuoteSummary{}, fmt.Errorf("decode quote: %w", err)
	}

	s := QuoteSummary{
		InputMint:      f.InputMint,
		OutputMint:     f.OutputMint,
		SwapMode:       f.SwapMode,
		SlippageBps:    f.SlippageBps,
		PriceImpactPct: f.PriceImpactPct,
		Hops:           len(f.RoutePlan),
	}

	for _, field := range []struct {
		name string
		raw  string
		dst  *uint128.Uint128
	}{
		{"inAmount", f.InAmount, &s.InAmount},
		{"outAmount", f.OutAmount, &s.OutAmount},
		{"otherAmountThreshold", f.OtherAmountThreshold, &s.OtherAmountThreshold},
	} {
		if field.raw == "" {
			continue
		}
		v, err := uint128.FromString(field.raw)
		if err != nil {
			return s, fmt.Errorf("decode quote %s: %w", field.name, err)
		}
		*field.dst = v
	}
	return s, nil
}
