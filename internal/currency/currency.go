// Package currency converts base booking prices for display.
package currency

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrUnknownCurrency = errors.New("unknown currency")

// Converter converts an amount in the base currency to code.
type Converter interface {
	Convert(ctx context.Context, amount float64, code string) (float64, error)
	Symbol(code string) string
}

// RateTable converts with fixed rates relative to the base currency.
type RateTable struct {
	Base    string
	rates   map[string]float64
	symbols map[string]string
}

var knownSymbols = map[string]string{
	"EUR": "€",
	"USD": "$",
	"GBP": "£",
	"TRY": "₺",
}

func NewRateTable(base string, rates map[string]float64) *RateTable {
	base = strings.ToUpper(base)
	r := make(map[string]float64, len(rates)+1)
	for k, v := range rates {
		r[strings.ToUpper(k)] = v
	}
	r[base] = 1
	return &RateTable{Base: base, rates: r, symbols: knownSymbols}
}

func (t *RateTable) Convert(ctx context.Context, amount float64, code string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if code == "" {
		code = t.Base
	}
	rate, ok := t.rates[strings.ToUpper(code)]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownCurrency, code)
	}
	return amount * rate, nil
}

func (t *RateTable) Supports(code string) bool {
	_, ok := t.rates[strings.ToUpper(code)]
	return ok
}

func (t *RateTable) Symbol(code string) string {
	if code == "" {
		code = t.Base
	}
	code = strings.ToUpper(code)
	if s, ok := t.symbols[code]; ok {
		return s
	}
	return code
}

// ParseRates parses "USD:1.08,TRY:35.2".
func ParseRates(v string) (map[string]float64, error) {
	out := make(map[string]float64)
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		code, rate, ok := strings.Cut(part, ":")
		if !ok {
			return nil, fmt.Errorf("rate %q: missing ':'", part)
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(rate), 64)
		if err != nil || f <= 0 {
			return nil, fmt.Errorf("rate %q: invalid value", part)
		}
		out[strings.ToUpper(strings.TrimSpace(code))] = f
	}
	return out, nil
}
