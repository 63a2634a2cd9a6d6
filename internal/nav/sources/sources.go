// Package sources holds the upstream adapters that feed the NAV engine.
// Every adapter fetches through a shared fetch.Client and keeps its base
// URL injectable so tests can point it at an httptest server.
package sources

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/web3-frozen/nav-oracle/internal/nav"
)

// decodeObject decodes a JSON object body, keeping numbers as json.Number.
func decodeObject(source string, raw nav.RawPayload) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, &nav.ParseError{Source: source, Msg: fmt.Sprintf("invalid JSON: %v", err)}
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, &nav.ParseError{Source: source, Msg: fmt.Sprintf("expected JSON object, got %T", v)}
	}
	return obj, nil
}

// numberValue converts a decoded JSON leaf to a decimal. Numeric strings
// are accepted since several upstreams quote their amounts.
func numberValue(v any) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case json.Number:
		d, err := decimal.NewFromString(n.String())
		return d, err == nil
	case float64:
		return decimal.NewFromFloat(n), true
	case string:
		d, err := decimal.NewFromString(n)
		return d, err == nil
	default:
		return decimal.Zero, false
	}
}
