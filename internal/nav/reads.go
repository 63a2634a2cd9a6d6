package nav

import (
	"context"
	"encoding/json"
	"time"
)

const publishedKey = "published"

// FullNav is the multi-source NAV with each leg broken out.
type FullNav struct {
	Address      string    `json:"address"`
	Result       NavResult `json:"result"`
	PortfolioUSD *float64  `json:"portfolio_usd"`
	ValidatorETH *float64  `json:"validator_eth"`
	ETHPrice     *float64  `json:"eth_price"`
	ValidatorUSD *float64  `json:"validator_usd"`
	DeFiUSD      *float64  `json:"defi_usd"`
}

// NavMin reads only the mandatory source. Nothing is persisted.
func (e *Engine) NavMin(ctx context.Context) (NavResult, error) {
	src := e.settings.NavMinSource
	if src == nil {
		src = e.settings.NavSource
	}
	if src == nil {
		return NavResult{}, &ConfigError{Field: "nav.address", Msg: "no NAV address configured"}
	}
	res := Compose(e.now(), e.read(ctx, src), nil, nil)
	e.observeNav("min", res)
	return res, nil
}

// NavFull composes the mandatory source with the DeFi source and the
// validator × price leg. Nothing is persisted.
func (e *Engine) NavFull(ctx context.Context) (FullNav, error) {
	s := e.settings
	if s.NavSource == nil {
		return FullNav{}, &ConfigError{Field: "nav.address", Msg: "no NAV address configured"}
	}

	var b batch
	navIdx := b.add(s.NavSource)
	defiIdx := b.add(s.DeFi)
	validatorIdx := -1
	if s.Validator != nil {
		validatorIdx = b.add(s.Validator.Balance)
	}
	priceIdx := b.add(s.Price)
	readings := e.readAll(ctx, b.sources)

	out := FullNav{Address: s.NavAddress}
	mandatory, _ := pick(readings, navIdx)
	out.PortfolioUSD = mandatory.Quantity

	var optional []SourceReading
	if d, ok := pick(readings, defiIdx); ok {
		optional = append(optional, d)
		out.DeFiUSD = d.Quantity
	}

	var derived *Derived
	validator, hasValidator := pick(readings, validatorIdx)
	price, hasPrice := pick(readings, priceIdx)
	if hasValidator {
		out.ValidatorETH = validator.Quantity
	}
	if hasPrice {
		out.ETHPrice = price.Quantity
	}
	if hasValidator && hasPrice {
		derived = &Derived{Balance: validator, Price: price}
		if usd, ok := derived.USD(); ok {
			out.ValidatorUSD = ptr(usd)
		}
	}

	out.Result = Compose(e.now(), mandatory, optional, derived)
	e.observeNav("full_read", out.Result)
	return out, nil
}

// Figure is the published figure. Value is nil when the read failed.
type Figure struct {
	Value     *float64  `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
	Error     string    `json:"error,omitempty"`
	Cached    bool      `json:"-"`
}

// PublishedFigure returns the published figure, served from the cache when
// a fresh copy exists. Only successful reads are cached.
func (e *Engine) PublishedFigure(ctx context.Context) (Figure, error) {
	src := e.settings.Published
	if src == nil {
		return Figure{}, &ConfigError{Field: "published.range", Msg: "no published range configured"}
	}

	if e.cache != nil {
		raw, ok, err := e.cache.Get(ctx, publishedKey)
		if err != nil {
			e.logger.Warn("published figure cache read failed", "error", err)
		}
		if ok {
			var f Figure
			if err := json.Unmarshal([]byte(raw), &f); err == nil && f.Value != nil {
				f.Cached = true
				return f, nil
			}
		}
	}

	r := e.read(ctx, src)
	f := Figure{Value: r.Quantity, UpdatedAt: r.FetchedAt}
	if r.Error != nil {
		f.Error = r.Error.Message
		return f, nil
	}

	if e.cache != nil {
		raw, _ := json.Marshal(f)
		if err := e.cache.Set(ctx, publishedKey, string(raw), e.settings.PublishedTTL); err != nil {
			e.logger.Warn("published figure cache write failed", "error", err)
		}
	}
	return f, nil
}
