package sources

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/web3-frozen/nav-oracle/internal/fetch"
	"github.com/web3-frozen/nav-oracle/internal/nav"
)

const (
	binanceTickerAPI = "https://api.binance.com/api/v3/ticker/price"
	DefaultSymbol    = "ETHUSDT"
)

type binanceTickerResp struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

// Binance fetches a spot price from the Binance public ticker.
type Binance struct {
	client  *fetch.Client
	baseURL string
	symbol  string
}

func NewBinance(client *fetch.Client, symbol string) *Binance {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		symbol = DefaultSymbol
	}
	return &Binance{client: client, baseURL: binanceTickerAPI, symbol: symbol}
}

func (b *Binance) WithBaseURL(u string) *Binance {
	b.baseURL = u
	return b
}

func (b *Binance) ID() string     { return "binance:" + b.symbol }
func (b *Binance) Unit() nav.Unit { return nav.UnitUSDPerETH }

func (b *Binance) FetchRaw(ctx context.Context) (nav.RawPayload, error) {
	resp, err := b.client.Do(ctx, fetch.Request{
		Method: http.MethodGet,
		URL:    b.baseURL,
		Query:  url.Values{"symbol": {b.symbol}},
	})
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (b *Binance) Parse(raw nav.RawPayload) (float64, error) {
	var ticker binanceTickerResp
	if err := json.Unmarshal(raw, &ticker); err != nil {
		return 0, &nav.ParseError{Source: b.ID(), Msg: "decode ticker: " + err.Error()}
	}
	if ticker.Price == "" {
		return 0, &nav.ParseError{Source: b.ID(), Field: "price", Msg: "missing"}
	}
	price, err := decimal.NewFromString(ticker.Price)
	if err != nil {
		return 0, &nav.ParseError{Source: b.ID(), Field: "price", Msg: "not a decimal: " + ticker.Price}
	}
	return price.InexactFloat64(), nil
}
