package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/PaesslerAG/jsonpath"

	"github.com/web3-frozen/nav-oracle/internal/fetch"
	"github.com/web3-frozen/nav-oracle/internal/nav"
)

const (
	zerionAPI = "https://api.zerion.io"
	debankAPI = "https://pro-openapi.debank.com"

	zerionPath = "$.data.attributes.total.positions"
	debankPath = "$.total_usd_value"
)

// Portfolio reads a wallet's aggregate USD value from a portfolio API and
// extracts it with a JSON path. A missing or null figure reads as zero.
type Portfolio struct {
	id      string
	client  *fetch.Client
	baseURL string
	address string
	path    string
	request func(baseURL, address string) fetch.Request
}

// NewZerion reads data.attributes.total.positions from the Zerion wallet
// portfolio endpoint. The API key is sent as the basic-auth user.
func NewZerion(client *fetch.Client, name, apiKey, address string) *Portfolio {
	return &Portfolio{
		id:      "zerion:" + name,
		client:  client,
		baseURL: zerionAPI,
		address: address,
		path:    zerionPath,
		request: func(base, addr string) fetch.Request {
			return fetch.Request{
				Method:    http.MethodGet,
				URL:       fmt.Sprintf("%s/v1/wallets/%s/portfolio/", base, url.PathEscape(addr)),
				Query:     url.Values{"currency": {"usd"}, "filter[positions]": {"no_filter"}},
				Headers:   map[string]string{"Accept": "application/json"},
				BasicAuth: &fetch.BasicAuth{Username: apiKey},
			}
		},
	}
}

// NewDeBank reads total_usd_value from the DeBank total-balance endpoint.
func NewDeBank(client *fetch.Client, accessKey, address string) *Portfolio {
	return &Portfolio{
		id:      "debank",
		client:  client,
		baseURL: debankAPI,
		address: address,
		path:    debankPath,
		request: func(base, addr string) fetch.Request {
			return fetch.Request{
				Method:  http.MethodGet,
				URL:     base + "/v1/user/total_balance",
				Query:   url.Values{"id": {addr}},
				Headers: map[string]string{"Accept": "application/json", "AccessKey": accessKey},
			}
		},
	}
}

// WithBaseURL points the adapter at a different host.
func (p *Portfolio) WithBaseURL(u string) *Portfolio {
	p.baseURL = u
	return p
}

func (p *Portfolio) ID() string      { return p.id }
func (p *Portfolio) Unit() nav.Unit  { return nav.UnitUSD }
func (p *Portfolio) Address() string { return p.address }

func (p *Portfolio) FetchRaw(ctx context.Context) (nav.RawPayload, error) {
	if p.address == "" {
		return nil, &nav.ConfigError{Field: p.id + ".address", Msg: "wallet address is required"}
	}
	resp, err := p.client.Do(ctx, p.request(p.baseURL, p.address))
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (p *Portfolio) Parse(raw nav.RawPayload) (float64, error) {
	obj, err := decodeObject(p.id, raw)
	if err != nil {
		return 0, err
	}

	// jsonpath fails on a missing key; that is a missing figure, not a schema error.
	v, err := jsonpath.Get(p.path, obj)
	if err != nil || v == nil {
		return 0, nil
	}
	if list, ok := v.([]any); ok {
		if len(list) == 0 {
			return 0, nil
		}
		v = list[0]
	}
	if v == nil {
		return 0, nil
	}

	d, ok := numberValue(v)
	if !ok {
		return 0, &nav.ParseError{Source: p.id, Field: p.path, Msg: fmt.Sprintf("not a number: %v", v)}
	}
	return d.InexactFloat64(), nil
}
