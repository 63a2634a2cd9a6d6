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

const beaconAPI = "https://beaconcha.in/api/v1/validator/"

var gweiPerETH = decimal.New(1, 9)

type beaconBalance struct {
	Balance   *json.Number `json:"balance"`
	Validator *struct {
		Balance *json.Number `json:"balance"`
	} `json:"validator"`
}

type beaconResp struct {
	Data *beaconBalance `json:"data"`
}

// Beacon reads a validator's balance in Gwei and reports it in ETH.
type Beacon struct {
	client    *fetch.Client
	baseURL   string
	validator string
	apiKey    string
}

// NewBeacon accepts a validator index or public key, or a URL ending in
// .../validator/<id>.
func NewBeacon(client *fetch.Client, validator, apiKey string) *Beacon {
	return &Beacon{client: client, baseURL: beaconAPI, validator: validator, apiKey: apiKey}
}

func (b *Beacon) WithBaseURL(u string) *Beacon {
	b.baseURL = strings.TrimRight(u, "/") + "/"
	return b
}

func (b *Beacon) ID() string     { return "beacon" }
func (b *Beacon) Unit() nav.Unit { return nav.UnitETH }

func (b *Beacon) FetchRaw(ctx context.Context) (nav.RawPayload, error) {
	id, err := ValidatorID(b.validator)
	if err != nil {
		return nil, err
	}
	req := fetch.Request{
		Method:  http.MethodGet,
		URL:     b.baseURL + url.PathEscape(id),
		Headers: map[string]string{"Accept": "application/json"},
	}
	if b.apiKey != "" {
		req.Query = url.Values{"apikey": {b.apiKey}}
	}
	resp, err := b.client.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (b *Beacon) Parse(raw nav.RawPayload) (float64, error) {
	var r beaconResp
	if err := json.Unmarshal(raw, &r); err != nil {
		return 0, &nav.ParseError{Source: b.ID(), Msg: "invalid JSON: " + err.Error()}
	}
	if r.Data == nil {
		return 0, &nav.ParseError{Source: b.ID(), Field: "data", Msg: "missing"}
	}
	bal := r.Data.Balance
	if bal == nil && r.Data.Validator != nil {
		bal = r.Data.Validator.Balance
	}
	if bal == nil {
		return 0, &nav.ParseError{Source: b.ID(), Field: "data.balance", Msg: "missing"}
	}
	return GweiToETH(bal.String())
}

// GweiToETH converts an integer Gwei amount to ETH exactly, then to float64.
func GweiToETH(gwei string) (float64, error) {
	d, err := decimal.NewFromString(gwei)
	if err != nil {
		return 0, &nav.ParseError{Source: "beacon", Field: "data.balance", Msg: "not a number: " + gwei}
	}
	return d.Div(gweiPerETH).InexactFloat64(), nil
}

// ValidatorID extracts the validator identifier from a raw id or from a URL
// whose path contains the segment pair validator/<id>.
func ValidatorID(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", &nav.ConfigError{Field: "validator", Msg: "validator id or URL is required"}
	}
	if !strings.Contains(s, "/") {
		return s, nil
	}

	path := s
	if u, err := url.Parse(s); err == nil && u.Path != "" {
		path = u.Path
	}
	segs := strings.Split(strings.Trim(path, "/"), "/")
	for i := 0; i < len(segs)-1; i++ {
		if segs[i] == "validator" && segs[i+1] != "" {
			return segs[i+1], nil
		}
	}
	return "", &nav.ConfigError{Field: "validator", Msg: "no validator/<id> segment in " + s}
}
