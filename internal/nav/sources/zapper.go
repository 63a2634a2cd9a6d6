package sources

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/web3-frozen/nav-oracle/internal/fetch"
	"github.com/web3-frozen/nav-oracle/internal/nav"
)

const zapperAPI = "https://public.zapper.xyz/graphql"

const zapperNetWorthQuery = `query GetNetWorth($addresses: [Address!]!) {
  portfolioV2(addresses: $addresses) {
    tokenBalances { totalBalanceUSD }
    appBalances { totalBalanceUSD }
  }
}`

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type zapperSubtotal struct {
	TotalBalanceUSD *float64 `json:"totalBalanceUSD"`
}

type zapperResp struct {
	Data *struct {
		PortfolioV2 *struct {
			TokenBalances *zapperSubtotal `json:"tokenBalances"`
			AppBalances   *zapperSubtotal `json:"appBalances"`
		} `json:"portfolioV2"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// Zapper sums token and app balances from the Zapper GraphQL API.
type Zapper struct {
	client    *fetch.Client
	baseURL   string
	apiKey    string
	addresses []string
}

func NewZapper(client *fetch.Client, apiKey string, addresses ...string) *Zapper {
	return &Zapper{client: client, baseURL: zapperAPI, apiKey: apiKey, addresses: addresses}
}

func (z *Zapper) WithBaseURL(u string) *Zapper {
	z.baseURL = u
	return z
}

func (z *Zapper) ID() string     { return "zapper" }
func (z *Zapper) Unit() nav.Unit { return nav.UnitUSD }

func (z *Zapper) FetchRaw(ctx context.Context) (nav.RawPayload, error) {
	if len(z.addresses) == 0 {
		return nil, &nav.ConfigError{Field: "zapper.addresses", Msg: "at least one address is required"}
	}
	resp, err := z.client.Do(ctx, fetch.Request{
		Method: http.MethodPost,
		URL:    z.baseURL,
		Headers: map[string]string{
			"Content-Type":     "application/json",
			"x-zapper-api-key": z.apiKey,
		},
		Body: graphqlRequest{
			Query:     zapperNetWorthQuery,
			Variables: map[string]any{"addresses": z.addresses},
		},
	})
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// Parse sums the sub-totals; a missing sub-total counts as zero.
func (z *Zapper) Parse(raw nav.RawPayload) (float64, error) {
	var r zapperResp
	if err := json.Unmarshal(raw, &r); err != nil {
		return 0, &nav.ParseError{Source: z.ID(), Msg: "invalid JSON: " + err.Error()}
	}
	if len(r.Errors) > 0 {
		msgs := make([]string, len(r.Errors))
		for i, e := range r.Errors {
			msgs[i] = e.Message
		}
		return 0, &nav.ParseError{Source: z.ID(), Field: "errors", Msg: strings.Join(msgs, "; ")}
	}
	if r.Data == nil || r.Data.PortfolioV2 == nil {
		return 0, &nav.ParseError{Source: z.ID(), Field: "data.portfolioV2", Msg: "missing"}
	}

	p := r.Data.PortfolioV2
	var total float64
	for _, sub := range []*zapperSubtotal{p.TokenBalances, p.AppBalances} {
		if sub != nil && sub.TotalBalanceUSD != nil {
			total += *sub.TotalBalanceUSD
		}
	}
	return total, nil
}
