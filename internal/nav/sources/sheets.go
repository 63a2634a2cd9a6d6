package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/web3-frozen/nav-oracle/internal/amount"
	"github.com/web3-frozen/nav-oracle/internal/fetch"
	"github.com/web3-frozen/nav-oracle/internal/nav"
)

const sheetsAPI = "https://sheets.googleapis.com/v4/spreadsheets"

type sheetValuesResp struct {
	Range  string     `json:"range"`
	Values [][]string `json:"values"`
}

// SheetCell reads one formatted cell through the Sheets values API and
// parses it as a currency amount.
type SheetCell struct {
	client        *fetch.Client
	baseURL       string
	spreadsheetID string
	cellRange     string
	apiKey        string
	emptyAsZero   bool
}

// NewSheetCell reads cellRange (A1 notation, e.g. "Token!C6"). When
// emptyAsZero is set a blank cell reads as zero, otherwise it is a parse error.
func NewSheetCell(client *fetch.Client, spreadsheetID, apiKey, cellRange string, emptyAsZero bool) *SheetCell {
	return &SheetCell{
		client:        client,
		baseURL:       sheetsAPI,
		spreadsheetID: spreadsheetID,
		cellRange:     cellRange,
		apiKey:        apiKey,
		emptyAsZero:   emptyAsZero,
	}
}

func (s *SheetCell) WithBaseURL(u string) *SheetCell {
	s.baseURL = strings.TrimRight(u, "/")
	return s
}

func (s *SheetCell) ID() string     { return "sheet:" + s.cellRange }
func (s *SheetCell) Unit() nav.Unit { return nav.UnitUSD }
func (s *SheetCell) Range() string  { return s.cellRange }

func (s *SheetCell) FetchRaw(ctx context.Context) (nav.RawPayload, error) {
	if s.spreadsheetID == "" {
		return nil, &nav.ConfigError{Field: "spreadsheet_id", Msg: "spreadsheet id is required"}
	}
	if s.cellRange == "" {
		return nil, &nav.ConfigError{Field: "range", Msg: "cell range is required"}
	}
	resp, err := s.client.Do(ctx, fetch.Request{
		Method: http.MethodGet,
		URL:    fmt.Sprintf("%s/%s/values/%s", s.baseURL, url.PathEscape(s.spreadsheetID), url.PathEscape(s.cellRange)),
		Query:  url.Values{"key": {s.apiKey}, "valueRenderOption": {"FORMATTED_VALUE"}},
	})
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (s *SheetCell) Parse(raw nav.RawPayload) (float64, error) {
	var r sheetValuesResp
	if err := json.Unmarshal(raw, &r); err != nil {
		return 0, &nav.ParseError{Source: s.ID(), Msg: "invalid JSON: " + err.Error()}
	}

	cell := ""
	if len(r.Values) > 0 && len(r.Values[0]) > 0 {
		cell = r.Values[0][0]
	}

	parse := amount.Parse
	if s.emptyAsZero {
		parse = amount.OrZero
	}
	v, err := parse(cell)
	if err != nil {
		return 0, &nav.ParseError{Source: s.ID(), Field: "values[0][0]", Msg: err.Error()}
	}
	return v, nil
}
