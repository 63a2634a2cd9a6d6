package sources

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/web3-frozen/nav-oracle/internal/nav"
)

func TestBinanceFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		symbol := r.URL.Query().Get("symbol")
		if symbol == "INVALID" {
			http.Error(w, `{"code":-1121,"msg":"Invalid symbol."}`, http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(binanceTickerResp{Symbol: symbol, Price: "3000.00"})
	}))
	defer srv.Close()

	b := NewBinance(testClient(), "").WithBaseURL(srv.URL)
	if b.ID() != "binance:ETHUSDT" {
		t.Errorf("ID = %q, want default symbol", b.ID())
	}
	r := readSource(t, b)
	if r.Value() != 3000 {
		t.Errorf("price = %v, want 3000", r.Value())
	}

	r = readSource(t, NewBinance(testClient(), "invalid").WithBaseURL(srv.URL))
	if r.OK() || r.Error.Kind != nav.ErrorFetch {
		t.Errorf("invalid symbol reading = %+v, want fetch error", r)
	}
}

func TestBinanceParse(t *testing.T) {
	b := NewBinance(nil, "ethusdt")
	tests := []struct {
		body    string
		want    float64
		wantErr bool
	}{
		{`{"symbol":"ETHUSDT","price":"3456.78000000"}`, 3456.78, false},
		{`{"symbol":"ETHUSDT"}`, 0, true},
		{`{"symbol":"ETHUSDT","price":"n/a"}`, 0, true},
		{`not json`, 0, true},
	}
	for _, tt := range tests {
		got, err := b.Parse(nav.RawPayload(tt.body))
		if tt.wantErr {
			wantParseError(t, err)
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("Parse(%s) = %v, %v; want %v", tt.body, got, err, tt.want)
		}
	}
}
