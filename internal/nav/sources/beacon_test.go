package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/web3-frozen/nav-oracle/internal/nav"
)

func TestGweiToETH(t *testing.T) {
	tests := []struct {
		gwei string
		want float64
	}{
		{"32000000000", 32.0},
		{"32012345678", 32.012345678},
		{"0", 0},
		{"1", 0.000000001},
	}
	for _, tt := range tests {
		got, err := GweiToETH(tt.gwei)
		if err != nil {
			t.Fatalf("GweiToETH(%q) error: %v", tt.gwei, err)
		}
		if got != tt.want {
			t.Errorf("GweiToETH(%q) = %v, want %v", tt.gwei, got, tt.want)
		}
	}
}

func TestValidatorID(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{"123456", "123456", false},
		{" 123456 ", "123456", false},
		{"0x8f3a", "0x8f3a", false},
		{"https://beaconcha.in/validator/123456", "123456", false},
		{"https://beaconcha.in/validator/123456/", "123456", false},
		{"https://beaconcha.in/validator/123456#deposits", "123456", false},
		{"beaconcha.in/validator/777", "777", false},
		{"https://beaconcha.in/slot/99", "", true},
		{"https://beaconcha.in/validator/", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ValidatorID(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ValidatorID(%q) = %q, want error", tt.input, got)
			} else {
				wantConfigError(t, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ValidatorID(%q) = %q, %v; want %q", tt.input, got, err, tt.want)
		}
	}
}

func TestBeaconFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/validator/123456" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Write([]byte(`{"status":"OK","data":{"balance":32000000000,"validatorindex":123456}}`))
	}))
	defer srv.Close()

	b := NewBeacon(testClient(), "https://beaconcha.in/validator/123456", "").WithBaseURL(srv.URL + "/api/v1/validator")
	r := readSource(t, b)
	if !r.OK() {
		t.Fatalf("reading failed: %+v", r.Error)
	}
	if r.Value() != 32.0 || r.Unit != nav.UnitETH {
		t.Errorf("reading = %v %s, want 32 ETH", r.Value(), r.Unit)
	}
}

func TestBeaconParse(t *testing.T) {
	b := NewBeacon(nil, "1", "")
	got, err := b.Parse(nav.RawPayload(`{"data":{"balance":"32000000000"}}`))
	if err != nil || got != 32 {
		t.Errorf("quoted balance = %v, %v; want 32", got, err)
	}

	got, err = b.Parse(nav.RawPayload(`{"data":{"validator":{"balance":16000000000}}}`))
	if err != nil || got != 16 {
		t.Errorf("nested balance = %v, %v; want 16", got, err)
	}

	_, err = b.Parse(nav.RawPayload(`{"data":{}}`))
	wantParseError(t, err)

	_, err = b.Parse(nav.RawPayload(`{"status":"ERROR"}`))
	wantParseError(t, err)
}

func TestBeaconBadURLIsConfigError(t *testing.T) {
	_, err := NewBeacon(testClient(), "https://beaconcha.in/epoch/1", "").FetchRaw(context.Background())
	wantConfigError(t, err)
}
