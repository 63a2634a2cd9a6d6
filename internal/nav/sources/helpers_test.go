package sources

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/web3-frozen/nav-oracle/internal/fetch"
	"github.com/web3-frozen/nav-oracle/internal/nav"
)

func testClient() *fetch.Client {
	return fetch.New(fetch.Policy{Attempts: 2, BaseDelay: time.Millisecond, Factor: 1.5, Timeout: 2 * time.Second})
}

func readSource(t *testing.T, src nav.Source) nav.SourceReading {
	t.Helper()
	return nav.Read(context.Background(), src, time.Now)
}

func wantParseError(t *testing.T, err error) {
	t.Helper()
	var pe *nav.ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("error = %v, want *nav.ParseError", err)
	}
}

func wantConfigError(t *testing.T, err error) {
	t.Helper()
	var ce *nav.ConfigError
	if !errors.As(err, &ce) {
		t.Fatalf("error = %v, want *nav.ConfigError", err)
	}
}
