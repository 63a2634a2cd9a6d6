package nav

import (
	"context"
	"time"
)

// RawPayload is an upstream response body before parsing.
type RawPayload []byte

// Source is implemented by every upstream adapter. FetchRaw performs the
// network call (with the Fetcher's retries); Parse turns the payload into a
// quantity in Unit() or fails with a *ParseError.
type Source interface {
	ID() string
	Unit() Unit
	FetchRaw(ctx context.Context) (RawPayload, error)
	Parse(RawPayload) (float64, error)
}

// Read runs both steps of src and folds the outcome into a SourceReading.
func Read(ctx context.Context, src Source, now func() time.Time) SourceReading {
	r := SourceReading{SourceID: src.ID(), Unit: src.Unit()}

	raw, err := src.FetchRaw(ctx)
	if err != nil {
		r.FetchedAt = now()
		r.Error = &ReadingError{Kind: errorKind(err, ErrorFetch), Message: err.Error(), Err: err}
		return r
	}
	r.FetchedAt = now()

	v, err := src.Parse(raw)
	if err != nil {
		r.Error = &ReadingError{Kind: errorKind(err, ErrorParse), Message: err.Error(), Err: err}
		return r
	}
	r.Quantity = ptr(v)
	return r
}
