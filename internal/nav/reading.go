package nav

import "time"

// Unit is the denomination of a reading's quantity.
type Unit string

const (
	UnitUSD       Unit = "USD"
	UnitETH       Unit = "ETH"
	UnitUSDPerETH Unit = "USD/ETH"
)

// ErrorKind categorizes why a source produced no quantity.
type ErrorKind string

const (
	ErrorFetch  ErrorKind = "fetch"
	ErrorParse  ErrorKind = "parse"
	ErrorConfig ErrorKind = "config"
)

// ReadingError is the failure half of a SourceReading.
type ReadingError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

// SourceReading is the result of one adapter fetch. Exactly one of Quantity
// and Error is set.
type SourceReading struct {
	SourceID  string        `json:"source_id"`
	Quantity  *float64      `json:"quantity"`
	Unit      Unit          `json:"unit"`
	FetchedAt time.Time     `json:"fetched_at"`
	Error     *ReadingError `json:"error,omitempty"`
}

// OK reports whether the reading carries a quantity.
func (r SourceReading) OK() bool { return r.Error == nil && r.Quantity != nil }

// Value returns the quantity, or zero for a failed reading.
func (r SourceReading) Value() float64 {
	if !r.OK() {
		return 0
	}
	return *r.Quantity
}

// NavResult is the composed total of one aggregation.
type NavResult struct {
	ComputedAt   time.Time       `json:"computed_at"`
	TotalUSD     *float64        `json:"total_usd"`
	Contributing []SourceReading `json:"contributing"`
	Degraded     bool            `json:"degraded"`
}

// Reading returns the contributing reading with the given source id.
func (r NavResult) Reading(id string) (SourceReading, bool) {
	for _, c := range r.Contributing {
		if c.SourceID == id {
			return c, true
		}
	}
	return SourceReading{}, false
}

func ptr(v float64) *float64 { return &v }
