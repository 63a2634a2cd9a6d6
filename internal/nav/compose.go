package nav

import "time"

// Derived is the ETH leg of a NAV: a validator balance in ETH priced in USD.
type Derived struct {
	Balance SourceReading
	Price   SourceReading
}

// USD returns balance × price, and false if either reading failed.
func (d Derived) USD() (float64, bool) {
	if !d.Balance.OK() || !d.Price.OK() {
		return 0, false
	}
	return *d.Balance.Quantity * *d.Price.Quantity, true
}

// Compose sums the mandatory reading with every successful optional reading
// and the derived leg. A failed mandatory reading yields a nil total. Failed
// optional readings, optional readings not denominated in USD, and a derived
// leg with either side failed all count as zero and mark the result degraded.
func Compose(at time.Time, mandatory SourceReading, optional []SourceReading, derived *Derived) NavResult {
	res := NavResult{
		ComputedAt:   at,
		Contributing: make([]SourceReading, 0, 1+len(optional)+2),
	}
	res.Contributing = append(res.Contributing, mandatory)
	res.Contributing = append(res.Contributing, optional...)
	if derived != nil {
		res.Contributing = append(res.Contributing, derived.Balance, derived.Price)
	}

	if !mandatory.OK() {
		res.Degraded = true
		return res
	}

	total := mandatory.Value()
	for _, o := range optional {
		if !o.OK() || o.Unit != UnitUSD {
			res.Degraded = true
			continue
		}
		total += o.Value()
	}
	if derived != nil {
		if usd, ok := derived.USD(); ok {
			total += usd
		} else {
			res.Degraded = true
		}
	}
	res.TotalUSD = &total
	return res
}
