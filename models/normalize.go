package models

import "time"

// NormalizeHistoricalDataPoint fills the gaps a provider left in a
// partial sample. Date and Timestamp are derived from each other when
// only one is present; Value and the OHLC fields default to Price when
// the provider returned a single number; Volume defaults to 0. The
// input is not modified and the result is always fully populated.
func NormalizeHistoricalDataPoint(raw HistoricalDataPoint) HistoricalDataPoint {
	p := raw

	if p.Timestamp == 0 && p.Date != "" {
		if t, err := time.Parse(time.RFC3339, p.Date); err == nil {
			p.Timestamp = t.UnixMilli()
		} else if t, err := time.Parse("2006-01-02", p.Date); err == nil {
			p.Timestamp = t.UnixMilli()
		}
	}
	if p.Timestamp == 0 {
		p.Timestamp = time.Now().UnixMilli()
	}
	if p.Date == "" {
		p.Date = time.UnixMilli(p.Timestamp).UTC().Format(time.RFC3339)
	}

	if p.Price == 0 && p.Close != 0 {
		p.Price = p.Close
	}
	if p.Price == 0 && p.Value != 0 {
		p.Price = p.Value
	}
	if p.Value == 0 {
		p.Value = p.Price
	}
	if p.Open == 0 {
		p.Open = p.Price
	}
	if p.High == 0 {
		p.High = p.Price
	}
	if p.Low == 0 {
		p.Low = p.Price
	}
	if p.Close == 0 {
		p.Close = p.Price
	}

	// Keep the OHLC envelope consistent when fields came from
	// different sources.
	if p.High < p.Open {
		p.High = p.Open
	}
	if p.High < p.Close {
		p.High = p.Close
	}
	if p.Low > p.Open {
		p.Low = p.Open
	}
	if p.Low > p.Close {
		p.Low = p.Close
	}

	return p
}
