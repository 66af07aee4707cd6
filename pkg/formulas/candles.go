package formulas

// Candles is a column-oriented OHLCV series, oldest first.
type Candles struct {
	Open   []float64
	High   []float64
	Low    []float64
	Close  []float64
	Volume []float64
}

// Len returns the number of bars in the series
func (c Candles) Len() int {
	return len(c.Close)
}

// Valid reports whether all columns have the same length
func (c Candles) Valid() bool {
	n := len(c.Close)
	return len(c.Open) == n && len(c.High) == n && len(c.Low) == n && len(c.Volume) == n
}

// LastClose returns the most recent close, or 0 for an empty series
func (c Candles) LastClose() float64 {
	if len(c.Close) == 0 {
		return 0
	}
	return c.Close[len(c.Close)-1]
}
