package formulas

import (
	"math"

	"github.com/markcheno/go-talib"
)

// Indicator periods used for every snapshot.
const (
	SMAFastPeriod = 20
	SMASlowPeriod = 50
	EMAPeriod     = 20
	RSIPeriod     = 14
	ATRPeriod     = 14
	BBPeriod      = 20
	StochKPeriod  = 14
	StochDPeriod  = 3
)

// Snapshot holds the latest value of each indicator. NaN means "not enough data".
type Snapshot struct {
	Close      float64
	SMAFast    float64
	SMASlow    float64
	EMA        float64
	MACD       float64
	MACDSignal float64
	MACDHist   float64
	RSI        float64
	StochK     float64
	StochD     float64
	BBUpper    float64
	BBLower    float64
	ATR        float64
	OBV        float64
	VWAP       float64
}

// ComputeSnapshot runs the indicator set over the series and keeps the last bar of each
func ComputeSnapshot(c Candles) Snapshot {
	nan := math.NaN()
	snap := Snapshot{
		Close: c.LastClose(), SMAFast: nan, SMASlow: nan, EMA: nan,
		MACD: nan, MACDSignal: nan, MACDHist: nan, RSI: nan,
		StochK: nan, StochD: nan, BBUpper: nan, BBLower: nan,
		ATR: nan, OBV: nan, VWAP: nan,
	}
	n := c.Len()
	if n == 0 || !c.Valid() {
		return snap
	}

	if n >= SMAFastPeriod {
		snap.SMAFast = last(talib.Sma(c.Close, SMAFastPeriod))
		snap.BBUpper, snap.BBLower = bollinger(c.Close)
	}
	if n >= SMASlowPeriod {
		snap.SMASlow = last(talib.Sma(c.Close, SMASlowPeriod))
	}
	if n >= EMAPeriod {
		snap.EMA = last(talib.Ema(c.Close, EMAPeriod))
	}
	// MACD(12,26,9) needs slow+signal-1 bars before the first valid value
	if n >= 26+9 {
		macd, signal, hist := talib.Macd(c.Close, 12, 26, 9)
		snap.MACD, snap.MACDSignal, snap.MACDHist = last(macd), last(signal), last(hist)
	}
	if n > RSIPeriod {
		snap.RSI = last(talib.Rsi(c.Close, RSIPeriod))
	}
	if n > StochKPeriod+2*StochDPeriod {
		k, d := talib.Stoch(c.High, c.Low, c.Close, StochKPeriod, StochDPeriod, talib.SMA, StochDPeriod, talib.SMA)
		snap.StochK, snap.StochD = last(k), last(d)
	}
	if n > ATRPeriod {
		snap.ATR = last(talib.Atr(c.High, c.Low, c.Close, ATRPeriod))
	}
	snap.OBV = last(talib.Obv(c.Close, c.Volume))
	snap.VWAP = VWAP(c)

	return snap
}

// TrendTag classifies the fast/slow SMA relationship with a 1% band
func (s Snapshot) TrendTag() string {
	if math.IsNaN(s.SMAFast) || math.IsNaN(s.SMASlow) {
		return "unknown"
	}
	switch {
	case s.SMAFast > s.SMASlow*1.01:
		return "uptrend"
	case s.SMAFast < s.SMASlow*0.99:
		return "downtrend"
	default:
		return "sideways"
	}
}

// MomentumTag classifies RSI into overbought / oversold / neutral
func (s Snapshot) MomentumTag() string {
	if math.IsNaN(s.RSI) {
		return "unknown"
	}
	switch {
	case s.RSI >= 70:
		return "overbought"
	case s.RSI <= 30:
		return "oversold"
	default:
		return "neutral"
	}
}

// VWAP is the volume-weighted typical price over the whole series
func VWAP(c Candles) float64 {
	var pv, vol float64
	for i := range c.Close {
		typical := (c.High[i] + c.Low[i] + c.Close[i]) / 3
		pv += typical * c.Volume[i]
		vol += c.Volume[i]
	}
	if vol == 0 {
		return math.NaN()
	}
	return pv / vol
}

func bollinger(closes []float64) (float64, float64) {
	upper, _, lower := talib.BBands(closes, BBPeriod, 2, 2, talib.SMA)
	return last(upper), last(lower)
}

func last(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	return values[len(values)-1]
}
