package backtest

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"time"
)

// EquityPoint represents a point in the equity curve
type EquityPoint struct {
	Time     time.Time `json:"time"`
	Value    float64   `json:"value"`
	Drawdown float64   `json:"drawdown"`
	PnL      float64   `json:"pnl"`

	peak float64
}

// EquityCurve represents a time-series of equity points, one per bar
type EquityCurve []EquityPoint

// Append records the portfolio value at t, deriving drawdown from the running peak
func (e EquityCurve) Append(t time.Time, value float64) EquityCurve {
	point := EquityPoint{Time: t, Value: value, peak: value}
	if len(e) > 0 {
		last := e[len(e)-1]
		point.PnL = value - last.Value
		point.peak = math.Max(last.peak, value)
	}
	if point.peak > 0 {
		point.Drawdown = (point.peak - value) / point.peak
	}
	return append(e, point)
}

// CurrentDrawdown returns the drawdown of the latest point
func (e EquityCurve) CurrentDrawdown() float64 {
	if len(e) == 0 {
		return 0
	}
	return e[len(e)-1].Drawdown
}

// GetReturns calculates per-bar returns from equity curve
func (e EquityCurve) GetReturns() []float64 {
	if len(e) < 2 {
		return []float64{}
	}
	returns := make([]float64, 0, len(e)-1)
	for i := 1; i < len(e); i++ {
		prev := e[i-1].Value
		curr := e[i].Value
		if prev == 0 {
			returns = append(returns, 0)
			continue
		}
		returns = append(returns, (curr-prev)/prev)
	}
	return returns
}

// GetVolatility calculates standard deviation of returns
func (e EquityCurve) GetVolatility() float64 {
	return stddev(e.GetReturns())
}

// GetDownsideDeviation calculates downside deviation of returns
func (e EquityCurve) GetDownsideDeviation() float64 {
	return downsideStddev(e.GetReturns())
}

// DaysSpanned returns the elapsed days between the first and last point
func (e EquityCurve) DaysSpanned() float64 {
	if len(e) < 2 {
		return 0
	}
	return e[len(e)-1].Time.Sub(e[0].Time).Hours() / 24
}

// ToCSV exports equity curve to CSV string
func (e EquityCurve) ToCSV() string {
	var buf bytes.Buffer
	buf.WriteString("time,value,drawdown,pnl\n")
	for _, point := range e {
		buf.WriteString(point.Time.Format(time.RFC3339))
		buf.WriteString(",")
		buf.WriteString(formatFloat(point.Value))
		buf.WriteString(",")
		buf.WriteString(formatFloat(point.Drawdown))
		buf.WriteString(",")
		buf.WriteString(formatFloat(point.PnL))
		buf.WriteString("\n")
	}
	return buf.String()
}

// ToJSON exports equity curve to JSON string
func (e EquityCurve) ToJSON() string {
	data, _ := json.Marshal(e)
	return string(data)
}

func formatFloat(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', 6, 64)
}
