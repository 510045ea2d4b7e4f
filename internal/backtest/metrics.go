package backtest

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/yourusername/quantlab/internal/models"
)

// Metric names accepted by the optimizer
const (
	MetricTotalReturn      = "total_return"
	MetricAnnualizedReturn = "annualized_return"
	MetricSharpeRatio      = "sharpe_ratio"
	MetricSortinoRatio     = "sortino_ratio"
	MetricMaxDrawdown      = "max_drawdown"
	MetricWinRate          = "win_rate"
	MetricProfitFactor     = "profit_factor"
	MetricCalmarRatio      = "calmar_ratio"
	MetricTotalTrades      = "total_trades"
	MetricCompositeScore   = "composite_score"
)

// Metrics represents backtest performance metrics
type Metrics struct {
	TotalReturn      float64 `json:"total_return"`
	AnnualizedReturn float64 `json:"annualized_return"`
	SharpeRatio      float64 `json:"sharpe_ratio"`
	SortinoRatio     float64 `json:"sortino_ratio"`
	MaxDrawdown      float64 `json:"max_drawdown"`
	CalmarRatio      float64 `json:"calmar_ratio"`
	Volatility       float64 `json:"volatility"`
	ValueAtRisk95    float64 `json:"var_95"`
	TotalTrades      int     `json:"total_trades"`
	CompletedTrades  int     `json:"completed_trades"`
	OpenTrades       int     `json:"open_trades"`
	WinningTrades    int     `json:"winning_trades"`
	LosingTrades     int     `json:"losing_trades"`
	WinRate          float64 `json:"win_rate"`
	GrossProfit      float64 `json:"gross_profit"`
	GrossLoss        float64 `json:"gross_loss"`
	ProfitFactor     float64 `json:"profit_factor"`
	AverageWin       float64 `json:"average_win"`
	AverageLoss      float64 `json:"average_loss"`
	LargestWin       float64 `json:"largest_win"`
	LargestLoss      float64 `json:"largest_loss"`
	Expectancy       float64 `json:"expectancy"`
	DaysSpanned      float64 `json:"days_spanned"`
	Bars             int     `json:"bars"`
}

// AnalysisConfig holds the annualization constants used by CalculateMetrics
type AnalysisConfig struct {
	RiskFreeRate       float64
	TradingDaysPerYear int
}

// CalculateMetrics derives performance metrics from a finished run
func CalculateMetrics(curve EquityCurve, trades []models.Trade, initialCapital float64, cfg AnalysisConfig) Metrics {
	tpy := cfg.TradingDaysPerYear
	if tpy <= 0 {
		tpy = DefaultTradingDaysPerYear
	}

	metrics := Metrics{
		Bars:        len(curve),
		DaysSpanned: curve.DaysSpanned(),
		TotalTrades: len(trades),
	}

	if len(curve) > 0 && initialCapital > 0 {
		final := curve[len(curve)-1].Value
		metrics.TotalReturn = (final - initialCapital) / initialCapital
	}
	metrics.AnnualizedReturn = calculateAnnualizedReturn(metrics.TotalReturn, metrics.DaysSpanned)

	returns := curve.GetReturns()
	metrics.MaxDrawdown = calculateMaxDrawdown(curve)
	metrics.SharpeRatio = finite(calculateSharpeRatio(returns, cfg.RiskFreeRate, tpy))
	metrics.SortinoRatio = finite(calculateSortinoRatio(returns, cfg.RiskFreeRate, tpy))
	metrics.Volatility = stddev(returns)
	metrics.ValueAtRisk95 = calculateVaR(returns, 0.95)
	if metrics.MaxDrawdown > 0 {
		metrics.CalmarRatio = finite(metrics.AnnualizedReturn / metrics.MaxDrawdown)
	}

	applyTradeStats(&metrics, trades)
	return metrics
}

// Value looks a metric up by name
func (m Metrics) Value(name string) (float64, error) {
	switch name {
	case MetricTotalReturn:
		return m.TotalReturn, nil
	case MetricAnnualizedReturn:
		return m.AnnualizedReturn, nil
	case MetricSharpeRatio:
		return m.SharpeRatio, nil
	case MetricSortinoRatio:
		return m.SortinoRatio, nil
	case MetricMaxDrawdown:
		return m.MaxDrawdown, nil
	case MetricWinRate:
		return m.WinRate, nil
	case MetricProfitFactor:
		return m.ProfitFactor, nil
	case MetricCalmarRatio:
		return m.CalmarRatio, nil
	case MetricTotalTrades:
		return float64(m.TotalTrades), nil
	case MetricCompositeScore:
		return CalculateCompositeScore(m), nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnknownMetric, name)
	}
}

// MetricNames lists the metric names accepted by Value
func MetricNames() []string {
	return []string{
		MetricTotalReturn, MetricAnnualizedReturn, MetricSharpeRatio, MetricSortinoRatio,
		MetricMaxDrawdown, MetricWinRate, MetricProfitFactor, MetricCalmarRatio,
		MetricTotalTrades, MetricCompositeScore,
	}
}

// ToJSON exports metrics to JSON
func (m Metrics) ToJSON() string {
	data, _ := json.Marshal(m)
	return string(data)
}

// Result is the immutable outcome of one backtest run
type Result struct {
	StrategyName   string                 `json:"strategy_name"`
	Symbol         string                 `json:"symbol"`
	Parameters     map[string]interface{} `json:"parameters"`
	StartDate      time.Time              `json:"start_date"`
	EndDate        time.Time              `json:"end_date"`
	InitialCapital float64                `json:"initial_capital"`
	FinalValue     float64                `json:"final_value"`
	Metrics        Metrics                `json:"metrics"`
	Trades         []models.Trade         `json:"trades"`
	EquityCurve    EquityCurve            `json:"equity_curve"`
}

// ToJSON encodes the full result
func (r *Result) ToJSON() ([]byte, error) {
	return json.Marshal(r)
}

// ParameterHash identifies the parameter set of the run
func (r *Result) ParameterHash() string {
	return HashParameters(r.Parameters)
}

// StrategyID derives a stable identifier from the strategy name and parameters
func (r *Result) StrategyID() uuid.UUID {
	return uuid.NewSHA1(tradeNamespace, []byte(r.StrategyName+":"+r.ParameterHash()))
}

// ToDB converts the result to a row for persistence
func (r *Result) ToDB(method string, runDate time.Time) (*models.BacktestResult, error) {
	params, err := json.Marshal(r.Parameters)
	if err != nil {
		return nil, fmt.Errorf("failed to encode parameters: %w", err)
	}
	full, err := r.ToJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}

	return &models.BacktestResult{
		ID:               uuid.New(),
		StrategyID:       r.StrategyID(),
		StrategyName:     r.StrategyName,
		Symbol:           r.Symbol,
		RunDate:          runDate,
		StartDate:        r.StartDate,
		EndDate:          r.EndDate,
		InitialCapital:   r.InitialCapital,
		FinalCapital:     r.FinalValue,
		TotalReturn:      r.Metrics.TotalReturn,
		AnnualizedReturn: r.Metrics.AnnualizedReturn,
		SharpeRatio:      r.Metrics.SharpeRatio,
		MaxDrawdown:      r.Metrics.MaxDrawdown,
		TotalTrades:      r.Metrics.TotalTrades,
		WinRate:          r.Metrics.WinRate,
		ProfitFactor:     r.Metrics.ProfitFactor,
		CalmarRatio:      r.Metrics.CalmarRatio,
		Method:           method,
		Parameters:       params,
		FullResults:      full,
	}, nil
}

// HashParameters returns a stable hash for a parameter mapping
func HashParameters(params map[string]interface{}) string {
	// encoding/json sorts map keys
	data, _ := json.Marshal(params)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// calculateAnnualizedReturn compounds total return over the elapsed days.
// Runs spanning no time are reported unannualized.
func calculateAnnualizedReturn(totalReturn, days float64) float64 {
	if days <= 0 {
		return totalReturn
	}
	if 1+totalReturn <= 0 {
		return -1
	}
	annualized := math.Pow(1+totalReturn, 365.0/days) - 1
	if math.IsInf(annualized, 0) || math.IsNaN(annualized) {
		return totalReturn
	}
	return annualized
}

// finite maps NaN and infinities to 0 so a Result always encodes
func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func calculateSharpeRatio(returns []float64, riskFreeRate float64, tradingDaysPerYear int) float64 {
	if len(returns) == 0 {
		return 0
	}
	std := stddev(returns)
	if std == 0 {
		return 0
	}
	tpy := float64(tradingDaysPerYear)
	return (average(returns)*tpy - riskFreeRate) / (std * math.Sqrt(tpy))
}

func calculateSortinoRatio(returns []float64, riskFreeRate float64, tradingDaysPerYear int) float64 {
	if len(returns) == 0 {
		return 0
	}
	std := downsideStddev(returns)
	if std == 0 {
		return 0
	}
	tpy := float64(tradingDaysPerYear)
	return (average(returns)*tpy - riskFreeRate) / (std * math.Sqrt(tpy))
}

func calculateMaxDrawdown(curve EquityCurve) float64 {
	maxDD := 0.0
	peak := 0.0
	for _, p := range curve {
		if p.Value > peak {
			peak = p.Value
		}
		if peak == 0 {
			continue
		}
		drawdown := (peak - p.Value) / peak
		if drawdown > maxDD {
			maxDD = drawdown
		}
	}
	return maxDD
}

func calculateVaR(returns []float64, level float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	sorted := append([]float64{}, returns...)
	sort.Float64s(sorted)
	index := int(math.Floor((1.0 - level) * float64(len(sorted))))
	if index < 0 {
		index = 0
	}
	if index >= len(sorted) {
		index = len(sorted) - 1
	}
	return sorted[index]
}

// applyTradeStats fills trade statistics from completed trades only
func applyTradeStats(m *Metrics, trades []models.Trade) {
	winSum := 0.0
	lossSum := 0.0
	net := 0.0
	for i := range trades {
		t := &trades[i]
		if !t.IsCompleted() {
			m.OpenTrades++
			continue
		}
		m.CompletedTrades++
		pl := *t.PnL
		net += pl
		if pl > 0 {
			m.WinningTrades++
			winSum += pl
			if pl > m.LargestWin {
				m.LargestWin = pl
			}
		} else if pl < 0 {
			m.LosingTrades++
			lossSum += pl
			if pl < m.LargestLoss {
				m.LargestLoss = pl
			}
		}
	}

	m.GrossProfit = winSum
	m.GrossLoss = math.Abs(lossSum)
	if m.GrossLoss > 0 {
		m.ProfitFactor = finite(m.GrossProfit / m.GrossLoss)
	}
	if m.CompletedTrades > 0 {
		m.WinRate = float64(m.WinningTrades) / float64(m.CompletedTrades)
		m.Expectancy = net / float64(m.CompletedTrades)
	}
	if m.WinningTrades > 0 {
		m.AverageWin = winSum / float64(m.WinningTrades)
	}
	if m.LosingTrades > 0 {
		m.AverageLoss = lossSum / float64(m.LosingTrades)
	}
}

func average(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	mean := 0.0
	for _, v := range values {
		mean += v
	}
	return mean / float64(len(values))
}

func stddev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	mean := average(values)
	variance := 0.0
	for _, v := range values {
		diff := v - mean
		variance += diff * diff
	}
	variance /= float64(len(values))
	return math.Sqrt(variance)
}

func downsideStddev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	variance := 0.0
	count := 0
	for _, v := range values {
		if v < 0 {
			variance += v * v
			count++
		}
	}
	if count == 0 {
		return 0
	}
	variance /= float64(count)
	return math.Sqrt(variance)
}
