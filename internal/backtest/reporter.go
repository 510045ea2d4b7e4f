package backtest

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/yourusername/quantlab/internal/models"
)

// GenerateConsoleReport formats a run for terminal output
func GenerateConsoleReport(result *Result) string {
	var builder strings.Builder
	m := result.Metrics
	builder.WriteString("Backtest Report\n")
	builder.WriteString("================\n")
	builder.WriteString(fmt.Sprintf("Strategy: %s\n", result.StrategyName))
	builder.WriteString(fmt.Sprintf("Symbol: %s\n", result.Symbol))
	builder.WriteString(fmt.Sprintf("Period: %s to %s\n", result.StartDate.Format("2006-01-02"), result.EndDate.Format("2006-01-02")))
	builder.WriteString(fmt.Sprintf("Initial Capital: %.2f\n", result.InitialCapital))
	builder.WriteString(fmt.Sprintf("Final Value: %.2f\n", result.FinalValue))
	builder.WriteString(fmt.Sprintf("Total Return: %.2f%%\n", m.TotalReturn*100))
	builder.WriteString(fmt.Sprintf("Annualized Return: %.2f%%\n", m.AnnualizedReturn*100))
	builder.WriteString(fmt.Sprintf("Sharpe Ratio: %.2f\n", m.SharpeRatio))
	builder.WriteString(fmt.Sprintf("Sortino Ratio: %.2f\n", m.SortinoRatio))
	builder.WriteString(fmt.Sprintf("Max Drawdown: %.2f%%\n", m.MaxDrawdown*100))
	builder.WriteString(fmt.Sprintf("Calmar Ratio: %.2f\n", m.CalmarRatio))
	builder.WriteString(fmt.Sprintf("Trades: %d (%d completed, %d open)\n", m.TotalTrades, m.CompletedTrades, m.OpenTrades))
	builder.WriteString(fmt.Sprintf("Win Rate: %.2f%%\n", m.WinRate*100))
	builder.WriteString(fmt.Sprintf("Profit Factor: %.2f\n", m.ProfitFactor))
	builder.WriteString(fmt.Sprintf("Expectancy: %.2f\n", m.Expectancy))
	return builder.String()
}

// GenerateSummaryReport formats an aggregated result for terminal output
func GenerateSummaryReport(result AggregatedResult) string {
	var builder strings.Builder
	builder.WriteString("Strategy Evaluation\n")
	builder.WriteString("===================\n")
	builder.WriteString(fmt.Sprintf("Strategy: %s (%s)\n", result.StrategyName, result.Symbol))
	builder.WriteString(fmt.Sprintf("Composite Score: %.2f\n", result.CompositeScore))
	builder.WriteString(fmt.Sprintf("Recommendation: %s\n", result.Recommendation))
	if mc := result.MonteCarloResult; mc != nil {
		builder.WriteString(fmt.Sprintf("Monte Carlo: mean return %.2f%%, VaR95 %.2f%%, P(profit) %.2f, P(ruin) %.2f\n",
			mc.MeanReturn*100, mc.VaR95*100, mc.ProbabilityOfProfit, mc.ProbabilityOfRuin))
	}
	if wf := result.WalkForwardResult; wf != nil {
		builder.WriteString(fmt.Sprintf("Walk-Forward: %d periods, avg return %.2f%%, avg Sharpe %.2f, profitable %.0f%%\n",
			len(wf.Periods), wf.AverageReturn*100, wf.AverageSharpe, wf.ProfitableFraction*100))
	}
	return builder.String()
}

// GenerateOptimizationReport formats the top ranked combinations
func GenerateOptimizationReport(results []OptimizationResult, metric string, k int) string {
	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("Optimization Results (by %s)\n", metric))
	builder.WriteString("============================\n")
	for i, r := range TopK(results, k) {
		builder.WriteString(fmt.Sprintf("%2d. score=%.4f return=%.2f%% sharpe=%.2f trades=%d params=%s\n",
			i+1, r.Score, r.Result.Metrics.TotalReturn*100, r.Result.Metrics.SharpeRatio,
			r.Result.Metrics.TotalTrades, formatParameters(r.Parameters)))
	}
	return builder.String()
}

// GenerateWalkForwardReport formats per-period results
func GenerateWalkForwardReport(result *WalkForwardResult) string {
	var builder strings.Builder
	builder.WriteString("Walk-Forward Analysis\n")
	builder.WriteString("=====================\n")
	for _, p := range result.Periods {
		builder.WriteString(fmt.Sprintf("Period %d: test %s to %s return=%.2f%% sharpe=%.2f params=%s\n",
			p.Period, p.TestStart.Format("2006-01-02"), p.TestEnd.Format("2006-01-02"),
			p.TestResult.Metrics.TotalReturn*100, p.TestResult.Metrics.SharpeRatio, formatParameters(p.Parameters)))
	}
	builder.WriteString(fmt.Sprintf("Average Return: %.2f%%\n", result.AverageReturn*100))
	builder.WriteString(fmt.Sprintf("Average Sharpe: %.2f\n", result.AverageSharpe))
	builder.WriteString(fmt.Sprintf("Profitable Periods: %.0f%%\n", result.ProfitableFraction*100))
	builder.WriteString(fmt.Sprintf("Overfit Score: %.2f\n", result.OverfitScore))
	return builder.String()
}

// GenerateHTMLReport creates a simple HTML report
func GenerateHTMLReport(result AggregatedResult, outputPath string) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}

	page := fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><title>Backtest Report</title></head>
<body>
<h1>Backtest Report: %s (%s)</h1>
<p><strong>Composite Score:</strong> %.2f</p>
<p><strong>Recommendation:</strong> %s</p>
<p><strong>Total Return:</strong> %.2f%%</p>
<p><strong>Sharpe Ratio:</strong> %.2f</p>
<p><strong>Max Drawdown:</strong> %.2f%%</p>
<p><strong>Win Rate:</strong> %.2f%%</p>
<p><strong>Profit Factor:</strong> %.2f</p>
</body>
</html>`,
		html.EscapeString(result.StrategyName),
		html.EscapeString(result.Symbol),
		result.CompositeScore,
		result.Recommendation,
		result.Historical.TotalReturn*100,
		result.Historical.SharpeRatio,
		result.Historical.MaxDrawdown*100,
		result.Historical.WinRate*100,
		result.Historical.ProfitFactor,
	)

	return os.WriteFile(outputPath, []byte(page), 0o644)
}

// WriteTradesCSV writes the trade ledger with one row per trade
func WriteTradesCSV(w io.Writer, trades []models.Trade) error {
	writer := csv.NewWriter(w)
	header := []string{"id", "symbol", "side", "quantity", "entry_time", "entry_price", "exit_time", "exit_price", "pnl", "commission", "exit_reason"}
	if err := writer.Write(header); err != nil {
		return err
	}
	for _, t := range trades {
		row := []string{
			t.ID.String(),
			t.Symbol,
			string(t.Side),
			formatFloat(t.Quantity),
			t.EntryTime.Format(time.RFC3339),
			formatFloat(t.EntryPrice),
			optionalTime(t.ExitTime),
			optionalFloat(t.ExitPrice),
			optionalFloat(t.PnL),
			formatFloat(t.Commission),
			t.ExitReason,
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// ExportToJSON writes v as indented JSON to outputPath
func ExportToJSON(v interface{}, outputPath string) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", outputPath, err)
	}
	return os.WriteFile(outputPath, data, 0o644)
}

// WriteRunArtifacts writes result.json, trades.csv and equity.csv under dir
func WriteRunArtifacts(result *Result, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if err := ExportToJSON(result, filepath.Join(dir, "result.json")); err != nil {
		return err
	}

	f, err := os.Create(filepath.Join(dir, "trades.csv"))
	if err != nil {
		return err
	}
	if err := WriteTradesCSV(f, result.Trades); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(dir, "equity.csv"), []byte(result.EquityCurve.ToCSV()), 0o644)
}

func optionalFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}

func optionalTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}

func formatParameters(params map[string]interface{}) string {
	if len(params) == 0 {
		return "{}"
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + formatValue(params[k])
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func formatValue(v interface{}) string {
	switch val := v.(type) {
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return fmt.Sprint(val)
	}
}
