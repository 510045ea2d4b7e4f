package backtest

import (
	"bytes"
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/yourusername/quantlab/internal/models"
)

func sampleResult(t *testing.T) *Result {
	t.Helper()
	engine := buildTestEngine(t, makeBars(10, 12, 11))
	strat := newScripted(map[int]models.Signal{0: buy(1), 1: sell(1), 2: buy(1)})
	result, err := engine.RunBacktest(context.Background(), strat, "TEST", testStart, testStart.AddDate(0, 0, 2), 1000)
	if err != nil {
		t.Fatalf("RunBacktest failed: %v", err)
	}
	return result
}

func TestWriteTradesCSV(t *testing.T) {
	result := sampleResult(t)
	var buf bytes.Buffer
	if err := WriteTradesCSV(&buf, result.Trades); err != nil {
		t.Fatalf("WriteTradesCSV failed: %v", err)
	}
	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("invalid csv: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header and 2 trades, got %d rows", len(rows))
	}
	if rows[0][0] != "id" || rows[0][10] != "exit_reason" {
		t.Fatalf("unexpected header %v", rows[0])
	}
	if rows[1][10] != ExitReasonSignal || rows[1][8] != "2.000000" {
		t.Fatalf("unexpected closed row %v", rows[1])
	}
	if rows[2][6] != "" || rows[2][8] != "" {
		t.Fatalf("expected open trade to leave exit columns empty, got %v", rows[2])
	}
}

func TestGenerateConsoleReport(t *testing.T) {
	report := GenerateConsoleReport(sampleResult(t))
	for _, want := range []string{"Strategy: scripted", "Symbol: TEST", "Trades: 2 (1 completed, 1 open)"} {
		if !strings.Contains(report, want) {
			t.Fatalf("report missing %q:\n%s", want, report)
		}
	}
}

func TestWriteRunArtifacts(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "run")
	if err := WriteRunArtifacts(sampleResult(t), dir); err != nil {
		t.Fatalf("WriteRunArtifacts failed: %v", err)
	}
	for _, name := range []string{"result.json", "trades.csv", "equity.csv"} {
		info, err := os.Stat(filepath.Join(dir, name))
		if err != nil || info.Size() == 0 {
			t.Fatalf("expected %s to be written: %v", name, err)
		}
	}
	equity, _ := os.ReadFile(filepath.Join(dir, "equity.csv"))
	if !strings.HasPrefix(string(equity), "time,value,drawdown,pnl\n") {
		t.Fatalf("unexpected equity header: %s", equity)
	}
}

func TestGenerateHTMLReportEscapes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.html")
	agg := AggregatedResult{StrategyName: "<ma>", Symbol: "TEST", Recommendation: RecommendationReject}
	if err := GenerateHTMLReport(agg, path); err != nil {
		t.Fatalf("GenerateHTMLReport failed: %v", err)
	}
	page, _ := os.ReadFile(path)
	if strings.Contains(string(page), "<ma>") || !strings.Contains(string(page), "&lt;ma&gt;") {
		t.Fatalf("expected escaped strategy name")
	}
}

func TestFormatParametersIsSorted(t *testing.T) {
	got := formatParameters(map[string]interface{}{"b": 2.5, "a": 1})
	if got != "{a=1, b=2.5}" {
		t.Fatalf("unexpected parameters %q", got)
	}
}
