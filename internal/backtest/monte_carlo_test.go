package backtest

import (
	"context"
	"testing"

	"github.com/yourusername/quantlab/internal/models"
)

func TestRunMonteCarloIsReproducible(t *testing.T) {
	trades := []models.Trade{closedTrade(50), closedTrade(-30), closedTrade(20), closedTrade(-10)}
	cfg := MonteCarloConfig{Iterations: 500, Seed: 42, InitialCapital: 1000}

	a, err := RunMonteCarlo(context.Background(), trades, cfg)
	if err != nil {
		t.Fatalf("RunMonteCarlo failed: %v", err)
	}
	b, err := RunMonteCarlo(context.Background(), trades, cfg)
	if err != nil {
		t.Fatalf("RunMonteCarlo failed: %v", err)
	}
	if a.MeanReturn != b.MeanReturn || a.VaR95 != b.VaR95 {
		t.Fatalf("expected identical results for the same seed")
	}
	for i := range a.Distribution {
		if a.Distribution[i] != b.Distribution[i] {
			t.Fatalf("distribution differs at %d", i)
		}
	}
	if a.Seed != 42 || a.SampledTrades != 4 || len(a.Distribution) != 500 {
		t.Fatalf("unexpected run summary %+v", a)
	}
	if a.VaR99 > a.VaR95 {
		t.Fatalf("expected VaR99 %v at or below VaR95 %v", a.VaR99, a.VaR95)
	}
	if _, ok := a.ConfidenceIntervals["95%"]; !ok {
		t.Fatalf("expected 95%% confidence interval, got %v", a.ConfidenceIntervals)
	}
}

func TestRunMonteCarloAllWinners(t *testing.T) {
	trades := []models.Trade{closedTrade(10), closedTrade(5)}
	result, err := RunMonteCarlo(context.Background(), trades, MonteCarloConfig{Iterations: 200, Seed: 7, InitialCapital: 100})
	if err != nil {
		t.Fatalf("RunMonteCarlo failed: %v", err)
	}
	if result.ProbabilityOfProfit != 1 || result.ProbabilityOfRuin != 0 {
		t.Fatalf("expected certain profit, got %v / %v", result.ProbabilityOfProfit, result.ProbabilityOfRuin)
	}
	// two draws of 5 or 10 land between 10% and 20%
	if result.MeanReturn < 0.1 || result.MeanReturn > 0.2 {
		t.Fatalf("mean return out of bounds: %v", result.MeanReturn)
	}
}

func TestRunMonteCarloRuin(t *testing.T) {
	trades := []models.Trade{closedTrade(-200)}
	result, err := RunMonteCarlo(context.Background(), trades, MonteCarloConfig{Iterations: 50, Seed: 1, InitialCapital: 100})
	if err != nil {
		t.Fatalf("RunMonteCarlo failed: %v", err)
	}
	if result.ProbabilityOfRuin != 1 || result.MeanReturn != -1 {
		t.Fatalf("expected every path ruined, got %+v", result)
	}
}

func TestRunMonteCarloWithoutTrades(t *testing.T) {
	open := models.Trade{Quantity: 1, EntryPrice: 1, EntryTime: testStart}
	result, err := RunMonteCarlo(context.Background(), []models.Trade{open}, MonteCarloConfig{Iterations: 10, Seed: 3, InitialCapital: 100})
	if err != nil {
		t.Fatalf("RunMonteCarlo failed: %v", err)
	}
	if result.SampledTrades != 0 || result.MeanReturn != 0 || result.ProbabilityOfProfit != 0 {
		t.Fatalf("expected flat distribution, got %+v", result)
	}
}

func TestRunMonteCarloValidation(t *testing.T) {
	if _, err := RunMonteCarlo(context.Background(), nil, MonteCarloConfig{Iterations: 10}); err == nil {
		t.Fatalf("expected error for zero capital")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := RunMonteCarlo(ctx, []models.Trade{closedTrade(1)}, MonteCarloConfig{Iterations: 10, Seed: 1, InitialCapital: 100}); err == nil {
		t.Fatalf("expected cancellation error")
	}

	result, err := RunMonteCarlo(context.Background(), nil, MonteCarloConfig{InitialCapital: 100, Seed: 9})
	if err != nil || result.Iterations != DefaultMonteCarloIterations {
		t.Fatalf("expected default iterations, got %d (%v)", result.Iterations, err)
	}
}
