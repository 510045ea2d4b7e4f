package service

import (
	"context"
	"errors"
	"io"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/quantlab/internal/backtest"
	"github.com/yourusername/quantlab/internal/config"
	"github.com/yourusername/quantlab/internal/datasource"
	"github.com/yourusername/quantlab/internal/models"
	"github.com/yourusername/quantlab/internal/repository"
	"github.com/yourusername/quantlab/internal/strategy"
)

var (
	windowStart = time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	windowEnd   = time.Date(2023, 3, 2, 0, 0, 0, 0, time.UTC)
)

// MockBacktestResultRepository mocks the result repository
type MockBacktestResultRepository struct {
	mock.Mock
}

func (m *MockBacktestResultRepository) SaveResult(ctx context.Context, result *models.BacktestResult) error {
	args := m.Called(ctx, result)
	return args.Error(0)
}

func (m *MockBacktestResultRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.BacktestResult, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.BacktestResult), args.Error(1)
}

func (m *MockBacktestResultRepository) GetByStrategyID(ctx context.Context, strategyID uuid.UUID) ([]*models.BacktestResult, error) {
	args := m.Called(ctx, strategyID)
	return args.Get(0).([]*models.BacktestResult), args.Error(1)
}

func (m *MockBacktestResultRepository) GetLatest(ctx context.Context, limit int) ([]*models.BacktestResult, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]*models.BacktestResult), args.Error(1)
}

func (m *MockBacktestResultRepository) GetByDateRange(ctx context.Context, start, end time.Time) ([]*models.BacktestResult, error) {
	args := m.Called(ctx, start, end)
	return args.Get(0).([]*models.BacktestResult), args.Error(1)
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func sineProvider() datasource.Provider {
	first := windowStart.AddDate(0, -1, 0)
	bars := make([]models.PricePoint, 0, 200)
	for i := 0; i < 200; i++ {
		c := 100 + 10*math.Sin(float64(i)/4)
		bars = append(bars, models.PricePoint{
			Timestamp: first.AddDate(0, 0, i),
			Symbol:    "TEST",
			Open:      c,
			High:      c + 1,
			Low:       c - 1,
			Close:     c,
			Volume:    1000,
		})
	}
	return datasource.ProviderFunc(func(ctx context.Context, symbol string, start, end time.Time, interval string) ([]models.PricePoint, error) {
		return bars, nil
	})
}

func testConfig() *config.Config {
	return &config.Config{
		App:        config.AppConfig{Name: "quantlab-test", Environment: "development", LogLevel: "info"},
		DataSource: config.DataSourceConfig{Type: "csv", Interval: "1d"},
		Backtest: config.BacktestConfig{
			Symbol:             "TEST",
			StartDate:          windowStart.Format(config.DateLayout),
			EndDate:            windowEnd.Format(config.DateLayout),
			InitialCapital:     1000,
			RiskFreeRate:       0.03,
			TradingDaysPerYear: 252,
			PersistResults:     true,
		},
		Strategy: config.StrategyConfig{
			Type: strategy.MACrossoverType,
			StrategyConfig: models.StrategyConfig{
				Name:           "ma",
				Parameters:     map[string]interface{}{"shortPeriod": 2, "longPeriod": 5},
				RiskManagement: models.RiskManagement{MaxPositionSize: 1},
			},
		},
		Optimizer: config.OptimizerConfig{
			Workers: 2,
			Metric:  backtest.MetricTotalReturn,
			ParameterRanges: []config.ParameterRange{
				{Name: "shortPeriod", Min: 2, Max: 3, Step: 1},
			},
		},
		WalkForward: config.WalkForwardConfig{TrainPeriodDays: 20, TestPeriodDays: 10},
		MonteCarlo:  config.MonteCarloConfig{Enabled: true, Iterations: 100, Seed: 42},
	}
}

func newTestService(t *testing.T, cfg *config.Config, repo *MockBacktestResultRepository) *BacktestService {
	t.Helper()
	var results repository.BacktestResultRepository
	if repo != nil {
		results = repo
	}
	svc, err := NewBacktestService(cfg, sineProvider(), results, quietLogger())
	require.NoError(t, err)
	return svc
}

func TestNewBacktestServiceValidatesConfig(t *testing.T) {
	_, err := NewBacktestService(nil, sineProvider(), nil, nil)
	assert.Error(t, err)

	cfg := testConfig()
	cfg.Backtest.InitialCapital = 0
	_, err = NewBacktestService(cfg, sineProvider(), nil, nil)
	assert.Error(t, err)

	_, err = NewBacktestService(testConfig(), nil, nil, nil)
	assert.Error(t, err)
}

func TestRunPersistsResult(t *testing.T) {
	repo := new(MockBacktestResultRepository)
	repo.On("SaveResult", mock.Anything, mock.MatchedBy(func(row *models.BacktestResult) bool {
		return row.Method == MethodHistoricalReplay && row.Symbol == "TEST" && row.StrategyName == "ma"
	})).Return(nil).Once()

	svc := newTestService(t, testConfig(), repo)
	start, end := svc.Window()
	assert.True(t, start.Equal(windowStart))

	result, err := svc.Run(context.Background(), start, end)
	require.NoError(t, err)
	assert.Equal(t, 1000.0, result.InitialCapital)
	assert.True(t, result.EquityCurve[len(result.EquityCurve)-1].Time.Equal(windowEnd))
	repo.AssertExpectations(t)
}

func TestRunReportsPersistenceFailure(t *testing.T) {
	repo := new(MockBacktestResultRepository)
	repo.On("SaveResult", mock.Anything, mock.Anything).Return(errors.New("connection refused"))

	svc := newTestService(t, testConfig(), repo)
	result, err := svc.Run(context.Background(), windowStart, windowEnd)
	assert.Error(t, err)
	assert.NotNil(t, result)
}

func TestRunWithoutPersistence(t *testing.T) {
	cfg := testConfig()
	cfg.Backtest.PersistResults = false
	repo := new(MockBacktestResultRepository)

	svc := newTestService(t, cfg, repo)
	_, err := svc.Run(context.Background(), windowStart, windowEnd)
	require.NoError(t, err)
	repo.AssertNotCalled(t, "SaveResult", mock.Anything, mock.Anything)
}

func TestOptimizePersistsBestResult(t *testing.T) {
	repo := new(MockBacktestResultRepository)
	repo.On("SaveResult", mock.Anything, mock.MatchedBy(func(row *models.BacktestResult) bool {
		return row.Method == MethodOptimization
	})).Return(nil).Once()

	svc := newTestService(t, testConfig(), repo)
	results, err := svc.Optimize(context.Background(), windowStart, windowEnd)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.GreaterOrEqual(t, results[0].Score, results[1].Score)
	repo.AssertExpectations(t)
}

func TestWalkForwardPersistsEachPeriod(t *testing.T) {
	cfg := testConfig()
	repo := new(MockBacktestResultRepository)
	repo.On("SaveResult", mock.Anything, mock.Anything).Return(nil)

	svc := newTestService(t, cfg, repo)
	result, err := svc.WalkForward(context.Background(), windowStart, windowEnd)
	require.NoError(t, err)
	// 59 days fit one 30-day period
	require.Len(t, result.Periods, 1)
	repo.AssertNumberOfCalls(t, "SaveResult", 1)
}

func TestEvaluateSkipsShortWalkForward(t *testing.T) {
	cfg := testConfig()
	cfg.Backtest.PersistResults = false
	cfg.WalkForward.TrainPeriodDays = 100

	svc := newTestService(t, cfg, nil)
	agg, historical, err := svc.Evaluate(context.Background(), windowStart, windowEnd)
	require.NoError(t, err)
	require.NotNil(t, historical)
	assert.Nil(t, agg.WalkForwardResult)
	require.NotNil(t, agg.MonteCarloResult)
	assert.Equal(t, int64(42), agg.MonteCarloResult.Seed)
	assert.NotEqual(t, backtest.RecommendationAccept, agg.Recommendation)
	assert.GreaterOrEqual(t, agg.CompositeScore, 0.0)
	assert.LessOrEqual(t, agg.CompositeScore, 1.0)
}

func TestRunJob(t *testing.T) {
	cfg := testConfig()
	cfg.Backtest.PersistResults = false
	svc := newTestService(t, cfg, nil)
	svc.now = func() time.Time { return windowEnd.Add(15 * time.Hour) }

	err := svc.RunJob(context.Background(), config.JobConfig{Name: "nightly", Cron: "@daily", Mode: JobModeRun, LookbackDays: 30})
	assert.NoError(t, err)

	err = svc.RunJob(context.Background(), config.JobConfig{Name: "weekly", Cron: "@weekly", Mode: "martingale", LookbackDays: 30})
	assert.Error(t, err)
}
