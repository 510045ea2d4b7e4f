package repository

import (
	"fmt"

	"github.com/yourusername/quantlab/internal/database"
)

// Repositories holds all repository implementations
type Repositories struct {
	PriceBars       PriceBarRepository
	BacktestResults BacktestResultRepository
}

// NewRepositories creates and returns all repository implementations
func NewRepositories(db *database.DB) (*Repositories, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	return &Repositories{
		PriceBars:       NewPostgresPriceBarRepository(db),
		BacktestResults: NewPostgresBacktestResultRepository(db),
	}, nil
}
