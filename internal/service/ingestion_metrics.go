package service

import (
	"fmt"
	"sync"
	"time"
)

// IngestionMetrics tracks statistics about bar ingestion
type IngestionMetrics struct {
	mu               sync.RWMutex
	StartTime        time.Time
	Duration         time.Duration
	TotalBars        int
	StoredBars       int
	Duplicates       int
	ValidationErrors int
	Errors           int
}

// NewIngestionMetrics creates a new metrics tracker
func NewIngestionMetrics() *IngestionMetrics {
	return &IngestionMetrics{
		StartTime: time.Now(),
	}
}

// Reset resets all metrics
func (m *IngestionMetrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.StartTime = time.Now()
	m.Duration = 0
	m.TotalBars = 0
	m.StoredBars = 0
	m.Duplicates = 0
	m.ValidationErrors = 0
	m.Errors = 0
}

// RecordFetched adds to the number of bars received from the source
func (m *IngestionMetrics) RecordFetched(count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TotalBars += count
}

// RecordStored adds to the number of bars written to the store
func (m *IngestionMetrics) RecordStored(count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.StoredBars += count
}

// RecordDuplicates adds to the duplicate count
func (m *IngestionMetrics) RecordDuplicates(count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Duplicates += count
}

// RecordError increments error count
func (m *IngestionMetrics) RecordError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Errors++
}

// RecordValidationError increments validation error count
func (m *IngestionMetrics) RecordValidationError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ValidationErrors++
}

// Finish records the elapsed time since StartTime
func (m *IngestionMetrics) Finish() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Duration = time.Since(m.StartTime)
}

// IngestionSummary is a point-in-time copy of IngestionMetrics
type IngestionSummary struct {
	StartTime        time.Time     `json:"start_time"`
	Duration         time.Duration `json:"duration"`
	TotalBars        int           `json:"total_bars"`
	StoredBars       int           `json:"stored_bars"`
	Duplicates       int           `json:"duplicates"`
	ValidationErrors int           `json:"validation_errors"`
	Errors           int           `json:"errors"`
}

// Snapshot returns a copy safe to read without locking
func (m *IngestionMetrics) Snapshot() IngestionSummary {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return IngestionSummary{
		StartTime:        m.StartTime,
		Duration:         m.Duration,
		TotalBars:        m.TotalBars,
		StoredBars:       m.StoredBars,
		Duplicates:       m.Duplicates,
		ValidationErrors: m.ValidationErrors,
		Errors:           m.Errors,
	}
}

// String returns a formatted string representation of metrics
func (m *IngestionMetrics) String() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	successRate := float64(0)
	if m.TotalBars > 0 {
		successRate = float64(m.StoredBars) / float64(m.TotalBars) * 100
	}

	return fmt.Sprintf(
		"IngestionMetrics{Total=%d, Stored=%d (%.1f%%), Duplicates=%d, ValidationErrors=%d, Errors=%d, Duration=%v}",
		m.TotalBars,
		m.StoredBars,
		successRate,
		m.Duplicates,
		m.ValidationErrors,
		m.Errors,
		m.Duration,
	)
}
