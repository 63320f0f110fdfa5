package aggregate

import (
	"fmt"
	"time"

	"github.com/cloudratio/advisor-report-backend/internal/cache"
	"github.com/cloudratio/advisor-report-backend/internal/config"
	"github.com/cloudratio/advisor-report-backend/internal/model"
	"github.com/cloudratio/advisor-report-backend/internal/types"
)

// Window is a half-open time interval [Start, End) over record update dates.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (w Window) Key() string {
	return fmt.Sprintf("%s-%s", w.Start.UTC().Format("20060102T150405"), w.End.UTC().Format("20060102T150405"))
}

func (w Window) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// Previous returns the adjacent window of the same length ending where this
// one starts, for period-over-period comparison.
func (w Window) Previous() Window {
	return Window{Start: w.Start.Add(-w.Duration()), End: w.Start}
}

// DefaultWindow is the trailing report window of the given number of days,
// ending now.
func DefaultWindow(days int) Window {
	if days < 1 {
		days = 1
	}
	end := time.Now().UTC()
	return Window{Start: end.AddDate(0, 0, -days), End: end}
}

// RecordSource abstracts where records come from so the engine can be tested
// without a database.
type RecordSource interface {
	RecordSet(id string) (model.RecordSet, error)
	Records(id string, window Window) ([]model.Recommendation, error)
}

type dbSource struct{}

func (dbSource) RecordSet(id string) (model.RecordSet, error) {
	return model.GetRecordSetByID(id)
}

func (dbSource) Records(id string, window Window) ([]model.Recommendation, error) {
	return model.GetRecommendationsInWindow(id, window.Start, window.End)
}

// Engine computes aggregation snapshots and memoizes them in a TTL cache.
// Cache keys carry the record-set version, so results computed before a
// re-ingestion can never be served after it.
type Engine struct {
	source RecordSource
	cache  *cache.Cache
}

var engine *Engine = nil

func GetEngine() *Engine {
	if engine == nil {
		cfg := config.GetConfig()
		engine = NewEngine(dbSource{}, cache.New(cfg.CacheTTL()))
	}
	return engine
}

func NewEngine(source RecordSource, c *cache.Cache) *Engine {
	return &Engine{source: source, cache: c}
}

func (e *Engine) Summary(recordSetID string, window Window) (*Snapshot, error) {
	set, err := e.source.RecordSet(recordSetID)
	if err != nil {
		return nil, err
	}
	key := fmt.Sprintf("agg:%s:%d:summary:%s", set.ID, set.Version, window.Key())
	if cached, ok := e.cache.Get(key); ok {
		cacheHits.Inc()
		return cached.(*Snapshot), nil
	}
	cacheMisses.Inc()

	records, err := e.source.Records(recordSetID, window)
	if err != nil {
		return nil, err
	}
	snapshot := buildSnapshot(set, window, records)
	e.cache.Set(key, snapshot)
	return snapshot, nil
}

func (e *Engine) Trend(recordSetID string, window Window, granularity types.Granularity) (*TrendSeries, error) {
	set, err := e.source.RecordSet(recordSetID)
	if err != nil {
		return nil, err
	}
	key := fmt.Sprintf("agg:%s:%d:trend:%s:%s", set.ID, set.Version, granularity, window.Key())
	if cached, ok := e.cache.Get(key); ok {
		cacheHits.Inc()
		return cached.(*TrendSeries), nil
	}
	cacheMisses.Inc()

	records, err := e.source.Records(recordSetID, window)
	if err != nil {
		return nil, err
	}
	series := buildTrend(set, window, granularity, records)
	e.cache.Set(key, series)
	return series, nil
}

// Comparison puts the current window next to the equal-length window before
// it. Both sides go through Summary so they share the cache.
func (e *Engine) Comparison(recordSetID string, current Window) (*Comparison, error) {
	currentSnapshot, err := e.Summary(recordSetID, current)
	if err != nil {
		return nil, err
	}
	previousSnapshot, err := e.Summary(recordSetID, current.Previous())
	if err != nil {
		return nil, err
	}
	return compare(currentSnapshot, previousSnapshot), nil
}

// Invalidate drops every cached aggregation for the record set. Version
// bumps already keep stale entries from being served; this frees them early.
func (e *Engine) Invalidate(recordSetID string) {
	e.cache.InvalidatePrefix(fmt.Sprintf("agg:%s:", recordSetID))
}
