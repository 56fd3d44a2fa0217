// Package correlate finds the debug log produced by a test run.
//
// When the run reports a log id directly, that id is used. Otherwise the log is
// inferred from timestamps: the newest log at or after the run's start, with logs
// whose operation marks a test execution preferred. Overlapping runs against the
// same org can be mis-attributed by the inferred path.
package correlate

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/Norgate-AV/alv/internal/models"
)

// Method names how a match was found.
type Method string

const (
	MethodDirect        Method = "direct"
	MethodTestOperation Method = "test-operation"
	MethodTimestamp     Method = "timestamp"
)

// Match is the outcome of a correlation. Found is false when no log qualifies.
type Match struct {
	Found  bool              `json:"found"`
	LogID  string            `json:"log_id,omitempty"`
	Entity *models.LogEntity `json:"entity,omitempty"`
	Method Method            `json:"method,omitempty"`
}

// Source supplies test runs and log listings. *sf.Client satisfies it.
type Source interface {
	TestRun(ctx context.Context, org, runID string) (*models.TestRun, error)
	ListLogs(ctx context.Context, org string) ([]models.LogEntity, error)
}

// Correlator resolves test runs to logs.
type Correlator struct {
	source Source
	logger *zap.Logger
}

// New creates a new correlator
func New(source Source, logger *zap.Logger) *Correlator {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Correlator{source: source, logger: logger}
}

// LogForTestRun returns the log produced by runID.
func (c *Correlator) LogForTestRun(ctx context.Context, org, runID string) (Match, error) {
	run, err := c.source.TestRun(ctx, org, runID)
	if err != nil {
		return Match{}, err
	}

	return c.LogForRun(ctx, org, run)
}

// LogForRun is LogForTestRun for an already fetched run.
func (c *Correlator) LogForRun(ctx context.Context, org string, run *models.TestRun) (Match, error) {
	if id := run.DirectLogID(); id != "" {
		return Match{Found: true, LogID: id, Method: MethodDirect}, nil
	}

	start, err := models.ParseTime(run.StartTime)
	if err != nil {
		c.logger.Debug("Test run has no usable start time", zap.String("run", run.ID), zap.Error(err))
		return Match{}, nil
	}

	logs, err := c.source.ListLogs(ctx, org)
	if err != nil {
		return Match{}, err
	}

	m := Select(start, logs)
	c.logger.Debug("Correlated test run",
		zap.String("run", run.ID),
		zap.Bool("found", m.Found),
		zap.String("log", m.LogID),
		zap.String("method", string(m.Method)))

	return m, nil
}

type candidate struct {
	log models.LogEntity
	at  time.Time
}

// Select picks the log for a run that started at start. Logs without a readable
// timestamp never qualify.
func Select(start time.Time, logs []models.LogEntity) Match {
	candidates := make([]candidate, 0, len(logs))
	for _, l := range logs {
		at, err := l.Time()
		if err != nil {
			continue
		}

		candidates = append(candidates, candidate{log: l, at: at})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].at.After(candidates[j].at)
	})

	var newest *candidate
	for i := range candidates {
		c := &candidates[i]
		if c.at.Before(start) {
			continue
		}

		if c.log.IsTestExecution() {
			return match(c.log, MethodTestOperation)
		}

		if newest == nil {
			newest = c
		}
	}

	if newest == nil {
		return Match{}
	}

	return match(newest.log, MethodTimestamp)
}

func match(l models.LogEntity, m Method) Match {
	return Match{Found: true, LogID: l.ID, Entity: &l, Method: m}
}
