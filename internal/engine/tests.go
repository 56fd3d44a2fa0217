package engine

import (
	"context"
	"regexp"
	"sort"

	"go.uber.org/zap"

	"github.com/Norgate-AV/alv/internal/correlate"
	"github.com/Norgate-AV/alv/internal/models"
)

// RunTests starts a test run and returns its id
func (e *Engine) RunTests(ctx context.Context, org string, classes, tests []string) (string, error) {
	alias, err := e.resolveOrg(ctx, org)
	if err != nil {
		return "", err
	}

	return e.client.RunTests(ctx, alias, classes, tests)
}

// PollTestRun returns the current state of a run. Finished runs are archived
// and served from the archive afterwards.
func (e *Engine) PollTestRun(ctx context.Context, org, runID string) (*models.TestRun, error) {
	if run, err := e.runs.Get(runID); err != nil {
		e.logger.Warn("Failed to read run archive", zap.String("run", runID), zap.Error(err))
	} else if run != nil {
		return run, nil
	}

	alias, err := e.resolveOrg(ctx, org)
	if err != nil {
		return nil, err
	}

	run, err := e.client.TestRun(ctx, alias, runID)
	if err != nil {
		return nil, err
	}

	if run.Status.Terminal() {
		if err := e.runs.Put(run); err != nil {
			e.logger.Warn("Failed to archive test run", zap.String("run", runID), zap.Error(err))
		}
	}

	return run, nil
}

// CorrelateTestRun finds the log produced by a test run
func (e *Engine) CorrelateTestRun(ctx context.Context, org, runID string) (correlate.Match, error) {
	alias, err := e.resolveOrg(ctx, org)
	if err != nil {
		return correlate.Match{}, err
	}

	run, err := e.PollTestRun(ctx, alias, runID)
	if err != nil {
		return correlate.Match{}, err
	}

	return e.correlator.LogForRun(ctx, alias, run)
}

// TestRunLog correlates a test run and fetches the body of its log. The body is
// empty when no log matched.
func (e *Engine) TestRunLog(ctx context.Context, org, runID string) (correlate.Match, string, error) {
	alias, err := e.resolveOrg(ctx, org)
	if err != nil {
		return correlate.Match{}, "", err
	}

	m, err := e.CorrelateTestRun(ctx, alias, runID)
	if err != nil || !m.Found {
		return m, "", err
	}

	body, err := e.FetchLog(ctx, alias, m.LogID)
	if err != nil {
		return m, "", err
	}

	return m, body, nil
}

// TestClasses returns the org's test classes and their test methods. The index
// is cached per org until refresh is set.
func (e *Engine) TestClasses(ctx context.Context, org string, refresh bool) ([]models.TestClass, error) {
	alias, err := e.resolveOrg(ctx, org)
	if err != nil {
		return nil, err
	}

	if !refresh {
		if cached, ok := e.store.TestClasses(alias); ok {
			return cached.Classes, nil
		}
	}

	sources, err := e.client.TestClassSources(ctx, alias)
	if err != nil {
		return nil, err
	}

	classes := make([]models.TestClass, 0, len(sources))
	for _, s := range sources {
		methods := TestMethods(s.Body)
		if len(methods) == 0 {
			continue
		}

		classes = append(classes, models.TestClass{ID: s.ID, Name: s.Name, Methods: methods})
	}

	sort.Slice(classes, func(i, j int) bool {
		return classes[i].Name < classes[j].Name
	})

	if _, err := e.store.PutTestClasses(alias, classes); err != nil {
		e.logger.Warn("Failed to cache test classes", zap.String("org", alias), zap.Error(err))
	}

	return classes, nil
}

var testMethodPattern = regexp.MustCompile(
	`(?i)(?:@istest(?:\s*\([^)]*\))?|\btestmethod\b)\s+(?:(?:public|private|global|protected|static|testmethod|void)\s+)*([a-z_]\w*)\s*\(`)

// TestMethods returns the names of the test methods declared in a class body,
// in declaration order.
func TestMethods(body string) []string {
	var methods []string
	seen := make(map[string]bool)

	for _, m := range testMethodPattern.FindAllStringSubmatch(body, -1) {
		name := m[1]
		if seen[name] {
			continue
		}

		seen[name] = true
		methods = append(methods, name)
	}

	return methods
}
