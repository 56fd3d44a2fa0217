package models

import "strings"

// TestRunStatus is the lifecycle state of an asynchronous test run.
type TestRunStatus string

const (
	TestRunQueued     TestRunStatus = "Queued"
	TestRunProcessing TestRunStatus = "Processing"
	TestRunCompleted  TestRunStatus = "Completed"
	TestRunFailed     TestRunStatus = "Failed"
	TestRunAborted    TestRunStatus = "Aborted"
)

// NormalizeStatus maps the tool's free-form status/outcome strings onto TestRunStatus.
func NormalizeStatus(s string) TestRunStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "completed", "passed", "pass", "finished", "skipped":
		return TestRunCompleted
	case "failed", "fail", "error":
		return TestRunFailed
	case "aborted":
		return TestRunAborted
	case "processing", "preparing", "holding", "running":
		return TestRunProcessing
	default:
		return TestRunQueued
	}
}

// Terminal reports whether no further transitions are possible.
func (s TestRunStatus) Terminal() bool {
	return s == TestRunCompleted || s == TestRunFailed || s == TestRunAborted
}

// TestResult is the outcome of a single test method.
type TestResult struct {
	ClassName  string `json:"class_name"`
	MethodName string `json:"method_name"`
	Outcome    string `json:"outcome"`
	Message    string `json:"message,omitempty"`
	StackTrace string `json:"stack_trace,omitempty"`

	// LogID is set when the tool reports the log produced for this test.
	LogID string `json:"log_id,omitempty"`
}

// TestRun represents one asynchronous test execution.
type TestRun struct {
	ID        string        `json:"id"`
	StartTime string        `json:"start_time"`
	Status    TestRunStatus `json:"status"`
	Results   []TestResult  `json:"results"`
}

// DirectLogID returns the first explicit log reference carried by any result.
func (r *TestRun) DirectLogID() string {
	for _, res := range r.Results {
		if res.LogID != "" {
			return res.LogID
		}
	}

	return ""
}
