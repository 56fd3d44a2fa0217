package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTime(t *testing.T) {
	want := time.Date(2024, 3, 1, 10, 15, 30, 0, time.UTC)

	tests := []struct {
		name  string
		input string
	}{
		{"zulu", "2024-03-01T10:15:30Z"},
		{"zulu with millis", "2024-03-01T10:15:30.000Z"},
		{"compact offset with millis", "2024-03-01T10:15:30.000+0000"},
		{"compact offset", "2024-03-01T10:15:30+0000"},
		{"colon offset", "2024-03-01T10:15:30+00:00"},
		{"no zone", "2024-03-01T10:15:30"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTime(tt.input)
			require.NoError(t, err)
			assert.True(t, want.Equal(got), "got %s", got)
		})
	}
}

func TestParseTime_Invalid(t *testing.T) {
	_, err := ParseTime("")
	assert.Error(t, err)

	_, err = ParseTime("yesterday")
	assert.Error(t, err)
}

func TestNormalizeStatus(t *testing.T) {
	tests := []struct {
		input    string
		want     TestRunStatus
		terminal bool
	}{
		{"Completed", TestRunCompleted, true},
		{"Failed", TestRunFailed, true},
		{"Aborted", TestRunAborted, true},
		{"Processing", TestRunProcessing, false},
		{"Queued", TestRunQueued, false},
		{"", TestRunQueued, false},
	}

	for _, tt := range tests {
		got := NormalizeStatus(tt.input)
		assert.Equal(t, tt.want, got, "NormalizeStatus(%q)", tt.input)
		assert.Equal(t, tt.terminal, got.Terminal())
	}
}

func TestTestRun_DirectLogID(t *testing.T) {
	run := &TestRun{Results: []TestResult{{ClassName: "A"}, {ClassName: "B", LogID: "07L1"}}}
	assert.Equal(t, "07L1", run.DirectLogID())

	run = &TestRun{Results: []TestResult{{ClassName: "A"}}}
	assert.Empty(t, run.DirectLogID())
}

func TestOrgList_AddAndAll(t *testing.T) {
	var list OrgList
	list.Add(OrgContext{Username: "hub@x", Category: CategoryHub})
	list.Add(OrgContext{Username: "sb@x", Category: CategorySandbox, Default: true})
	list.Add(OrgContext{Username: "misc@x", Category: "unknown"})

	assert.Len(t, list.Hubs, 1)
	assert.Len(t, list.Sandboxes, 1)
	assert.Len(t, list.Other, 1)
	assert.Len(t, list.All(), 3)

	def, ok := list.Default()
	require.True(t, ok)
	assert.Equal(t, "sb@x", def.Key())
}

func TestLogEntity_IsTestExecution(t *testing.T) {
	tests := []struct {
		op   string
		want bool
	}{
		{"ApexTestHandler", true},
		{"/services/data/v58.0/tooling/runTestsAsynchronous", true},
		{"/services/data/v58.0/tooling/runTestsSynchronous/", true},
		{"Run Test", true},
		{"/aura", false},
		{"/services/apexrest/latest", false},
		{"Contest__c trigger", false},
		{"Attestation", false},
	}

	for _, tt := range tests {
		t.Run(tt.op, func(t *testing.T) {
			assert.Equal(t, tt.want, LogEntity{Operation: tt.op}.IsTestExecution())
		})
	}
}
