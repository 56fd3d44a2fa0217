package sf

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Norgate-AV/alv/internal/command"
	"github.com/Norgate-AV/alv/internal/errs"
	"github.com/Norgate-AV/alv/internal/models"
	"github.com/Norgate-AV/alv/internal/orgs"
)

type apexLog struct {
	ID      string `json:"Id"`
	LogUser struct {
		Name string `json:"Name"`
	} `json:"LogUser"`
	Application      string `json:"Application"`
	Operation        string `json:"Operation"`
	Status           string `json:"Status"`
	LogLength        int64  `json:"LogLength"`
	StartTime        string `json:"StartTime"`
	LastModifiedDate string `json:"LastModifiedDate"`
}

func (a apexLog) entity() models.LogEntity {
	modified := a.LastModifiedDate
	if modified == "" {
		modified = a.StartTime
	}

	return models.LogEntity{
		ID:           a.ID,
		User:         a.LogUser.Name,
		Application:  a.Application,
		Operation:    a.Operation,
		Status:       a.Status,
		Length:       a.LogLength,
		LastModified: modified,
	}
}

// ListLogs returns the org's debug log records in the order the tool lists them.
func (c *Client) ListLogs(ctx context.Context, org string) ([]models.LogEntity, error) {
	resp, err := c.Exec(ctx, command.OpListLogs, command.Params{TargetOrg: org}, RequireStructured())
	if err != nil {
		return nil, err
	}

	records, shape := resp.Doc.Records("records")
	logs := make([]models.LogEntity, 0, len(records))

	for _, r := range records {
		var l apexLog
		if err := json.Unmarshal(r, &l); err != nil || l.ID == "" {
			c.logger.Debug("Skipping unreadable log record", zap.Error(err))
			continue
		}

		logs = append(logs, l.entity())
	}

	c.logger.Debug("Listed logs", zap.String("org", org), zap.Stringer("shape", shape), zap.Int("count", len(logs)))

	return logs, nil
}

// Query runs a query and returns the matching records.
func (c *Client) Query(ctx context.Context, org, query string, tooling bool) ([]json.RawMessage, error) {
	resp, err := c.Exec(ctx, command.OpQuery, command.Params{TargetOrg: org, Query: query, Tooling: tooling}, RequireStructured())
	if err != nil {
		return nil, err
	}

	records, _ := resp.Doc.Records("records")

	return records, nil
}

// QueryOne runs a query that must match exactly one record and decodes it into v.
func (c *Client) QueryOne(ctx context.Context, org, query string, tooling bool, v any) error {
	records, err := c.Query(ctx, org, query, tooling)
	if err != nil {
		return err
	}

	if len(records) != 1 {
		return errs.New(errs.MalformedResponse, string(command.OpQuery),
			fmt.Sprintf("expected exactly one record, got %d", len(records)), nil)
	}

	if err := json.Unmarshal(records[0], v); err != nil {
		return errs.New(errs.MalformedResponse, string(command.OpQuery), "record could not be decoded", err)
	}

	return nil
}

// ClassBody returns the source of the named class.
func (c *Client) ClassBody(ctx context.Context, org, name string) (string, error) {
	var class struct {
		Body string `json:"Body"`
	}

	q := fmt.Sprintf("SELECT Id, Name, Body FROM ApexClass WHERE Name = '%s'", escapeLiteral(name))
	if err := c.QueryOne(ctx, org, q, true, &class); err != nil {
		return "", err
	}

	return class.Body, nil
}

// ClassSource is the source of one class.
type ClassSource struct {
	ID   string `json:"Id"`
	Name string `json:"Name"`
	Body string `json:"Body"`
}

// TestClassSources returns every class in the org's own namespace that declares
// itself a test class.
func (c *Client) TestClassSources(ctx context.Context, org string) ([]ClassSource, error) {
	records, err := c.Query(ctx, org, "SELECT Id, Name, Body FROM ApexClass WHERE NamespacePrefix = null", true)
	if err != nil {
		return nil, err
	}

	var classes []ClassSource
	for _, r := range records {
		var class ClassSource
		if json.Unmarshal(r, &class) != nil || class.Name == "" {
			continue
		}

		if strings.Contains(strings.ToLower(class.Body), "@istest") {
			classes = append(classes, class)
		}
	}

	return classes, nil
}

// CreateRecord creates a record and returns its id.
func (c *Client) CreateRecord(ctx context.Context, org, sobject string, values map[string]string, tooling bool) (string, error) {
	resp, err := c.Exec(ctx, command.OpCreateRecord, command.Params{
		TargetOrg: org,
		SObject:   sobject,
		Values:    values,
		Tooling:   tooling,
	}, RequireStructured())
	if err != nil {
		return "", err
	}

	id, ok := resp.Doc.String("id")
	if !ok || id == "" {
		return "", errs.New(errs.MalformedResponse, string(command.OpCreateRecord), "no record id in output", nil)
	}

	return id, nil
}

// DeleteRecord deletes a record.
func (c *Client) DeleteRecord(ctx context.Context, org, sobject, id string, tooling bool) error {
	_, err := c.Exec(ctx, command.OpDeleteRecord, command.Params{
		TargetOrg: org,
		SObject:   sobject,
		RecordID:  id,
		Tooling:   tooling,
	})

	return err
}

// RunTests starts an asynchronous test run and returns its id.
func (c *Client) RunTests(ctx context.Context, org string, classes, tests []string) (string, error) {
	resp, err := c.Exec(ctx, command.OpRunTests, command.Params{
		TargetOrg: org,
		Classes:   classes,
		Tests:     tests,
	}, RequireStructured())
	if err != nil {
		return "", err
	}

	id, ok := resp.Doc.String("testRunId")
	if !ok || id == "" {
		return "", errs.New(errs.MalformedResponse, string(command.OpRunTests), "no test run id in output", nil)
	}

	return id, nil
}

type testReport struct {
	Summary struct {
		Outcome       string `json:"outcome"`
		TestStartTime string `json:"testStartTime"`
		TestRunID     string `json:"testRunId"`
	} `json:"summary"`
	Tests []struct {
		ApexClass struct {
			Name string `json:"Name"`
		} `json:"ApexClass"`
		MethodName string `json:"MethodName"`
		Outcome    string `json:"Outcome"`
		Message    string `json:"Message"`
		StackTrace string `json:"StackTrace"`
		ApexLogID  string `json:"ApexLogId"`
	} `json:"tests"`
}

// TestRun returns the current state of a test run.
func (c *Client) TestRun(ctx context.Context, org, runID string) (*models.TestRun, error) {
	resp, err := c.Exec(ctx, command.OpGetTestRun, command.Params{TargetOrg: org, TestRunID: runID}, RequireStructured())
	if err != nil {
		return nil, err
	}

	var report testReport
	if err := resp.Doc.DecodeResult(&report); err != nil {
		return nil, errs.New(errs.MalformedResponse, string(command.OpGetTestRun), "test report could not be decoded", err)
	}

	run := &models.TestRun{
		ID:        runID,
		StartTime: report.Summary.TestStartTime,
		Status:    models.NormalizeStatus(report.Summary.Outcome),
	}

	for _, t := range report.Tests {
		run.Results = append(run.Results, models.TestResult{
			ClassName:  t.ApexClass.Name,
			MethodName: t.MethodName,
			Outcome:    t.Outcome,
			Message:    t.Message,
			StackTrace: t.StackTrace,
			LogID:      t.ApexLogID,
		})
	}

	return run, nil
}

// ListOrgs returns the authorized orgs, categorized and filtered by connectivity.
func (c *Client) ListOrgs(ctx context.Context) (*models.OrgList, error) {
	resp, err := c.Exec(ctx, command.OpListOrgs, command.Params{}, RequireStructured())
	if err != nil {
		return nil, err
	}

	return orgs.Categorize(resp.Result.Stdout)
}

// SetDefaultOrg makes alias the tool's default org.
func (c *Client) SetDefaultOrg(ctx context.Context, alias string) error {
	c.defaultOrg.Reset()

	_, err := c.Exec(ctx, command.OpSetDefaultOrg, command.Params{Alias: alias})

	return err
}

// DefaultOrg returns the tool's configured default org.
func (c *Client) DefaultOrg(ctx context.Context) (string, error) {
	if org, ok := c.defaultOrg.Get(); ok {
		return org, nil
	}

	resp, err := c.Exec(ctx, command.OpGetDefaultOrg, command.Params{}, RequireStructured())
	if err != nil {
		return "", err
	}

	org, _ := resp.Doc.String("value")
	if org == "" {
		return "", errs.New(errs.NoDefaultEnvironment, string(command.OpGetDefaultOrg), "no default org is configured", nil).WithHint(orgHint)
	}

	c.defaultOrg.Set(org)

	return org, nil
}

// CurrentUserID returns the id of the user the tool is authorized as in org.
func (c *Client) CurrentUserID(ctx context.Context, org string) (string, error) {
	if id, ok := c.userIDs.Get(org); ok {
		return id, nil
	}

	resp, err := c.Exec(ctx, command.OpDisplayUser, command.Params{TargetOrg: org}, RequireStructured())
	if err != nil {
		return "", err
	}

	id, _ := resp.Doc.String("id")
	if id == "" {
		return "", errs.New(errs.MalformedResponse, string(command.OpDisplayUser), "no user id in output", nil)
	}

	c.userIDs.Set(org, id)

	return id, nil
}

// Version returns the first line of the tool's version banner.
func (c *Client) Version(ctx context.Context) (string, error) {
	v, err := c.version(ctx)
	if err != nil {
		return "", errs.New(errs.ToolUnavailable, string(command.OpVersion), "the CLI could not be run", err).WithHint(installHint)
	}

	return v, nil
}

func escapeLiteral(s string) string {
	return strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(s)
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}

	return s
}
