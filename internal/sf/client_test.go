package sf

import (
	"context"
	"errors"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Norgate-AV/alv/internal/command"
	"github.com/Norgate-AV/alv/internal/errs"
	"github.com/Norgate-AV/alv/internal/models"
	"github.com/Norgate-AV/alv/internal/process"
	"github.com/Norgate-AV/alv/internal/process/processtest"
)

func newClient(h processtest.Handler) (*Client, *processtest.Runner) {
	r := processtest.New(h)
	return New(r, Options{}), r
}

func TestExec_ModernSuccessNeverInvokesLegacy(t *testing.T) {
	c, r := newClient(func(ctx context.Context, cmd command.Command) (*process.Result, error) {
		return processtest.OK(`{"status":0,"result":[]}`)
	})

	resp, err := c.Exec(context.Background(), command.OpListLogs, command.Params{}, RequireStructured())
	require.NoError(t, err)
	assert.Equal(t, command.Modern, resp.Dialect)

	calls := r.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "sf", calls[0].Command.Name)
}

func TestExec_FallsBackToLegacy(t *testing.T) {
	tests := []struct {
		name   string
		modern func() (*process.Result, error)
	}{
		{
			name:   "modern exits with error",
			modern: func() (*process.Result, error) { return processtest.Fail(2, "Error: unknown command apex") },
		},
		{
			name:   "modern output not JSON",
			modern: func() (*process.Result, error) { return processtest.OK("Warning: something odd happened") },
		},
		{
			name:   "modern reports failure status",
			modern: func() (*process.Result, error) { return processtest.OK(`{"status":1,"name":"Nope","message":"flag not recognized"}`) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, r := newClient(func(ctx context.Context, cmd command.Command) (*process.Result, error) {
				if cmd.Dialect == command.Modern {
					return tt.modern()
				}

				return processtest.OK(`{"status":0,"result":[{"Id":"07L1","Operation":"Api"}]}`)
			})

			logs, err := c.ListLogs(context.Background(), "dev")
			require.NoError(t, err)
			require.Len(t, logs, 1)
			assert.Equal(t, "07L1", logs[0].ID)

			calls := r.Calls()
			require.Len(t, calls, 2)
			assert.Equal(t, command.Modern, calls[0].Command.Dialect)
			assert.Equal(t, command.Legacy, calls[1].Command.Dialect)
			assert.Contains(t, calls[1].Command.Args, "-u")
		})
	}
}

func TestExec_BothDialectsFail(t *testing.T) {
	c, _ := newClient(func(ctx context.Context, cmd command.Command) (*process.Result, error) {
		if cmd.Op == command.OpVersion {
			return processtest.OK("@salesforce/cli/2.10.2 linux-x64 node-v20.5.0")
		}

		return processtest.Fail(2, "Error: nonexistent flag")
	})

	_, err := c.ListLogs(context.Background(), "dev")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.DialectMismatch))
	assert.Contains(t, err.Error(), "modern attempt failed")
	assert.Contains(t, err.Error(), "legacy attempt failed")
}

func TestExec_NoDefaultEnvironment(t *testing.T) {
	c, r := newClient(func(ctx context.Context, cmd command.Command) (*process.Result, error) {
		if cmd.Op == command.OpVersion {
			return processtest.OK("@salesforce/cli/2.10.2")
		}

		return processtest.ToolFail(1, `{"status":1,"name":"NoDefaultEnvError","message":"No default environment found."}`)
	})

	_, err := c.ListLogs(context.Background(), "")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.NoDefaultEnvironment))

	var e *errs.Error
	require.ErrorAs(t, err, &e)
	assert.NotEmpty(t, e.Hint)

	assert.Len(t, r.CallsFor(command.OpListLogs), 1, "org-context failure must not try the legacy dialect")
	assert.NotEmpty(t, r.CallsFor(command.OpVersion))
}

func TestExec_ToolUnavailable(t *testing.T) {
	c, _ := newClient(func(ctx context.Context, cmd command.Command) (*process.Result, error) {
		return nil, &process.ExitError{Command: cmd.String(), Code: -1, Err: exec.ErrNotFound}
	})

	_, err := c.ListOrgs(context.Background())
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ToolUnavailable))
	assert.Contains(t, err.Error(), installHint)
}

func TestExec_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	c, r := newClient(func(ctx context.Context, cmd command.Command) (*process.Result, error) {
		cancel()
		return processtest.Fail(-1, "signal: killed")
	})

	_, err := c.ListLogs(ctx, "dev")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Len(t, r.Calls(), 1)
}

func TestExec_BuildErrorIsNotRetried(t *testing.T) {
	c, r := newClient(nil)

	_, err := c.Exec(context.Background(), command.OpGetLog, command.Params{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log id is required")
	assert.Empty(t, r.Calls())
}

func TestQueryOne(t *testing.T) {
	tests := []struct {
		name    string
		output  string
		wantErr bool
		want    string
	}{
		{
			name:   "one record",
			output: `{"status":0,"result":{"records":[{"Body":"public class A {}"}],"totalSize":1}}`,
			want:   "public class A {}",
		},
		{
			name:    "no records",
			output:  `{"status":0,"result":{"records":[],"totalSize":0}}`,
			wantErr: true,
		},
		{
			name:    "two records",
			output:  `{"status":0,"result":{"records":[{"Body":"a"},{"Body":"b"}]}}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, r := newClient(func(ctx context.Context, cmd command.Command) (*process.Result, error) {
				return processtest.OK(tt.output)
			})

			body, err := c.ClassBody(context.Background(), "dev", "O'Brien")
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errs.Is(err, errs.MalformedResponse))
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, body)
			assert.Contains(t, r.Calls()[0].Command.Args, "--use-tooling-api")
			assert.Contains(t, r.Calls()[0].Command.Args, `SELECT Id, Name, Body FROM ApexClass WHERE Name = 'O\'Brien'`)
		})
	}
}

func TestTestRun(t *testing.T) {
	out := `{"status":100,"result":{
		"summary":{"outcome":"Failed","testStartTime":"2024-01-01T10:00:00.000+0000","testRunId":"707A"},
		"tests":[
			{"ApexClass":{"Name":"AccountTest"},"MethodName":"testInsert","Outcome":"Pass","Message":null,"StackTrace":null,"ApexLogId":null},
			{"ApexClass":{"Name":"AccountTest"},"MethodName":"testUpdate","Outcome":"Fail","Message":"Assertion Failed","StackTrace":"Class.AccountTest: line 9","ApexLogId":"07L9"}
		]}}`

	c, _ := newClient(func(ctx context.Context, cmd command.Command) (*process.Result, error) {
		return &process.Result{Stdout: out, ExitCode: 100}, nil
	})

	run, err := c.TestRun(context.Background(), "dev", "707A")
	require.NoError(t, err)
	assert.Equal(t, models.TestRunFailed, run.Status)
	assert.Equal(t, "2024-01-01T10:00:00.000+0000", run.StartTime)
	require.Len(t, run.Results, 2)
	assert.Equal(t, "testUpdate", run.Results[1].MethodName)
	assert.Equal(t, "07L9", run.DirectLogID())
}

func TestRunTests(t *testing.T) {
	c, r := newClient(func(ctx context.Context, cmd command.Command) (*process.Result, error) {
		return processtest.OK(`{"status":0,"result":{"testRunId":"707B"}}`)
	})

	id, err := c.RunTests(context.Background(), "dev", []string{"AccountTest"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "707B", id)
	assert.Contains(t, r.Calls()[0].Command.Args, "--class-names")
}

func TestCreateAndDeleteRecord(t *testing.T) {
	c, r := newClient(func(ctx context.Context, cmd command.Command) (*process.Result, error) {
		if cmd.Op == command.OpCreateRecord {
			return processtest.OK(`{"status":0,"result":{"id":"7tf1","success":true,"errors":[]}}`)
		}

		return processtest.OK(`{"status":0,"result":{"id":"7tf1","success":true}}`)
	})

	id, err := c.CreateRecord(context.Background(), "dev", "TraceFlag", map[string]string{"LogType": "USER_DEBUG"}, true)
	require.NoError(t, err)
	assert.Equal(t, "7tf1", id)

	require.NoError(t, c.DeleteRecord(context.Background(), "dev", "TraceFlag", id, true))
	assert.Len(t, r.CallsFor(command.OpDeleteRecord), 1)
}

func TestDefaultOrg_Memoized(t *testing.T) {
	c, r := newClient(func(ctx context.Context, cmd command.Command) (*process.Result, error) {
		switch cmd.Op {
		case command.OpGetDefaultOrg:
			return processtest.OK(`{"status":0,"result":[{"name":"target-org","value":"dev","success":true}]}`)
		default:
			return processtest.OK(`{"status":0,"result":[{"name":"target-org","value":"uat","success":true}]}`)
		}
	})

	for i := 0; i < 3; i++ {
		org, err := c.DefaultOrg(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "dev", org)
	}
	assert.Len(t, r.CallsFor(command.OpGetDefaultOrg), 1)

	require.NoError(t, c.SetDefaultOrg(context.Background(), "uat"))

	_, err := c.DefaultOrg(context.Background())
	require.NoError(t, err)
	assert.Len(t, r.CallsFor(command.OpGetDefaultOrg), 2, "setting the default must invalidate the memo")
}

func TestDefaultOrg_Unset(t *testing.T) {
	c, _ := newClient(func(ctx context.Context, cmd command.Command) (*process.Result, error) {
		return processtest.OK(`{"status":0,"result":[{"name":"target-org","success":true}]}`)
	})

	_, err := c.DefaultOrg(context.Background())
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.NoDefaultEnvironment))
}

func TestCurrentUserID_MemoizedPerOrg(t *testing.T) {
	c, r := newClient(func(ctx context.Context, cmd command.Command) (*process.Result, error) {
		if cmd.Args[len(cmd.Args)-2] == "uat" {
			return processtest.OK(`{"status":0,"result":{"id":"005U","username":"u@x"}}`)
		}

		return processtest.OK(`{"status":0,"result":{"id":"005D","username":"d@x"}}`)
	})

	for i := 0; i < 2; i++ {
		id, err := c.CurrentUserID(context.Background(), "dev")
		require.NoError(t, err)
		assert.Equal(t, "005D", id)
	}

	id, err := c.CurrentUserID(context.Background(), "uat")
	require.NoError(t, err)
	assert.Equal(t, "005U", id)

	assert.Len(t, r.CallsFor(command.OpDisplayUser), 2)
}

func TestListOrgs(t *testing.T) {
	c, _ := newClient(func(ctx context.Context, cmd command.Command) (*process.Result, error) {
		return processtest.OK(`{"status":0,"result":{"nonScratchOrgs":[
			{"alias":"dev","username":"d@x","connectedStatus":"Connected"},
			{"alias":"old","username":"o@x","isSandbox":true,"connectedStatus":"Expired"}
		]}}`)
	})

	list, err := c.ListOrgs(context.Background())
	require.NoError(t, err)
	require.Len(t, list.All(), 1)
	assert.Equal(t, "dev", list.Standard[0].Alias)
}

func TestVersion(t *testing.T) {
	c, _ := newClient(func(ctx context.Context, cmd command.Command) (*process.Result, error) {
		if cmd.Dialect == command.Modern {
			return processtest.Fail(127, "sh: sf: command not found")
		}

		return processtest.OK("sfdx-cli/7.209.6 linux-x64 node-v18.0.0\n")
	})

	v, err := c.Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "sfdx-cli/7.209.6 linux-x64 node-v18.0.0", v)
}
