package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Norgate-AV/alv/internal/command"
	"github.com/Norgate-AV/alv/internal/config"
	"github.com/Norgate-AV/alv/internal/models"
	"github.com/Norgate-AV/alv/internal/process"
	"github.com/Norgate-AV/alv/internal/process/processtest"
)

// execute runs the CLI in a scratch project against a scripted tool
func execute(t *testing.T, h processtest.Handler, args ...string) (string, *processtest.Runner, error) {
	t.Helper()

	viper.Reset()
	t.Cleanup(viper.Reset)

	t.Chdir(t.TempDir())
	t.Setenv("APPDATA", t.TempDir())

	r := processtest.New(h)
	original := newRunner
	newRunner = func(*config.Config, *zap.Logger) process.Runner { return r }
	t.Cleanup(func() { newRunner = original })

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)

	err := root.Execute()

	return out.String(), r, err
}

func sfHandler(ctx context.Context, cmd command.Command) (*process.Result, error) {
	switch cmd.Op {
	case command.OpListLogs:
		return processtest.OK(`{"status":0,"result":[
			{"Id":"07L1","Operation":"Api","LastModifiedDate":"2024-01-01T10:00:00.000+0000"},
			{"Id":"07L2","Operation":"ApexTestHandler","LastModifiedDate":"2024-01-01T10:05:00.000+0000"}
		]}`)
	case command.OpGetLog:
		if cmd.Redirect != "" {
			return processtest.OK("")
		}

		return processtest.OK(`{"status":0,"result":{"log":"USER_DEBUG|hello"}}`)
	case command.OpListOrgs:
		return processtest.OK(`{"status":0,"result":{"nonScratchOrgs":[{"alias":"dev","username":"d@x","connectedStatus":"Connected"}]}}`)
	case command.OpRunTests:
		return processtest.OK(`{"status":0,"result":{"testRunId":"707A"}}`)
	case command.OpVersion:
		return processtest.OK("@salesforce/cli/2.30.0 linux-x64 node-v20.11.0\n")
	default:
		return processtest.Fail(1, "unexpected command")
	}
}

func TestLogsList(t *testing.T) {
	out, r, err := execute(t, sfHandler, "logs", "list", "-o", "dev", "-n", "1")
	require.NoError(t, err)

	var logs []models.LogEntity
	require.NoError(t, json.Unmarshal([]byte(out), &logs))
	require.Len(t, logs, 1)
	assert.Equal(t, "07L1", logs[0].ID)

	calls := r.CallsFor(command.OpListLogs)
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].Command.Args, "dev")
}

func TestLogsGet(t *testing.T) {
	out, _, err := execute(t, sfHandler, "logs", "get", "07L1", "-o", "dev")
	require.NoError(t, err)
	assert.Equal(t, "USER_DEBUG|hello", out)
}

func TestLogsGet_Out(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "07L1.log")

	out, _, err := execute(t, sfHandler, "logs", "get", "07L1", "-o", "dev", "--out", dest)
	require.NoError(t, err)
	assert.Empty(t, out)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "USER_DEBUG|hello", string(data))
}

func TestLogsDownload_RequiresIDs(t *testing.T) {
	_, r, err := execute(t, sfHandler, "logs", "download", "-o", "dev")
	assert.Error(t, err)
	assert.Empty(t, r.Calls())
}

func TestLogsDownload_All(t *testing.T) {
	out, _, err := execute(t, sfHandler, "logs", "download", "--all", "-o", "dev")
	require.NoError(t, err)

	var results []struct {
		ID   string `json:"id"`
		Path string `json:"path"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 2)

	for _, res := range results {
		assert.FileExists(t, res.Path)
	}
}

func TestOrgsList(t *testing.T) {
	out, _, err := execute(t, sfHandler, "orgs", "list")
	require.NoError(t, err)

	var res struct {
		Orgs   models.OrgList `json:"orgs"`
		Cached bool           `json:"cached"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.False(t, res.Cached)
	require.Len(t, res.Orgs.Standard, 1)
	assert.Equal(t, "dev", res.Orgs.Standard[0].Alias)
}

func TestTestRun(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    string
		wantErr bool
	}{
		{
			name:    "requires a selection",
			args:    []string{"test", "run", "-o", "dev"},
			wantErr: true,
		},
		{
			name: "classes",
			args: []string{"test", "run", "-o", "dev", "--class-names", "AccountTest"},
			want: "707A",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _, err := execute(t, sfHandler, tt.args...)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)

			var res map[string]string
			require.NoError(t, json.Unmarshal([]byte(out), &res))
			assert.Equal(t, tt.want, res["test_run_id"])
		})
	}
}

func TestConfigShow(t *testing.T) {
	out, r, err := execute(t, sfHandler, "config", "show", "-o", "uat", "--tool", "sf2")
	require.NoError(t, err)

	assert.Contains(t, out, "tool_path: sf2")
	assert.Contains(t, out, "target_org: uat")
	assert.Contains(t, out, "legacy_tool_path: sfdx")
	assert.Empty(t, r.Calls())
}

func TestCacheClear(t *testing.T) {
	_, _, err := execute(t, sfHandler, "cache", "clear")
	assert.Error(t, err, "an org or --all is required")

	_, _, err = execute(t, sfHandler, "cache", "clear", "--all")
	assert.NoError(t, err)

	_, _, err = execute(t, sfHandler, "cache", "clear", "dev")
	assert.NoError(t, err)
}

func TestVersion(t *testing.T) {
	out, _, err := execute(t, sfHandler, "version")
	require.NoError(t, err)

	assert.Contains(t, out, "alv ")
	assert.Contains(t, out, "@salesforce/cli/2.30.0 linux-x64 node-v20.11.0")
}
