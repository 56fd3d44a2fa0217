package command

import (
	"fmt"
	"sort"
	"strings"
)

// Op is a logical tool operation.
type Op string

const (
	OpListLogs      Op = "list logs"
	OpGetLog        Op = "get log"
	OpQuery         Op = "run query"
	OpCreateRecord  Op = "create record"
	OpDeleteRecord  Op = "delete record"
	OpRunTests      Op = "run tests"
	OpGetTestRun    Op = "get test run"
	OpListOrgs      Op = "list orgs"
	OpSetDefaultOrg Op = "set default org"
	OpGetDefaultOrg Op = "get default org"
	OpDisplayUser   Op = "display user"
	OpVersion       Op = "version"
)

// Dialect selects the argument syntax.
type Dialect int

const (
	Modern Dialect = iota
	Legacy
)

func (d Dialect) String() string {
	if d == Legacy {
		return "legacy"
	}

	return "modern"
}

// Dialects lists the dialects in the order they are attempted.
var Dialects = []Dialect{Modern, Legacy}

// Params are the typed parameters of an operation. Only the fields an
// operation needs are read.
type Params struct {
	TargetOrg string
	LogID     string
	Query     string
	Tooling   bool
	SObject   string
	RecordID  string
	Values    map[string]string
	Classes   []string
	Tests     []string
	TestRunID string
	Alias     string

	// Raw omits the JSON envelope flag so the tool prints the payload directly.
	Raw bool

	// Redirect sends stdout to the named file.
	Redirect string
}

// Builder produces commands for both dialects.
type Builder struct {
	ModernTool string
	LegacyTool string
}

// NewBuilder creates a new command builder
func NewBuilder(modernTool, legacyTool string) *Builder {
	if modernTool == "" {
		modernTool = "sf"
	}

	if legacyTool == "" {
		legacyTool = "sfdx"
	}

	return &Builder{ModernTool: modernTool, LegacyTool: legacyTool}
}

// Build returns the command for op in the given dialect.
func (b *Builder) Build(op Op, p Params, d Dialect) (Command, error) {
	if err := validate(op, p); err != nil {
		return Command{}, err
	}

	var (
		args []string
		err  error
	)

	if d == Legacy {
		args, err = legacyArgs(op, p)
	} else {
		args, err = modernArgs(op, p)
	}

	if err != nil {
		return Command{}, err
	}

	name := b.ModernTool
	if d == Legacy {
		name = b.LegacyTool
	}

	return Command{Name: name, Args: args, Redirect: p.Redirect, Op: op, Dialect: d}, nil
}

func validate(op Op, p Params) error {
	switch op {
	case OpGetLog:
		if p.LogID == "" {
			return fmt.Errorf("%s: log id is required", op)
		}
	case OpQuery:
		if strings.TrimSpace(p.Query) == "" {
			return fmt.Errorf("%s: query is required", op)
		}
	case OpCreateRecord:
		if p.SObject == "" {
			return fmt.Errorf("%s: sobject is required", op)
		}
		if len(p.Values) == 0 {
			return fmt.Errorf("%s: at least one field value is required", op)
		}
	case OpDeleteRecord:
		if p.SObject == "" || p.RecordID == "" {
			return fmt.Errorf("%s: sobject and record id are required", op)
		}
	case OpRunTests:
		if len(p.Classes) == 0 && len(p.Tests) == 0 {
			return fmt.Errorf("%s: at least one class or test is required", op)
		}
	case OpGetTestRun:
		if p.TestRunID == "" {
			return fmt.Errorf("%s: test run id is required", op)
		}
	case OpSetDefaultOrg:
		if p.Alias == "" {
			return fmt.Errorf("%s: alias is required", op)
		}
	}

	return nil
}

func modernArgs(op Op, p Params) ([]string, error) {
	var args []string

	switch op {
	case OpListLogs:
		args = []string{"apex", "list", "log"}
	case OpGetLog:
		args = []string{"apex", "get", "log", "--log-id", p.LogID}
	case OpQuery:
		args = []string{"data", "query", "--query", p.Query}
		if p.Tooling {
			args = append(args, "--use-tooling-api")
		}
	case OpCreateRecord:
		args = []string{"data", "create", "record", "--sobject", p.SObject, "--values", formatValues(p.Values)}
		if p.Tooling {
			args = append(args, "--use-tooling-api")
		}
	case OpDeleteRecord:
		args = []string{"data", "delete", "record", "--sobject", p.SObject, "--record-id", p.RecordID}
		if p.Tooling {
			args = append(args, "--use-tooling-api")
		}
	case OpRunTests:
		args = []string{"apex", "run", "test"}
		for _, c := range p.Classes {
			args = append(args, "--class-names", c)
		}
		for _, t := range p.Tests {
			args = append(args, "--tests", t)
		}
		args = append(args, "--result-format", "json")
	case OpGetTestRun:
		args = []string{"apex", "get", "test", "--test-run-id", p.TestRunID, "--result-format", "json"}
	case OpListOrgs:
		return []string{"org", "list", "--json"}, nil
	case OpSetDefaultOrg:
		return []string{"config", "set", "target-org=" + p.Alias, "--json"}, nil
	case OpGetDefaultOrg:
		return []string{"config", "get", "target-org", "--json"}, nil
	case OpDisplayUser:
		args = []string{"org", "display", "user"}
	case OpVersion:
		return []string{"--version"}, nil
	default:
		return nil, fmt.Errorf("unsupported operation %q", op)
	}

	if p.TargetOrg != "" {
		args = append(args, "--target-org", p.TargetOrg)
	}

	if !p.Raw {
		args = append(args, "--json")
	}

	return args, nil
}

func legacyArgs(op Op, p Params) ([]string, error) {
	var args []string

	switch op {
	case OpListLogs:
		args = []string{"force:apex:log:list"}
	case OpGetLog:
		args = []string{"force:apex:log:get", "-i", p.LogID}
	case OpQuery:
		args = []string{"force:data:soql:query", "-q", p.Query}
		if p.Tooling {
			args = append(args, "-t")
		}
	case OpCreateRecord:
		args = []string{"force:data:record:create", "-s", p.SObject, "-v", formatValues(p.Values)}
		if p.Tooling {
			args = append(args, "-t")
		}
	case OpDeleteRecord:
		args = []string{"force:data:record:delete", "-s", p.SObject, "-i", p.RecordID}
		if p.Tooling {
			args = append(args, "-t")
		}
	case OpRunTests:
		args = []string{"force:apex:test:run"}
		if len(p.Classes) > 0 {
			args = append(args, "-n", strings.Join(p.Classes, ","))
		}
		if len(p.Tests) > 0 {
			args = append(args, "-t", strings.Join(p.Tests, ","))
		}
		args = append(args, "-r", "json")
	case OpGetTestRun:
		args = []string{"force:apex:test:report", "-i", p.TestRunID, "-r", "json"}
	case OpListOrgs:
		return []string{"force:org:list", "--json"}, nil
	case OpSetDefaultOrg:
		return []string{"force:config:set", "defaultusername=" + p.Alias, "--json"}, nil
	case OpGetDefaultOrg:
		return []string{"force:config:get", "defaultusername", "--json"}, nil
	case OpDisplayUser:
		args = []string{"force:user:display"}
	case OpVersion:
		return []string{"--version"}, nil
	default:
		return nil, fmt.Errorf("unsupported operation %q", op)
	}

	if p.TargetOrg != "" {
		args = append(args, "-u", p.TargetOrg)
	}

	if !p.Raw {
		args = append(args, "--json")
	}

	return args, nil
}

// formatValues renders field values as "Name=value Other='with space'", sorted by field.
func formatValues(values map[string]string) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		v := values[k]
		if strings.ContainsAny(v, " \t'") {
			v = "'" + strings.ReplaceAll(v, "'", `\'`) + "'"
		}

		pairs = append(pairs, k+"="+v)
	}

	return strings.Join(pairs, " ")
}
