package command

import (
	"runtime"
	"strings"

	"al.essio.dev/pkg/shellescape"
)

// Command is a fully-formed tool invocation.
type Command struct {
	Name string
	Args []string

	// Redirect, when set, sends the tool's stdout straight to this file.
	Redirect string

	Op      Op
	Dialect Dialect
}

// String renders the command as a single shell line.
func (c Command) String() string {
	parts := make([]string, 0, len(c.Args)+3)
	parts = append(parts, quote(c.Name))

	for _, arg := range c.Args {
		parts = append(parts, quote(arg))
	}

	if c.Redirect != "" {
		parts = append(parts, ">", quote(c.Redirect))
	}

	return strings.Join(parts, " ")
}

func quote(s string) string {
	if runtime.GOOS == "windows" {
		return quoteWindows(s)
	}

	return shellescape.Quote(s)
}

// cmd.exe does not understand single quotes.
func quoteWindows(s string) string {
	if s == "" {
		return `""`
	}

	if !strings.ContainsAny(s, " \t\"&|<>^%") {
		return s
	}

	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
