package codes

import "strings"

// ErrorCodes maps CLI exit codes to their descriptions
var ErrorCodes = map[int]string{
	0:   "Success",
	1:   "General failure",
	2:   "Invalid usage or unknown flag",
	10:  "Timed out waiting for the operation",
	68:  "Request failed after the org returned an error",
	69:  "Org or service unavailable",
	100: "Completed with test failures",
	126: "Command found but not executable",
	127: "Command not found",
	130: "Interrupted",
}

const (
	// NotFound is the shell's exit code for a missing executable
	NotFound = 127

	// TestFailures is returned by test commands that ran but had failing tests
	TestFailures = 100
)

// IsSuccess returns true if the exit code indicates the command ran cleanly
func IsSuccess(code int) bool {
	return code == 0
}

// IsUsable returns true if stdout of a command with this exit code carries a
// complete result (tests that ran but failed still report their results)
func IsUsable(code int) bool {
	return code == 0 || code == TestFailures
}

// GetErrorMessage returns the message for a given exit code, or a generic message if unknown
func GetErrorMessage(code int) string {
	if msg, ok := ErrorCodes[code]; ok {
		return msg
	}

	return "Unknown error"
}

// ErrorMarkers identify a semantic error reported by the tool on stdout.
var ErrorMarkers = []string{
	"ERROR running",
	"ERROR:",
	`"status": 1,`,
	`"status":1,`,
	`"exitCode": 1`,
	`"exitCode":1`,
}

// HasErrorMarker reports whether output contains a semantic error marker.
func HasErrorMarker(output string) bool {
	for _, m := range ErrorMarkers {
		if strings.Contains(output, m) {
			return true
		}
	}

	return false
}

// orgContextMarkers are emitted when no usable org is selected or authorized.
var orgContextMarkers = []string{
	"nodefaultenverror",
	"no default environment",
	"no default username",
	"no default org",
	"no target org",
	"no org configuration found",
	"noorgfound",
	"no authorization information found",
}

// IsOrgContextFailure reports whether text describes a missing or unusable org.
func IsOrgContextFailure(text string) bool {
	lower := strings.ToLower(text)
	for _, m := range orgContextMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}

	return false
}

// notFoundMarkers are shell messages for a missing executable.
var notFoundMarkers = []string{
	"command not found",
	"is not recognized as an internal or external command",
	"executable file not found",
}

// IsCommandNotFound reports whether text is a shell's missing-executable message.
func IsCommandNotFound(text string) bool {
	lower := strings.ToLower(text)
	for _, m := range notFoundMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}

	return false
}
