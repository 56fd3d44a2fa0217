package models

import (
	"fmt"
	"strings"
	"time"
	"unicode"
)

// LogEntity represents one remote debug log record.
type LogEntity struct {
	ID           string `json:"id"`
	User         string `json:"user"`
	Application  string `json:"application"`
	Operation    string `json:"operation"`
	Status       string `json:"status"`
	Length       int64  `json:"length"`
	LastModified string `json:"last_modified"`
	Downloaded   bool   `json:"downloaded"`
	LocalPath    string `json:"local_path,omitempty"`
}

// Time returns the parsed LastModified timestamp.
func (l LogEntity) Time() (time.Time, error) {
	return ParseTime(l.LastModified)
}

// IsTestExecution reports whether the log operation indicates a test run:
// the test handler, a runTests* API call, or "test" as a whole word or path
// segment.
func (l LogEntity) IsTestExecution() bool {
	op := strings.ToLower(l.Operation)
	if strings.Contains(op, "apextesthandler") {
		return true
	}

	words := strings.FieldsFunc(op, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	for _, w := range words {
		if w == "test" || w == "tests" || strings.HasPrefix(w, "runtests") {
			return true
		}
	}

	return false
}

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000-0700",
	"2006-01-02T15:04:05-0700",
	"2006-01-02T15:04:05.000Z0700",
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseTime parses the ISO-8601 variants emitted by the tool
// (Z, +0000 and +00:00 offsets, with and without milliseconds).
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}

	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
