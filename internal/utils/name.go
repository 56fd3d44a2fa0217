package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// SafeName reduces s to characters that are safe in a file name on every
// platform. Runs of other characters collapse to a single underscore. When
// anything had to change, a short hash of s is appended so distinct inputs
// such as "my org" and "my_org" keep distinct names.
func SafeName(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	under := false
	for _, r := range s {
		if r == '-' || r == '.' || (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			b.WriteRune(r)
			under = false
			continue
		}

		if !under {
			b.WriteByte('_')
			under = true
		}
	}

	name := strings.Trim(b.String(), "._")
	if name == s {
		return name
	}

	if name == "" {
		name = "unnamed"
	}

	sum := sha256.Sum256([]byte(s))

	return name + "-" + hex.EncodeToString(sum[:4])
}
