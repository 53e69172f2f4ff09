package runner

import (
	"os"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	// DefaultMaxLabelSize bounds names and messages printed to the terminal.
	DefaultMaxLabelSize = 256
	// EnvMaxLabelSize is the environment variable to override the default
	EnvMaxLabelSize = "LATTICE_MAX_LABEL_SIZE"
)

// SanitizeLabel makes user-supplied text (run names, presets, hook errors)
// safe to print: invalid UTF-8 is replaced, control characters other than
// tab are dropped and the result is truncated to the size limit.
func SanitizeLabel(input string) string {
	if !utf8.ValidString(input) {
		input = strings.ToValidUTF8(input, "�")
	}

	// Fast path: if no control chars, only the limit applies.
	clean := true
	for _, r := range input {
		if unicode.IsControl(r) && r != '\t' {
			clean = false
			break
		}
	}
	if !clean {
		var b strings.Builder
		b.Grow(len(input))
		for _, r := range input {
			if !unicode.IsControl(r) || r == '\t' {
				b.WriteRune(r)
			}
		}
		input = b.String()
	}
	return truncate(input, getMaxLabelSize())
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "…"
}

func getMaxLabelSize() int {
	if val := os.Getenv(EnvMaxLabelSize); val != "" {
		if size, err := strconv.Atoi(val); err == nil && size > 0 {
			return size
		}
	}
	return DefaultMaxLabelSize
}
