// Package config handles YAML config file loading for runnel relay.
package config

import (
	"os"
	"regexp"
	"strings"
)

// envVarPattern matches ${VAR} and ${VAR:-default}.
// Bare $VAR is left alone so secrets containing '$' survive expansion.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

// ExpandEnv replaces ${VAR} and ${VAR:-default} patterns in the input string
// with their corresponding environment variable values.
//
// Unset variables without defaults expand to empty string (not an error).
// Required values such as adapter URLs fail later at validation.
func ExpandEnv(input string) string {
	matches := envVarPattern.FindAllStringSubmatchIndex(input, -1)
	if len(matches) == 0 {
		return input
	}

	var b strings.Builder
	b.Grow(len(input))
	last := 0
	for _, m := range matches {
		b.WriteString(input[last:m[0]])
		last = m[1]

		name := input[m[2]:m[3]]
		if value, ok := os.LookupEnv(name); ok && value != "" {
			b.WriteString(value)
			continue
		}
		// m[4] is -1 when the :- group did not participate.
		if m[4] >= 0 {
			b.WriteString(input[m[4]:m[5]])
		}
	}
	b.WriteString(input[last:])
	return b.String()
}
