package redact

import (
	"slices"
	"strings"
)

// Mask replaces every secret occurrence
const Mask = "***"

// Redactor masks known secret values in free text such as command output.
// Structured log attributes are handled by masq instead.
type Redactor struct {
	replacer *strings.Replacer
}

// New creates a Redactor. Empty values are ignored.
func New(secrets ...string) *Redactor {
	values := slices.DeleteFunc(slices.Clone(secrets), func(s string) bool { return s == "" })
	// longest first so a secret containing another is masked whole
	slices.SortFunc(values, func(a, b string) int { return len(b) - len(a) })

	pairs := make([]string, 0, len(values)*2)
	for _, v := range values {
		pairs = append(pairs, v, Mask)
	}

	return &Redactor{replacer: strings.NewReplacer(pairs...)}
}

// String masks secrets in s
func (r *Redactor) String(s string) string {
	if r == nil {
		return s
	}
	return r.replacer.Replace(s)
}

// Bytes masks secrets in b
func (r *Redactor) Bytes(b []byte) []byte {
	return []byte(r.String(string(b)))
}
