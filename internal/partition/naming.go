package partition

import (
	"regexp"
	"strings"
)

// IDPrefix namespaces every partition identifier so tenant tables can
// never collide with master-schema tables.
const IDPrefix = "org_"

var (
	whitespaceRun = regexp.MustCompile(`\s+`)
	validID       = regexp.MustCompile(`^org_[a-z0-9_]*$`)
)

// DeriveID maps a human organization name to its canonical partition
// identifier. E.g. "  Tredence Labs " -> "org_tredence_labs". Pure and
// deterministic: two names with the same normalized form collapse to the
// same identifier, which is why directory uniqueness is enforced on the
// normalized name rather than here.
func DeriveID(tenantName string) string {
	normalized := whitespaceRun.ReplaceAllString(strings.TrimSpace(strings.ToLower(tenantName)), "_")
	return IDPrefix + sanitize(normalized)
}

// NormalizeName is the canonical comparison form for tenant names: trimmed,
// lowercased, interior whitespace runs collapsed to a single space. The
// directory's uniqueness check and authorization matching both use it, so
// the name policy is case-insensitive end-to-end.
func NormalizeName(tenantName string) string {
	return whitespaceRun.ReplaceAllString(strings.TrimSpace(strings.ToLower(tenantName)), " ")
}

// ValidID reports whether id is a well-formed partition identifier. The
// partition manager refuses anything else before interpolating it into
// DDL.
func ValidID(id string) bool {
	return validID.MatchString(id)
}

// sanitize drops any rune outside [a-z0-9_] so the derived identifier is
// always a safe SQL identifier fragment regardless of input.
func sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '_' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
