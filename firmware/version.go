package firmware

import (
	"strconv"
	"strings"

	"golang.org/x/mod/semver"
)

// canonical turns firmware versions such as "1.05.3" or "v01.2" into
// semver form. Returns "" when the string is not a version.
func canonical(v string) string {
	v = strings.TrimPrefix(strings.TrimSpace(v), "v")
	core, suffix, _ := strings.Cut(v, "-")
	parts := strings.Split(core, ".")
	if len(parts) > 3 {
		return ""
	}
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return ""
		}
		parts[i] = strconv.Itoa(n)
	}
	out := "v" + strings.Join(parts, ".")
	if suffix != "" {
		out += "-" + suffix
	}
	if !semver.IsValid(out) {
		return ""
	}
	return out
}

// CompareVersions returns -1, 0 or +1 like semver.Compare. Unparsable
// versions sort before valid ones.
func CompareVersions(a, b string) int {
	return semver.Compare(canonical(a), canonical(b))
}

// IsNewer reports whether candidate is newer than running.
func IsNewer(running, candidate string) bool {
	return CompareVersions(candidate, running) > 0
}
