package cli

import (
	"fmt"
	"strings"
)

// validatePrefixes normalizes both prefixes to carry a trailing slash and
// rejects layouts that could corrupt the source tree: writing into the
// protected reference prefix, writing back onto the source itself, or
// nesting one tree inside the other in either direction.
func validatePrefixes(src, dst string) (string, string, error) {
	src = normalizePrefix(src)
	dst = normalizePrefix(dst)

	if src == "" {
		return "", "", fmt.Errorf("source prefix must not be empty")
	}
	if dst == "" {
		return "", "", fmt.Errorf("destination prefix must not be empty")
	}
	if strings.HasPrefix(dst, protectedPrefix) {
		return "", "", fmt.Errorf(
			"destination prefix %q is inside the protected tree %q", dst, protectedPrefix)
	}
	if dst == src {
		return "", "", fmt.Errorf("destination prefix equals the source prefix")
	}
	if strings.HasPrefix(dst, src) {
		return "", "", fmt.Errorf(
			"destination prefix %q is nested under the source %q", dst, src)
	}
	if strings.HasPrefix(src, dst) {
		return "", "", fmt.Errorf(
			"source prefix %q is nested under the destination %q", src, dst)
	}
	return src, dst, nil
}

func normalizePrefix(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	if !strings.HasSuffix(p, "/") {
		p += "/"
	}
	return p
}
