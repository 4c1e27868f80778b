package deploy

import "strings"

// checkMemberName decides whether an archive member may be written to the
// site bucket. Applied per member before its content is read; the first
// rejection aborts the whole deployment.
func checkMemberName(name string) error {
	if strings.HasPrefix(name, "/") {
		return validationErrorf("invalid file path in ZIP: %s", name)
	}
	if containsDotDot(name) {
		return validationErrorf("invalid file path in ZIP: %s", name)
	}
	// The backend treats backslash as a literal key character, not a
	// separator, so reject it outright.
	if strings.Contains(name, `\`) {
		return validationErrorf("invalid file path in ZIP: %s", name)
	}
	if strings.HasPrefix(name, ".") || strings.HasPrefix(name, "~") {
		return validationErrorf("hidden or system files not allowed: %s", name)
	}
	return nil
}

func containsDotDot(name string) bool {
	for _, seg := range strings.Split(name, "/") {
		if seg == ".." {
			return true
		}
	}
	return false
}
