package deploy

import (
	"errors"
	"fmt"
)

// ValidationError reports malformed or unsafe input: archive structure,
// member names, or bucket-name sanitization. Maps to a 400 at the edge; no
// backend mutation survives it.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

func validationErrorf(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

var (
	// ErrQuotaExceeded means the owner already has the maximum number of sites.
	ErrQuotaExceeded = errors.New("deploy: site quota exceeded")

	// ErrSiteNotFound covers both a missing record and an ownership mismatch
	// on delete, so callers cannot probe for other users' sites.
	ErrSiteNotFound = errors.New("deploy: site not found")
)
