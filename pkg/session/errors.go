package session

import (
	"fmt"

	"github.com/creatorlens/tracker-go/pkg/db/models"
)

// DuplicateSessionError indicates Begin was called with a session id that
// already exists. Caller error; never retried.
type DuplicateSessionError struct {
	SessionID string
}

func (e *DuplicateSessionError) Error() string {
	return fmt.Sprintf("session %q already exists", e.SessionID)
}

// InvalidStateError indicates a terminal transition was attempted on a
// session that is not running (missing, or already terminal). The stored
// state is left untouched.
type InvalidStateError struct {
	SessionID string
	Target    models.SessionStatus
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("session %q cannot transition to %s: not running", e.SessionID, e.Target)
}
