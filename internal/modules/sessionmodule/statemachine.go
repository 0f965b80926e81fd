package sessionmodule

import (
	"github.com/pulpitworks/sermonscribe/internal/database"
	"github.com/pulpitworks/sermonscribe/internal/types"
)

// Op is a requested state machine transition
type Op string

const (
	OpStart    Op = "start"
	OpPause    Op = "pause"
	OpResume   Op = "resume"
	OpComplete Op = "complete"
	OpCancel   Op = "cancel"
)

// transitions is the closed set of legal status transitions. Completed and
// cancelled are terminal; paused and in_progress cycle via pause/resume.
var transitions = map[database.SessionStatus]map[Op]database.SessionStatus{
	database.SessionStatusCreated: {
		OpStart:  database.SessionStatusInProgress,
		OpCancel: database.SessionStatusCancelled,
	},
	database.SessionStatusInProgress: {
		OpPause:    database.SessionStatusPaused,
		OpComplete: database.SessionStatusCompleted,
		OpCancel:   database.SessionStatusCancelled,
	},
	database.SessionStatusPaused: {
		OpResume: database.SessionStatusInProgress,
		OpCancel: database.SessionStatusCancelled,
	},
}

// Transition returns the status that results from applying op to from, or a
// conflict error when the transition is not legal. Pure function; callers
// persist the result.
func Transition(from database.SessionStatus, op Op) (database.SessionStatus, error) {
	ops, ok := transitions[from]
	if !ok {
		return from, types.NewInvalidTransitionError(string(from), string(op))
	}
	to, ok := ops[op]
	if !ok {
		return from, types.NewInvalidTransitionError(string(from), string(op))
	}
	return to, nil
}

// CanModify reports whether session configuration may be mutated in the
// given status. Mutation is blocked only while recording is in progress.
func CanModify(status database.SessionStatus) bool {
	return status != database.SessionStatusInProgress
}

// CanDelete reports whether a session may be deleted in the given status
func CanDelete(status database.SessionStatus) bool {
	return status != database.SessionStatusInProgress
}
