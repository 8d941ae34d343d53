// internal/game/errors.go
package game

import (
	"errors"
	"fmt"
)

// Intent names every mutation a client may issue against the session
// document. They double as the websocket envelope types.
type Intent string

const (
	IntentStart           Intent = "start"
	IntentSubmitSelection Intent = "submit_selection"
	IntentSubmitGuess     Intent = "submit_guess"
	IntentSelectorFinish  Intent = "selector_finish"
	IntentConfirmScores   Intent = "confirm_scores"
	IntentAdvance         Intent = "advance"
	IntentJoin            Intent = "join"
	IntentUpdateSettings  Intent = "update_settings"
)

// RejectedIntentError reports a guard failure. The document is guaranteed to
// be unchanged; the rejection is surfaced to the issuing client only.
type RejectedIntentError struct {
	Intent Intent
	Reason string
}

func (e *RejectedIntentError) Error() string {
	return fmt.Sprintf("intent %s rejected: %s", e.Intent, e.Reason)
}

func reject(intent Intent, format string, args ...any) error {
	return &RejectedIntentError{Intent: intent, Reason: fmt.Sprintf(format, args...)}
}

// IsRejected reports whether err is a guard rejection and returns it.
func IsRejected(err error) (*RejectedIntentError, bool) {
	var re *RejectedIntentError
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}
