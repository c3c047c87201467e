package worker

import "errors"

// ErrSkipMessage tells the controller to delete the message without treating
// it as a success: duplicates, placeholders and malformed bodies that
// redelivery cannot fix.
var ErrSkipMessage = errors.New("skip message")

// ErrAllTracksFailed is raised when no ASR track produced a transcript.
var ErrAllTracksFailed = errors.New("all ASR tracks failed or were disabled")

// Retry pre-condition violations, mapped to HTTP statuses by the API layer.
var (
	ErrNotFailed = errors.New("meeting is not in failed status")
	ErrConflict  = errors.New("concurrent retry in progress")
)
