package runcomfy

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Every *Error matches exactly one of them with errors.Is.
var (
	ErrConfiguration = errors.New("runcomfy: api key and deployment id are required")
	ErrSubmission    = errors.New("runcomfy: submission failed")
	ErrPoll          = errors.New("runcomfy: status poll failed")
	ErrJobFailed     = errors.New("runcomfy: job failed")
	ErrResult        = errors.New("runcomfy: result retrieval failed")
	ErrImageFetch    = errors.New("runcomfy: image fetch failed")
)

// ErrPollTimeout is wrapped by a poll error when MaxWait elapses.
var ErrPollTimeout = errors.New("runcomfy: job did not finish in time")

// Error describes a failed stage of the job lifecycle.
type Error struct {
	Op         string
	Kind       error
	RequestID  string
	StatusCode int
	// Details carries the service's diagnostic payload verbatim for ErrJobFailed.
	Details json.RawMessage
	Err     error
}

func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString("runcomfy: ")
	sb.WriteString(e.Op)
	if e.RequestID != "" {
		fmt.Fprintf(&sb, " [%s]", e.RequestID)
	}
	if e.StatusCode != 0 {
		fmt.Fprintf(&sb, ": http %d", e.StatusCode)
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	} else if e.Kind != nil {
		sb.WriteString(": ")
		sb.WriteString(strings.TrimPrefix(e.Kind.Error(), "runcomfy: "))
	}
	if len(e.Details) > 0 {
		fmt.Fprintf(&sb, " (%s)", strings.TrimSpace(string(e.Details)))
	}
	return sb.String()
}

func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// DetailsOf returns the service diagnostic payload attached to a job failure.
func DetailsOf(err error) json.RawMessage {
	var e *Error
	if errors.As(err, &e) {
		return e.Details
	}
	return nil
}
