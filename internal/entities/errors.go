// Package entities contains core business entities and errors.
package entities

import "errors"

var (
	// ErrInvalidArgument signals failed input validation.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNotFound signals a missing GitHub resource.
	ErrNotFound = errors.New("not found")
	// ErrIssueNotFound signals a missing (usually deleted) Jira issue.
	ErrIssueNotFound = errors.New("jira issue not found")
	// ErrInvalidTransition signals that Jira offers no path to the requested status.
	ErrInvalidTransition = errors.New("invalid jira transition")
	// ErrUnknownField signals a Jira custom field name missing from the field list.
	ErrUnknownField = errors.New("unknown jira field")
	// ErrJobNotFound signals missing job.
	ErrJobNotFound = errors.New("job not found")
	// ErrBadSignature signals a webhook payload whose signature does not match.
	ErrBadSignature = errors.New("bad signature")
)
