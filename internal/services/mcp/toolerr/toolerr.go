// Package toolerr is the closed set of failures a tool call can report and the
// mapper that turns any error into exactly one failure envelope.
//
// Every variant belongs to one of two buckets. Invalid-input failures are
// correctable by the caller and render a message naming what to fix. Internal
// failures are not, and render fixed text that never echoes causes or caller
// data. Rendered messages are sanitized before they leave the process.
package toolerr

import (
	"fmt"
	"strings"

	"github.com/louisbranch/widgetmcp/internal/services/mcp/envelope"
	"github.com/louisbranch/widgetmcp/internal/services/mcp/schema"
)

// Bucket is the error class a variant maps to.
type Bucket uint8

const (
	BucketInvalidInput Bucket = iota + 1
	BucketInternal
)

// Code returns the envelope code for the bucket.
func (b Bucket) Code() envelope.Code {
	if b == BucketInvalidInput {
		return envelope.CodeInvalidInput
	}
	return envelope.CodeInternal
}

func (b Bucket) String() string {
	switch b {
	case BucketInvalidInput:
		return "invalid_input"
	case BucketInternal:
		return "internal"
	default:
		return "unknown"
	}
}

const (
	// GenericMessage replaces internal details and sanitized messages.
	GenericMessage = "Internal server error"
	// CancelledMessage is reported when a call ends through cancellation.
	CancelledMessage = "Request was cancelled"
)

// Error is implemented only by the variants declared in this package, so a
// failure cannot reach the mapper without a bucket.
type Error interface {
	error
	Bucket() Bucket
	sealed()
}

// UnknownTool reports a request for an unregistered operation.
type UnknownTool struct {
	Name string
}

func (e UnknownTool) Error() string  { return "Unknown tool: " + e.Name }
func (e UnknownTool) Bucket() Bucket { return BucketInvalidInput }
func (UnknownTool) sealed()          {}

// InvalidArguments reports the first schema violation of a call.
type InvalidArguments struct {
	Tool    string
	Failure *schema.ParseFailure
}

func (e InvalidArguments) Error() string {
	detail := "arguments are invalid"
	if e.Failure != nil {
		detail = e.Failure.Error()
	}
	return fmt.Sprintf("Invalid arguments for %s: %s", e.Tool, detail)
}
func (e InvalidArguments) Bucket() Bucket { return BucketInvalidInput }
func (e InvalidArguments) Unwrap() error {
	if e.Failure == nil {
		return nil
	}
	return e.Failure
}
func (InvalidArguments) sealed() {}

// NotFound reports that a referenced entity does not exist.
type NotFound struct {
	Kind string
	Ref  string
}

func (e NotFound) Error() string  { return fmt.Sprintf("%s '%s' not found", e.Kind, e.Ref) }
func (e NotFound) Bucket() Bucket { return BucketInvalidInput }
func (NotFound) sealed()          {}

// Ambiguous reports that a human name matched more than one entity.
type Ambiguous struct {
	Kind    string
	Ref     string
	Matches int
}

func (e Ambiguous) Error() string {
	return fmt.Sprintf("%s name '%s' matches %d entries; use an id instead", e.Kind, e.Ref, e.Matches)
}
func (e Ambiguous) Bucket() Bucket { return BucketInvalidInput }
func (Ambiguous) sealed()          {}

// InvalidTransition reports a disallowed state change.
type InvalidTransition struct {
	Kind string
	Ref  string
	From string
	To   string
}

func (e InvalidTransition) Error() string {
	return fmt.Sprintf("Cannot move %s '%s' from %s to %s", strings.ToLower(e.Kind), e.Ref, e.From, e.To)
}
func (e InvalidTransition) Bucket() Bucket { return BucketInvalidInput }
func (InvalidTransition) sealed()          {}

// Rejected reports a well-formed request the operation refuses to apply.
type Rejected struct {
	Tool   string
	Reason string
}

func (e Rejected) Error() string  { return e.Tool + ": " + e.Reason }
func (e Rejected) Bucket() Bucket { return BucketInvalidInput }
func (Rejected) sealed()          {}

// Unavailable reports that the backing workspace could not serve the call.
type Unavailable struct {
	Cause error
}

func (e Unavailable) Error() string  { return "Workspace service is unavailable" }
func (e Unavailable) Bucket() Bucket { return BucketInternal }
func (e Unavailable) Unwrap() error  { return e.Cause }
func (Unavailable) sealed()          {}

// Unauthenticated reports that the backing workspace refused our credentials.
type Unauthenticated struct {
	Cause error
}

func (e Unauthenticated) Error() string  { return "Workspace credentials were rejected" }
func (e Unauthenticated) Bucket() Bucket { return BucketInternal }
func (e Unauthenticated) Unwrap() error  { return e.Cause }
func (Unauthenticated) sealed()          {}

// Internal reports any other fault.
type Internal struct {
	Cause error
}

func (e Internal) Error() string  { return GenericMessage }
func (e Internal) Bucket() Bucket { return BucketInternal }
func (e Internal) Unwrap() error  { return e.Cause }
func (Internal) sealed()          {}
