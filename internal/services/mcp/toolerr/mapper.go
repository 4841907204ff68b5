package toolerr

import (
	"context"
	"errors"
	"regexp"

	"github.com/louisbranch/widgetmcp/internal/services/mcp/envelope"
)

// sensitivePattern matches the sensitive terms as whole words. Anything other
// than a letter separates words, so "api_key" and "auth-token" match while
// "author" and "Keyboard" do not.
var sensitivePattern = regexp.MustCompile(`(?i)(?:^|[^a-z])(?:credentials?|tokens?|secrets?|sessions?|cookies?|keys?|bearer|auth)(?:[^a-z]|$)`)

// Map converts err into a failure envelope.
//
// The error tree is walked depth-first in pre-order (wrapped errors and joined
// errors alike) and the first typed failure found is reported. Without one,
// cancellation maps to CancelledMessage and everything else to GenericMessage;
// both carry the internal code.
func Map(err error) envelope.Envelope {
	if typed, ok := First(err); ok {
		return Render(typed)
	}
	if Cancelled(err) {
		return envelope.Failure(envelope.CodeInternal, CancelledMessage)
	}
	return envelope.Failure(envelope.CodeInternal, GenericMessage)
}

// Render builds the envelope for one typed failure.
func Render(e Error) envelope.Envelope {
	bucket := e.Bucket()
	message := GenericMessage
	if bucket == BucketInvalidInput {
		message = e.Error()
	}
	return envelope.Failure(bucket.Code(), Sanitize(message))
}

// First returns the first typed failure in err's tree.
func First(err error) (Error, bool) {
	var found Error
	walk(err, func(candidate error) bool {
		typed, ok := candidate.(Error)
		if ok {
			found = typed
		}
		return ok
	})
	return found, found != nil
}

// Classify reports the bucket err maps to.
func Classify(err error) Bucket {
	if typed, ok := First(err); ok {
		return typed.Bucket()
	}
	return BucketInternal
}

// Cancelled reports whether err stems from context cancellation or expiry.
func Cancelled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// Sanitize replaces messages that mention credentials or session material.
func Sanitize(message string) string {
	if sensitivePattern.MatchString(message) {
		return GenericMessage
	}
	return message
}

// walk visits err and its wrapped errors in depth-first pre-order until visit
// returns true.
func walk(err error, visit func(error) bool) bool {
	if err == nil {
		return false
	}
	if visit(err) {
		return true
	}
	switch wrapped := err.(type) {
	case interface{ Unwrap() error }:
		return walk(wrapped.Unwrap(), visit)
	case interface{ Unwrap() []error }:
		for _, child := range wrapped.Unwrap() {
			if walk(child, visit) {
				return true
			}
		}
	}
	return false
}
