package toolerr

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/louisbranch/widgetmcp/internal/services/mcp/envelope"
	"github.com/louisbranch/widgetmcp/internal/services/mcp/schema"
)

func TestMapVariants(t *testing.T) {
	upstream := errors.New("dial tcp 10.0.0.4:443: connection refused")

	tests := []struct {
		name string
		err  error
		code envelope.Code
		text string
	}{
		{name: "unknown tool", err: UnknownTool{Name: "nope"}, code: envelope.CodeInvalidInput, text: "Unknown tool: nope"},
		{
			name: "invalid arguments",
			err:  InvalidArguments{Tool: "list_widgets", Failure: &schema.ParseFailure{Path: "limit", Violation: schema.ViolationOutOfRange, Detail: "must be >= 1"}},
			code: envelope.CodeInvalidInput,
			text: "Invalid arguments for list_widgets: limit: must be >= 1",
		},
		{name: "not found", err: NotFound{Kind: "Widget", Ref: "abc"}, code: envelope.CodeInvalidInput, text: "Widget 'abc' not found"},
		{name: "ambiguous", err: Ambiguous{Kind: "Widget", Ref: "Gear", Matches: 2}, code: envelope.CodeInvalidInput, text: "Widget name 'Gear' matches 2 entries; use an id instead"},
		{name: "transition", err: InvalidTransition{Kind: "Widget", Ref: "w-1", From: "done", To: "backlog"}, code: envelope.CodeInvalidInput, text: "Cannot move widget 'w-1' from done to backlog"},
		{name: "rejected", err: Rejected{Tool: "update_widget", Reason: "no fields to update"}, code: envelope.CodeInvalidInput, text: "update_widget: no fields to update"},
		{name: "unavailable hides cause", err: Unavailable{Cause: upstream}, code: envelope.CodeInternal, text: GenericMessage},
		{name: "unauthenticated hides cause", err: Unauthenticated{Cause: upstream}, code: envelope.CodeInternal, text: GenericMessage},
		{name: "internal", err: Internal{Cause: upstream}, code: envelope.CodeInternal, text: GenericMessage},
		{name: "untyped", err: upstream, code: envelope.CodeInternal, text: GenericMessage},
		{name: "cancelled", err: fmt.Errorf("list widgets: %w", context.Canceled), code: envelope.CodeInternal, text: CancelledMessage},
		{name: "deadline", err: context.DeadlineExceeded, code: envelope.CodeInternal, text: CancelledMessage},
		{name: "nil", err: nil, code: envelope.CodeInternal, text: GenericMessage},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			env := Map(tc.err)
			if !env.IsError {
				t.Fatal("expected error envelope")
			}
			if env.Code != tc.code {
				t.Fatalf("expected code %d, got %d", tc.code, env.Code)
			}
			if env.Text() != tc.text {
				t.Fatalf("expected %q, got %q", tc.text, env.Text())
			}
			if strings.Contains(env.Text(), "10.0.0.4") {
				t.Fatal("internal cause leaked into message")
			}
		})
	}
}

func TestMapFindsWrappedVariant(t *testing.T) {
	err := fmt.Errorf("get widget: %w", NotFound{Kind: "Widget", Ref: "abc"})
	env := Map(err)
	if env.Code != envelope.CodeInvalidInput || env.Text() != "Widget 'abc' not found" {
		t.Fatalf("unexpected envelope %+v", env)
	}
}

func TestMapCompositeReportsFirstInTraversalOrder(t *testing.T) {
	first := NotFound{Kind: "Widget", Ref: "a"}
	second := Rejected{Tool: "update_widget", Reason: "no fields to update"}
	nested := fmt.Errorf("outer: %w", errors.Join(
		fmt.Errorf("branch: %w", errors.Join(errors.New("plain"), first)),
		second,
	))

	for i := 0; i < 5; i++ {
		env := Map(nested)
		if env.Text() != first.Error() {
			t.Fatalf("run %d: expected first failure %q, got %q", i, first.Error(), env.Text())
		}
	}

	reordered := errors.Join(second, first)
	if got := Map(reordered).Text(); got != second.Error() {
		t.Fatalf("expected %q, got %q", second.Error(), got)
	}
}

func TestMapPrefersTypedFailureOverCancellation(t *testing.T) {
	err := errors.Join(context.Canceled, Unavailable{Cause: context.Canceled})
	env := Map(err)
	if env.Text() != GenericMessage || env.Code != envelope.CodeInternal {
		t.Fatalf("unexpected envelope %+v", env)
	}
}

func TestSanitizeAppliesToEveryBucket(t *testing.T) {
	tests := []Error{
		NotFound{Kind: "Widget", Ref: "api_key_rotation"},
		Rejected{Tool: "create_widget", Reason: "Bearer abc is not allowed"},
		UnknownTool{Name: "reset_session"},
		InvalidArguments{Tool: "create_widget", Failure: &schema.ParseFailure{Path: "auth_token", Violation: schema.ViolationUnexpected, Detail: "is not a recognized parameter"}},
	}
	for _, tc := range tests {
		env := Map(tc)
		if env.Text() != GenericMessage {
			t.Fatalf("expected sanitized message for %T, got %q", tc, env.Text())
		}
		if env.Code != tc.Bucket().Code() {
			t.Fatalf("sanitizing must not change the code for %T", tc)
		}
	}
}

func TestClassify(t *testing.T) {
	if Classify(NotFound{Kind: "Widget", Ref: "x"}) != BucketInvalidInput {
		t.Fatal("not found should be invalid input")
	}
	if Classify(errors.New("boom")) != BucketInternal {
		t.Fatal("untyped error should be internal")
	}
	if BucketInvalidInput.String() != "invalid_input" || BucketInternal.String() != "internal" {
		t.Fatal("unexpected bucket labels")
	}
}

func TestSanitizeMatchesWholeWords(t *testing.T) {
	tests := []struct {
		message string
		hidden  bool
	}{
		{"Invalid arguments for add_widget_comment: author: expected string, got number", false},
		{"Widget 'Keyboard' not found", false},
		{"Widget 'monkey wrench' not found", false},
		{"Widget 'tokenizer' not found", false},
		{"Widget 'api_key_rotation' not found", true},
		{"Widget 'AUTH-TOKEN' not found", true},
		{"Session expired", true},
		{"rotate keys", true},
		{"credential2 leaked", true},
		{"Bearer abc", true},
	}
	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			got := Sanitize(tt.message)
			if hidden := got == GenericMessage; hidden != tt.hidden {
				t.Fatalf("Sanitize(%q) = %q, hidden %v want %v", tt.message, got, hidden, tt.hidden)
			}
		})
	}
}
