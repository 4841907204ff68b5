// Package envelope defines the single response shape every tool call produces.
package envelope

import (
	"encoding/json"
	"fmt"
)

// Code is the JSON-RPC style error code carried by failure envelopes.
type Code int

const (
	// CodeInvalidInput marks failures the caller can fix by changing the request.
	CodeInvalidInput Code = -32602
	// CodeInternal marks failures the caller cannot fix.
	CodeInternal Code = -32603
)

// ContentTypeText is the only content block type produced today.
const ContentTypeText = "text"

// Content is one rendered block of an envelope.
type Content struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Envelope is the result of exactly one dispatch. A success carries Result
// and a pretty-printed rendering of it; a failure carries IsError, Code and a
// sanitized message, and never a Result.
type Envelope struct {
	Content []Content `json:"content"`
	IsError bool      `json:"isError,omitempty"`
	Code    Code      `json:"code,omitempty"`
	Result  any       `json:"-"`
}

// Success renders result as indented JSON text.
func Success(result any) (Envelope, error) {
	text, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return Envelope{}, fmt.Errorf("encode result: %w", err)
	}
	return Envelope{
		Content: []Content{{Type: ContentTypeText, Text: string(text)}},
		Result:  result,
	}, nil
}

// Failure builds an error envelope. Callers are responsible for passing an
// already-sanitized message.
func Failure(code Code, message string) Envelope {
	return Envelope{
		Content: []Content{{Type: ContentTypeText, Text: message}},
		IsError: true,
		Code:    code,
	}
}

// Text joins the text of every content block.
func (e Envelope) Text() string {
	switch len(e.Content) {
	case 0:
		return ""
	case 1:
		return e.Content[0].Text
	}
	text := ""
	for i, block := range e.Content {
		if i > 0 {
			text += "\n"
		}
		text += block.Text
	}
	return text
}
