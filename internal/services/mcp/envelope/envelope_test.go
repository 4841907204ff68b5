package envelope

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestSuccessRendersIndentedJSON(t *testing.T) {
	env, err := Success(map[string]any{"id": "w-1"})
	if err != nil {
		t.Fatalf("success: %v", err)
	}
	if env.IsError || env.Code != 0 {
		t.Fatalf("success envelope should not be an error: %+v", env)
	}
	if env.Text() != "{\n  \"id\": \"w-1\"\n}" {
		t.Fatalf("unexpected text %q", env.Text())
	}
	if env.Result == nil {
		t.Fatal("expected result to be retained")
	}
}

func TestSuccessRejectsUnencodableResult(t *testing.T) {
	if _, err := Success(map[string]any{"ch": make(chan int)}); err == nil {
		t.Fatal("expected encode error")
	}
}

func TestFailureCarriesCodeWithoutResult(t *testing.T) {
	env := Failure(CodeInvalidInput, "Unknown tool: nope")
	if !env.IsError || env.Code != CodeInvalidInput || env.Result != nil {
		t.Fatalf("unexpected failure envelope %+v", env)
	}
	data, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(data), `"isError":true`) || !strings.Contains(string(data), `"code":-32602`) {
		t.Fatalf("unexpected wire form %s", data)
	}
}

func TestTextJoinsBlocks(t *testing.T) {
	env := Envelope{Content: []Content{{Type: ContentTypeText, Text: "a"}, {Type: ContentTypeText, Text: "b"}}}
	if env.Text() != "a\nb" {
		t.Fatalf("unexpected text %q", env.Text())
	}
}
