package agents

import (
	"errors"
	"testing"

	"github.com/lucasnoah/codepilot/internal/pipeline"
)

func TestDecodeReplyBareJSON(t *testing.T) {
	var out pipeline.IntentResult
	if err := decodeReply(`{"category":"dsa","language":"go","confidence":0.9}`, &out); err != nil {
		t.Fatalf("decodeReply: %v", err)
	}
	if out.Category != "dsa" || out.Confidence != 0.9 {
		t.Errorf("out = %+v", out)
	}
}

func TestDecodeReplyFencedJSON(t *testing.T) {
	reply := "```json\n{\"category\":\"bug_fix\",\"language\":\"go\",\"confidence\":0.7}\n```"
	var out pipeline.IntentResult
	if err := decodeReply(reply, &out); err != nil {
		t.Fatalf("decodeReply: %v", err)
	}
	if out.Category != "bug_fix" {
		t.Errorf("category = %q", out.Category)
	}
}

func TestDecodeReplyFenceWithoutLanguageHint(t *testing.T) {
	reply := "```\n{\"category\":\"dsa\",\"language\":\"go\",\"confidence\":0.5}\n```"
	var out pipeline.IntentResult
	if err := decodeReply(reply, &out); err != nil {
		t.Fatalf("decodeReply: %v", err)
	}
	if out.Category != "dsa" {
		t.Errorf("category = %q", out.Category)
	}
}

func TestDecodeReplyProseWrapped(t *testing.T) {
	reply := `Sure! Here is the classification you asked for:
{"category":"optimization","language":"go","confidence":0.8}
Let me know if you need anything else.`
	var out pipeline.IntentResult
	if err := decodeReply(reply, &out); err != nil {
		t.Fatalf("decodeReply: %v", err)
	}
	if out.Category != "optimization" {
		t.Errorf("category = %q", out.Category)
	}
}

func TestDecodeReplyBracesInsideStrings(t *testing.T) {
	reply := `prefix {"summary":"watch out for { and } in text","root_causes":["a{b}c"]} suffix`
	var out pipeline.DebugResult
	if err := decodeReply(reply, &out); err != nil {
		t.Fatalf("decodeReply: %v", err)
	}
	if out.Summary != "watch out for { and } in text" {
		t.Errorf("summary = %q", out.Summary)
	}
}

func TestDecodeReplyNoJSON(t *testing.T) {
	var out pipeline.IntentResult
	err := decodeReply("there is no structured data here", &out)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, pipeline.ErrMalformedOutput) {
		t.Errorf("err = %v, want malformed-output class", err)
	}
}

func TestDecodeReplyInvalidJSON(t *testing.T) {
	var out pipeline.IntentResult
	err := decodeReply(`{"category": "dsa",`, &out)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, pipeline.ErrMalformedOutput) {
		t.Errorf("err = %v, want malformed-output class", err)
	}
}

func TestExtractJSONObjectUnbalanced(t *testing.T) {
	if got := extractJSONObject(`{"a": {"b": 1}`); got != "" {
		t.Errorf("extractJSONObject = %q, want empty for unbalanced braces", got)
	}
}
