// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package llm abstracts the text-completion service used for planning,
// translation, reflection, and query refinement. Model output is treated
// as possibly-malformed JSON: callers decode it with DecodeJSON and keep a
// deterministic fallback for every failure.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/kaptinlin/jsonrepair"
)

// Completer is a prompt-in, text-out completion service. Implementations
// must be safe for sequential use by one research session; tests replace
// it with a scripted stub.
type Completer interface {
	Complete(ctx context.Context, system, user string, temperature float64, maxTokens int) (string, error)
}

// CompleterFunc adapts a function to the Completer interface.
type CompleterFunc func(ctx context.Context, system, user string, temperature float64, maxTokens int) (string, error)

// Complete calls f.
func (f CompleterFunc) Complete(ctx context.Context, system, user string, temperature float64, maxTokens int) (string, error) {
	return f(ctx, system, user, temperature, maxTokens)
}

// ErrEmptyResponse is returned by DecodeJSON for blank model output.
var ErrEmptyResponse = errors.New("empty model response")

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// StripCodeFence removes a surrounding markdown code fence (``` or
// ```json) and trims whitespace. Text outside the first fenced block is
// discarded.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	start := strings.Index(s, "```")
	if start < 0 {
		return s
	}
	rest := s[start+3:]
	// Drop the language tag on the opening fence line.
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		tag := strings.TrimSpace(rest[:nl])
		if tag == "" || !strings.ContainsAny(tag, "{[\"") {
			rest = rest[nl+1:]
		}
	}
	if end := strings.Index(rest, "```"); end >= 0 {
		rest = rest[:end]
	}
	return strings.TrimSpace(rest)
}

// extractObject trims leading prose before the first '{' or '[' and
// trailing prose after the matching last '}' or ']'.
func extractObject(s string) string {
	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return s
	}
	end := strings.LastIndexAny(s, "}]")
	if end < start {
		return s[start:]
	}
	return s[start : end+1]
}

// DecodeJSON decodes model output into v. It strips code fences, tries a
// direct decode, then a decode of the outermost object, and finally a
// decode of the repaired text. The first error is returned when every
// attempt fails.
func DecodeJSON(text string, v any) error {
	body := StripCodeFence(text)
	if body == "" {
		return ErrEmptyResponse
	}

	err := json.UnmarshalFromString(body, v)
	if err == nil {
		return nil
	}
	originalErr := err

	obj := extractObject(body)
	if obj != body {
		if err := json.UnmarshalFromString(obj, v); err == nil {
			return nil
		}
	}

	repaired, err := jsonrepair.JSONRepair(obj)
	if err != nil {
		return fmt.Errorf("decoding model JSON: %w", originalErr)
	}
	// Prose repairs into a bare string or null; only containers count.
	if r := strings.TrimSpace(repaired); r == "" || (r[0] != '{' && r[0] != '[') {
		return fmt.Errorf("decoding model JSON: %w", originalErr)
	}
	if err := json.UnmarshalFromString(repaired, v); err != nil {
		return fmt.Errorf("decoding model JSON: %w", originalErr)
	}
	return nil
}
