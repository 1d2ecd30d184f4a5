package schema

import (
	"context"
	"encoding/json"
	"fmt"
)

// GenerateFunc issues one model call for a prompt.
type GenerateFunc func(ctx context.Context, prompt string) (string, error)

// ValidationError reports that every attempt produced output failing schema
// validation. The caller decides the failure scope (whole stage vs one
// source).
type ValidationError struct {
	Schema   string
	Attempts int
	Err      error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("output failed %s validation after %d attempts: %v", e.Schema, e.Attempts, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// GenerateValidated calls gen and validates the response against the named
// schema. On validation failure it reissues the prompt with a corrective
// suffix up to retries extra times (retries+1 attempts total). Generation
// errors are returned immediately; the provider handles transport retries.
func GenerateValidated(ctx context.Context, gen GenerateFunc, prompt, name string, retries int) (json.RawMessage, error) {
	attempts := retries + 1
	p := prompt
	var lastErr error
	for i := 0; i < attempts; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		raw, err := gen(ctx, p)
		if err != nil {
			return nil, err
		}
		doc, err := Validate(raw, name)
		if err == nil {
			return doc, nil
		}
		lastErr = err
		p = correctivePrompt(prompt, err)
	}
	return nil, &ValidationError{Schema: name, Attempts: attempts, Err: lastErr}
}

func correctivePrompt(original string, vErr error) string {
	return fmt.Sprintf(`%s

Your previous response was rejected: %v.
Respond again with ONLY a single JSON object matching the required structure. No prose, no code fences.`, original, vErr)
}
