package schema

import (
	"embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.json
var schemaFS embed.FS

var (
	compileOnce sync.Once
	compiled    map[string]*jsonschema.Schema
	compileErr  error
)

func load() (map[string]*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		entries, err := schemaFS.ReadDir("schemas")
		if err != nil {
			compileErr = fmt.Errorf("read embedded schemas: %w", err)
			return
		}
		out := make(map[string]*jsonschema.Schema, len(entries))
		for _, e := range entries {
			name := strings.TrimSuffix(e.Name(), ".json")
			data, err := schemaFS.ReadFile("schemas/" + e.Name())
			if err != nil {
				compileErr = fmt.Errorf("read schema %s: %w", e.Name(), err)
				return
			}
			c := jsonschema.NewCompiler()
			if err := c.AddResource(name+".json", strings.NewReader(string(data))); err != nil {
				compileErr = fmt.Errorf("add schema %s: %w", name, err)
				return
			}
			s, err := c.Compile(name + ".json")
			if err != nil {
				compileErr = fmt.Errorf("compile schema %s: %w", name, err)
				return
			}
			out[name] = s
		}
		compiled = out
	})
	return compiled, compileErr
}

// Names returns the registered schema names.
func Names() ([]string, error) {
	m, err := load()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(m))
	for n := range m {
		names = append(names, n)
	}
	return names, nil
}

// Validate extracts the first JSON object from raw model output and checks it
// against the named schema, returning the extracted document on success.
func Validate(raw, name string) (json.RawMessage, error) {
	m, err := load()
	if err != nil {
		return nil, err
	}
	s, ok := m[name]
	if !ok {
		return nil, fmt.Errorf("unknown schema %q", name)
	}
	doc := ExtractJSON(raw)
	if doc == "" {
		return nil, fmt.Errorf("no JSON object found in response")
	}
	var v interface{}
	if err := json.Unmarshal([]byte(doc), &v); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if err := s.Validate(v); err != nil {
		return nil, fmt.Errorf("schema %s: %w", name, err)
	}
	return json.RawMessage(doc), nil
}

// ExtractJSON returns the first balanced top-level JSON object in s, or ""
// if none is present. Braces inside strings are skipped.
func ExtractJSON(s string) string {
	start := strings.Index(s, "{")
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return s[start : i+1]
				}
			}
		}
	}
	return ""
}
