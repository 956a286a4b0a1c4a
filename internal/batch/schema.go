package batch

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"github.com/user/docugen/internal/docs"
)

//go:embed schema.json
var schemaJSON []byte

type schemaFile struct {
	Definitions map[string]any            `json:"definitions"`
	Requests    map[string]map[string]any `json:"requests"`
}

var loadSchemas = sync.OnceValues(func() (map[string]*gojsonschema.Schema, error) {
	var f schemaFile
	if err := json.Unmarshal(schemaJSON, &f); err != nil {
		return nil, fmt.Errorf("decode request schemas: %w", err)
	}
	out := make(map[string]*gojsonschema.Schema, len(f.Requests))
	for name, s := range f.Requests {
		s["definitions"] = f.Definitions
		compiled, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(s))
		if err != nil {
			return nil, fmt.Errorf("compile schema %s: %w", name, err)
		}
		out[name] = compiled
	}
	return out, nil
})

// validateRequest checks op's body against the schema for its request name.
// Requests without a schema pass; the remote API has the final word on them.
func validateRequest(op docs.Operation) error {
	schemas, err := loadSchemas()
	if err != nil {
		return err
	}
	s, ok := schemas[op.Name]
	if !ok {
		return nil
	}
	body := op.Body
	if len(body) == 0 {
		body = json.RawMessage(`{}`)
	}
	res, err := s.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return fmt.Errorf("%s body is not valid JSON: %w", op.Name, err)
	}
	if res.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(res.Errors()))
	for _, e := range res.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("%s: %s", op.Name, strings.Join(msgs, "; "))
}
