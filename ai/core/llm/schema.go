package llm

import (
	"encoding/json"

	"github.com/sashabaranov/go-openai/jsonschema"
)

// RenderSchema renders def as indented JSON for embedding in prompts.
func RenderSchema(def *jsonschema.Definition) string {
	b, err := json.MarshalIndent(def, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(b)
}
