package llm

import (
	"fmt"
	"strings"
)

// ExtractionSchema describes a structured JSON answer the model must produce from some input.
type ExtractionSchema struct {
	Name        string
	Description string // task instructions placed before the output format
	Fields      []SchemaField
}

// SchemaField is one top-level key of the expected JSON object.
type SchemaField struct {
	Name        string
	Type        string // shape hint shown to the model, e.g. `"string"` or `[{"name": "string"}]`
	Description string
	Required    bool
}

// BuildExtractionPrompt renders schema and the labelled input into a single user prompt.
func BuildExtractionPrompt(schema ExtractionSchema, inputLabel, input string) string {
	var sb strings.Builder

	if schema.Description != "" {
		sb.WriteString(schema.Description)
		sb.WriteString("\n\n")
	}

	sb.WriteString("Return ONLY valid JSON matching this exact structure:\n{\n")
	for i, field := range schema.Fields {
		typeHint := field.Type
		if typeHint == "" {
			typeHint = `"string"`
		}
		requiredHint := ""
		if field.Required {
			requiredHint = " (required)"
		}
		sb.WriteString(fmt.Sprintf("  \"%s\": %s%s", field.Name, typeHint, requiredHint))
		if field.Description != "" {
			sb.WriteString(" // " + field.Description)
		}
		if i < len(schema.Fields)-1 {
			sb.WriteString(",")
		}
		sb.WriteString("\n")
	}
	sb.WriteString("}\n\n")

	sb.WriteString("Return ONLY the JSON object, no markdown, no explanation, no code blocks.\n\n")

	if inputLabel == "" {
		inputLabel = "Input"
	}
	sb.WriteString(inputLabel + ":\n\"\"\"\n")
	sb.WriteString(input)
	sb.WriteString("\n\"\"\"\n")

	return sb.String()
}
