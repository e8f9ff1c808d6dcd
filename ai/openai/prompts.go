package openai

import (
	"fmt"
	"strings"

	"github.com/poiesic/shipdex/ai"
)

const extractionResponseSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "entities": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "entity": {
            "type": "string",
            "pattern": "^[a-z0-9.+_-]+( [a-z0-9.+_-]+)*$"
          },
          "type": {
            "type": "string"
          },
          "importance": {
            "type": "integer",
            "minimum": 1,
            "maximum": 10
          }
        },
        "required": ["entity", "type", "importance"],
        "additionalProperties": false
      }
    }
  },
  "required": ["entities"],
  "additionalProperties": false
}`

const extractionPromptTemplate = `Extract the named entities mentioned in the given technical document and return them as JSON.

Output ONLY valid JSON which complies with the schema given below. Do not include any preamble, explanation,
greeting, or acknowledgment. Start your response directly with the opening brace { and end with the closing
brace }. Your output must exactly follow this schema:

%s

Rules:
- Entity names must be lowercase, 1-3 words.
- Type field must match exactly one of the listed values: %s.
- Importance is an integer from 1 (least relevant) to 10 (most central). Rate based on how essential the entity is for understanding the document.
- Include only entities that are explicitly mentioned in the text. Do not hallucinate.
- Prefer concrete technologies, services, and products over generic nouns.
- If no entities can be identified, return "entities": [].
- The JSON must parse without errors; no trailing commas, no extra keys, and no extraneous text outside the object.

Example:
Input: "The payment service connects to Postgres 15 over TLS and caches sessions in Redis."
Output:
{
  "entities": [
    {"entity":"payment service","type":"service","importance":9},
    {"entity":"postgres","type":"technology","importance":8},
    {"entity":"redis","type":"technology","importance":7},
    {"entity":"tls","type":"protocol","importance":6}
  ]
}

Example (vulnerability advisory):
Input: "CVE-2021-44228 affects log4j versions below 2.15.0."
Output:
{
  "entities": [
    {"entity":"cve-2021-44228","type":"vulnerability","importance":10},
    {"entity":"log4j","type":"library","importance":9}
  ]
}`

// buildSystemPrompt creates the system prompt with entity types embedded.
func buildSystemPrompt() string {
	return fmt.Sprintf(extractionPromptTemplate,
		extractionResponseSchema,
		strings.Join(ai.EntityTypes, ", "))
}
