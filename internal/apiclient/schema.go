package apiclient

import (
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// analysisSchema pins the scale of every score: fractions, never percents.
const analysisSchema = `{
  "type": "object",
  "required": ["fraud_probability"],
  "properties": {
    "fraud_probability": {"type": "number", "minimum": 0, "maximum": 1},
    "fraud_types": {"type": ["array", "null"], "items": {"type": "string"}},
    "explanations": {"type": ["array", "null"], "items": {"type": "string"}},
    "module_scores": {
      "type": ["object", "null"],
      "additionalProperties": {"type": "number", "minimum": 0, "maximum": 1}
    }
  }
}`

const bulkSchema = `{
  "type": "object",
  "required": ["data"],
  "properties": {
    "data": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["prediction", "confidence"],
        "properties": {
          "prediction": {"type": "string"},
          "confidence": {"type": ["number", "string"]}
        }
      }
    },
    "metrics": {"type": ["object", "null"]},
    "eda": {"type": ["object", "null"]}
  }
}`

var (
	analysisValidator = sync.OnceValues(func() (*gojsonschema.Schema, error) {
		return gojsonschema.NewSchema(gojsonschema.NewStringLoader(analysisSchema))
	})
	bulkValidator = sync.OnceValues(func() (*gojsonschema.Schema, error) {
		return gojsonschema.NewSchema(gojsonschema.NewStringLoader(bulkSchema))
	})
)

// validateAnalysis checks a raw analysis result before it is decoded.
func validateAnalysis(raw []byte) error {
	return validate(analysisValidator, raw)
}

func validateBulk(raw []byte) error {
	return validate(bulkValidator, raw)
}

func validate(load func() (*gojsonschema.Schema, error), raw []byte) error {
	schema, err := load()
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	res, err := schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return fmt.Errorf("validate: %w", err)
	}
	if res.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(res.Errors()))
	for _, e := range res.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("schema violation: %s", strings.Join(msgs, "; "))
}
