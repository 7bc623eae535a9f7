package x402

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// challengeBodySchema describes the JSON body of a 402 challenge
// response. Required fields may alternatively arrive in headers, so the
// schema constrains types without requiring presence; servers emitting
// full bodies use ValidateChallengeDocument as a strict self-check.
const challengeBodySchema = `{
	"type": "object",
	"properties": {
		"session_id": {"type": "string", "minLength": 1},
		"amount": {"type": ["number", "string"]},
		"currency": {"type": "string", "minLength": 1},
		"network": {"type": "string", "minLength": 1},
		"recipient": {"type": "string", "minLength": 1},
		"service": {"type": "string"},
		"robot_id": {"type": "string"},
		"expires_at": {"type": "string"},
		"message": {"type": "string"}
	},
	"additionalProperties": false
}`

// ValidationResult represents the result of validating a challenge document
type ValidationResult struct {
	Valid  bool
	Errors []string
}

// ValidateChallengeDocument validates a 402 response body against the
// challenge schema. Unknown fields and wrongly typed fields are
// reported; absent fields are not, since headers may carry them.
func ValidateChallengeDocument(body []byte) ValidationResult {
	schemaLoader := gojsonschema.NewStringLoader(challengeBodySchema)
	documentLoader := gojsonschema.NewBytesLoader(body)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return ValidationResult{
			Valid:  false,
			Errors: []string{fmt.Sprintf("schema validation failed: %v", err)},
		}
	}

	if result.Valid() {
		return ValidationResult{Valid: true}
	}

	errs := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		errs = append(errs, desc.String())
	}
	return ValidationResult{Valid: false, Errors: errs}
}
