package ops

import (
	"github.com/hpungsan/smartqr/internal/content"
)

// ClassifyInput contains parameters for the Classify operation.
type ClassifyInput struct {
	Raw string
}

// ClassifyOutput contains the result of the Classify operation.
type ClassifyOutput struct {
	content.Classified
	Action *content.Action `json:"action,omitempty"`
}

// Classify parses a raw payload without touching history.
func Classify(input ClassifyInput) *ClassifyOutput {
	c := content.Classify(input.Raw)
	output := &ClassifyOutput{Classified: c}
	if action, ok := content.ActionFor(c); ok {
		output.Action = &action
	}
	return output
}

// EncodeInput contains parameters for the Encode operation.
type EncodeInput struct {
	Mode     string `validate:"required"`
	FormData map[string]string
}

// Encode builds the canonical payload for form data without touching history.
// Unlike Generate it does not reject blank payloads.
func Encode(input EncodeInput) (*content.Encoded, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	mode, err := parseKind(input.Mode)
	if err != nil {
		return nil, err
	}
	encoded := content.Encode(mode, input.FormData)
	return &encoded, nil
}
