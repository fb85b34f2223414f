package message

import "fmt"

// ConversionError indicates a canonical Message could not be translated into
// a provider's wire format. It names the offending content kind rather than
// silently dropping content, per §4.1's conversion rules.
type ConversionError struct {
	Kind   string // e.g. "raw-bytes-document", "pdf-document"
	Reason string
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("message: cannot convert %s: %s", e.Kind, e.Reason)
}

// NewConversionError builds a ConversionError.
func NewConversionError(kind, reason string) error {
	return &ConversionError{Kind: kind, Reason: reason}
}
