package message

import "strings"

// DocumentDisposition is the outcome of applying the universal document
// conversion rules (§4.1) to a DocumentContent, before a provider adapter
// maps it onto its own wire shape.
type DocumentDisposition int

const (
	// DocumentAsText means the document's bytes should be embedded as plain
	// text content (base64 payload of unknown/non-PDF media type).
	DocumentAsText DocumentDisposition = iota
	// DocumentAsFileInput means the provider should receive the document as
	// a native file/document input (PDF, when the provider supports it).
	DocumentAsFileInput
)

const pdfMediaType = "application/pdf"

// ResolveDocument applies the universal document conversion rules: raw-bytes
// documents always fail; PDFs convert to a file input if the provider
// supports it, otherwise fail naming the unsupported kind; anything else
// (including base64 of unknown media type) converts to text.
func ResolveDocument(d DocumentContent, providerSupportsFileInput bool) (DocumentDisposition, error) {
	if d.Source.Kind == SourceRaw {
		return 0, NewConversionError("raw-bytes-document", "raw-bytes documents always fail conversion; pre-encode as base64 or a URL")
	}
	if strings.EqualFold(d.MediaType, pdfMediaType) {
		if providerSupportsFileInput {
			return DocumentAsFileInput, nil
		}
		return 0, NewConversionError("pdf-document", "provider does not support file-input documents")
	}
	return DocumentAsText, nil
}

// ResolveAudio validates the universal rule for audio content: raw bytes
// always fail conversion, matching documents.
func ResolveAudio(a AudioContent) error {
	if a.Source.Kind == SourceRaw {
		return NewConversionError("raw-bytes-audio", "raw-bytes audio always fails conversion; pre-encode as base64 or a URL")
	}
	return nil
}
