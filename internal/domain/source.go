package domain

import "fmt"

// SourceKind discriminates the two envelope materialization strategies.
type SourceKind string

const (
	SourceKindTemplate SourceKind = "TEMPLATE"
	SourceKindEnvelope SourceKind = "ENVELOPE"
)

// BatchSource is the resolved origin of a batch's envelopes, determined once
// at the start of a processing run rather than per recipient. Exactly one of
// Template or Envelope is set, matching Kind.
type BatchSource struct {
	Kind     SourceKind
	Template *Template
	Envelope *Envelope
}

func TemplateSource(t *Template) (BatchSource, error) {
	if t == nil {
		return BatchSource{}, fmt.Errorf("%w: template is required", ErrValidation)
	}
	return BatchSource{Kind: SourceKindTemplate, Template: t}, nil
}

func EnvelopeSource(e *Envelope) (BatchSource, error) {
	if e == nil {
		return BatchSource{}, fmt.Errorf("%w: source envelope is required", ErrValidation)
	}
	return BatchSource{Kind: SourceKindEnvelope, Envelope: e}, nil
}
