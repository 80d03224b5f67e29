package provider

import (
	"encoding/json"
	"strings"
)

// ModelIdentifier names one concrete backend model. The canonical string
// form doubles as the registry key and the persisted model preference, so
// it must stay stable across releases.
type ModelIdentifier struct {
	Name    string
	Version string
}

// NewModelIdentifier trims both parts on construction.
func NewModelIdentifier(name, version string) ModelIdentifier {
	return ModelIdentifier{
		Name:    strings.TrimSpace(name),
		Version: strings.TrimSpace(version),
	}
}

// String returns the canonical "name_version" form.
func (id ModelIdentifier) String() string {
	return id.Name + "_" + id.Version
}

// GenerationConfig is the immutable per-call generation tuning. Static
// fields are fixed per backend class; MaxOutputTokens is the only field
// sourced dynamically per call.
type GenerationConfig struct {
	MaxOutputTokens int     `json:"maxOutputTokens"`
	Temperature     float64 `json:"temperature"`
	TopP            float64 `json:"topP"`
	TopK            int     `json:"topK"`
}

// ResultKind discriminates the active Result variant.
type ResultKind int

const (
	// KindSuccess carries generated text.
	KindSuccess ResultKind = iota
	// KindBlocked means the backend refused generation on content policy.
	KindBlocked
	// KindMalformed means the response matched no known shape.
	KindMalformed
	// KindTransportFailure means the HTTP/transport layer failed.
	KindTransportFailure
)

// Result is the classified outcome of one generation call. Exactly one
// variant is active; callers switch on Kind and only read that variant's
// fields.
type Result struct {
	Kind ResultKind

	// KindSuccess
	Text string

	// KindBlocked
	Reason     string
	Categories []string

	// KindMalformed
	Raw json.RawMessage

	// KindTransportFailure
	Status int
	Detail string
}

// Success builds the success variant.
func Success(text string) Result {
	return Result{Kind: KindSuccess, Text: text}
}

// Blocked builds the content-policy variant. Categories preserve the order
// the backend reported them in.
func Blocked(reason string, categories []string) Result {
	return Result{Kind: KindBlocked, Reason: reason, Categories: categories}
}

// Malformed builds the unknown-shape variant, carrying the full decoded
// body for diagnostics.
func Malformed(raw json.RawMessage) Result {
	return Result{Kind: KindMalformed, Raw: raw}
}

// TransportFailed builds the transport variant. Status is zero when the
// failure happened before any HTTP status was received.
func TransportFailed(status int, detail string) Result {
	return Result{Kind: KindTransportFailure, Status: status, Detail: detail}
}
