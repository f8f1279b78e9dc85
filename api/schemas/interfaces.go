package schemas

import (
	"context"
)

// -- LLM Client Schemas & Interface --

// ModelTier allows for selecting a vision model based on a preference for
// speed versus advanced capabilities. Detection calls run on the fast tier,
// planning calls on the powerful tier.
type ModelTier string

const (
	TierFast     ModelTier = "fast"     // Prefers a faster, potentially less capable model.
	TierPowerful ModelTier = "powerful" // Prefers a more capable, potentially slower model.
)

// GenerationOptions provides detailed parameters to control the text
// generation process of the LLM, such as creativity (temperature) and
// output format.
type GenerationOptions struct {
	Temperature     float64 `json:"temperature"`       // Controls randomness. Lower is more deterministic.
	ForceJSONFormat bool    `json:"force_json_format"` // If true, forces the model to output valid JSON.
	TopP            float64 `json:"top_p"`             // Nucleus sampling parameter.
	TopK            int     `json:"top_k"`             // Top-k sampling parameter.
}

// ImageData is a single image attached to a generation request. Planning
// and detection calls attach exactly one screenshot; the type carries the
// MIME so providers can build their own encodings (inline base64, data
// URLs) without re-sniffing the bytes.
type ImageData struct {
	MIMEType string `json:"mime_type"` // e.g. "image/png".
	Data     []byte `json:"data"`      // Raw image bytes, not yet base64-encoded.
}

// GenerationRequest encapsulates a complete request to the vision model:
// the system and user prompts, attached images, the desired model tier,
// and generation options.
type GenerationRequest struct {
	SystemPrompt string            `json:"system_prompt"` // Instructions for the model's persona and task.
	UserPrompt   string            `json:"user_prompt"`   // The specific query or input from the user.
	Images       []ImageData       `json:"images"`        // Screenshots the model must ground its answer in.
	Tier         ModelTier         `json:"tier"`          // The desired model tier (fast or powerful).
	Options      GenerationOptions `json:"options"`       // Advanced generation parameters.
}

// LLMClient defines a standard interface for interacting with a
// vision-capable Large Language Model, abstracting the specifics of the
// underlying provider (e.g. Gemini, OpenAI).
type LLMClient interface {
	// Generate produces a text completion based on the provided request.
	Generate(ctx context.Context, req GenerationRequest) (string, error)
	// Close cleans up any resources held by the client (e.g. network
	// connections).
	Close() error
}
