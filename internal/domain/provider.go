package domain

// ProviderConfig is one ingestion request: a provider tag and the opaque
// payload the ingestion server forwards to that provider.
type ProviderConfig struct {
	Provider string         `json:"provider" yaml:"provider" validate:"required"`
	Payload  map[string]any `json:"payload" yaml:"payload"`
}
