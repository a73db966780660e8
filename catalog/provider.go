package catalog

// ProviderType classifies the API flavour a provider speaks.
type ProviderType string

// The provider types known to the bundled catalog. Definitions may carry
// other values; the type is a classification, not a validation rule.
const (
	TypeOpenAI       ProviderType = "openai"
	TypeOpenAICompat ProviderType = "openai-compat"
	TypeAnthropic    ProviderType = "anthropic"
	TypeGemini       ProviderType = "gemini"
	TypeAzure        ProviderType = "azure"
	TypeBedrock      ProviderType = "bedrock"
	TypeVertexAI     ProviderType = "vertexai"
	TypeXAI          ProviderType = "xai"
	TypeOpenRouter   ProviderType = "openrouter"
)

// KnownProviderTypes returns all the known provider types.
func KnownProviderTypes() []ProviderType {
	return []ProviderType{
		TypeOpenAI,
		TypeOpenAICompat,
		TypeAnthropic,
		TypeGemini,
		TypeAzure,
		TypeBedrock,
		TypeVertexAI,
		TypeXAI,
		TypeOpenRouter,
	}
}

// Provider represents an AI inference provider and the models it serves.
type Provider struct {
	// Name is the display name (e.g. "Anthropic").
	Name string `json:"name" jsonschema:"required"`
	// ID is the stable lowercase slug (e.g. "anthropic").
	ID string `json:"id" jsonschema:"required,pattern=^[a-z0-9][a-z0-9-]*$"`
	// Type is the provider classification.
	Type ProviderType `json:"type" jsonschema:"required"`

	// APIKey is a placeholder for the credential, e.g. "$ANTHROPIC_API_KEY".
	APIKey *string `json:"api_key,omitempty"`
	// APIEndpoint is the base URL of the provider API.
	APIEndpoint *string `json:"api_endpoint,omitempty" jsonschema:"format=uri"`

	DefaultLargeModelID *string `json:"default_large_model_id,omitempty"`
	DefaultSmallModelID *string `json:"default_small_model_id,omitempty"`

	// DefaultHeaders are extra HTTP headers the provider requires.
	DefaultHeaders map[string]string `json:"default_headers,omitempty"`

	// Models in declaration order.
	Models []Model `json:"models" jsonschema:"required"`
}

// NewProvider creates a provider without models or optional metadata.
func NewProvider(name, id string, providerType ProviderType) Provider {
	return Provider{
		Name:   name,
		ID:     id,
		Type:   providerType,
		Models: []Model{},
	}
}

// WithModels returns a copy of the provider with the models appended.
func (p Provider) WithModels(models ...Model) Provider {
	c := p.Clone()
	for _, m := range models {
		c.Models = append(c.Models, m.Clone())
	}
	return c
}

// WithAPIEndpoint returns a copy of the provider with the API endpoint set.
func (p Provider) WithAPIEndpoint(endpoint string) Provider {
	c := p.Clone()
	c.APIEndpoint = &endpoint
	return c
}

// Model looks up a model of this provider by exact id.
func (p Provider) Model(id string) (Model, bool) {
	for _, m := range p.Models {
		if m.ID == id {
			return m.Clone(), true
		}
	}
	return Model{}, false
}

// DefaultLargeModel resolves the provider's default model for large/complex tasks.
// It reports false when no default is configured or the id is not among Models.
func (p Provider) DefaultLargeModel() (Model, bool) {
	return p.resolve(p.DefaultLargeModelID)
}

// DefaultSmallModel resolves the provider's default model for small/fast tasks.
// It reports false when no default is configured or the id is not among Models.
func (p Provider) DefaultSmallModel() (Model, bool) {
	return p.resolve(p.DefaultSmallModelID)
}

func (p Provider) resolve(id *string) (Model, bool) {
	if id == nil {
		return Model{}, false
	}
	return p.Model(*id)
}

// Clone returns a deep copy of the provider. The models slice, headers map
// and all optional values are freshly allocated.
func (p Provider) Clone() Provider {
	p.APIKey = clonePtr(p.APIKey)
	p.APIEndpoint = clonePtr(p.APIEndpoint)
	p.DefaultLargeModelID = clonePtr(p.DefaultLargeModelID)
	p.DefaultSmallModelID = clonePtr(p.DefaultSmallModelID)
	p.DefaultHeaders = cloneHeaders(p.DefaultHeaders)

	models := make([]Model, len(p.Models))
	for i, m := range p.Models {
		models[i] = m.Clone()
	}
	p.Models = models

	return p
}
