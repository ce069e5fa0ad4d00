package loam

// Document kinds. A document without a kind is a step.
const (
	KindAgent = "agent"
	KindStep  = "step"
	KindTools = "tools"
)

// ManifestID is the document treated as the agent manifest when no document
// declares kind: agent.
const ManifestID = "agent"

// DocumentMetadata is the frontmatter of a stepwise document. One struct
// covers every kind; fields that do not apply to a kind are ignored.
// It uses "mapstructure" tags to match the YAML keys written by hand.
type DocumentMetadata struct {
	Kind string `json:"kind" mapstructure:"kind"`
	ID   string `json:"id" mapstructure:"id"`

	// Shared
	Description string `json:"description" mapstructure:"description"`
	Tools       []any  `json:"tools" mapstructure:"tools"`

	// Agent manifest
	Name          string `json:"name" mapstructure:"name"`
	Start         string `json:"start" mapstructure:"start"`
	Persona       string `json:"persona" mapstructure:"persona"`
	SystemMessage string `json:"system_message" mapstructure:"system_message"`
	MaxErrors     int    `json:"max_errors" mapstructure:"max_errors"`
	MaxIterations int    `json:"max_iterations" mapstructure:"max_iterations"`
	Flows         []any  `json:"flows" mapstructure:"flows"`

	// Step
	Routes           []any          `json:"routes" mapstructure:"routes"`
	AutoFlow         bool           `json:"auto_flow" mapstructure:"auto_flow"`
	QuickSuggestions bool           `json:"quick_suggestions" mapstructure:"quick_suggestions"`
	AnswerModel      map[string]any `json:"answer_model" mapstructure:"answer_model"`
}
