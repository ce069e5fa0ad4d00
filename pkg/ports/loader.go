package ports

import "context"

// DefinitionLoader defines how agent definitions are retrieved.
// It returns raw YAML or JSON; the definition package parses and compiles it.
type DefinitionLoader interface {
	// Manifest returns the raw agent manifest: name, start step, flows and tools.
	Manifest(ctx context.Context) ([]byte, error)

	// GetStep returns the raw definition of a step by ID.
	GetStep(ctx context.Context, id string) ([]byte, error)

	// ListSteps returns every step ID the source defines, in declaration order.
	ListSteps(ctx context.Context) ([]string, error)
}

// Watchable defines an interface for loaders that can notify about backend changes.
// This is typically used for hot-reload in development.
type Watchable interface {
	// Watch returns a channel that receives the ID of each changed document.
	Watch(ctx context.Context) (<-chan string, error)
}
