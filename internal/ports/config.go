package ports

import (
	"context"

	"github.com/alexisbeaulieu97/buildgraph/internal/domain/graph"
)

// ProjectLoader reads project documents (settings, nodes and edges) from
// storage. Implementations must be deterministic, respect context
// cancellation, and translate failures into domain-friendly errors:
//   - io/fs.ErrNotExist → graph.ErrCodeNotFound
//   - syntax or schema failures → graph.ErrCodeValidation
//   - structural graph problems → every problem reported, no partial graph
type ProjectLoader interface {
	// Load materialises a fully validated project from path.
	Load(ctx context.Context, path string) (*graph.Project, error)

	// Validate checks the document without returning the project.
	Validate(ctx context.Context, path string) error
}

// ProjectSaver writes a project document back to storage atomically.
type ProjectSaver interface {
	Save(ctx context.Context, path string, project *graph.Project) error
}
