package ports

import (
	"context"

	"github.com/alexisbeaulieu97/buildgraph/internal/domain/build"
)

// RunStore archives finished runs so their results and logs can be reviewed
// later. Implementations should be durable and safe for concurrent use.
// Missing runs map to graph.ErrCodeNotFound.
type RunStore interface {
	Save(ctx context.Context, result build.RunResult) error
	Get(ctx context.Context, runID string) (*build.RunResult, error)
	List(ctx context.Context, limit int) ([]build.RunResult, error)
}

// RevisionResolver reports the source revision checked out in a project
// directory. An empty revision with a nil error means the directory is not
// under version control.
type RevisionResolver interface {
	Resolve(ctx context.Context, projectDir string) (string, error)
}
