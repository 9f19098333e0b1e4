package graph

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Node is one buildable component. It is plain data: constructing a node never
// touches the filesystem, the project directory is checked when a build runs.
type Node struct {
	ID                string
	Name              string
	ProjectPath       string
	Options           []string
	PreBuildScript    string
	PostInstallScript string
	Timeout           time.Duration
}

// NodeSpec carries the inputs used to build a Node. An empty ID is replaced by
// a freshly generated UUID.
type NodeSpec struct {
	ID                string
	Name              string
	ProjectPath       string
	Options           []string
	PreBuildScript    string
	PostInstallScript string
	Timeout           time.Duration
}

// NewNode validates spec and returns the resulting node.
func NewNode(spec NodeSpec) (Node, error) {
	id := strings.TrimSpace(spec.ID)
	if id == "" {
		id = uuid.NewString()
	}
	n := Node{
		ID:                id,
		Name:              strings.TrimSpace(spec.Name),
		ProjectPath:       spec.ProjectPath,
		Options:           append([]string(nil), spec.Options...),
		PreBuildScript:    strings.TrimSpace(spec.PreBuildScript),
		PostInstallScript: strings.TrimSpace(spec.PostInstallScript),
		Timeout:           spec.Timeout,
	}
	if err := n.Validate(); err != nil {
		return Node{}, err
	}
	return n, nil
}

// Validate checks the node's own fields.
func (n Node) Validate() error {
	if strings.TrimSpace(n.ID) == "" {
		return newMissingFieldError("id")
	}
	if n.Name == "" {
		return newMissingFieldError("name").WithContext(map[string]interface{}{"id": n.ID})
	}
	for idx, opt := range n.Options {
		if strings.TrimSpace(opt) == "" {
			return newValidationError("empty build option", map[string]interface{}{
				"id":    n.ID,
				"index": idx,
			})
		}
	}
	if n.Timeout < 0 {
		return newValidationError("timeout must not be negative", map[string]interface{}{"id": n.ID})
	}
	return nil
}

// Clone returns a deep copy of the node.
func (n Node) Clone() Node {
	n.Options = append([]string(nil), n.Options...)
	return n
}

// DisplayName prefers the human name and falls back to the id.
func (n Node) DisplayName() string {
	if n.Name != "" {
		return n.Name
	}
	return n.ID
}

// Edge states that To depends on From: From must succeed before To starts.
type Edge struct {
	From string
	To   string
}
