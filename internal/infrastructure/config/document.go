package config

import (
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/alexisbeaulieu97/buildgraph/internal/domain/graph"
)

// DocumentVersion is written into saved documents.
const DocumentVersion = "1.0"

// MaxDurationSeconds bounds every duration field of a document.
const MaxDurationSeconds = 366 * 24 * 60 * 60

// Document is the on-disk project format shared by the JSON and YAML
// encodings. Durations are whole seconds, at most MaxDurationSeconds.
type Document struct {
	Version  string      `json:"version,omitempty" yaml:"version,omitempty" validate:"omitempty,doc_version"`
	Name     string      `json:"name,omitempty" yaml:"name,omitempty"`
	Settings SettingsDoc `json:"settings" yaml:"settings"`
	Nodes    []NodeDoc   `json:"nodes" yaml:"nodes" validate:"dive"`
	Edges    []EdgeDoc   `json:"edges" yaml:"edges" validate:"dive"`
}

// SettingsDoc holds the global build settings.
type SettingsDoc struct {
	BuildDir        string `json:"buildDir,omitempty" yaml:"buildDir,omitempty"`
	InstallDir      string `json:"installDir,omitempty" yaml:"installDir,omitempty"`
	BuildType       string `json:"buildType,omitempty" yaml:"buildType,omitempty" validate:"omitempty,oneof=Debug Release RelWithDebInfo MinSizeRel"`
	PrefixPath      string `json:"prefixPath,omitempty" yaml:"prefixPath,omitempty"`
	ToolchainFile   string `json:"toolchainFile,omitempty" yaml:"toolchainFile,omitempty"`
	Generator       string `json:"generator,omitempty" yaml:"generator,omitempty"`
	CCompiler       string `json:"cCompiler,omitempty" yaml:"cCompiler,omitempty"`
	CXXCompiler     string `json:"cxxCompiler,omitempty" yaml:"cxxCompiler,omitempty"`
	Tool            string `json:"tool,omitempty" yaml:"tool,omitempty"`
	DescriptionFile string `json:"descriptionFile,omitempty" yaml:"descriptionFile,omitempty"`
	SkipInstall     bool   `json:"skipInstall,omitempty" yaml:"skipInstall,omitempty"`
	Concurrency     int    `json:"concurrency,omitempty" yaml:"concurrency,omitempty" validate:"gte=0,lte=256"`
	NodeTimeout     int    `json:"nodeTimeout,omitempty" yaml:"nodeTimeout,omitempty" validate:"gte=0,lte=31622400"`
	RunTimeout      int    `json:"runTimeout,omitempty" yaml:"runTimeout,omitempty" validate:"gte=0,lte=31622400"`
	GracePeriod     int    `json:"gracePeriod,omitempty" yaml:"gracePeriod,omitempty" validate:"gte=0,lte=31622400"`
	StartNodeID     string `json:"startNodeId,omitempty" yaml:"startNodeId,omitempty"`
}

// NodeDoc is one node entry.
type NodeDoc struct {
	ID                string   `json:"id" yaml:"id" validate:"required,node_id"`
	Name              string   `json:"name" yaml:"name" validate:"required"`
	Options           []string `json:"options" yaml:"options" validate:"dive,required"`
	ProjectPath       string   `json:"projectPath" yaml:"projectPath"`
	PreBuildScript    string   `json:"preBuildScript,omitempty" yaml:"preBuildScript,omitempty"`
	PostInstallScript string   `json:"postInstallScript,omitempty" yaml:"postInstallScript,omitempty"`
	Timeout           int      `json:"timeout,omitempty" yaml:"timeout,omitempty" validate:"gte=0,lte=31622400"`
}

// EdgeDoc is one dependency entry: ToID depends on FromID.
type EdgeDoc struct {
	FromID string `json:"fromId" yaml:"fromId" validate:"required"`
	ToID   string `json:"toId" yaml:"toId" validate:"required"`
}

// ToProject converts the document into a domain project. Every structural
// problem of the graph is reported together; no partial project is returned.
func (d *Document) ToProject() (*graph.Project, error) {
	nodes := make([]graph.Node, 0, len(d.Nodes))
	for _, n := range d.Nodes {
		nodes = append(nodes, graph.Node{
			ID:                n.ID,
			Name:              n.Name,
			ProjectPath:       n.ProjectPath,
			Options:           append([]string(nil), n.Options...),
			PreBuildScript:    n.PreBuildScript,
			PostInstallScript: n.PostInstallScript,
			Timeout:           seconds(n.Timeout),
		})
	}
	edges := make([]graph.Edge, 0, len(d.Edges))
	for _, e := range d.Edges {
		edges = append(edges, graph.Edge{From: e.FromID, To: e.ToID})
	}

	g := graph.Assemble(nodes, edges)
	if problems := g.Validate(); len(problems) > 0 {
		return nil, &graph.DomainError{
			Code:    graph.ErrCodeValidation,
			Message: "invalid project graph",
			Cause:   multierr.Combine(problems...),
			Context: map[string]interface{}{"problems": len(problems)},
		}
	}

	s := d.Settings
	return &graph.Project{
		Version: d.Version,
		Name:    d.Name,
		Graph:   g,
		Settings: graph.Settings{
			BuildDir:        s.BuildDir,
			InstallDir:      s.InstallDir,
			BuildType:       s.BuildType,
			PrefixPath:      s.PrefixPath,
			ToolchainFile:   s.ToolchainFile,
			Generator:       s.Generator,
			CCompiler:       s.CCompiler,
			CXXCompiler:     s.CXXCompiler,
			Tool:            s.Tool,
			DescriptionFile: s.DescriptionFile,
			SkipInstall:     s.SkipInstall,
			Concurrency:     s.Concurrency,
			NodeTimeout:     seconds(s.NodeTimeout),
			RunTimeout:      seconds(s.RunTimeout),
			GracePeriod:     seconds(s.GracePeriod),
			StartNodeID:     s.StartNodeID,
		},
	}, nil
}

// FromProject converts a domain project into its document form. Durations
// that are not whole seconds or exceed MaxDurationSeconds cannot be
// represented and are rejected rather than rounded.
func FromProject(p *graph.Project) (*Document, error) {
	doc := &Document{Version: p.Version, Name: p.Name}
	if doc.Version == "" {
		doc.Version = DocumentVersion
	}
	var errs error
	field := func(name string, d time.Duration) int {
		n, err := wholeSeconds(name, d)
		errs = multierr.Append(errs, err)
		return n
	}

	s := p.Settings
	doc.Settings = SettingsDoc{
		BuildDir:        s.BuildDir,
		InstallDir:      s.InstallDir,
		BuildType:       s.BuildType,
		PrefixPath:      s.PrefixPath,
		ToolchainFile:   s.ToolchainFile,
		Generator:       s.Generator,
		CCompiler:       s.CCompiler,
		CXXCompiler:     s.CXXCompiler,
		Tool:            s.Tool,
		DescriptionFile: s.DescriptionFile,
		SkipInstall:     s.SkipInstall,
		Concurrency:     s.Concurrency,
		NodeTimeout:     field("settings.nodeTimeout", s.NodeTimeout),
		RunTimeout:      field("settings.runTimeout", s.RunTimeout),
		GracePeriod:     field("settings.gracePeriod", s.GracePeriod),
		StartNodeID:     s.StartNodeID,
	}
	if p.Graph != nil {
		for i, n := range p.Graph.Nodes() {
			doc.Nodes = append(doc.Nodes, NodeDoc{
				ID:                n.ID,
				Name:              n.Name,
				Options:           n.Options,
				ProjectPath:       n.ProjectPath,
				PreBuildScript:    n.PreBuildScript,
				PostInstallScript: n.PostInstallScript,
				Timeout:           field(fmt.Sprintf("nodes[%d].timeout", i), n.Timeout),
			})
		}
		for _, e := range p.Graph.Edges() {
			doc.Edges = append(doc.Edges, EdgeDoc{FromID: e.From, ToID: e.To})
		}
	}
	if errs != nil {
		return nil, errs
	}
	return doc, nil
}

func wholeSeconds(field string, d time.Duration) (int, error) {
	switch {
	case d < 0:
		return 0, domainError(graph.ErrCodeValidation, "duration must not be negative", nil, map[string]interface{}{
			"field": field,
			"value": d.String(),
		})
	case d%time.Second != 0:
		return 0, domainError(graph.ErrCodeValidation, "duration must be a whole number of seconds", nil, map[string]interface{}{
			"field": field,
			"value": d.String(),
		})
	case d > MaxDurationSeconds*time.Second:
		return 0, domainError(graph.ErrCodeValidation, "duration exceeds the maximum", nil, map[string]interface{}{
			"field": field,
			"value": d.String(),
		})
	}
	return int(d / time.Second), nil
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
