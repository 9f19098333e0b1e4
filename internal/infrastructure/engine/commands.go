package engine

import (
	"path/filepath"
	"strings"

	"github.com/alexisbeaulieu97/buildgraph/internal/domain/build"
	"github.com/alexisbeaulieu97/buildgraph/internal/domain/graph"
)

// CommandPlanner turns a node and the project settings into the concrete
// step sequence a runner executes. Relative paths resolve against BaseDir,
// normally the directory holding the project document.
type CommandPlanner struct {
	BaseDir string
}

// Job builds the runner input for n. Each node builds into
// <buildDir>/<name>/<buildType> and installs into <installDir>/<buildType>.
func (p CommandPlanner) Job(runID string, n graph.Node, s graph.Settings) build.Job {
	s = s.ApplyDefaults()
	projectDir := p.resolve(n.ProjectPath)
	buildDir := filepath.Join(p.resolve(s.BuildDir), dirName(n), s.BuildType)
	installDir := filepath.Join(p.resolve(s.InstallDir), s.BuildType)

	env := []string{
		"BUILDGRAPH_NODE_ID=" + n.ID,
		"BUILDGRAPH_NODE_NAME=" + n.DisplayName(),
		"BUILDGRAPH_BUILD_TYPE=" + s.BuildType,
		"BUILDGRAPH_BUILD_DIR=" + buildDir,
		"BUILDGRAPH_INSTALL_DIR=" + installDir,
	}

	var steps []build.StepSpec
	if n.PreBuildScript != "" {
		steps = append(steps, build.StepSpec{Kind: build.StepPreBuild, Script: n.PreBuildScript, Dir: projectDir, Env: env})
	}

	configure := []string{"-S", projectDir, "-B", buildDir}
	if s.Generator != "" {
		configure = append(configure, "-G", s.Generator)
	}
	configure = append(configure,
		"-DCMAKE_BUILD_TYPE="+s.BuildType,
		"-DCMAKE_INSTALL_PREFIX="+installDir,
	)
	if s.ToolchainFile != "" {
		configure = append(configure, "-DCMAKE_TOOLCHAIN_FILE="+p.resolve(s.ToolchainFile))
	}
	if s.PrefixPath != "" {
		configure = append(configure, "-DCMAKE_PREFIX_PATH="+s.PrefixPath)
	}
	if s.CCompiler != "" {
		configure = append(configure, "-DCMAKE_C_COMPILER="+s.CCompiler)
	}
	if s.CXXCompiler != "" {
		configure = append(configure, "-DCMAKE_CXX_COMPILER="+s.CXXCompiler)
	}
	configure = append(configure, n.Options...)

	steps = append(steps,
		build.StepSpec{Kind: build.StepConfigure, Program: s.Tool, Args: configure, Dir: projectDir, Env: env},
		build.StepSpec{Kind: build.StepBuild, Program: s.Tool, Args: []string{"--build", buildDir, "--config", s.BuildType}, Dir: projectDir, Env: env},
	)
	if !s.SkipInstall {
		steps = append(steps, build.StepSpec{Kind: build.StepInstall, Program: s.Tool, Args: []string{"--install", buildDir, "--config", s.BuildType}, Dir: projectDir, Env: env})
	}
	if n.PostInstallScript != "" {
		steps = append(steps, build.StepSpec{Kind: build.StepPostInstall, Script: n.PostInstallScript, Dir: projectDir, Env: env})
	}

	timeout := n.Timeout
	if timeout == 0 {
		timeout = s.NodeTimeout
	}

	return build.Job{
		RunID:           runID,
		NodeID:          n.ID,
		Name:            n.DisplayName(),
		ProjectDir:      projectDir,
		DescriptionFile: s.DescriptionFile,
		Tool:            s.Tool,
		MakeDirs:        []string{buildDir, installDir},
		Steps:           steps,
		Timeout:         timeout,
		GracePeriod:     s.GracePeriod,
	}
}

func (p CommandPlanner) resolve(path string) string {
	if path == "" || filepath.IsAbs(path) || p.BaseDir == "" {
		return path
	}
	return filepath.Join(p.BaseDir, path)
}

func dirName(n graph.Node) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', ' ':
			return '_'
		}
		return r
	}, n.DisplayName())
	if name == "" || name == "." || name == ".." {
		return n.ID
	}
	return name
}

// ProjectDir is the source directory a node is built from.
func (p CommandPlanner) ProjectDir(n graph.Node) string {
	return p.resolve(n.ProjectPath)
}
