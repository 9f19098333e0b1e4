package graph

import "time"

const (
	DefaultBuildType       = "Debug"
	DefaultTool            = "cmake"
	DefaultDescriptionFile = "CMakeLists.txt"
	DefaultConcurrency     = 1
	DefaultGracePeriod     = 10 * time.Second
)

// Settings captures the global build parameters shared by every node.
type Settings struct {
	BuildDir        string
	InstallDir      string
	BuildType       string
	PrefixPath      string
	ToolchainFile   string
	Generator       string
	CCompiler       string
	CXXCompiler     string
	Tool            string
	DescriptionFile string
	SkipInstall     bool
	Concurrency     int
	NodeTimeout     time.Duration
	RunTimeout      time.Duration
	GracePeriod     time.Duration
	StartNodeID     string
}

// ApplyDefaults fills unset fields with supported defaults.
func (s Settings) ApplyDefaults() Settings {
	if s.BuildDir == "" {
		s.BuildDir = "build"
	}
	if s.InstallDir == "" {
		s.InstallDir = "install"
	}
	if s.BuildType == "" {
		s.BuildType = DefaultBuildType
	}
	if s.Tool == "" {
		s.Tool = DefaultTool
	}
	if s.DescriptionFile == "" {
		s.DescriptionFile = DefaultDescriptionFile
	}
	if s.Concurrency <= 0 {
		s.Concurrency = DefaultConcurrency
	}
	if s.GracePeriod <= 0 {
		s.GracePeriod = DefaultGracePeriod
	}
	if s.NodeTimeout < 0 {
		s.NodeTimeout = 0
	}
	if s.RunTimeout < 0 {
		s.RunTimeout = 0
	}
	return s
}

// Project pairs a graph with the settings it is built with.
type Project struct {
	Version  string
	Name     string
	Settings Settings
	Graph    *Graph
}
