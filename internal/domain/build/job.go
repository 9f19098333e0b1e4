package build

import (
	"strings"
	"time"
)

// StepKind names one stage of a node build.
type StepKind string

const (
	StepPreBuild    StepKind = "pre_build"
	StepConfigure   StepKind = "configure"
	StepBuild       StepKind = "build"
	StepInstall     StepKind = "install"
	StepPostInstall StepKind = "post_install"
)

// StepSpec describes one child process. When Script is set the step runs
// through the platform shell and Program/Args are ignored.
type StepSpec struct {
	Kind    StepKind
	Program string
	Args    []string
	Script  string
	Dir     string
	Env     []string
}

// CommandLine renders the step for display.
func (s StepSpec) CommandLine() string {
	if s.Script != "" {
		return s.Script
	}
	parts := append([]string{s.Program}, s.Args...)
	return strings.Join(parts, " ")
}

// Job is everything a step runner needs to build one node.
type Job struct {
	RunID           string
	NodeID          string
	Name            string
	ProjectDir      string
	DescriptionFile string
	Tool            string
	MakeDirs        []string
	Steps           []StepSpec
	Timeout         time.Duration
	GracePeriod     time.Duration
}

// Outcome is the aggregate result a step runner reports for a job.
type Outcome struct {
	Status   NodeStatus
	Message  string
	Step     StepKind
	ExitCode int
}

// Succeeded builds a successful outcome.
func Succeeded() Outcome {
	return Outcome{Status: StatusSucceeded}
}

// Failed builds a failure outcome for step.
func Failed(step StepKind, exitCode int, message string) Outcome {
	return Outcome{Status: StatusFailed, Step: step, ExitCode: exitCode, Message: message}
}
