package engine

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alexisbeaulieu97/buildgraph/internal/domain/build"
	"github.com/alexisbeaulieu97/buildgraph/internal/domain/graph"
)

func TestCommandPlannerFullSequence(t *testing.T) {
	base := filepath.FromSlash("/work")
	node := graph.Node{
		ID:                "n1",
		Name:              "my lib",
		ProjectPath:       "libs/mylib",
		Options:           []string{"-DBUILD_TESTING=OFF"},
		PreBuildScript:    "./bootstrap.sh",
		PostInstallScript: "echo done",
	}
	settings := graph.Settings{
		BuildDir:      "out",
		InstallDir:    filepath.FromSlash("/opt/install"),
		BuildType:     "Release",
		Generator:     "Ninja",
		ToolchainFile: "cmake/tc.cmake",
		PrefixPath:    "/opt/deps",
		CCompiler:     "clang",
		CXXCompiler:   "clang++",
		NodeTimeout:   time.Minute,
	}

	job := CommandPlanner{BaseDir: base}.Job("run-1", node, settings)

	projectDir := filepath.Join(base, "libs/mylib")
	buildDir := filepath.Join(base, "out", "my_lib", "Release")
	installDir := filepath.Join(filepath.FromSlash("/opt/install"), "Release")

	require.Equal(t, "run-1", job.RunID)
	require.Equal(t, projectDir, job.ProjectDir)
	require.Equal(t, "CMakeLists.txt", job.DescriptionFile)
	require.Equal(t, "cmake", job.Tool)
	require.Equal(t, []string{buildDir, installDir}, job.MakeDirs)
	require.Equal(t, time.Minute, job.Timeout)
	require.Equal(t, graph.DefaultGracePeriod, job.GracePeriod)

	kinds := make([]build.StepKind, 0, len(job.Steps))
	for _, s := range job.Steps {
		kinds = append(kinds, s.Kind)
		require.Equal(t, projectDir, s.Dir)
	}
	require.Equal(t, []build.StepKind{
		build.StepPreBuild, build.StepConfigure, build.StepBuild, build.StepInstall, build.StepPostInstall,
	}, kinds)

	require.Equal(t, "./bootstrap.sh", job.Steps[0].Script)
	require.Equal(t, []string{
		"-S", projectDir,
		"-B", buildDir,
		"-G", "Ninja",
		"-DCMAKE_BUILD_TYPE=Release",
		"-DCMAKE_INSTALL_PREFIX=" + installDir,
		"-DCMAKE_TOOLCHAIN_FILE=" + filepath.Join(base, "cmake/tc.cmake"),
		"-DCMAKE_PREFIX_PATH=/opt/deps",
		"-DCMAKE_C_COMPILER=clang",
		"-DCMAKE_CXX_COMPILER=clang++",
		"-DBUILD_TESTING=OFF",
	}, job.Steps[1].Args)
	require.Equal(t, []string{"--build", buildDir, "--config", "Release"}, job.Steps[2].Args)
	require.Equal(t, []string{"--install", buildDir, "--config", "Release"}, job.Steps[3].Args)
	require.Contains(t, job.Steps[4].Env, "BUILDGRAPH_INSTALL_DIR="+installDir)
}

func TestCommandPlannerMinimal(t *testing.T) {
	node := graph.Node{ID: "n1", Name: "core", ProjectPath: "/src/core", Timeout: 5 * time.Second}
	job := CommandPlanner{}.Job("r", node, graph.Settings{SkipInstall: true, NodeTimeout: time.Hour})

	require.Len(t, job.Steps, 2)
	require.Equal(t, build.StepConfigure, job.Steps[0].Kind)
	require.Equal(t, build.StepBuild, job.Steps[1].Kind)
	require.NotContains(t, job.Steps[0].Args, "-G")
	require.Equal(t, 5*time.Second, job.Timeout)
	require.Equal(t, filepath.Join("build", "core", "Debug"), job.MakeDirs[0])
}
