package runner

import (
	"context"
	"strings"
)

// EnvironmentFunc yields NAME=value pairs added to the environment of every
// child, after the runner's own environment and before step variables.
type EnvironmentFunc func(ctx context.Context) ([]string, error)

// WithEnvironment installs fn. It runs once, before the first step of the
// first job; a failure is logged and the children run without the extra
// variables.
func WithEnvironment(fn EnvironmentFunc) Option {
	return func(r *ProcessRunner) {
		r.environment = fn
	}
}

func (r *ProcessRunner) extraEnvironment(ctx context.Context) []string {
	if r.environment == nil {
		return nil
	}
	r.envOnce.Do(func() {
		env, err := r.environment(context.WithoutCancel(ctx))
		if err != nil {
			r.logger.Warn(ctx, "failed to prepare build environment", "error", err)
			return
		}
		r.env = env
		if len(env) > 0 {
			r.logger.Info(ctx, "build environment prepared", "variables", len(env))
		}
	})
	return r.env
}

// parseEnvironment reads the NAME=value listing printed by `set` or `env`.
func parseEnvironment(out string) []string {
	var env []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimRight(line, "\r")
		key, _, ok := strings.Cut(line, "=")
		if !ok || strings.TrimSpace(key) == "" {
			continue
		}
		env = append(env, line)
	}
	return env
}
