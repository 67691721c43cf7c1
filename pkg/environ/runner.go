package environ

import (
	"bytes"
	"context"
	"os"
	"os/exec"
)

// Runner executes external commands with a deliberately minimal
// environment: PATH always, GRAFT_ENVIRONMENT when the runner carries a
// payload environment tag, and nothing else from the parent process.
// Standard input is always the null device.
type Runner struct {
	// Environment is exported to children as GRAFT_ENVIRONMENT when
	// non-empty.
	Environment string
}

// EnvironmentVar is the single variable payloads see beyond PATH.
const EnvironmentVar = "GRAFT_ENVIRONMENT"

func (r *Runner) env(extra []string) []string {
	env := []string{"PATH=" + os.Getenv("PATH")}
	if r.Environment != "" {
		env = append(env, EnvironmentVar+"="+r.Environment)
	}
	return append(env, extra...)
}

func (r *Runner) command(ctx context.Context, dir string, argv []string, extra []string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = dir
	cmd.Env = r.env(extra)
	return cmd
}

// Output runs argv and captures combined stdout and stderr, for commands
// whose output matters only when they fail. Returns the captured output,
// the exit status, and an error for failures other than a non-zero exit.
func (r *Runner) Output(ctx context.Context, dir string, argv []string, extra ...string) (string, int, error) {
	cmd := r.command(ctx, dir, argv, extra)
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	err := cmd.Run()
	return buf.String(), exitCode(err), startError(err)
}

// Stream runs argv with stdout and stderr passed through live, for
// commands whose output belongs on the operator's console.
func (r *Runner) Stream(ctx context.Context, dir string, argv []string, extra ...string) (int, error) {
	cmd := r.command(ctx, dir, argv, extra)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	err := cmd.Run()
	return exitCode(err), startError(err)
}

// exitCode extracts the child's exit status. 0 on success, -1 when the
// command never ran.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		return exitErr.ExitCode()
	}
	return -1
}

// startError filters out plain non-zero exits: callers inspect the exit
// code for those and only need an error when the command could not run.
func startError(err error) error {
	if _, ok := err.(*exec.ExitError); ok {
		return nil
	}
	return err
}
