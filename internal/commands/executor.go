package commands

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/erg0nix/recall/internal/remember"
)

const maxOutputBytes = 128 * 1024

// Executor runs registry commands as child processes. It is safe for reuse
// across calls.
type Executor struct {
	Registry *Registry
	// WorkDir is where "project" commands run and is exported as RECALL_WORKDIR.
	WorkDir string
}

// Execute runs cmd and reports a failed Outcome for unknown commands, bad
// arguments, non-zero exits and timeouts. Only a missing interpreter is
// returned as an error, since every following command would fail the same way.
func (e *Executor) Execute(ctx context.Context, req remember.Command) (remember.Outcome, error) {
	cmd, ok := e.Registry.Get(req.Name)
	if !ok {
		return remember.Outcome{Output: fmt.Sprintf("command not found: %s", req.Name)}, nil
	}

	resolvedArgs, err := cmd.bind(req.Args)
	if err != nil {
		return remember.Outcome{Output: err.Error()}, nil
	}

	interpreter, script := interpreterAndScript(cmd)

	execCtx, cancel := context.WithTimeout(ctx, time.Duration(cmd.Timeout)*time.Second)
	defer cancel()

	execCmd := exec.CommandContext(execCtx, interpreter, script)
	execCmd.Dir = e.resolveWorkDir(cmd)
	execCmd.Env = e.buildEnv(cmd, resolvedArgs, req.Args)
	execCmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	execCmd.Cancel = func() error {
		return syscall.Kill(-execCmd.Process.Pid, syscall.SIGKILL)
	}
	execCmd.WaitDelay = 2 * time.Second

	var output bytes.Buffer
	execCmd.Stdout = &output
	execCmd.Stderr = &output

	err = execCmd.Run()

	result := output.Bytes()
	if len(result) > maxOutputBytes {
		result = result[:maxOutputBytes]
	}

	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return remember.Outcome{}, fmt.Errorf("command %q: %w", req.Name, err)
		}
		if errors.Is(execCtx.Err(), context.DeadlineExceeded) {
			return remember.Outcome{Output: fmt.Sprintf("command %q timed out after %ds\n%s", req.Name, cmd.Timeout, result)}, nil
		}
		return remember.Outcome{Output: fmt.Sprintf("command %q failed: %v\n%s", req.Name, err, result)}, nil
	}

	return remember.Outcome{Success: true, Output: string(result)}, nil
}

var allowedEnvKeys = []string{"PATH", "HOME", "USER", "SHELL", "TMPDIR", "LANG", "TERM"}

func (e *Executor) buildEnv(cmd *Command, resolvedArgs map[string]string, words []string) []string {
	var env []string
	for _, key := range allowedEnvKeys {
		if val, ok := os.LookupEnv(key); ok {
			env = append(env, key+"="+val)
		}
	}

	env = append(env, "RECALL_COMMAND_DIR="+cmd.Dir)
	env = append(env, "RECALL_ARGS="+strings.Join(words, " "))

	if e.WorkDir != "" {
		env = append(env, "RECALL_WORKDIR="+e.WorkDir)
	}

	for name, value := range resolvedArgs {
		envName := "RECALL_ARG_" + strings.ToUpper(name)
		env = append(env, envName+"="+value)
	}

	return env
}

func interpreterAndScript(cmd *Command) (string, string) {
	switch cmd.Runtime {
	case "python":
		venvPython := filepath.Join(cmd.Dir, ".venv", "bin", "python")
		if _, err := os.Stat(venvPython); err == nil {
			return venvPython, cmd.ScriptPath
		}
		return "python3", cmd.ScriptPath
	default:
		return "bash", cmd.ScriptPath
	}
}

func (e *Executor) resolveWorkDir(cmd *Command) string {
	if cmd.WorkingDir == WorkDirProject && e.WorkDir != "" {
		return e.WorkDir
	}
	return cmd.Dir
}
