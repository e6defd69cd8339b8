package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Exe runs an external program to completion and captures its output.
type Exe struct {
	name string
}

func NewExe(name string) *Exe {
	return &Exe{name: name}
}

func (e *Exe) Name() string { return e.name }

// ExitError is returned when the program ran but exited with a non-zero status.
// Failures to start the program are returned as plain errors.
type ExitError struct {
	Cmd    []string
	Status int
	Stderr string
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("`%s` exit %d: %s", strings.Join(e.Cmd, " "), e.Status, strings.TrimSpace(e.Stderr))
}

// Command returns the full argv for a run of this program.
func (e *Exe) Command(args ...string) []string {
	return append([]string{e.name}, args...)
}

// Run executes the program and returns its stdout.
func (e *Exe) Run(ctx context.Context, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, e.name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	log.Debug().Str("bin", e.name).Strs("args", args).Msg("running command")
	start := time.Now()
	err := cmd.Run()
	dur := time.Since(start)

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return stdout.Bytes(), &ExitError{
				Cmd:    e.Command(args...),
				Status: exitErr.ExitCode(),
				Stderr: stderr.String(),
			}
		}
		return nil, fmt.Errorf("run %s: %w", e.name, err)
	}

	log.Debug().Str("bin", e.name).Dur("duration", dur).Msg("command completed")
	return stdout.Bytes(), nil
}

// LookPath reports whether the program can be found.
func (e *Exe) LookPath() error {
	if _, err := exec.LookPath(e.name); err != nil {
		return fmt.Errorf("%s binary not found: %w", e.name, err)
	}
	return nil
}
