package delivery

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

var (
	ErrMechanismFailed        = errors.New("mechanism failed")
	ErrAllMechanismsExhausted = errors.New("all delivery mechanisms exhausted")
)

// Mechanism is one OS-level way of submitting a document to the default printer.
type Mechanism interface {
	Name() string
	Submit(ctx context.Context, src *Source) error
}

// Viewer opens a file with the platform's default application for manual printing.
type Viewer interface {
	Name() string
	Open(ctx context.Context, path string) error
}

// Runner executes an external command and returns its combined output.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &out
	cmd.Stderr = &out
	err := cmd.Run()
	return out.Bytes(), err
}

// Probe confirms a printer exists before submitting.
type Probe struct {
	Argv  []string
	Check func(out []byte) bool
}

// CommandMechanism submits one artifact format with an external command.
type CommandMechanism struct {
	Label  string
	Format Format
	Probe  *Probe
	Argv   func(path string) []string
	Runner Runner
}

func (m *CommandMechanism) Name() string { return m.Label }

func (m *CommandMechanism) Submit(ctx context.Context, src *Source) error {
	if m.Probe != nil {
		out, err := m.Runner.Run(ctx, m.Probe.Argv[0], m.Probe.Argv[1:]...)
		if err != nil {
			return fmt.Errorf("%w: %s: probe: %v", ErrMechanismFailed, m.Label, err)
		}
		if m.Probe.Check != nil && !m.Probe.Check(out) {
			return fmt.Errorf("%w: %s: no default printer (%s)", ErrMechanismFailed, m.Label, strings.TrimSpace(string(out)))
		}
	}

	path, err := src.Path(ctx, m.Format)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMechanismFailed, m.Label, err)
	}
	argv := m.Argv(path)
	if out, err := m.Runner.Run(ctx, argv[0], argv[1:]...); err != nil {
		return fmt.Errorf("%w: %s: %v: %s", ErrMechanismFailed, m.Label, err, strings.TrimSpace(string(out)))
	}
	return nil
}

// CommandViewer opens files with an external command.
type CommandViewer struct {
	Label  string
	Argv   func(path string) []string
	Runner Runner
}

func (v *CommandViewer) Name() string { return v.Label }

func (v *CommandViewer) Open(ctx context.Context, path string) error {
	argv := v.Argv(path)
	if out, err := v.Runner.Run(ctx, argv[0], argv[1:]...); err != nil {
		return fmt.Errorf("%s: %v: %s", v.Label, err, strings.TrimSpace(string(out)))
	}
	return nil
}
