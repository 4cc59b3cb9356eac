package editor

import (
	"context"
	"errors"
	"os"
	"os/exec"
)

// Process is a running editor.
type Process interface {
	// Wait blocks until the editor exits.
	Wait() error

	// Kill terminates the editor.
	Kill() error
}

// Launcher starts editor processes.
type Launcher interface {
	Launch(ctx context.Context, argv []string) (Process, error)
}

// ExecLauncher starts editors with os/exec. When Attach is set the editor
// inherits the terminal, which terminal editors such as vi need.
type ExecLauncher struct {
	Attach bool
}

// Launch starts argv. ctx only bounds the start; the editor outlives it.
func (l ExecLauncher) Launch(ctx context.Context, argv []string) (Process, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if len(argv) == 0 {
		return nil, errors.New("empty command")
	}

	cmd := exec.Command(argv[0], argv[1:]...) //nolint:gosec // the editor command is user configuration

	if l.Attach {
		cmd.Stdin = os.Stdin
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
	}

	if err := cmd.Start(); err != nil {
		return nil, err
	}

	return &execProcess{cmd: cmd}, nil
}

type execProcess struct {
	cmd *exec.Cmd
}

func (p *execProcess) Wait() error {
	return p.cmd.Wait()
}

func (p *execProcess) Kill() error {
	err := p.cmd.Process.Kill()
	if errors.Is(err, os.ErrProcessDone) {
		return nil
	}

	return err
}
