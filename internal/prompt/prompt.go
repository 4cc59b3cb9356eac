// Package prompt provides interactive prompts for muon commands.
package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"

	"github.com/muon-ssh/muon/internal/output"
)

// errCanceled is returned when input ends before an answer is given.
var errCanceled = errors.New("prompt canceled")

// IsCanceled reports whether err came from input ending mid-prompt.
func IsCanceled(err error) bool {
	return errors.Is(err, errCanceled)
}

// Prompter handles interactive prompts.
type Prompter struct {
	out    *output.Writer
	reader *bufio.Reader
	tty    func() bool
}

// New creates a Prompter reading from stdin.
func New(out *output.Writer) *Prompter {
	return NewWithInput(out, os.Stdin, func() bool { return term.IsTerminal(int(os.Stdin.Fd())) })
}

// NewWithInput creates a Prompter reading from in. isTTY reports whether in
// is interactive.
func NewWithInput(out *output.Writer, in io.Reader, isTTY func() bool) *Prompter {
	return &Prompter{out: out, reader: bufio.NewReader(in), tty: isTTY}
}

// CanPrompt returns true if interactive prompts are available.
func (p *Prompter) CanPrompt() bool {
	return p.tty() && !p.out.NoInput
}

func (p *Prompter) readLine() (string, error) {
	input, err := p.reader.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && strings.TrimSpace(input) == "" {
			return "", errCanceled
		}

		if !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("failed to read input: %w", err)
		}
	}

	return strings.TrimSpace(input), nil
}

// Confirm prompts for a yes/no confirmation.
func (p *Prompter) Confirm(message string, defaultValue bool) (bool, error) {
	defaultStr := "y/N"
	if defaultValue {
		defaultStr = "Y/n"
	}

	p.out.Print("%s [%s]: ", message, defaultStr)

	input, err := p.readLine()
	if err != nil {
		return defaultValue, err
	}

	switch strings.ToLower(input) {
	case "":
		return defaultValue, nil
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

// Line prompts for a single line of text. Empty answers are re-asked.
func (p *Prompter) Line(message string) (string, error) {
	for {
		p.out.Print("%s: ", message)

		input, err := p.readLine()
		if err != nil {
			return "", err
		}

		if input != "" {
			return input, nil
		}
	}
}

// Select prompts the user to select from a list of options.
func (p *Prompter) Select(message string, options []string) (int, error) {
	p.out.Println(message)

	for i, opt := range options {
		p.out.Print("  [%d] %s\n", i+1, opt)
	}

	p.out.Println()

	for {
		p.out.Print("Select [1-%d]: ", len(options))

		input, err := p.readLine()
		if err != nil {
			return -1, err
		}

		if input == "" {
			continue
		}

		num, err := strconv.Atoi(input)
		if err != nil || num < 1 || num > len(options) {
			p.out.Warning("Invalid selection. Please enter a number between 1 and %d", len(options))
			continue
		}

		return num - 1, nil
	}
}
