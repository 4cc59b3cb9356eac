// Package doctor provides diagnostic checks for muon's local setup.
//
// This package implements a check framework that validates:
//   - the configuration directory exists and is writable
//   - the settings, pinned-log and snippet documents load cleanly
//   - the configured external editor can be found
//   - the build version
package doctor

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"

	"github.com/Masterminds/semver/v3"

	"github.com/muon-ssh/muon/internal/buildinfo"
	"github.com/muon-ssh/muon/internal/paths"
	"github.com/muon-ssh/muon/internal/pinned"
	"github.com/muon-ssh/muon/internal/settings"
	"github.com/muon-ssh/muon/internal/snippet"
	"github.com/muon-ssh/muon/internal/store"
)

// Status represents the result of a diagnostic check.
type Status int

const (
	// StatusPass indicates the check passed.
	StatusPass Status = iota
	// StatusWarn indicates a non-critical issue.
	StatusWarn
	// StatusFail indicates a critical failure.
	StatusFail
)

// Result holds the outcome of a single check.
type Result struct {
	Name    string `json:"name"`
	Status  Status `json:"status"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"` // Optional additional detail
}

// Check is a diagnostic check function.
type Check func(ctx context.Context) Result

// Runner executes diagnostic checks.
type Runner struct {
	checks []namedCheck
}

type namedCheck struct {
	name  string
	check Check
}

// New creates a new diagnostic runner.
func New() *Runner {
	r := &Runner{}

	// Register default checks
	r.AddCheck("Config Directory", checkConfigDir)
	r.AddCheck("Settings", checkSettings)
	r.AddCheck("Pinned Logs", checkPinnedLogs)
	r.AddCheck("Snippets", checkSnippets)
	r.AddCheck("External Editor", checkEditor)
	r.AddCheck("CLI Version", checkCLIVersion)

	return r
}

// AddCheck registers a diagnostic check.
func (r *Runner) AddCheck(name string, check Check) {
	r.checks = append(r.checks, namedCheck{name: name, check: check})
}

// Run executes all registered checks and returns the results.
func (r *Runner) Run(ctx context.Context) []Result {
	results := make([]Result, 0, len(r.checks))

	for _, nc := range r.checks {
		if err := ctx.Err(); err != nil {
			results = append(results, Result{Name: nc.name, Status: StatusFail, Message: "Skipped", Detail: err.Error()})
			continue
		}

		result := nc.check(ctx)
		result.Name = nc.name
		results = append(results, result)
	}

	return results
}

// Summary returns counts of passed, failed, and warning checks.
func Summary(results []Result) (passed, failed, warnings int) {
	for _, r := range results {
		switch r.Status {
		case StatusPass:
			passed++
		case StatusFail:
			failed++
		case StatusWarn:
			warnings++
		}
	}

	return passed, failed, warnings
}

var discard = slog.New(slog.DiscardHandler)

// checkConfigDir verifies the configuration root exists and is writable.
func checkConfigDir(_ context.Context) Result {
	root, err := paths.ConfigRoot()
	if err != nil {
		return Result{Status: StatusFail, Message: "Cannot resolve", Detail: err.Error()}
	}

	info, err := os.Stat(root)
	if errors.Is(err, fs.ErrNotExist) {
		return Result{
			Status:  StatusWarn,
			Message: fmt.Sprintf("%s (not created yet)", root),
			Detail:  "It is created on the first run of 'muon ui'",
		}
	}

	if err != nil {
		return Result{Status: StatusFail, Message: root, Detail: err.Error()}
	}

	if !info.IsDir() {
		return Result{Status: StatusFail, Message: root, Detail: "exists but is not a directory"}
	}

	if err := writable(root); err != nil {
		return Result{Status: StatusFail, Message: fmt.Sprintf("%s (not writable)", root), Detail: err.Error()}
	}

	return Result{Status: StatusPass, Message: root}
}

func loadResult(path string, warning error) Result {
	if warning == nil {
		return Result{Status: StatusPass, Message: path}
	}

	if errors.Is(warning, store.ErrCorrupt) {
		return Result{
			Status:  StatusFail,
			Message: fmt.Sprintf("%s (unreadable, defaults in use)", path),
			Detail:  warning.Error(),
		}
	}

	return Result{Status: StatusWarn, Message: path, Detail: warning.Error()}
}

// checkSettings loads the settings document and validates it.
func checkSettings(_ context.Context) Result {
	path, err := paths.SettingsFile()
	if err != nil {
		return Result{Status: StatusFail, Message: "Cannot resolve", Detail: err.Error()}
	}

	s, warning := settings.Open(path, discard)
	if warning != nil {
		return loadResult(path, warning)
	}

	current := s.Get()
	if err := current.Validate(); err != nil {
		return Result{Status: StatusWarn, Message: path, Detail: err.Error()}
	}

	if newer, ok := writtenByNewer(current.WrittenBy, buildinfo.Version); ok {
		return Result{
			Status:  StatusWarn,
			Message: fmt.Sprintf("%s (written by muon v%s)", path, newer),
			Detail:  "Settings unknown to this version are dropped on the next save",
		}
	}

	return Result{Status: StatusPass, Message: path}
}

// writtenByNewer reports whether writtenBy names a release newer than
// current. Unparseable versions are never considered newer.
func writtenByNewer(writtenBy, current string) (string, bool) {
	if writtenBy == "" {
		return "", false
	}

	theirs, err := semver.NewVersion(writtenBy)
	if err != nil {
		return "", false
	}

	ours, err := semver.NewVersion(current)
	if err != nil {
		return "", false
	}

	if !theirs.GreaterThan(ours) {
		return "", false
	}

	return theirs.String(), true
}

func checkPinnedLogs(_ context.Context) Result {
	path, err := paths.PinnedLogsFile()
	if err != nil {
		return Result{Status: StatusFail, Message: "Cannot resolve", Detail: err.Error()}
	}

	s, warning := pinned.Open(path, discard)
	if warning != nil {
		return loadResult(path, warning)
	}

	return Result{Status: StatusPass, Message: fmt.Sprintf("%s (%d hosts)", path, len(s.Hosts()))}
}

func checkSnippets(_ context.Context) Result {
	path, err := paths.SnippetsFile()
	if err != nil {
		return Result{Status: StatusFail, Message: "Cannot resolve", Detail: err.Error()}
	}

	m, warning := snippet.Open(path, discard)
	if warning != nil {
		return loadResult(path, warning)
	}

	return Result{Status: StatusPass, Message: fmt.Sprintf("%s (%d snippets)", path, len(m.List()))}
}

// checkEditor verifies the configured external editor resolves to a program.
func checkEditor(_ context.Context) Result {
	path, err := paths.SettingsFile()
	if err != nil {
		return Result{Status: StatusFail, Message: "Cannot resolve", Detail: err.Error()}
	}

	s, _ := settings.Open(path, discard)

	argv, err := s.Get().EditorCommand()
	if err != nil {
		return Result{
			Status:  StatusFail,
			Message: "Not configured",
			Detail:  "Run 'muon settings set defaultEditor <command>'",
		}
	}

	bin, err := exec.LookPath(argv[0])
	if err != nil {
		return Result{
			Status:  StatusFail,
			Message: fmt.Sprintf("%s not found in PATH", argv[0]),
			Detail:  err.Error(),
		}
	}

	return Result{Status: StatusPass, Message: bin}
}

// checkCLIVersion reports the build version.
func checkCLIVersion(_ context.Context) Result {
	current := buildinfo.Version

	if !buildinfo.IsRelease() {
		return Result{
			Status:  StatusWarn,
			Message: "Development build",
		}
	}

	if _, err := semver.NewVersion(current); err != nil {
		return Result{
			Status:  StatusWarn,
			Message: fmt.Sprintf("%s (not a semantic version)", current),
		}
	}

	return Result{
		Status:  StatusPass,
		Message: fmt.Sprintf("v%s (%s)", current, buildinfo.Commit),
	}
}

// RenderResults formats diagnostic results to the given output writer.
func RenderResults(results []Result, printFn, successFn, warningFn, failureFn, mutedFn func(format string, args ...any)) {
	maxNameLen := 0
	for _, r := range results {
		if len(r.Name) > maxNameLen {
			maxNameLen = len(r.Name)
		}
	}

	for _, r := range results {
		symbol := r.Status.Symbol()
		padding := maxNameLen - len(r.Name) + 4

		switch r.Status {
		case StatusPass:
			successFn("%-*s%s", len(r.Name)+padding, r.Name, r.Message)
		case StatusWarn:
			warningFn("%-*s%s", len(r.Name)+padding, r.Name, r.Message)
		case StatusFail:
			failureFn("%-*s%s", len(r.Name)+padding, r.Name, r.Message)
		default:
			printFn("%s %-*s%s\n", symbol, len(r.Name)+padding, r.Name, r.Message)
		}

		if r.Detail != "" {
			mutedFn("    %s", r.Detail)
		}
	}
}

// Symbol returns the status symbol for display.
func (s Status) Symbol() string {
	switch s {
	case StatusPass:
		return checkMark
	case StatusWarn:
		return warningMark
	case StatusFail:
		return xMark
	default:
		return "?"
	}
}

// String returns the lowercase status name.
func (s Status) String() string {
	switch s {
	case StatusPass:
		return "pass"
	case StatusWarn:
		return "warn"
	case StatusFail:
		return "fail"
	default:
		return "unknown"
	}
}

// MarshalText renders the status name in JSON output.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

const (
	checkMark   = "\u2713" // ✓
	xMark       = "\u2717" // ✗
	warningMark = "\u26A0" // ⚠
)
