// Package preflight runs environment checks before indexing: free disk
// space and write access where the database lives, the open file limit
// the watcher depends on, and any caller supplied checks such as embedder
// reachability.
package preflight

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// CheckStatus is the outcome of one check.
type CheckStatus int

const (
	StatusPass CheckStatus = iota
	StatusWarn
	StatusFail
)

func (s CheckStatus) String() string {
	switch s {
	case StatusPass:
		return "PASS"
	case StatusWarn:
		return "WARN"
	case StatusFail:
		return "FAIL"
	default:
		return "UNKNOWN"
	}
}

// MarshalText renders the status as its name in JSON output.
func (s CheckStatus) MarshalText() ([]byte, error) {
	return []byte(strings.ToLower(s.String())), nil
}

// CheckResult holds the result of a single check.
type CheckResult struct {
	Name     string      `json:"name"`
	Status   CheckStatus `json:"status"`
	Message  string      `json:"message"`
	Details  string      `json:"details,omitempty"`
	Required bool        `json:"required"`
}

// IsCritical reports whether a required check failed.
func (r CheckResult) IsCritical() bool {
	return r.Required && r.Status == StatusFail
}

// CheckFunc is a caller supplied check. A returned error fails the check;
// otherwise the message is reported as passing.
type CheckFunc func(ctx context.Context) (string, error)

// Warning marks a CheckFunc error as a warning instead of a failure.
type Warning struct {
	Message string
}

func (w *Warning) Error() string { return w.Message }

type extraCheck struct {
	name     string
	required bool
	fn       CheckFunc
}

// Checker runs checks against one directory.
type Checker struct {
	verbose bool
	output  io.Writer
	extra   []extraCheck
}

// Option configures a Checker.
type Option func(*Checker)

// WithVerbose prints check details.
func WithVerbose(verbose bool) Option {
	return func(c *Checker) {
		c.verbose = verbose
	}
}

// WithOutput sets where PrintResults writes.
func WithOutput(w io.Writer) Option {
	return func(c *Checker) {
		c.output = w
	}
}

// WithCheck adds a check run after the built-in ones.
func WithCheck(name string, required bool, fn CheckFunc) Option {
	return func(c *Checker) {
		c.extra = append(c.extra, extraCheck{name: name, required: required, fn: fn})
	}
}

// New creates a Checker.
func New(opts ...Option) *Checker {
	c := &Checker{output: os.Stdout}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RunAll runs the built-in checks against dir, then the added checks in
// order. It stops early only when ctx is done.
func (c *Checker) RunAll(ctx context.Context, dir string) []CheckResult {
	results := []CheckResult{
		c.CheckDiskSpace(dir),
		c.CheckWritePermissions(dir),
		c.CheckFileDescriptors(),
	}
	for _, x := range c.extra {
		if ctx.Err() != nil {
			break
		}
		results = append(results, runExtra(ctx, x))
	}
	return results
}

func runExtra(ctx context.Context, x extraCheck) CheckResult {
	result := CheckResult{Name: x.name, Required: x.required}
	msg, err := x.fn(ctx)
	if err != nil {
		var w *Warning
		if errors.As(err, &w) {
			result.Status = StatusWarn
			result.Message = w.Message
			return result
		}
		result.Status = StatusFail
		result.Message = err.Error()
		return result
	}
	result.Status = StatusPass
	result.Message = msg
	return result
}

// HasCriticalFailures reports whether any required check failed.
func (c *Checker) HasCriticalFailures(results []CheckResult) bool {
	for _, r := range results {
		if r.IsCritical() {
			return true
		}
	}
	return false
}

// SummaryStatus is "failed", "ready_with_warnings" or "ready".
func (c *Checker) SummaryStatus(results []CheckResult) string {
	var warned bool
	for _, r := range results {
		if r.IsCritical() {
			return "failed"
		}
		if r.Status != StatusPass {
			warned = true
		}
	}
	if warned {
		return "ready_with_warnings"
	}
	return "ready"
}

// PrintResults writes one line per check and a summary.
func (c *Checker) PrintResults(results []CheckResult) {
	_, _ = fmt.Fprintln(c.output, "RustRAG System Check")
	_, _ = fmt.Fprintln(c.output, "====================")
	_, _ = fmt.Fprintln(c.output)

	for _, r := range results {
		_, _ = fmt.Fprintf(c.output, "[%s] %s: %s\n", r.Status, r.Name, r.Message)
		if c.verbose && r.Details != "" {
			_, _ = fmt.Fprintf(c.output, "      %s\n", r.Details)
		}
	}

	_, _ = fmt.Fprintln(c.output)
	_, _ = fmt.Fprintf(c.output, "Status: %s\n", strings.ToUpper(c.SummaryStatus(results)))

	var errs, warnings []string
	for _, r := range results {
		switch {
		case r.IsCritical():
			errs = append(errs, r.Name+": "+r.Message)
		case r.Status != StatusPass:
			warnings = append(warnings, r.Name+": "+r.Message)
		}
	}
	printList(c.output, "error(s)", errs)
	printList(c.output, "warning(s)", warnings)
}

func printList(w io.Writer, label string, items []string) {
	if len(items) == 0 {
		return
	}
	_, _ = fmt.Fprintf(w, "\n%d %s:\n", len(items), label)
	for _, it := range items {
		_, _ = fmt.Fprintf(w, "  - %s\n", it)
	}
}

// CheckWritePermissions creates and removes a probe file in path.
func (c *Checker) CheckWritePermissions(path string) CheckResult {
	result := CheckResult{Name: "write_permissions", Required: true}

	f, err := os.CreateTemp(path, ".rustrag-preflight-*")
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("permission denied: %v", err)
		return result
	}
	_ = f.Close()
	_ = os.Remove(filepath.Clean(f.Name()))

	result.Status = StatusPass
	result.Message = "OK"
	return result
}
