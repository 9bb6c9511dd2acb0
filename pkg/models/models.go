// Package models holds the host-side data relayed between a host
// application and the editing surface.
package models

import (
	"fmt"
	"sort"
	"strings"

	"github.com/grovetools/editsync/errors"
	"github.com/grovetools/editsync/pkg/ot"
)

// Sandbox is the project a session edits.
type Sandbox struct {
	ID    string `json:"id"`
	Alias string `json:"alias,omitempty"`
	Title string `json:"title,omitempty"`
	Root  string `json:"root,omitempty"`
}

// Module is a named document unit owned by the host.
type Module struct {
	ID       string            `json:"id"`
	ShortID  string            `json:"shortid,omitempty"`
	Title    string            `json:"title"`
	Path     string            `json:"path"`
	Code     string            `json:"code"`
	IsBinary bool              `json:"isBinary,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Validate checks that the module can be addressed by path.
func (m *Module) Validate() error {
	if m == nil {
		return errors.New(errors.ErrCodeInvalidInput, "module is required")
	}
	if !strings.HasPrefix(m.Path, "/") {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("module path must be absolute, got '%s'", m.Path)).
			WithDetail("path", m.Path)
	}
	return nil
}

// Position is a zero-based line and column.
type Position struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// Range is a span between two positions. Start may come after End when the
// selection was made backwards.
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// IsCursor reports whether the range is empty.
func (r Range) IsCursor() bool {
	return r.Start == r.End
}

// EditorSelection is one remote user's cursor and ranges in a module.
type EditorSelection struct {
	UserID    string  `json:"userId"`
	Name      string  `json:"name,omitempty"`
	Color     string  `json:"color,omitempty"`
	Path      string  `json:"path"`
	Primary   Range   `json:"primary"`
	Secondary []Range `json:"secondary,omitempty"`
}

// Severity of a diagnostic overlay.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
	SeverityHint    Severity = "hint"
)

// Diagnostic is the location and text shared by errors and corrections.
// Lines and columns are one-based as evaluators report them. EndLine and
// EndColumn are zero when the diagnostic marks a single point.
type Diagnostic struct {
	Title     string   `json:"title,omitempty"`
	Message   string   `json:"message"`
	Path      string   `json:"path"`
	Line      int      `json:"line"`
	Column    int      `json:"column"`
	EndLine   int      `json:"endLine,omitempty"`
	EndColumn int      `json:"endColumn,omitempty"`
	Source    string   `json:"source,omitempty"`
	Severity  Severity `json:"severity,omitempty"`
}

// ModuleError is a diagnostic produced by evaluating a module.
type ModuleError struct {
	Diagnostic
}

// ModuleCorrection is a diagnostic produced by a linter or type checker.
type ModuleCorrection struct {
	Diagnostic
}

// Overlays are the diagnostics attached to one module.
type Overlays struct {
	Errors      []ModuleError      `json:"errors,omitempty"`
	Corrections []ModuleCorrection `json:"corrections,omitempty"`
}

// Empty reports whether no diagnostics are attached.
func (o Overlays) Empty() bool {
	return len(o.Errors) == 0 && len(o.Corrections) == 0
}

// OperationBatch maps document paths to the operation applied to each.
type OperationBatch map[string]ot.Operation

// Paths returns the batch's paths in sorted order, the order in which the
// batch is applied.
func (b OperationBatch) Paths() []string {
	paths := make([]string, 0, len(b))
	for p := range b {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// ModulePaths returns the sorted keys of a path-keyed module map.
func ModulePaths(modules map[string]*Module) []string {
	paths := make([]string, 0, len(modules))
	for p := range modules {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
