// Package validate runs graph-shape checks over a resolved binding graph
// and reports every violation at once, each attached to the source position
// it originates from.
package validate

import (
	"fmt"
	"strings"

	"github.com/kinmemodoki/handa/internal/model"
)

// Severity ranks diagnostics. Generation proceeds past warnings; any error
// fails the run.
type Severity int

const (
	SeverityWarning Severity = iota
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return fmt.Sprintf("severity(%d)", int(s))
	}
}

// Diagnostic is one reported violation.
type Diagnostic struct {
	Severity Severity
	Message  string
	Site     model.DeclarationRef
}

func (d Diagnostic) String() string {
	if d.Site.Pos.IsValid() {
		return fmt.Sprintf("%s: %s: %s", d.Site.Pos, d.Severity, d.Message)
	}
	return fmt.Sprintf("%s: %s", d.Severity, d.Message)
}

// Diagnostics is the full report for one component tree.
type Diagnostics []Diagnostic

// HasErrors reports whether any diagnostic is error severity.
func (ds Diagnostics) HasErrors() bool {
	for _, d := range ds {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}

func (ds Diagnostics) String() string {
	lines := make([]string, 0, len(ds))
	for _, d := range ds {
		lines = append(lines, d.String())
	}
	return strings.Join(lines, "\n")
}
