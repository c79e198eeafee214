// Package analyzers provides all custom static analyzers for pseudo-core.
package analyzers

import (
	"golang.org/x/tools/go/analysis"

	"github.com/ersonp/pseudo-core/tools/pseudo-lint/analyzers/loopcall"
	"github.com/ersonp/pseudo-core/tools/pseudo-lint/analyzers/plaintextlog"
)

// All returns all analyzers to run.
func All() []*analysis.Analyzer {
	return []*analysis.Analyzer{
		loopcall.Analyzer,
		plaintextlog.Analyzer,
	}
}
