// Package loopcall detects store and collaborator calls inside loops.
package loopcall

import (
	"go/ast"
	"go/token"
	"strings"

	"golang.org/x/tools/go/analysis"
)

// Analyzer detects store and collaborator calls inside loops. A call is
// allowed when a //nolint:loopcall comment sits on its line or the line
// above. Test files are not checked.
var Analyzer = &analysis.Analyzer{
	Name: "loopcall",
	Doc:  "detects store and collaborator calls inside loops that should be batched or justified",
	Run:  run,
}

const directive = "nolint:loopcall"

// externalMethods are method names that reach the store or a collaborator.
var externalMethods = map[string]bool{
	// MappingStore
	"FindByFullName":          true,
	"FindByComponent":         true,
	"PseudonymComponentInUse": true,
	"Save":                    true,
	"DeleteByFullName":        true,
	"DeleteByID":              true,
	// AuditLog
	"AppendOperation": true,
	// Collaborators
	"Recognize": true,
	"Classify":  true,
	"Validate":  true,
	// Per-document entry points
	"Assign":     true,
	"HandleFile": true,
}

func run(pass *analysis.Pass) (any, error) {
	for _, file := range pass.Files {
		name := pass.Fset.File(file.Pos()).Name()
		if strings.HasSuffix(name, "_test.go") {
			continue
		}

		allowed := allowedLines(pass.Fset, file)
		reported := make(map[token.Pos]bool)

		ast.Inspect(file, func(n ast.Node) bool {
			var body *ast.BlockStmt
			switch stmt := n.(type) {
			case *ast.RangeStmt:
				body = stmt.Body
			case *ast.ForStmt:
				body = stmt.Body
			}
			if body == nil {
				return true
			}

			ast.Inspect(body, func(n ast.Node) bool {
				// Closures run later, not once per iteration.
				if _, ok := n.(*ast.FuncLit); ok {
					return false
				}
				call, ok := n.(*ast.CallExpr)
				if !ok {
					return true
				}
				sel, ok := call.Fun.(*ast.SelectorExpr)
				if !ok || !externalMethods[sel.Sel.Name] || reported[call.Pos()] {
					return true
				}
				reported[call.Pos()] = true

				if allowed[pass.Fset.Position(call.Pos()).Line] {
					return true
				}
				pass.Reportf(call.Pos(),
					"potential N+1: %s called inside loop - batch it or add //%s with a reason",
					sel.Sel.Name, directive)
				return true
			})
			return true
		})
	}
	return nil, nil
}

// allowedLines returns the lines covered by a nolint:loopcall comment.
func allowedLines(fset *token.FileSet, file *ast.File) map[int]bool {
	lines := make(map[int]bool)
	for _, group := range file.Comments {
		for _, c := range group.List {
			if !strings.Contains(c.Text, directive) {
				continue
			}
			line := fset.Position(c.Slash).Line
			lines[line] = true
			lines[line+1] = true
		}
	}
	return lines
}
