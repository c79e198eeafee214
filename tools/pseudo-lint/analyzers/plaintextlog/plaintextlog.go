// Package plaintextlog detects names flowing into logs and error messages.
package plaintextlog

import (
	"go/ast"
	"go/token"
	"go/types"
	"strconv"

	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/passes/inspect"
	"golang.org/x/tools/go/ast/inspector"
	"golang.org/x/tools/go/types/typeutil"
)

// Analyzer reports log and error constructor calls whose arguments read a
// real or pseudonym name field, or use a name-like attribute key.
var Analyzer = &analysis.Analyzer{
	Name:     "plaintextlog",
	Doc:      "detects real or pseudonym names passed to loggers and error constructors",
	Requires: []*analysis.Analyzer{inspect.Analyzer},
	Run:      run,
}

// nameFields are entity fields holding real or pseudonym names.
var nameFields = map[string]bool{
	"FullName":       true,
	"FirstName":      true,
	"LastName":       true,
	"PseudonymFull":  true,
	"PseudonymFirst": true,
	"PseudonymLast":  true,
}

// nameKeys are structured-log keys that announce a name value.
var nameKeys = map[string]bool{
	"name":            true,
	"full_name":       true,
	"first_name":      true,
	"last_name":       true,
	"entity_name":     true,
	"pseudonym":       true,
	"pseudonym_full":  true,
	"pseudonym_first": true,
	"pseudonym_last":  true,
}

// sinks maps a package path to the functions and methods that emit text.
var sinks = map[string]map[string]bool{
	"log/slog": {
		"Debug": true, "Info": true, "Warn": true, "Error": true, "Log": true,
		"DebugContext": true, "InfoContext": true, "WarnContext": true, "ErrorContext": true,
	},
	"log": {
		"Print": true, "Printf": true, "Println": true,
		"Fatal": true, "Fatalf": true, "Fatalln": true,
		"Panic": true, "Panicf": true, "Panicln": true,
	},
	"fmt":    {"Errorf": true},
	"errors": {"New": true},
}

func run(pass *analysis.Pass) (any, error) {
	inspect := pass.ResultOf[inspect.Analyzer].(*inspector.Inspector)

	inspect.Preorder([]ast.Node{(*ast.CallExpr)(nil)}, func(n ast.Node) {
		call := n.(*ast.CallExpr)
		sink, ok := sinkName(pass, call)
		if !ok {
			return
		}

		for _, arg := range call.Args {
			ast.Inspect(arg, func(n ast.Node) bool {
				switch x := n.(type) {
				case *ast.SelectorExpr:
					if nameFields[x.Sel.Name] {
						pass.Reportf(x.Pos(), "%s receives name field %s", sink, x.Sel.Name)
						return false
					}
				case *ast.BasicLit:
					if x.Kind != token.STRING {
						return true
					}
					if key, err := strconv.Unquote(x.Value); err == nil && nameKeys[key] {
						pass.Reportf(x.Pos(), "%s uses name-like key %q", sink, key)
					}
				}
				return true
			})
		}
	})

	return nil, nil
}

// sinkName returns the qualified name of the logging or error function
// call invokes.
func sinkName(pass *analysis.Pass, call *ast.CallExpr) (string, bool) {
	fn, ok := typeutil.Callee(pass.TypesInfo, call).(*types.Func)
	if !ok || fn.Pkg() == nil {
		return "", false
	}
	names, ok := sinks[fn.Pkg().Path()]
	if !ok || !names[fn.Name()] {
		return "", false
	}
	return fn.Pkg().Name() + "." + fn.Name(), true
}
