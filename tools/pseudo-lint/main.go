// pseudo-lint is a custom static analyzer for pseudo-core store access and
// plaintext handling patterns.
package main

import (
	"golang.org/x/tools/go/analysis/multichecker"

	"github.com/ersonp/pseudo-core/tools/pseudo-lint/analyzers"
)

func main() {
	multichecker.Main(analyzers.All()...)
}
