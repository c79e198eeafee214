package plaintextlog_test

import (
	"testing"

	"golang.org/x/tools/go/analysis/analysistest"

	"github.com/ersonp/pseudo-core/tools/pseudo-lint/analyzers/plaintextlog"
)

func TestAnalyzer(t *testing.T) {
	testdata := analysistest.TestData()
	analysistest.Run(t, testdata, plaintextlog.Analyzer, "a")
}
