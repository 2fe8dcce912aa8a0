package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bmir-radx/harmonization-framework/internal/ops"
	"github.com/bmir-radx/harmonization-framework/internal/rule"
	"github.com/bmir-radx/harmonization-framework/internal/testutil"
)

// execute runs the full command tree and captures its output.
func execute(t *testing.T, args ...string) (stdout, stderr string, code int) {
	t.Helper()
	var out, errOut bytes.Buffer
	code = Execute(context.Background(), args, &out, &errOut)
	return out.String(), errOut.String(), code
}

type files struct {
	dir   string
	data  string
	rules string
}

// writeFixture lays out study.csv (a sex column) and a rule file mapping
// sex -> gender through lower-casing.
func writeFixture(t *testing.T) files {
	t.Helper()
	dir, err := filepath.Abs(t.TempDir())
	require.NoError(t, err)

	lower, err := ops.NewNormalizeText(ops.NormalizeLower)
	require.NoError(t, err)
	return files{
		dir:   dir,
		data:  testutil.WriteFile(t, dir, "study.csv", "sex,site\nMale,ny\nFEMALE,sf\n"),
		rules: testutil.WriteRules(t, dir, "rules.json", rule.New("sex", "gender", lower)),
	}
}
