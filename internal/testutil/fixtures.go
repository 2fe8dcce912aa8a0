package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bmir-radx/harmonization-framework/internal/rule"
)

// WriteFile writes content to dir/name and returns the absolute path.
func WriteFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path, err := filepath.Abs(filepath.Join(dir, name))
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// WriteRules saves rules as a rule file at dir/name and returns the
// absolute path.
func WriteRules(t *testing.T, dir, name string, rules ...*rule.Rule) string {
	t.Helper()
	reg := rule.NewRegistry()
	for _, r := range rules {
		reg.AddRule(r)
	}
	path, err := filepath.Abs(filepath.Join(dir, name))
	require.NoError(t, err)
	require.NoError(t, reg.Save(path))
	return path
}

// ReadFile returns the contents of path as a string.
func ReadFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}
