package jobs

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bmir-radx/harmonization-framework/internal/rule"
	"github.com/bmir-radx/harmonization-framework/internal/testutil"
)

func TestParseParams(t *testing.T) {
	p, err := ParseParams([]byte(`{
		"data_file_path": "/d.csv",
		"rules_file_path": "/r.json",
		"output_file_path": "/o.csv",
		"replay_log_file_path": "/l.log",
		"mode": "pairs",
		"pairs": [{"source": "a", "target": "b"}]
	}`))
	require.NoError(t, err)
	assert.Equal(t, HarmonizeParams{
		DataFilePath:      "/d.csv",
		RulesFilePath:     "/r.json",
		OutputFilePath:    "/o.csv",
		ReplayLogFilePath: "/l.log",
		Mode:              ModePairs,
		Pairs:             []rule.Pair{{Source: "a", Target: "b"}},
	}, p)
}

func TestParseParamsRejects(t *testing.T) {
	cases := map[string]struct {
		body string
		want string
	}{
		"missing paths": {
			body: `{"mode": "all"}`,
			want: "data_file_path: field required",
		},
		"bad mode": {
			body: `{"data_file_path": "/d", "rules_file_path": "/r", "output_file_path": "/o",
				"replay_log_file_path": "/l", "mode": "some"}`,
			want: "mode: must be 'pairs' or 'all'",
		},
		"pair without target": {
			body: `{"data_file_path": "/d", "rules_file_path": "/r", "output_file_path": "/o",
				"replay_log_file_path": "/l", "mode": "pairs", "harmonization_pairs": [{"source": "a"}]}`,
			want: "harmonization_pairs.0.target: field required",
		},
		"wrong type": {
			body: `{"data_file_path": 3}`,
			want: "invalid params",
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseParams([]byte(tc.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestLoadManifestResolvesRelativePaths(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteFile(t, dir, "job.yaml", `
data_file_path: data/in.csv
rules_file_path: /abs/rules.json
output_file_path: out/out.csv
replay_log_file_path: out/replay.log
mode: pairs
harmonization_pairs:
  - source: age
    target: age_years
overwrite: true
`)
	p, err := LoadManifest(path)
	require.NoError(t, err)

	base, err := filepath.Abs(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "data", "in.csv"), p.DataFilePath)
	assert.Equal(t, "/abs/rules.json", p.RulesFilePath)
	assert.Equal(t, filepath.Join(base, "out", "replay.log"), p.ReplayLogFilePath)
	assert.True(t, p.Overwrite)
	assert.Equal(t, []rule.Pair{{Source: "age", Target: "age_years"}}, p.Pairs)
}

func TestLoadManifestRejectsUnknownFields(t *testing.T) {
	path := testutil.WriteFile(t, t.TempDir(), "job.yaml", "mode: all\nspeed: fast\n")
	_, err := LoadManifest(path)
	assert.Error(t, err)
}
