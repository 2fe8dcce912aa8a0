package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bmir-radx/harmonization-framework/internal/replay"
	"github.com/bmir-radx/harmonization-framework/internal/testutil"
)

// harmonized runs the fixture once and returns the fixture and its log.
func harmonized(t *testing.T) (files, string) {
	t.Helper()
	f := writeFixture(t)
	log := filepath.Join(f.dir, "replay.jsonl")
	_, stderr, code := execute(t, "run",
		"--data", f.data, "--rules", f.rules,
		"--output", filepath.Join(f.dir, "first.csv"),
		"--replay-log", log, "--pair", "sex:gender")
	require.Equal(t, ExitSuccess, code, stderr)
	return f, log
}

func TestReplayReproducesRun(t *testing.T) {
	f, log := harmonized(t)
	outDir := filepath.Join(f.dir, "replayed")

	stdout, stderr, code := execute(t, "replay", "--log", log, "--dataset", f.data, "--out-dir", outDir)
	require.Equal(t, ExitSuccess, code, stderr)
	assert.Contains(t, stdout, "Replayed 1 dataset(s)")

	assert.Equal(t,
		testutil.ReadFile(t, filepath.Join(f.dir, "first.csv")),
		testutil.ReadFile(t, filepath.Join(outDir, "study.csv")))

	events, err := replay.ReadEvents(filepath.Join(f.dir, "replay_replay.jsonl"))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "study.csv", events[0].Dataset)
}

func TestReplayNamedDatasetAndCombine(t *testing.T) {
	f, log := harmonized(t)
	outDir := filepath.Join(f.dir, "replayed")
	replayLog := filepath.Join(f.dir, "second.jsonl")

	stdout, stderr, code := execute(t, "--format", "json", "replay",
		"--log", log,
		"--dataset", "study.csv="+f.data,
		"--out-dir", outDir,
		"--replay-log", replayLog,
		"--combine", "all.csv")
	require.Equal(t, ExitSuccess, code, stderr)

	var resp struct {
		Data ReplayResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	require.Len(t, resp.Data.Datasets, 1)
	assert.Equal(t, ReplayDatasetResult{
		Dataset: "study.csv",
		Rows:    2,
		Columns: 4,
		Output:  filepath.Join(outDir, "study.csv"),
	}, resp.Data.Datasets[0])
	assert.Equal(t, replayLog, resp.Data.ReplayLog)
	assert.Equal(t, filepath.Join(outDir, "all.csv"), resp.Data.Combined)
	assert.Contains(t, testutil.ReadFile(t, resp.Data.Combined), "gender,site,source dataset,original_id\n")
}

func TestReplayMissingDataset(t *testing.T) {
	f, log := harmonized(t)
	other := testutil.WriteFile(t, f.dir, "other.csv", "sex\nMale\n")

	_, stderr, code := execute(t, "replay", "--log", log, "--dataset", other, "--out-dir", filepath.Join(f.dir, "r"))
	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, stderr, `dataset "study.csv"`)
}

func TestReplayFlagErrors(t *testing.T) {
	f, log := harmonized(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing log", []string{"replay", "--dataset", f.data, "--out-dir", f.dir}, `required flag(s) "log"`},
		{"no datasets", []string{"replay", "--log", log, "--out-dir", f.dir}, "at least one --dataset"},
		{"empty name", []string{"replay", "--log", log, "--dataset", "=" + f.data, "--out-dir", f.dir}, "expected name=path"},
		{"duplicate", []string{"replay", "--log", log, "--dataset", f.data, "--dataset", f.data, "--out-dir", f.dir}, "given twice"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, stderr, code := execute(t, tt.args...)
			assert.Equal(t, ExitCommandError, code)
			assert.Contains(t, stderr, tt.want)
		})
	}
}
