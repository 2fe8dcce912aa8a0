package jobs

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bmir-radx/harmonization-framework/internal/testutil"
)

func waitTerminal(t *testing.T, o *Orchestrator, id string) Job {
	t.Helper()
	var job Job
	require.Eventually(t, func() bool {
		var err error
		job, err = o.Get(id)
		return err == nil && job.Status.Terminal()
	}, 5*time.Second, 5*time.Millisecond)
	return job
}

func TestSubmitCompletes(t *testing.T) {
	o := New(WithIDGenerator(testutil.NewSequenceGenerator("job")))
	p := fixture(t)

	id, err := o.Submit(p)
	require.NoError(t, err)
	assert.Equal(t, "job-1", id)

	job := waitTerminal(t, o, id)
	assert.Equal(t, StatusCompleted, job.Status)
	assert.Equal(t, 1.0, job.Progress)
	assert.Equal(t, p.OutputFilePath, job.OutputPath)
	assert.Equal(t, &Result{OutputPath: p.OutputFilePath, ReplayLogPath: p.ReplayLogFilePath}, job.Result)
	assert.Nil(t, job.Error)
	require.NotNil(t, job.StartedAt)
	require.NotNil(t, job.FinishedAt)
}

func TestSubmitMissingRulesFileFailsLater(t *testing.T) {
	o := New()
	p := fixture(t)
	p.RulesFilePath = filepath.Join(filepath.Dir(p.RulesFilePath), "missing.json")

	id, err := o.Submit(p)
	require.NoError(t, err, "resource errors surface only through the job")
	assert.NotEmpty(t, id)

	job := waitTerminal(t, o, id)
	assert.Equal(t, StatusFailed, job.Status)
	require.NotNil(t, job.Error)
	assert.Equal(t, CodeFileNotFound, job.Error.Code)
	assert.Equal(t, "rules_path", job.Error.Details["path_type"])
	assert.Nil(t, job.Result)
}

func TestSubmitRejectsInvalidParams(t *testing.T) {
	o := New()
	p := fixture(t)
	p.Mode = "sometimes"

	_, err := o.Submit(p)
	require.Error(t, err)
	assert.True(t, HasCode(err, CodeValidation))
	assert.Empty(t, o.Store().List(), "no job is registered for invalid params")
}

func TestGetUnknownJob(t *testing.T) {
	_, err := New().Get("nope")
	require.Error(t, err)
	jerr := AsError(err)
	assert.Equal(t, CodeJobNotFound, jerr.Code)
	assert.Equal(t, "Job not found: nope", jerr.Message)
	assert.Equal(t, map[string]any{"job_id": "nope"}, jerr.Details)
}

func TestConcurrentSubmissionsAreIndependent(t *testing.T) {
	o := New()
	const n = 12

	params := make([]HarmonizeParams, n)
	for i := range params {
		params[i] = fixture(t)
		if i%2 == 1 {
			params[i].Pairs[0].Target = "unknown"
		}
	}

	ids := make([]string, n)
	var wg sync.WaitGroup
	for i := range params {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := o.Submit(params[i])
			assert.NoError(t, err)
			ids[i] = id
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool)
	for _, id := range ids {
		seen[id] = true
	}
	assert.Len(t, seen, n, "job ids must be distinct")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, o.Wait(ctx))

	for i, id := range ids {
		job, err := o.Get(id)
		require.NoError(t, err)
		if i%2 == 1 {
			assert.Equal(t, StatusFailed, job.Status, id)
			assert.Equal(t, CodeRuleNotFound, job.Error.Code)
		} else {
			assert.Equal(t, StatusCompleted, job.Status, id)
		}
	}
}

func TestMaxConcurrentRunsEveryJob(t *testing.T) {
	o := New(WithMaxConcurrent(1))
	var ids []string
	for i := 0; i < 4; i++ {
		id, err := o.Submit(fixture(t))
		require.NoError(t, err)
		ids = append(ids, id)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, o.Wait(ctx))
	for _, id := range ids {
		job, err := o.Get(id)
		require.NoError(t, err)
		assert.Equal(t, StatusCompleted, job.Status)
	}
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	o := New(WithMetrics(m))

	good := fixture(t)
	bad := fixture(t)
	bad.DataFilePath = "relative.csv"

	for _, p := range []HarmonizeParams{good, bad} {
		_, err := o.Submit(p)
		require.NoError(t, err)
	}
	require.NoError(t, o.Wait(context.Background()))

	assert.Equal(t, 2.0, promtest.ToFloat64(m.submitted))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.finished.WithLabelValues("completed")))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.finished.WithLabelValues("failed")))
	assert.Equal(t, 0.0, promtest.ToFloat64(m.running))
	assert.Equal(t, 1, promtest.CollectAndCount(m.duration))
}

func TestWaitHonorsContext(t *testing.T) {
	o := New()
	o.wg.Add(1)
	defer o.wg.Done()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, o.Wait(ctx), context.Canceled)
}
