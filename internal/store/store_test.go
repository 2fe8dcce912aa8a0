package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/bmir-radx/harmonization-framework/internal/ops"
	"github.com/bmir-radx/harmonization-framework/internal/rule"
	"github.com/bmir-radx/harmonization-framework/internal/testutil"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	ids := testutil.NewSequenceGenerator("rule")
	clock := testutil.NewStepClock(time.Second)
	s, err := Open(filepath.Join(t.TempDir(), "library.db"), WithClock(clock.Now), WithIDs(ids.Generate))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func lowerRule(t *testing.T, source, target string) *rule.Rule {
	t.Helper()
	op, err := ops.NewNormalizeText(ops.NormalizeLower)
	if err != nil {
		t.Fatalf("NewNormalizeText() error = %v", err)
	}
	return rule.New(source, target, op)
}

func upperRule(t *testing.T, source, target string) *rule.Rule {
	t.Helper()
	op, err := ops.NewNormalizeText(ops.NormalizeUpper)
	if err != nil {
		t.Fatalf("NewNormalizeText() error = %v", err)
	}
	return rule.New(source, target, op)
}

func TestOpenAppliesPragmas(t *testing.T) {
	s := openTestStore(t)

	tests := []struct {
		pragma string
		want   string
	}{
		{"journal_mode", "wal"},
		{"synchronous", "1"},
		{"busy_timeout", "5000"},
		{"foreign_keys", "1"},
		{"user_version", fmt.Sprint(currentSchemaVersion)},
	}
	for _, tt := range tests {
		got, err := s.pragma(tt.pragma)
		if err != nil {
			t.Fatalf("pragma(%s) error = %v", tt.pragma, err)
		}
		if got != tt.want {
			t.Errorf("%s = %q, want %q", tt.pragma, got, tt.want)
		}
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "library.db")
	ctx := context.Background()

	s, err := Open(path)
	if err != nil {
		t.Fatalf("first Open() error = %v", err)
	}
	if _, _, err := s.SaveRule(ctx, "p", lowerRule(t, "sex", "gender")); err != nil {
		t.Fatalf("SaveRule() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	s, err = Open(path)
	if err != nil {
		t.Fatalf("second Open() error = %v", err)
	}
	defer s.Close()

	got, err := s.GetRule(ctx, "p", "sex", "gender", 0)
	if err != nil {
		t.Fatalf("GetRule() after reopen error = %v", err)
	}
	if got.Version != 1 {
		t.Errorf("Version = %d, want 1", got.Version)
	}
}

func TestCloseTwice(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "library.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("first Close() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestSaveRuleVersions(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	first, created, err := s.SaveRule(ctx, "p", lowerRule(t, "sex", "gender"))
	if err != nil {
		t.Fatalf("SaveRule() error = %v", err)
	}
	if !created || first.Version != 1 || first.ID != "rule-1" {
		t.Fatalf("first save = (%+v, %v), want version 1 rule-1 created", first, created)
	}
	if !first.CreatedAt.Equal(testutil.Epoch) {
		t.Errorf("CreatedAt = %v, want %v", first.CreatedAt, testutil.Epoch)
	}

	again, created, err := s.SaveRule(ctx, "p", lowerRule(t, "sex", "gender"))
	if err != nil {
		t.Fatalf("SaveRule() same rule error = %v", err)
	}
	if created {
		t.Errorf("saving an unchanged rule created a new version")
	}
	if again.ID != first.ID {
		t.Errorf("unchanged save returned %s, want %s", again.ID, first.ID)
	}

	second, created, err := s.SaveRule(ctx, "p", upperRule(t, "sex", "gender"))
	if err != nil {
		t.Fatalf("SaveRule() changed rule error = %v", err)
	}
	if !created || second.Version != 2 {
		t.Fatalf("changed save = (version %d, %v), want version 2 created", second.Version, created)
	}

	latest, err := s.GetRule(ctx, "p", "sex", "gender", 0)
	if err != nil {
		t.Fatalf("GetRule(latest) error = %v", err)
	}
	if latest.Fingerprint != second.Fingerprint {
		t.Errorf("latest fingerprint = %s, want %s", latest.Fingerprint, second.Fingerprint)
	}
	out, err := latest.Rule.Transform("Male")
	if err != nil {
		t.Fatalf("Transform() error = %v", err)
	}
	if out != "MALE" {
		t.Errorf("latest rule Transform(Male) = %v, want MALE", out)
	}

	v1, err := s.GetRule(ctx, "p", "sex", "gender", 1)
	if err != nil {
		t.Fatalf("GetRule(v1) error = %v", err)
	}
	if v1.Fingerprint != first.Fingerprint {
		t.Errorf("v1 fingerprint = %s, want %s", v1.Fingerprint, first.Fingerprint)
	}
}

func TestSaveRuleRequiresProject(t *testing.T) {
	s := openTestStore(t)
	if _, _, err := s.SaveRule(context.Background(), "", lowerRule(t, "a", "b")); err == nil {
		t.Fatal("SaveRule() with empty project succeeded")
	}
}

func TestProjectsAreIsolated(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, _, err := s.SaveRule(ctx, "alpha", lowerRule(t, "sex", "gender")); err != nil {
		t.Fatalf("SaveRule(alpha) error = %v", err)
	}
	stored, created, err := s.SaveRule(ctx, "beta", lowerRule(t, "sex", "gender"))
	if err != nil {
		t.Fatalf("SaveRule(beta) error = %v", err)
	}
	if !created || stored.Version != 1 {
		t.Errorf("beta save = (version %d, %v), want version 1 created", stored.Version, created)
	}

	projects, err := s.Projects(ctx)
	if err != nil {
		t.Fatalf("Projects() error = %v", err)
	}
	if len(projects) != 2 || projects[0] != "alpha" || projects[1] != "beta" {
		t.Errorf("Projects() = %v, want [alpha beta]", projects)
	}

	if _, err := s.GetRule(ctx, "gamma", "sex", "gender", 0); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetRule(gamma) error = %v, want ErrNotFound", err)
	}
}

func TestGetRuleNotFound(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, _, err := s.SaveRule(ctx, "p", lowerRule(t, "sex", "gender")); err != nil {
		t.Fatalf("SaveRule() error = %v", err)
	}
	if _, err := s.GetRule(ctx, "p", "sex", "gender", 7); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetRule(v7) error = %v, want ErrNotFound", err)
	}
	if _, err := s.GetRule(ctx, "p", "age", "age_years", 0); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetRule(missing pair) error = %v, want ErrNotFound", err)
	}
}

func TestLatestAndListRulesOrdering(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	saves := []*rule.Rule{
		lowerRule(t, "zeta", "z"),
		lowerRule(t, "alpha", "a"),
		upperRule(t, "zeta", "z"),
		lowerRule(t, "mid", "m"),
	}
	for _, r := range saves {
		if _, _, err := s.SaveRule(ctx, "p", r); err != nil {
			t.Fatalf("SaveRule(%s) error = %v", r.Pair(), err)
		}
	}

	latest, err := s.LatestRules(ctx, "p")
	if err != nil {
		t.Fatalf("LatestRules() error = %v", err)
	}
	wantLatest := []string{"zeta -> z v2", "alpha -> a v1", "mid -> m v1"}
	if got := describe(latest); fmt.Sprint(got) != fmt.Sprint(wantLatest) {
		t.Errorf("LatestRules() = %v, want %v", got, wantLatest)
	}

	all, err := s.ListRules(ctx, "p")
	if err != nil {
		t.Fatalf("ListRules() error = %v", err)
	}
	wantAll := []string{"zeta -> z v1", "zeta -> z v2", "alpha -> a v1", "mid -> m v1"}
	if got := describe(all); fmt.Sprint(got) != fmt.Sprint(wantAll) {
		t.Errorf("ListRules() = %v, want %v", got, wantAll)
	}
}

func describe(rules []StoredRule) []string {
	out := make([]string, len(rules))
	for i, r := range rules {
		out[i] = fmt.Sprintf("%s v%d", r.Pair(), r.Version)
	}
	return out
}

func TestHistoryAndDelete(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, r := range []*rule.Rule{lowerRule(t, "sex", "gender"), upperRule(t, "sex", "gender"), lowerRule(t, "sex", "gender")} {
		if _, _, err := s.SaveRule(ctx, "p", r); err != nil {
			t.Fatalf("SaveRule() error = %v", err)
		}
	}

	history, err := s.History(ctx, "p", "sex", "gender")
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("History() returned %d versions, want 3", len(history))
	}
	if history[0].Fingerprint != history[2].Fingerprint {
		t.Errorf("reverting to an earlier rule should reuse its fingerprint")
	}
	for i, h := range history {
		if h.Version != i+1 {
			t.Errorf("history[%d].Version = %d, want %d", i, h.Version, i+1)
		}
	}

	n, err := s.DeleteRule(ctx, "p", "sex", "gender")
	if err != nil {
		t.Fatalf("DeleteRule() error = %v", err)
	}
	if n != 3 {
		t.Errorf("DeleteRule() = %d, want 3", n)
	}
	if _, err := s.History(ctx, "p", "sex", "gender"); !errors.Is(err, ErrNotFound) {
		t.Errorf("History() after delete error = %v, want ErrNotFound", err)
	}
}

func TestImportExportRegistry(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	reg := rule.NewRegistry()
	reg.AddRule(lowerRule(t, "sex", "gender"))
	reg.AddRule(upperRule(t, "site", "site_code"))

	n, err := s.ImportRegistry(ctx, "p", reg)
	if err != nil {
		t.Fatalf("ImportRegistry() error = %v", err)
	}
	if n != 2 {
		t.Errorf("ImportRegistry() = %d, want 2", n)
	}

	n, err = s.ImportRegistry(ctx, "p", reg)
	if err != nil {
		t.Fatalf("second ImportRegistry() error = %v", err)
	}
	if n != 0 {
		t.Errorf("re-import created %d versions, want 0", n)
	}

	exported, err := s.ExportRegistry(ctx, "p")
	if err != nil {
		t.Fatalf("ExportRegistry() error = %v", err)
	}
	want := reg.ListPairs()
	got := exported.ListPairs()
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("exported pairs = %v, want %v", got, want)
	}

	r, err := exported.Query("site", "site_code")
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	out, err := r.Transform("ab")
	if err != nil {
		t.Fatalf("Transform() error = %v", err)
	}
	if out != "AB" {
		t.Errorf("Transform(ab) = %v, want AB", out)
	}
}

func TestConcurrentSaves(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rules := make([]*rule.Rule, 20)
	for i := range rules {
		rules[i] = lowerRule(t, fmt.Sprintf("col%d", i), "out")
	}

	var wg sync.WaitGroup
	errs := make(chan error, len(rules))
	for _, r := range rules {
		wg.Add(1)
		go func(r *rule.Rule) {
			defer wg.Done()
			if _, _, err := s.SaveRule(ctx, "p", r); err != nil {
				errs <- err
			}
		}(r)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent SaveRule() error = %v", err)
	}

	latest, err := s.LatestRules(ctx, "p")
	if err != nil {
		t.Fatalf("LatestRules() error = %v", err)
	}
	if len(latest) != 20 {
		t.Errorf("LatestRules() returned %d rules, want 20", len(latest))
	}
}
