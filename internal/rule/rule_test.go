package rule

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bmir-radx/harmonization-framework/internal/ops"
)

// ageRule casts text ages to integers and clamps them to [0, 120].
func ageRule(t *testing.T) *Rule {
	t.Helper()
	cast, err := ops.NewCast(ops.CastText, ops.CastInteger)
	require.NoError(t, err)
	clamp, err := ops.NewThreshold(ops.Int(0), ops.Int(120))
	require.NoError(t, err)
	return New("age", "age_years", cast, clamp)
}

func sexRule(t *testing.T) *Rule {
	t.Helper()
	lower, err := ops.NewNormalizeText(ops.NormalizeLower)
	require.NoError(t, err)
	return New("sex", "gender", lower)
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRuleTransformFoldsLeftToRight(t *testing.T) {
	r := ageRule(t)

	out, err := r.Transform("150")
	require.NoError(t, err)
	assert.Equal(t, int64(120), out)

	out, err = r.Transform(" 42")
	require.NoError(t, err)
	assert.Equal(t, int64(42), out)

	_, err = r.Transform("forty")
	require.Error(t, err)
	assert.True(t, ops.IsValueError(err))
	assert.Contains(t, err.Error(), "age -> age_years")
}

func TestEmptyRuleIsIdentity(t *testing.T) {
	out, err := New("a", "b").Transform("x")
	require.NoError(t, err)
	assert.Equal(t, "x", out)
}

func TestRuleJSONRoundTrip(t *testing.T) {
	r := ageRule(t)
	data, err := json.Marshal(r)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"source": "age",
		"target": "age_years",
		"operations": [
			{"operation": "cast", "source": "text", "target": "integer"},
			{"operation": "threshold", "lower": 0, "upper": 120}
		]
	}`, string(data))

	decoded, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, r.Pair(), decoded.Pair())
	require.Len(t, decoded.Operations, 2)

	out, err := decoded.Transform("-3")
	require.NoError(t, err)
	assert.Equal(t, int64(0), out)
}

func TestEmptyOperationsSerializeAsList(t *testing.T) {
	data, err := json.Marshal(New("a", "b"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"source":"a","target":"b","operations":[]}`, string(data))
}

func TestDecodeRejectsUnknownOperation(t *testing.T) {
	_, err := Decode([]byte(`{"source":"a","target":"b","operations":[{"operation":"warp"}]}`))
	require.Error(t, err)
	assert.True(t, ops.IsUnknownOperationError(err))
}

func TestParsePair(t *testing.T) {
	p, err := ParsePair("age:age_years")
	require.NoError(t, err)
	assert.Equal(t, Pair{Source: "age", Target: "age_years"}, p)

	_, err = ParsePair("age")
	assert.Error(t, err)
	_, err = ParsePair(":x")
	assert.Error(t, err)
}

func TestRegistryQuery(t *testing.T) {
	reg := NewRegistry()
	reg.AddRule(ageRule(t))

	r, err := reg.Query("age", "age_years")
	require.NoError(t, err)
	assert.Equal(t, "age_years", r.Target)

	identity, err := reg.Query("height", "height")
	require.NoError(t, err)
	out, err := identity.Transform(int64(180))
	require.NoError(t, err)
	assert.Equal(t, int64(180), out)
	assert.Equal(t, 1, reg.Len(), "identity rule must not be stored")

	_, err = reg.Query("age", "age_months")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))

	bySource, err := reg.QuerySource("age")
	require.NoError(t, err)
	assert.Contains(t, bySource, "age_years")

	_, err = reg.QuerySource("weight")
	assert.True(t, IsNotFound(err))
}

func TestRegistryOverwriteKeepsOnePerPair(t *testing.T) {
	reg := NewRegistry()
	reg.AddRule(ageRule(t))
	reg.AddRule(sexRule(t))
	reg.AddRule(New("age", "age_years"))

	assert.Equal(t, []Pair{{"age", "age_years"}, {"sex", "gender"}}, reg.ListPairs())
	r, err := reg.Query("age", "age_years")
	require.NoError(t, err)
	assert.Empty(t, r.Operations)
}

func TestRegistryConcurrentAccess(t *testing.T) {
	reg := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			reg.AddRule(ageRule(t))
		}()
		go func() {
			defer wg.Done()
			_ = reg.ListPairs()
			_, _ = reg.Query("age", "age_years")
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, reg.Len())
}

func TestRegistrySaveGolden(t *testing.T) {
	reg := NewRegistry()
	reg.AddRule(ageRule(t))
	reg.AddRule(sexRule(t))

	path := filepath.Join(t.TempDir(), "rules.json")
	require.NoError(t, reg.Save(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "registry_save", data)
}

func TestRegistryLoadPreservesFileOrder(t *testing.T) {
	path := writeFile(t, "rules.json", `{
		"zeta": {"z2": {"source": "zeta", "target": "z2", "operations": []}},
		"alpha": {
			"a2": {"source": "alpha", "target": "a2", "operations": [{"operation": "do_nothing"}]},
			"a1": {"source": "alpha", "target": "a1", "operations": []}
		}
	}`)

	reg := NewRegistry()
	require.NoError(t, reg.Load(path, false))
	assert.Equal(t, []Pair{{"zeta", "z2"}, {"alpha", "a2"}, {"alpha", "a1"}}, reg.ListPairs())
}

func TestRegistryLoadSaveRoundTrip(t *testing.T) {
	reg := NewRegistry()
	reg.AddRule(ageRule(t))
	reg.AddRule(sexRule(t))

	dir := t.TempDir()
	first := filepath.Join(dir, "first.json")
	second := filepath.Join(dir, "second.json")
	require.NoError(t, reg.Save(first))

	loaded := NewRegistry()
	require.NoError(t, loaded.Load(first, true))
	require.NoError(t, loaded.Save(second))

	a, err := os.ReadFile(first)
	require.NoError(t, err)
	b, err := os.ReadFile(second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestRegistryLoadClean(t *testing.T) {
	reg := NewRegistry()
	reg.AddRule(sexRule(t))

	path := writeFile(t, "rules.json", `{"age": {"age_years": {"source": "age", "target": "age_years", "operations": []}}}`)

	require.NoError(t, reg.Load(path, false))
	assert.Equal(t, 2, reg.Len())

	require.NoError(t, reg.Load(path, true))
	assert.Equal(t, []Pair{{"age", "age_years"}}, reg.ListPairs())
}

func TestRegistryLoadFailsFastOnBadOperation(t *testing.T) {
	reg := NewRegistry()
	reg.AddRule(sexRule(t))

	path := writeFile(t, "rules.json", `{"age": {"age_years": {"source": "age", "target": "age_years",
		"operations": [{"operation": "convert_units", "source": "wibble", "target": "m"}]}}}`)

	err := reg.Load(path, true)
	require.Error(t, err)
	assert.True(t, ops.IsValidationError(err))
	assert.Equal(t, 1, reg.Len(), "failed load must leave the registry untouched")
}

func TestRegistryLoadRejectsSchemaViolations(t *testing.T) {
	cases := map[string]string{
		"not an object":     `[1, 2, 3]`,
		"missing operation": `{"a": {"b": {"source": "a", "target": "b", "operations": [{"lower": 1}]}}}`,
		"numeric source":    `{"a": {"b": {"source": 1, "target": "b", "operations": []}}}`,
		"unexpected field":  `{"a": {"b": {"source": "a", "target": "b", "operations": [], "notes": "x"}}}`,
		"invalid json":      `{"a": `,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseFile([]byte(doc))
			require.Error(t, err)
			var schemaErr *SchemaError
			assert.ErrorAs(t, err, &schemaErr)
		})
	}
}

func TestRegistryLoadMissingFile(t *testing.T) {
	err := NewRegistry().Load(filepath.Join(t.TempDir(), "missing.json"), false)
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestFingerprint(t *testing.T) {
	a, err := Fingerprint(ageRule(t))
	require.NoError(t, err)
	b, err := Fingerprint(ageRule(t))
	require.NoError(t, err)
	c, err := Fingerprint(sexRule(t))
	require.NoError(t, err)

	assert.Len(t, a, 64)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}
