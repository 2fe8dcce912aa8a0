package ops

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustOp(op Operation, err error) Operation {
	if err != nil {
		panic(err)
	}
	return op
}

func TestDecodeRoundTripTransformsIdentically(t *testing.T) {
	cases := []struct {
		name   string
		op     Operation
		inputs []any
	}{
		{"cast integer", mustOp(NewCast(CastText, CastInteger)), []any{"10", " 7 ", 3.9, true}},
		{"cast text", mustOp(NewCast(CastInteger, CastText)), []any{int64(10), 2.0, "x", false}},
		{"cast boolean", mustOp(NewCast(CastText, CastBoolean)), []any{"Yes", "n", "", int64(1)}},
		{"cast float", mustOp(NewCast(CastText, CastFloat)), []any{"1.5", int64(2)}},
		{"threshold int", mustOp(NewThreshold(Int(0), Int(10))), []any{int64(-5), int64(5), int64(15), 2.5}},
		{"threshold float", mustOp(NewThreshold(Float(0), Float(10))), []any{int64(-5), int64(5), 15.5}},
		{"bin", mustOp(NewBin([]Interval{{Label: 100, Start: 0, End: 9}, {Label: 200, Start: 10, End: 19}})), []any{int64(3), int64(12), int64(25)}},
		{"enum int", mustOp(NewEnumToEnum(map[any]any{int64(1): int64(10), int64(2): int64(20)}, int64(-1), false)), []any{int64(1), int64(2), int64(3)}},
		{"enum string", mustOp(NewEnumToEnum(map[any]any{"m": "male", "f": "female"}, nil, false)), []any{"m", "f", "x"}},
		{"convert units", mustOp(NewConvertUnits("degC", "degF")), []any{int64(100), -40.0}},
		{"convert date", mustOp(NewConvertDate("%Y-%m-%d", "%m/%d/%Y")), []any{"2024-02-29"}},
		{"normalize text", mustOp(NewNormalizeText(NormalizeAccents)), []any{"Crème Brûlée"}},
		{"normalize boolean", mustOp(NewNormalizeBoolean(nil, nil, false, false)), []any{"YES", int64(0), "maybe"}},
		{"substitute", mustOp(NewSubstitute(`(\d+)-(\d+)`, `\2-\1`)), []any{"12-34", "none"}},
		{"offset", NewOffset(Int(3)), []any{int64(1), 1.5}},
		{"scale", NewScale(Float(2.0)), []any{int64(2), 0.25}},
		{"reduce", mustOp(NewReduce(ReduceOneHot)), []any{[]any{int64(0), int64(1), int64(0)}}},
		{"round", mustOp(NewRound(2)), []any{1.005, 2.675, int64(4)}},
		{"format number", mustOp(NewFormatNumber(1)), []any{int64(3), 2.25}},
		{"truncate", mustOp(NewTruncate(3)), []any{"abcdef", "ab"}},
		{"do nothing", NewDoNothing(), []any{"x", int64(1), nil}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			data, err := json.Marshal(tc.op)
			require.NoError(t, err)

			decoded, err := Decode(data)
			require.NoError(t, err)
			assert.Equal(t, tc.op.Tag(), decoded.Tag())

			again, err := json.Marshal(decoded)
			require.NoError(t, err)
			assert.JSONEq(t, string(data), string(again))

			for _, in := range tc.inputs {
				want, wantErr := tc.op.Transform(in)
				got, gotErr := decoded.Transform(in)
				assert.Equal(t, wantErr == nil, gotErr == nil, "input %v", in)
				assert.Equal(t, want, got, "input %v", in)
			}
		})
	}
}

func TestDecodeUnknownOperation(t *testing.T) {
	_, err := Decode([]byte(`{"operation": "explode"}`))
	require.Error(t, err)
	assert.True(t, IsUnknownOperationError(err))
	assert.Contains(t, err.Error(), "explode")
}

func TestDecodeMissingTag(t *testing.T) {
	_, err := Decode([]byte(`{"source": "text"}`))
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
}

func TestDecodeMissingParameter(t *testing.T) {
	_, err := Decode([]byte(`{"operation": "threshold", "lower": 0}`))
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
	assert.Contains(t, err.Error(), "upper")
}

func TestDecodeRejectsNonNumericFactors(t *testing.T) {
	for _, doc := range []string{
		`{"operation": "offset", "offset": "3"}`,
		`{"operation": "scale", "scaling_factor": true}`,
		`{"operation": "threshold", "lower": "a", "upper": 1}`,
	} {
		_, err := Decode([]byte(doc))
		require.Error(t, err, doc)
		assert.True(t, IsValidationError(err), doc)
	}
}

func TestTagsCoversEveryDecoder(t *testing.T) {
	tags := Tags()
	assert.Len(t, tags, 16)
	assert.Contains(t, tags, TagEnumToEnum)
	assert.Contains(t, tags, TagNormalizeBoolean)
}

func TestNumberJSON(t *testing.T) {
	data, err := json.Marshal(Float(10))
	require.NoError(t, err)
	assert.Equal(t, "10.0", string(data))

	data, err = json.Marshal(Int(10))
	require.NoError(t, err)
	assert.Equal(t, "10", string(data))

	var n Number
	require.NoError(t, json.Unmarshal([]byte("2.50"), &n))
	assert.True(t, n.IsFloat())
	assert.Equal(t, 2.5, n.Value())

	require.NoError(t, json.Unmarshal([]byte("-7"), &n))
	assert.False(t, n.IsFloat())
	assert.Equal(t, int64(-7), n.Value())

	assert.Error(t, json.Unmarshal([]byte(`"7"`), &n))
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "", FormatValue(nil))
	assert.Equal(t, "10", FormatValue(int64(10)))
	assert.Equal(t, "10.0", FormatValue(10.0))
	assert.Equal(t, "0.25", FormatValue(0.25))
	assert.Equal(t, "True", FormatValue(true))
	assert.Equal(t, "[1, a]", FormatValue([]any{int64(1), "a"}))
}

func TestSequencesApplyElementwise(t *testing.T) {
	op := mustOp(NewTruncate(2))
	out, err := op.Transform([]any{"abc", nil, "d"})
	require.NoError(t, err)
	assert.Equal(t, []any{"ab", nil, "d"}, out)
}

func TestMissingValuesPassThrough(t *testing.T) {
	op := mustOp(NewCast(CastText, CastInteger))
	out, err := op.Transform(nil)
	require.NoError(t, err)
	assert.Nil(t, out)
}
