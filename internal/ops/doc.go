// Package ops provides the primitive value transforms that harmonization
// rules are built from.
//
// Every primitive is a small, pure, parameterized function with a stable
// JSON wire form: an object whose "operation" field carries a lowercase
// snake_case tag (cast, threshold, bin, ...) followed by the primitive's own
// parameters. Decode maps a tag back to a validated Operation.
//
// Values flowing through primitives are plain Go values:
//   - nil for a missing cell
//   - int64 and float64 for numbers (integer-ness is preserved)
//   - string and bool
//   - []any for a sequence
//
// Scalar primitives applied to a sequence transform each element and return a
// sequence of the same length. Reduce is the only N-to-1 primitive.
package ops
