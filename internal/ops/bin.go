package ops

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

// Interval is a labeled closed range [Start, End].
type Interval struct {
	Label int64 `json:"label"`
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

// Bin assigns numbers to the label of the interval that contains them.
//
// Intervals are held in a balanced binary search tree built once from the
// intervals sorted by lower bound, so lookup is O(log n). Values outside every
// interval yield nil and a warning.
type Bin struct {
	bins []Interval
	root *binNode
}

type binNode struct {
	Interval
	left, right *binNode
}

// NewBin creates a Bin. Intervals must satisfy Start <= End and must not
// overlap each other.
func NewBin(bins []Interval) (*Bin, error) {
	sorted := make([]Interval, len(bins))
	copy(sorted, bins)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	for i, b := range sorted {
		if b.Start > b.End {
			return nil, validationError(TagBin, "bin %d has inverted range [%d, %d]", b.Label, b.Start, b.End)
		}
		if i > 0 && b.Start <= sorted[i-1].End {
			prev := sorted[i-1]
			return nil, validationError(TagBin, "bin %d [%d, %d] overlaps bin %d [%d, %d]",
				b.Label, b.Start, b.End, prev.Label, prev.Start, prev.End)
		}
	}

	kept := make([]Interval, len(bins))
	copy(kept, bins)
	return &Bin{bins: kept, root: buildBinTree(sorted)}, nil
}

// buildBinTree roots each subtree at the median interval.
func buildBinTree(sorted []Interval) *binNode {
	if len(sorted) == 0 {
		return nil
	}
	mid := (len(sorted) - 1) / 2
	return &binNode{
		Interval: sorted[mid],
		left:     buildBinTree(sorted[:mid]),
		right:    buildBinTree(sorted[mid+1:]),
	}
}

func (b *Bin) operation()  {}
func (b *Bin) Tag() string { return TagBin }

func (b *Bin) String() string {
	lines := []string{"Group data into the following bins:"}
	for _, iv := range b.bins {
		lines = append(lines, fmt.Sprintf("Label: %d, Start: %d, End: %d", iv.Label, iv.Start, iv.End))
	}
	return strings.Join(lines, "\n")
}

func (b *Bin) Transform(value any) (any, error) {
	return elementwise(value, b.lookup)
}

func (b *Bin) lookup(v any) (any, error) {
	if _, ok := v.(bool); ok {
		return nil, typeError(TagBin, v, "number")
	}
	f, ok := numeric(v)
	if !ok {
		return nil, typeError(TagBin, v, "number")
	}
	node := b.root
	for node != nil {
		switch {
		case f < float64(node.Start):
			node = node.left
		case f > float64(node.End):
			node = node.right
		default:
			return node.Label, nil
		}
	}
	slog.Warn("value does not belong to a bin", "value", v)
	return nil, nil
}

type binWire struct {
	Operation string      `json:"operation"`
	Bins      *[]Interval `json:"bins"`
}

func (b *Bin) MarshalJSON() ([]byte, error) {
	return json.Marshal(binWire{Operation: TagBin, Bins: &b.bins})
}

func decodeBin(data []byte) (Operation, error) {
	var w binWire
	if err := decodeParams(TagBin, data, &w); err != nil {
		return nil, err
	}
	if w.Bins == nil {
		return nil, missing(TagBin, "bins")
	}
	return NewBin(*w.Bins)
}
