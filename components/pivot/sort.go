package pivot

import (
	"sort"
	"strconv"
	"strings"

	"github.com/google/btree"
)

// SortDirection orders a row level or a value column.
type SortDirection string

const (
	SortNone SortDirection = ""
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// Next cycles none → desc → asc → none.
func (d SortDirection) Next() SortDirection {
	switch d {
	case SortNone:
		return SortDesc
	case SortDesc:
		return SortAsc
	default:
		return SortNone
	}
}

// Glyph returns the arrow rendered in front of sorted headers.
func (d SortDirection) Glyph() string {
	switch d {
	case SortAsc:
		return "▲"
	case SortDesc:
		return "▼"
	default:
		return ""
	}
}

// ParseSortDirection accepts asc/desc in any case; anything else is none.
func ParseSortDirection(raw string) SortDirection {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "asc", "ascending":
		return SortAsc
	case "desc", "descending":
		return SortDesc
	default:
		return SortNone
	}
}

// ValueSort targets a column leaf/prefix key or TotalKey.
type ValueSort struct {
	Key string        `json:"key,omitempty"`
	Dir SortDirection `json:"dir,omitempty"`
}

// Active reports whether a value sort applies.
func (v ValueSort) Active() bool {
	return v.Key != "" && v.Dir != SortNone
}

// SortState holds header sort directions per row level and the value sort.
type SortState struct {
	Levels []SortDirection `json:"levels,omitempty"`
	Value  ValueSort       `json:"value,omitempty"`
}

// Level returns the direction of a row level.
func (s SortState) Level(level int) SortDirection {
	if level < 0 || level >= len(s.Levels) {
		return SortNone
	}
	return s.Levels[level]
}

// CycleLevel advances the header sort of one row level.
func (s *SortState) CycleLevel(level int) SortDirection {
	if level < 0 {
		return SortNone
	}
	for len(s.Levels) <= level {
		s.Levels = append(s.Levels, SortNone)
	}
	s.Levels[level] = s.Levels[level].Next()
	return s.Levels[level]
}

// CycleValue advances the value sort. Clicking a different target restarts
// the cycle on that target.
func (s *SortState) CycleValue(key string) SortDirection {
	if key == "" {
		return SortNone
	}
	if s.Value.Key != key {
		s.Value = ValueSort{Key: key, Dir: SortDesc}
		return SortDesc
	}
	s.Value.Dir = s.Value.Dir.Next()
	if s.Value.Dir == SortNone {
		s.Value.Key = ""
	}
	return s.Value.Dir
}

// Fingerprint is a stable textual form used in cache keys.
func (s SortState) Fingerprint() string {
	var b strings.Builder
	for i, dir := range s.Levels {
		if dir == SortNone {
			continue
		}
		b.WriteString(strconv.Itoa(i))
		b.WriteString(string(dir))
		b.WriteByte(';')
	}
	if s.Value.Active() {
		b.WriteString("v:")
		b.WriteString(s.Value.Key)
		b.WriteString(string(s.Value.Dir))
	}
	return b.String()
}

// compareLabels compares numerically when both labels are numbers, otherwise
// case-insensitively with the raw label as tie-break.
func compareLabels(a, b string) int {
	fa, errA := strconv.ParseFloat(a, 64)
	fb, errB := strconv.ParseFloat(b, 64)
	if errA == nil && errB == nil {
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	}
	if c := strings.Compare(strings.ToLower(a), strings.ToLower(b)); c != 0 {
		return c
	}
	return strings.Compare(a, b)
}

// SortLeaves returns the tree's leaves ordered by per-level header sort.
// Levels without a direction keep insertion order.
func SortLeaves(tree *Tree, levels []SortDirection) []string {
	if tree == nil {
		return nil
	}
	if len(tree.Fields) == 0 {
		return append([]string(nil), tree.LeafKeys...)
	}
	out := make([]string, 0, len(tree.LeafKeys))
	var walk func(n *Node)
	walk = func(n *Node) {
		if len(n.Children) == 0 {
			if n.Depth > 0 {
				out = append(out, n.Key)
			}
			return
		}
		children := n.Children
		dir := SortNone
		if n.Depth < len(levels) {
			dir = levels[n.Depth]
		}
		if dir != SortNone {
			children = append([]*Node(nil), n.Children...)
			sort.SliceStable(children, func(i, j int) bool {
				c := compareLabels(children[i].Label, children[j].Label)
				if dir == SortDesc {
					return c > 0
				}
				return c < 0
			})
		}
		for _, child := range children {
			walk(child)
		}
	}
	walk(tree.Root)
	return out
}

type valueGroup struct {
	primary  int
	hasValue bool
	value    float64
	label    string
	seq      int
	leaves   []string
}

// ValueSortOptions configures ApplyValueSort.
type ValueSortOptions struct {
	// Levels is the number of row dimensions.
	Levels int
	Dir    SortDirection
	// LevelZeroPrimary keeps the outermost level order when it has a header
	// sort. When the value groups are level 0 themselves (one or two row
	// dimensions) the header order wins outright.
	LevelZeroPrimary bool
	// ValueOf returns the aggregate of the sort target over a group's leaves.
	ValueOf func(leaves []string) (float64, bool)
}

// ApplyValueSort reorders parent groups (the prefix one level above the leaf;
// single-level rows use each leaf as its own group) by their aggregate. Leaves
// within a group keep their incoming order. Groups without a value sort last.
func ApplyValueSort(ordered []string, opts ValueSortOptions) []string {
	if opts.Dir == SortNone || opts.ValueOf == nil || opts.Levels == 0 || len(ordered) < 2 {
		return ordered
	}
	groupDepth := opts.Levels - 1
	if groupDepth < 1 {
		groupDepth = 1
	}
	if opts.LevelZeroPrimary && groupDepth == 1 {
		return ordered
	}
	primaryUsed := opts.LevelZeroPrimary

	var groups []*valueGroup
	byPrefix := map[string]*valueGroup{}
	topPos := map[string]int{}
	for _, leaf := range ordered {
		parts := SplitKey(leaf)
		prefix := PrefixKey(parts, groupDepth)
		g, ok := byPrefix[prefix]
		if !ok {
			g = &valueGroup{label: KeyLabel(prefix), seq: len(groups)}
			if primaryUsed {
				top := PrefixKey(parts, 1)
				pos, seen := topPos[top]
				if !seen {
					pos = len(topPos)
					topPos[top] = pos
				}
				g.primary = pos
			}
			byPrefix[prefix] = g
			groups = append(groups, g)
		}
		g.leaves = append(g.leaves, leaf)
	}
	desc := opts.Dir == SortDesc
	index := btree.NewG[*valueGroup](8, func(a, b *valueGroup) bool {
		if a.primary != b.primary {
			return a.primary < b.primary
		}
		if a.hasValue != b.hasValue {
			return a.hasValue
		}
		if a.hasValue && a.value != b.value {
			if desc {
				return a.value > b.value
			}
			return a.value < b.value
		}
		if c := compareLabels(a.label, b.label); c != 0 {
			return c < 0
		}
		return a.seq < b.seq
	})
	for _, g := range groups {
		g.value, g.hasValue = opts.ValueOf(g.leaves)
		index.ReplaceOrInsert(g)
	}
	out := make([]string, 0, len(ordered))
	index.Ascend(func(g *valueGroup) bool {
		out = append(out, g.leaves...)
		return true
	})
	return out
}
