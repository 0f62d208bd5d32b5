package pivot

// Axis identifies the orientation of a hierarchy.
type Axis string

const (
	AxisRows    Axis = "rows"
	AxisColumns Axis = "columns"
)

// Node is a single dimension value within a hierarchy.
type Node struct {
	Label     string
	Depth     int
	Key       string
	Children  []*Node
	LeafCount int
	Parent    *Node

	index map[string]*Node
}

// IsLeaf reports whether the node sits on the last dimension level.
func (n *Node) IsLeaf() bool {
	return len(n.Children) == 0
}

// HeaderCell is a merged header entry produced for column hierarchies.
type HeaderCell struct {
	Text    string
	Key     string
	ColSpan int
}

// Tree is an insertion-ordered dimension hierarchy for one axis.
type Tree struct {
	Axis       Axis
	Fields     []string
	Root       *Node
	LeafKeys   []string
	HeaderRows [][]HeaderCell

	nodes map[string]*Node
}

// BuildTree derives the hierarchy for the given dimension fields. Rows with a
// blank value in any field are skipped.
func BuildTree(rows []Row, fields []string, axis Axis) *Tree {
	tree := &Tree{
		Axis:   axis,
		Fields: append([]string(nil), fields...),
		Root:   &Node{Depth: 0, index: map[string]*Node{}},
		nodes:  map[string]*Node{},
	}
	if len(fields) == 0 {
		tree.Root.LeafCount = 1
		tree.LeafKeys = []string{NoKey}
		if axis == AxisColumns {
			tree.HeaderRows = [][]HeaderCell{}
		}
		return tree
	}
	for _, rec := range rows {
		parts, ok := rowKey(rec, fields)
		if !ok {
			continue
		}
		tree.insert(parts)
	}
	tree.finalize()
	return tree
}

func (t *Tree) insert(parts []string) {
	node := t.Root
	for depth, label := range parts {
		child, ok := node.index[label]
		if !ok {
			child = &Node{
				Label:  label,
				Depth:  depth + 1,
				Key:    PrefixKey(parts, depth+1),
				Parent: node,
				index:  map[string]*Node{},
			}
			node.index[label] = child
			node.Children = append(node.Children, child)
			t.nodes[child.Key] = child
		}
		node = child
	}
}

func (t *Tree) finalize() {
	t.LeafKeys = t.LeafKeys[:0]
	countLeaves(t.Root)
	t.collectLeaves(t.Root)
	if t.Axis == AxisColumns {
		t.HeaderRows = t.headerRows()
	}
}

func countLeaves(n *Node) int {
	if len(n.Children) == 0 {
		if n.Depth == 0 {
			n.LeafCount = 0
			return 0
		}
		n.LeafCount = 1
		return 1
	}
	total := 0
	for _, child := range n.Children {
		total += countLeaves(child)
	}
	n.LeafCount = total
	return total
}

func (t *Tree) collectLeaves(n *Node) {
	if len(n.Children) == 0 {
		if n.Depth > 0 {
			t.LeafKeys = append(t.LeafKeys, n.Key)
		}
		return
	}
	for _, child := range n.Children {
		t.collectLeaves(child)
	}
}

func (t *Tree) headerRows() [][]HeaderCell {
	levels := make([][]HeaderCell, len(t.Fields))
	var walk func(n *Node)
	walk = func(n *Node) {
		for _, child := range n.Children {
			levels[child.Depth-1] = append(levels[child.Depth-1], HeaderCell{
				Text:    child.Label,
				Key:     child.Key,
				ColSpan: child.LeafCount,
			})
			walk(child)
		}
	}
	walk(t.Root)
	return levels
}

// Node returns the node for a prefix or leaf key.
func (t *Tree) Node(key string) (*Node, bool) {
	n, ok := t.nodes[key]
	return n, ok
}

// Levels returns the number of dimension levels.
func (t *Tree) Levels() int {
	return len(t.Fields)
}

// Empty reports whether the tree has no leaves.
func (t *Tree) Empty() bool {
	return len(t.LeafKeys) == 0
}

// LeavesUnder returns the leaves below a prefix in the supplied order.
func LeavesUnder(prefix string, ordered []string) []string {
	var out []string
	for _, key := range ordered {
		if HasPrefix(key, prefix) {
			out = append(out, key)
		}
	}
	return out
}

// ParentPrefixes returns every prefix with children (depth 1..levels-1) for
// the given leaves, outermost first, without duplicates.
func ParentPrefixes(leaves []string, levels int) []string {
	seen := map[string]struct{}{}
	var out []string
	for depth := 1; depth < levels; depth++ {
		for _, leaf := range leaves {
			parts := SplitKey(leaf)
			if len(parts) <= depth {
				continue
			}
			prefix := PrefixKey(parts, depth)
			if _, ok := seen[prefix]; ok {
				continue
			}
			seen[prefix] = struct{}{}
			out = append(out, prefix)
		}
	}
	return out
}
