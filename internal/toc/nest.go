package toc

// Node is an Entry with the entries nested beneath it.
type Node struct {
	Entry
	Children []*Node `json:"children,omitempty"`
}

// Nest turns a flat entry list into a tree: each entry becomes a child of
// the closest preceding entry with a smaller level. Order is preserved.
func Nest(entries []Entry) []*Node {
	var roots []*Node
	var stack []*Node
	for _, e := range entries {
		n := &Node{Entry: e}
		for len(stack) > 0 && stack[len(stack)-1].Level >= e.Level {
			stack = stack[:len(stack)-1]
		}
		if len(stack) == 0 {
			roots = append(roots, n)
		} else {
			parent := stack[len(stack)-1]
			parent.Children = append(parent.Children, n)
		}
		stack = append(stack, n)
	}
	return roots
}

// Filter keeps entries whose level is within [minLevel, maxLevel].
// A zero bound is open.
func Filter(entries []Entry, minLevel, maxLevel int) []Entry {
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if minLevel > 0 && e.Level < minLevel {
			continue
		}
		if maxLevel > 0 && e.Level > maxLevel {
			continue
		}
		out = append(out, e)
	}
	return out
}
