package tree

// SelectNode is the reduced projection used by hierarchical pickers.
type SelectNode struct {
	ID       int64
	Label    string
	Children []SelectNode
}

// ToSelectTree projects nodes onto picker entries, keeping structure and order.
func ToSelectTree(nodes []Node) []SelectNode {
	out := make([]SelectNode, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, SelectNode{
			ID:       n.Department.ID,
			Label:    n.Department.Name,
			Children: ToSelectTree(n.Children),
		})
	}
	return out
}
