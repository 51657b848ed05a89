package tree

// Walk visits nodes depth-first in output order. Returning false from fn stops the walk.
func Walk(nodes []Node, fn func(Node) bool) bool {
	for _, n := range nodes {
		if !fn(n) {
			return false
		}
		if !Walk(n.Children, fn) {
			return false
		}
	}
	return true
}

// Contains reports whether id occurs anywhere in nodes.
func Contains(nodes []Node, id int64) bool {
	found := false
	Walk(nodes, func(n Node) bool {
		found = n.Department.ID == id
		return !found
	})
	return found
}

// IDs lists every department ID in depth-first output order.
func IDs(nodes []Node) []int64 {
	var ids []int64
	Walk(nodes, func(n Node) bool {
		ids = append(ids, n.Department.ID)
		return true
	})
	return ids
}
