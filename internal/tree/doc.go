// Package tree turns flat department snapshots into ordered, owned trees.
//
// Build indexes the records by identifier, resolves every record's effective parent
// (reattaching orphans and breaking parent cycles at the root), sorts each sibling list by
// (Sort, ID) and finally materializes value nodes. Nodes never reference each other, so the
// result is safe to serialize and to share between goroutines once built.
package tree
