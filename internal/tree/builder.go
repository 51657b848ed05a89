package tree

import (
	"fmt"
	"sort"

	"github.com/spec-kit/dept-service/internal/domain"
)

// Options controls which departments Build emits.
type Options struct {
	IncludeDisabled bool
}

// Node is a department together with its ordered children.
type Node struct {
	Department domain.Department
	Children   []Node
}

// WarningKind classifies a recovered data-quality anomaly.
type WarningKind string

const (
	WarningOrphan WarningKind = "orphan"
	WarningCycle  WarningKind = "cycle"
)

// Warning reports an anomaly Build recovered from instead of failing.
type Warning struct {
	Kind         WarningKind
	DepartmentID int64
	ParentID     int64
	Message      string
}

// Result is the forest under the requested root plus any recovered anomalies.
type Result struct {
	Nodes    []Node
	Warnings []Warning
}

// DataIntegrityError is returned when the requested root is not part of the snapshot.
type DataIntegrityError struct {
	RootID int64
}

func (e *DataIntegrityError) Error() string {
	return fmt.Sprintf("department tree root %d does not exist", e.RootID)
}

// Build assembles the departments below rootID into an ordered forest.
//
// Records may arrive in any order. A record whose parent is missing is attached to the root
// sentinel and reported as an orphan; a parent chain that loops is cut at its smallest ID,
// which is attached to the root sentinel and reported as a cycle. With IncludeDisabled unset
// a disabled department is dropped together with its whole subtree. Records carrying the
// sentinel ID are ignored, and for a repeated ID the first record wins.
func Build(records []domain.Department, rootID int64, opts Options) (Result, error) {
	byID := make(map[int64]domain.Department, len(records))
	for _, rec := range records {
		if rec.ID == domain.RootDepartmentID {
			continue
		}
		if _, dup := byID[rec.ID]; dup {
			continue
		}
		byID[rec.ID] = rec
	}

	if rootID != domain.RootDepartmentID {
		if _, ok := byID[rootID]; !ok {
			return Result{}, &DataIntegrityError{RootID: rootID}
		}
	}

	ids := make([]int64, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	parents, warnings := resolveParents(byID, ids)

	b := &builder{
		byID:     byID,
		children: indexChildren(byID, ids, parents),
		opts:     opts,
		onPath:   make(map[int64]struct{}),
	}

	if rootID != domain.RootDepartmentID && !opts.IncludeDisabled && !byID[rootID].Enabled() {
		return Result{Nodes: []Node{}, Warnings: warnings}, nil
	}

	nodes := b.assemble(rootID)
	return Result{Nodes: nodes, Warnings: append(warnings, b.warnings...)}, nil
}

const (
	unvisited = iota
	inProgress
	resolved
)

// resolveParents maps every ID to the parent it is attached under. Walks start from the
// sorted IDs, so the chosen cut points and the warning order depend only on the input set.
func resolveParents(byID map[int64]domain.Department, ids []int64) (map[int64]int64, []Warning) {
	parents := make(map[int64]int64, len(ids))
	state := make(map[int64]int8, len(ids))
	var warnings []Warning

	for _, id := range ids {
		var path []int64
		cur := id
		for state[cur] == unvisited {
			state[cur] = inProgress
			path = append(path, cur)

			parent := byID[cur].ParentID
			parents[cur] = parent
			if parent == domain.RootDepartmentID {
				break
			}
			if _, ok := byID[parent]; !ok {
				parents[cur] = domain.RootDepartmentID
				warnings = append(warnings, Warning{
					Kind:         WarningOrphan,
					DepartmentID: cur,
					ParentID:     parent,
					Message:      fmt.Sprintf("department %d references missing parent %d; attached to root", cur, parent),
				})
				break
			}
			if state[parent] == inProgress {
				entry := smallestOnLoop(path, parent)
				warnings = append(warnings, Warning{
					Kind:         WarningCycle,
					DepartmentID: entry,
					ParentID:     byID[entry].ParentID,
					Message:      fmt.Sprintf("department %d is part of a parent cycle; attached to root", entry),
				})
				parents[entry] = domain.RootDepartmentID
				break
			}
			cur = parent
		}
		for _, p := range path {
			state[p] = resolved
		}
	}
	return parents, warnings
}

// smallestOnLoop returns the smallest ID of the loop that starts where path reaches start.
func smallestOnLoop(path []int64, start int64) int64 {
	i := len(path) - 1
	for i > 0 && path[i] != start {
		i--
	}
	entry := path[i]
	for _, id := range path[i:] {
		if id < entry {
			entry = id
		}
	}
	return entry
}

func indexChildren(byID map[int64]domain.Department, ids []int64, parents map[int64]int64) map[int64][]int64 {
	children := make(map[int64][]int64, len(ids))
	for _, id := range ids {
		p := parents[id]
		children[p] = append(children[p], id)
	}
	for _, siblings := range children {
		sort.Slice(siblings, func(i, j int) bool {
			a, b := byID[siblings[i]], byID[siblings[j]]
			if a.Sort != b.Sort {
				return a.Sort < b.Sort
			}
			return a.ID < b.ID
		})
	}
	return children
}

type builder struct {
	byID     map[int64]domain.Department
	children map[int64][]int64
	opts     Options
	onPath   map[int64]struct{}
	warnings []Warning
}

func (b *builder) assemble(parentID int64) []Node {
	ids := b.children[parentID]
	nodes := make([]Node, 0, len(ids))

	b.onPath[parentID] = struct{}{}
	defer delete(b.onPath, parentID)

	for _, id := range ids {
		if _, looping := b.onPath[id]; looping {
			b.warnings = append(b.warnings, Warning{
				Kind:         WarningCycle,
				DepartmentID: id,
				ParentID:     parentID,
				Message:      fmt.Sprintf("department %d is already an ancestor of %d; subtree truncated", id, parentID),
			})
			continue
		}
		dept := b.byID[id]
		if !b.opts.IncludeDisabled && !dept.Enabled() {
			continue
		}
		nodes = append(nodes, Node{Department: dept, Children: b.assemble(id)})
	}
	return nodes
}
