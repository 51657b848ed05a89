package tree

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spec-kit/dept-service/internal/domain"
)

func dept(id, parent int64, name string, sort int) domain.Department {
	return domain.Department{ID: id, ParentID: parent, Name: name, Sort: sort, Status: domain.DepartmentEnabled}
}

func disabled(d domain.Department) domain.Department {
	d.Status = domain.DepartmentDisabled
	return d
}

func childIDs(nodes []Node) []int64 {
	ids := make([]int64, 0, len(nodes))
	for _, n := range nodes {
		ids = append(ids, n.Department.ID)
	}
	return ids
}

func TestBuild_NestsChildrenRegardlessOfInputOrder(t *testing.T) {
	records := []domain.Department{
		dept(4, 2, "Payroll", 0),
		dept(3, 1, "Backend", 0),
		dept(1, 0, "Engineering", 0),
		dept(2, 0, "Finance", 1),
	}

	res, err := Build(records, domain.RootDepartmentID, Options{IncludeDisabled: true})
	require.NoError(t, err)
	require.Empty(t, res.Warnings)
	require.Equal(t, []int64{1, 2}, childIDs(res.Nodes))
	require.Equal(t, []int64{3}, childIDs(res.Nodes[0].Children))
	require.Equal(t, []int64{4}, childIDs(res.Nodes[1].Children))
	require.Empty(t, res.Nodes[0].Children[0].Children)
	require.NotNil(t, res.Nodes[0].Children[0].Children)
}

func TestBuild_OrdersBySortThenID(t *testing.T) {
	records := []domain.Department{
		dept(9, 0, "I", 1),
		dept(7, 0, "G", 0),
		dept(3, 0, "C", 1),
		dept(5, 0, "E", -2),
	}

	res, err := Build(records, domain.RootDepartmentID, Options{IncludeDisabled: true})
	require.NoError(t, err)
	require.Equal(t, []int64{5, 7, 3, 9}, childIDs(res.Nodes))
}

func TestBuild_OrphanIsAttachedToRootWithWarning(t *testing.T) {
	records := []domain.Department{{ID: 5, ParentID: 999, Name: "X", Status: domain.DepartmentEnabled}}

	res, err := Build(records, domain.RootDepartmentID, Options{IncludeDisabled: true})
	require.NoError(t, err)
	require.Equal(t, []int64{5}, childIDs(res.Nodes))
	require.Len(t, res.Warnings, 1)
	require.Equal(t, WarningOrphan, res.Warnings[0].Kind)
	require.Equal(t, int64(5), res.Warnings[0].DepartmentID)
	require.Equal(t, int64(999), res.Warnings[0].ParentID)
}

func TestBuild_OrphanKeepsItsSubtree(t *testing.T) {
	records := []domain.Department{
		dept(6, 5, "Child", 0),
		dept(5, 999, "Orphan", 0),
		dept(1, 0, "Top", 0),
	}

	res, err := Build(records, domain.RootDepartmentID, Options{IncludeDisabled: true})
	require.NoError(t, err)
	require.Equal(t, []int64{1, 5}, childIDs(res.Nodes))
	require.Equal(t, []int64{6}, childIDs(res.Nodes[1].Children))
	require.Len(t, res.Warnings, 1)
}

func TestBuild_TwoNodeCycleTerminatesWithWarning(t *testing.T) {
	records := []domain.Department{
		dept(2, 1, "B", 0),
		dept(1, 2, "A", 0),
	}

	res, err := Build(records, domain.RootDepartmentID, Options{IncludeDisabled: true})
	require.NoError(t, err)
	require.Equal(t, []int64{1}, childIDs(res.Nodes))
	require.Equal(t, []int64{2}, childIDs(res.Nodes[0].Children))
	require.Empty(t, res.Nodes[0].Children[0].Children)

	require.Len(t, res.Warnings, 1)
	require.Equal(t, WarningCycle, res.Warnings[0].Kind)
	require.Equal(t, int64(1), res.Warnings[0].DepartmentID)
	require.Equal(t, int64(2), res.Warnings[0].ParentID)
}

func TestBuild_SelfParentIsACycle(t *testing.T) {
	res, err := Build([]domain.Department{dept(3, 3, "Loop", 0)}, domain.RootDepartmentID, Options{IncludeDisabled: true})
	require.NoError(t, err)
	require.Equal(t, []int64{3}, childIDs(res.Nodes))
	require.Len(t, res.Warnings, 1)
	require.Equal(t, WarningCycle, res.Warnings[0].Kind)
}

func TestBuild_CycleWithTailCutsAtSmallestLoopMember(t *testing.T) {
	// 10 -> 30 -> 20 -> 30 loop; 10 is only a tail hanging off the loop.
	records := []domain.Department{
		dept(10, 30, "tail", 0),
		dept(20, 30, "b", 0),
		dept(30, 20, "a", 0),
	}

	res, err := Build(records, domain.RootDepartmentID, Options{IncludeDisabled: true})
	require.NoError(t, err)
	require.Equal(t, []int64{20}, childIDs(res.Nodes))
	require.Equal(t, []int64{30}, childIDs(res.Nodes[0].Children))
	require.Equal(t, []int64{10}, childIDs(res.Nodes[0].Children[0].Children))
	require.Len(t, res.Warnings, 1)
	require.Equal(t, int64(20), res.Warnings[0].DepartmentID)
}

func TestBuild_DisabledSubtreeIsPruned(t *testing.T) {
	records := []domain.Department{
		dept(1, 0, "P", 0),
		disabled(dept(2, 1, "C", 0)),
		dept(3, 2, "G", 0),
	}

	res, err := Build(records, domain.RootDepartmentID, Options{IncludeDisabled: false})
	require.NoError(t, err)
	require.Equal(t, []int64{1}, childIDs(res.Nodes))
	require.Empty(t, res.Nodes[0].Children)

	full, err := Build(records, domain.RootDepartmentID, Options{IncludeDisabled: true})
	require.NoError(t, err)
	require.Equal(t, []int64{1, 2, 3}, IDs(full.Nodes))
}

func TestBuild_SubtreeRoot(t *testing.T) {
	records := []domain.Department{
		dept(1, 0, "Engineering", 0),
		dept(2, 1, "Backend", 1),
		dept(3, 1, "Frontend", 0),
		dept(4, 2, "Platform", 0),
		dept(5, 0, "Sales", 0),
	}

	res, err := Build(records, 1, Options{IncludeDisabled: true})
	require.NoError(t, err)
	require.Equal(t, []int64{3, 2}, childIDs(res.Nodes))
	require.Equal(t, []int64{3, 2, 4}, IDs(res.Nodes))
}

func TestBuild_SubtreeRootWithAnomalies(t *testing.T) {
	records := []domain.Department{
		dept(1, 0, "Engineering", 0),
		dept(5, 999, "Stray", 0),
	}

	res, err := Build(records, 1, Options{IncludeDisabled: true})
	require.NoError(t, err)
	require.Empty(t, res.Nodes)
	require.Len(t, res.Warnings, 1)
	require.Equal(t, WarningOrphan, res.Warnings[0].Kind)
	require.Equal(t, int64(5), res.Warnings[0].DepartmentID)

	// orphans and cut cycles hang off the sentinel, never off the requested subtree
	records = append(records,
		dept(2, 1, "Backend", 0),
		dept(10, 11, "Loop A", 0),
		dept(11, 10, "Loop B", 0),
	)
	res, err = Build(records, 1, Options{IncludeDisabled: true})
	require.NoError(t, err)
	require.Equal(t, []int64{2}, IDs(res.Nodes))
	require.Len(t, res.Warnings, 2)
	require.Equal(t, WarningOrphan, res.Warnings[0].Kind)
	require.Equal(t, WarningCycle, res.Warnings[1].Kind)
	require.Equal(t, int64(10), res.Warnings[1].DepartmentID)

	whole, err := Build(records, domain.RootDepartmentID, Options{IncludeDisabled: true})
	require.NoError(t, err)
	require.Equal(t, []int64{1, 5, 10}, childIDs(whole.Nodes))
}

func TestBuild_DisabledSubtreeRootYieldsEmptyForest(t *testing.T) {
	records := []domain.Department{
		disabled(dept(1, 0, "Archive", 0)),
		dept(2, 1, "Old", 0),
	}

	res, err := Build(records, 1, Options{IncludeDisabled: false})
	require.NoError(t, err)
	require.Empty(t, res.Nodes)
}

func TestBuild_MissingRootFails(t *testing.T) {
	_, err := Build([]domain.Department{dept(1, 0, "A", 0)}, 42, Options{IncludeDisabled: true})
	require.Error(t, err)

	var integrityErr *DataIntegrityError
	require.True(t, errors.As(err, &integrityErr))
	require.Equal(t, int64(42), integrityErr.RootID)
}

func TestBuild_EmptyInput(t *testing.T) {
	res, err := Build(nil, domain.RootDepartmentID, Options{})
	require.NoError(t, err)
	require.NotNil(t, res.Nodes)
	require.Empty(t, res.Nodes)
	require.Empty(t, res.Warnings)
}

func TestBuild_IgnoresSentinelIDAndDuplicates(t *testing.T) {
	records := []domain.Department{
		dept(0, 0, "bogus", 0),
		dept(1, 0, "first", 0),
		dept(1, 0, "second", 0),
	}

	res, err := Build(records, domain.RootDepartmentID, Options{IncludeDisabled: true})
	require.NoError(t, err)
	require.Len(t, res.Nodes, 1)
	require.Equal(t, "first", res.Nodes[0].Department.Name)
}

func TestBuild_IsIdempotent(t *testing.T) {
	records := []domain.Department{
		dept(3, 1, "c", 0),
		dept(1, 0, "a", 0),
		dept(2, 0, "b", 0),
		dept(4, 77, "orphan", 0),
	}

	first, err := Build(records, domain.RootDepartmentID, Options{IncludeDisabled: true})
	require.NoError(t, err)
	second, err := Build(records, domain.RootDepartmentID, Options{IncludeDisabled: true})
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestContainsAndWalk(t *testing.T) {
	records := []domain.Department{
		dept(1, 0, "a", 0),
		dept(2, 1, "b", 0),
		dept(3, 2, "c", 0),
	}
	res, err := Build(records, domain.RootDepartmentID, Options{IncludeDisabled: true})
	require.NoError(t, err)

	require.True(t, Contains(res.Nodes, 3))
	require.False(t, Contains(res.Nodes, 4))

	var visited []int64
	Walk(res.Nodes, func(n Node) bool {
		visited = append(visited, n.Department.ID)
		return n.Department.ID != 2
	})
	require.Equal(t, []int64{1, 2}, visited)
}
