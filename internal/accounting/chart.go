package accounting

import (
	"fmt"
	"sort"
)

// GroupNode is one node of the resolved chart of accounts.
type GroupNode struct {
	Group    Group
	Children []*GroupNode
	Ledgers  []Ledger
}

// Chart is the chart of accounts resolved into a forest, one tree per
// top-level group.
type Chart struct {
	Roots []*GroupNode
}

// IntegrityError lists structural defects found while resolving the chart:
// groups pointing at missing parents, ledgers pointing at missing groups, and
// parent cycles. A chart with any of these cannot be rendered or reported on.
type IntegrityError struct {
	OrphanGroups  []int64
	OrphanLedgers []int64
	CycleGroups   []int64
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("chart of accounts integrity: %d orphan groups, %d orphan ledgers, %d groups in cycles",
		len(e.OrphanGroups), len(e.OrphanLedgers), len(e.CycleGroups))
}

// BuildChart resolves flat group and ledger rows into a tree. Structural
// defects abort the build with an IntegrityError naming every offender.
func BuildChart(groups []Group, ledgers []Ledger) (*Chart, error) {
	nodes := make(map[int64]*GroupNode, len(groups))
	for _, g := range groups {
		nodes[g.ID] = &GroupNode{Group: g}
	}

	var integrity IntegrityError
	for _, g := range groups {
		if g.ParentID == nil {
			continue
		}
		if _, ok := nodes[*g.ParentID]; !ok {
			integrity.OrphanGroups = append(integrity.OrphanGroups, g.ID)
		}
	}
	for _, l := range ledgers {
		if _, ok := nodes[l.GroupID]; !ok {
			integrity.OrphanLedgers = append(integrity.OrphanLedgers, l.ID)
		}
	}

	// Walk each group's parent chain. A chain that revisits a group without
	// reaching a root is a cycle.
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[int64]int, len(groups))
	var walk func(id int64) bool
	walk = func(id int64) bool {
		switch state[id] {
		case done:
			return true
		case visiting:
			return false
		}
		state[id] = visiting
		node := nodes[id]
		ok := true
		if p := node.Group.ParentID; p != nil {
			if parent, exists := nodes[*p]; exists {
				ok = walk(parent.Group.ID)
			}
		}
		if ok {
			state[id] = done
		}
		return ok
	}
	for _, g := range groups {
		if !walk(g.ID) {
			integrity.CycleGroups = append(integrity.CycleGroups, g.ID)
			state[g.ID] = done
		}
	}

	if len(integrity.OrphanGroups) > 0 || len(integrity.OrphanLedgers) > 0 || len(integrity.CycleGroups) > 0 {
		sort.Slice(integrity.CycleGroups, func(i, j int) bool { return integrity.CycleGroups[i] < integrity.CycleGroups[j] })
		return nil, &integrity
	}

	for _, l := range ledgers {
		node := nodes[l.GroupID]
		node.Ledgers = append(node.Ledgers, l)
	}

	chart := &Chart{}
	for _, g := range groups {
		node := nodes[g.ID]
		if g.ParentID == nil {
			chart.Roots = append(chart.Roots, node)
			continue
		}
		parent := nodes[*g.ParentID]
		parent.Children = append(parent.Children, node)
	}

	sortNodes(chart.Roots)
	return chart, nil
}

func sortNodes(nodes []*GroupNode) {
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Group.Name < nodes[j].Group.Name })
	for _, n := range nodes {
		sort.Slice(n.Ledgers, func(i, j int) bool { return n.Ledgers[i].Name < n.Ledgers[j].Name })
		sortNodes(n.Children)
	}
}
