package flow

import (
	"fmt"
	"strings"
)

// StructureError reports a malformed graph.
type StructureError struct {
	NodeID string
	EdgeID string
	Reason string
}

func (e *StructureError) Error() string {
	var b strings.Builder
	b.WriteString("flow: invalid structure")
	if e.NodeID != "" {
		fmt.Fprintf(&b, ": node %q", e.NodeID)
	}
	if e.EdgeID != "" {
		fmt.Fprintf(&b, ": edge %q", e.EdgeID)
	}
	b.WriteString(": ")
	b.WriteString(e.Reason)
	return b.String()
}

// CycleError reports a directed cycle. Path lists node ids along the cycle,
// starting and ending with the same id.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return "flow: cycle detected: " + strings.Join(e.Path, " -> ")
}

// Validate checks node identity, per-kind enum values, edge endpoints, the
// yes/no fan-out of condition nodes and acyclicity.
func Validate(g *Graph) error {
	if g == nil {
		return &StructureError{Reason: "graph is nil"}
	}

	nodes := make(map[string]Node, len(g.Nodes))
	for i, n := range g.Nodes {
		if n.ID == "" {
			return &StructureError{Reason: fmt.Sprintf("node at index %d has empty id", i)}
		}
		if _, dup := nodes[n.ID]; dup {
			return &StructureError{NodeID: n.ID, Reason: "duplicate node id"}
		}
		if err := validateNode(n); err != nil {
			return err
		}
		nodes[n.ID] = n
	}

	edgeIDs := make(map[string]struct{}, len(g.Edges))
	yes := map[string]int{}
	no := map[string]int{}
	for i, e := range g.Edges {
		if e.ID != "" {
			if _, dup := edgeIDs[e.ID]; dup {
				return &StructureError{EdgeID: e.ID, Reason: "duplicate edge id"}
			}
			edgeIDs[e.ID] = struct{}{}
		}
		ref := e.ID
		if ref == "" {
			ref = fmt.Sprintf("#%d", i)
		}
		src, ok := nodes[e.Source]
		if !ok {
			return &StructureError{EdgeID: ref, Reason: fmt.Sprintf("source references non-existent node %q", e.Source)}
		}
		if _, ok := nodes[e.Target]; !ok {
			return &StructureError{EdgeID: ref, Reason: fmt.Sprintf("target references non-existent node %q", e.Target)}
		}
		if src.Kind != KindCondition {
			continue
		}
		switch e.SourceHandle {
		case HandleYes:
			yes[src.ID]++
			if yes[src.ID] > 1 {
				return &StructureError{NodeID: src.ID, EdgeID: ref, Reason: "condition has more than one yes edge"}
			}
		case HandleNo:
			no[src.ID]++
			if no[src.ID] > 1 {
				return &StructureError{NodeID: src.ID, EdgeID: ref, Reason: "condition has more than one no edge"}
			}
		default:
			return &StructureError{NodeID: src.ID, EdgeID: ref, Reason: fmt.Sprintf("condition edge handle %q is not yes/no", e.SourceHandle)}
		}
	}

	if path := findCycle(g); path != nil {
		return &CycleError{Path: path}
	}
	return nil
}

func validateNode(n Node) error {
	if !n.Kind.Valid() {
		return &StructureError{NodeID: n.ID, Reason: fmt.Sprintf("unknown node type %q", n.Kind)}
	}
	if n.Data == nil {
		return &StructureError{NodeID: n.ID, Reason: "missing data"}
	}
	if n.Data.Kind() != n.Kind {
		return &StructureError{NodeID: n.ID, Reason: fmt.Sprintf("data of kind %q on %q node", n.Data.Kind(), n.Kind)}
	}
	switch d := n.Data.(type) {
	case ButtonData:
		if d.ButtonType != ButtonURL && d.ButtonType != ButtonPostback {
			return &StructureError{NodeID: n.ID, Reason: fmt.Sprintf("invalid buttonType %q", d.ButtonType)}
		}
	case ConditionData:
		if d.ConditionType != ConditionKeyword && d.ConditionType != ConditionRandom {
			return &StructureError{NodeID: n.ID, Reason: fmt.Sprintf("invalid conditionType %q", d.ConditionType)}
		}
	case ActionData:
		switch d.ActionType {
		case ActionSendMessage, ActionAddTag, ActionRemoveTag, ActionNotifyHuman:
		default:
			return &StructureError{NodeID: n.ID, Reason: fmt.Sprintf("invalid actionType %q", d.ActionType)}
		}
	}
	return nil
}

// findCycle runs a three-colour DFS in node order and returns the first
// cycle found, or nil.
func findCycle(g *Graph) []string {
	const (
		white = iota
		grey
		black
	)
	adj := make(map[string][]string, len(g.Nodes))
	for _, e := range g.Edges {
		adj[e.Source] = append(adj[e.Source], e.Target)
	}
	color := make(map[string]int, len(g.Nodes))
	var stack []string

	var visit func(id string) []string
	visit = func(id string) []string {
		color[id] = grey
		stack = append(stack, id)
		for _, next := range adj[id] {
			switch color[next] {
			case grey:
				for i, s := range stack {
					if s == next {
						path := append([]string{}, stack[i:]...)
						return append(path, next)
					}
				}
			case white:
				if p := visit(next); p != nil {
					return p
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[id] = black
		return nil
	}

	for _, n := range g.Nodes {
		if color[n.ID] == white {
			if p := visit(n.ID); p != nil {
				return p
			}
		}
	}
	return nil
}
