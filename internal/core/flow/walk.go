package flow

import "strings"

// Rand is the randomness source used by random conditions. *rand.Rand from
// math/rand/v2 satisfies it.
type Rand interface {
	IntN(n int) int
}

// Step is one node visited by Walk. Branch is "yes" or "no" for conditions.
type Step struct {
	Node   Node
	Branch string
}

// Walk follows the graph from its first root, evaluating conditions against
// text, and returns the visited nodes in order. It stops at a node without a
// usable outgoing edge and never visits a node twice.
func Walk(g *Graph, text string, rnd Rand) []Step {
	if g == nil {
		return nil
	}
	roots := g.Roots()
	if len(roots) == 0 {
		return nil
	}

	var steps []Step
	seen := map[string]struct{}{}
	cur := g.Node(roots[0].ID)
	for cur != nil {
		if _, ok := seen[cur.ID]; ok {
			break
		}
		seen[cur.ID] = struct{}{}

		step := Step{Node: *cur}
		var next *Edge
		out := g.Outgoing(cur.ID)
		if cond, ok := cur.Data.(ConditionData); ok {
			step.Branch = HandleNo
			if EvaluateCondition(cond, text, rnd) {
				step.Branch = HandleYes
			}
			for i := range out {
				if out[i].SourceHandle == step.Branch {
					next = &out[i]
					break
				}
			}
		} else if len(out) > 0 {
			next = &out[0]
		}
		steps = append(steps, step)

		if next == nil {
			break
		}
		cur = g.Node(next.Target)
	}
	return steps
}

// EvaluateCondition decides the branch of a condition node. Keyword
// conditions use substring containment over the comma-separated list; an
// empty list passes. Random conditions take the yes branch half the time.
func EvaluateCondition(c ConditionData, text string, rnd Rand) bool {
	switch c.ConditionType {
	case ConditionRandom:
		if rnd == nil {
			return false
		}
		return rnd.IntN(2) == 0
	case ConditionKeyword:
		keywords := SplitKeywords(c.ConditionKeywords)
		if len(keywords) == 0 {
			return true
		}
		haystack := text
		if !c.CaseSensitive {
			haystack = strings.ToLower(text)
		}
		for _, kw := range keywords {
			if !c.CaseSensitive {
				kw = strings.ToLower(kw)
			}
			if strings.Contains(haystack, kw) {
				return true
			}
		}
	}
	return false
}

// SplitKeywords splits a comma-separated keyword list, trimming entries and
// dropping empty ones.
func SplitKeywords(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
