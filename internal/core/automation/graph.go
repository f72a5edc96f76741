package automation

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/replyflow/core/internal/core/flow"
)

const (
	layoutX    = 250
	layoutStep = 150
)

// Diagnostic names a part of a graph that FromGraph could not merge.
type Diagnostic struct {
	NodeID string `json:"node_id,omitempty"`
	Reason string `json:"reason"`
}

func (d Diagnostic) String() string {
	if d.NodeID == "" {
		return d.Reason
	}
	return fmt.Sprintf("%s: %s", d.NodeID, d.Reason)
}

// ToGraph lays out a as the chain
// [condition] -yes-> autoresponder -> [button] -> [instagramMessage].
func ToGraph(a Automation) *flow.Graph {
	g := &flow.Graph{
		Nodes:    []flow.Node{},
		Edges:    []flow.Edge{},
		Metadata: flow.Metadata{Origin: flow.OriginLegacyForm, UpdatedAt: time.Now().UTC()},
	}

	prev := ""
	add := func(data flow.NodeData, handle string) {
		n := flow.NewNode(uuid.NewString(), data, flow.Position{X: layoutX, Y: float64(len(g.Nodes) * layoutStep)})
		g.Nodes = append(g.Nodes, n)
		if prev != "" {
			g.Edges = append(g.Edges, flow.Edge{
				ID:           uuid.NewString(),
				Source:       prev,
				Target:       n.ID,
				SourceHandle: handle,
			})
		}
		prev = n.ID
	}

	if len(a.Keywords) > 0 {
		add(flow.ConditionData{
			ConditionType:     flow.ConditionKeyword,
			ConditionKeywords: strings.Join(a.Keywords, ", "),
		}, "")
	}

	handle := ""
	if prev != "" {
		handle = flow.HandleYes
	}
	keywords := append([]string{}, a.Keywords...)
	add(flow.AutoresponderData{
		Message:         a.Message,
		Keywords:        keywords,
		Active:          a.Active,
		AutoresponderID: a.ID,
	}, handle)

	if a.Button == nil {
		return g
	}
	b := a.Button
	data := flow.ButtonData{
		Message:    a.Message,
		ButtonText: b.Title,
		ButtonType: toNodeButtonType(b.Type),
	}
	switch b.Type {
	case ButtonWebURL:
		data.ButtonURL = b.URL
	case ButtonPostback:
		data.PostbackPayload = b.Payload
		data.PostbackResponse = b.Response
	}
	add(data, "")

	if b.Type == ButtonPostback && b.Response != "" {
		add(flow.InstagramMessageData{Message: b.Response, Active: true}, "")
	}
	return g
}

// FromGraph merges the recognizable parts of g into base. Whatever it cannot
// merge is reported as a diagnostic; when nothing is recognizable base is
// returned unchanged.
func FromGraph(g *flow.Graph, base Automation) (Automation, []Diagnostic) {
	var diags []Diagnostic
	if g == nil {
		return base, []Diagnostic{{Reason: "graph is empty"}}
	}
	if err := flow.Validate(g); err != nil {
		return base, []Diagnostic{{Reason: err.Error()}}
	}

	var cond, auto, btn *flow.Node
	for i := range g.Nodes {
		n := &g.Nodes[i]
		switch n.Kind {
		case flow.KindCondition:
			c, _ := n.Data.(flow.ConditionData)
			switch {
			case cond != nil:
				diags = append(diags, Diagnostic{NodeID: n.ID, Reason: "only the first condition node is used"})
			case c.ConditionType != flow.ConditionKeyword:
				diags = append(diags, Diagnostic{NodeID: n.ID, Reason: fmt.Sprintf("%s conditions have no flat equivalent", c.ConditionType)})
			default:
				cond = n
			}
		case flow.KindAutoresponder:
			if auto != nil {
				diags = append(diags, Diagnostic{NodeID: n.ID, Reason: "only the first autoresponder node is used"})
				continue
			}
			auto = n
		case flow.KindButton:
			if btn != nil {
				diags = append(diags, Diagnostic{NodeID: n.ID, Reason: "only the first button node is used"})
				continue
			}
			btn = n
		case flow.KindAction:
			diags = append(diags, Diagnostic{NodeID: n.ID, Reason: "action nodes have no flat equivalent"})
		}
	}

	if cond == nil && auto == nil && btn == nil {
		return base, append(diags, Diagnostic{Reason: "no condition, autoresponder or button node found"})
	}

	out := base
	out.Keywords = append([]string{}, base.Keywords...)
	out.ReplyPool = append([]string{}, base.ReplyPool...)
	if base.Button != nil {
		b := *base.Button
		out.Button = &b
	}

	switch {
	case cond != nil:
		out.Keywords = NormalizeKeywords(flow.SplitKeywords(cond.Data.(flow.ConditionData).ConditionKeywords))
	case auto != nil:
		out.Keywords = NormalizeKeywords(auto.Data.(flow.AutoresponderData).Keywords)
	}

	if auto != nil {
		ad := auto.Data.(flow.AutoresponderData)
		out.Message = ad.Message
		out.Active = ad.Active
	}

	if btn == nil {
		if auto != nil {
			out.Button = nil
		}
		diags = append(diags, strayMessages(g, nil)...)
		return out, diags
	}

	bd := btn.Data.(flow.ButtonData)
	if bd.Message != "" {
		out.Message = bd.Message
	}
	b := &Button{Title: bd.ButtonText}
	switch bd.ButtonType {
	case flow.ButtonURL:
		b.Type = ButtonWebURL
		b.URL = bd.ButtonURL
	case flow.ButtonPostback:
		b.Type = ButtonPostback
		b.Payload = bd.PostbackPayload
		b.Response = bd.PostbackResponse
		if b.Response == "" {
			if msg := trailingMessage(g, btn.ID); msg != nil {
				b.Response = msg.Data.(flow.InstagramMessageData).Message
			}
		}
		if b.Payload == "" && base.Button != nil && base.Button.Type == ButtonPostback {
			b.Payload = base.Button.Payload
		}
	default:
		return base, append(diags, Diagnostic{NodeID: btn.ID, Reason: fmt.Sprintf("unknown button type %q", bd.ButtonType)})
	}
	out.Button = b
	diags = append(diags, strayMessages(g, btn)...)
	return out, diags
}

// trailingMessage returns the instagramMessage node wired directly from the
// button node, if any.
func trailingMessage(g *flow.Graph, buttonID string) *flow.Node {
	for _, e := range g.Outgoing(buttonID) {
		if n := g.Node(e.Target); n != nil && n.Kind == flow.KindInstagramMessage {
			return n
		}
	}
	return nil
}

func strayMessages(g *flow.Graph, btn *flow.Node) []Diagnostic {
	var trailing *flow.Node
	if btn != nil && btn.Data.(flow.ButtonData).ButtonType == flow.ButtonPostback {
		trailing = trailingMessage(g, btn.ID)
	}
	var diags []Diagnostic
	for _, n := range g.Nodes {
		if n.Kind != flow.KindInstagramMessage {
			continue
		}
		if trailing != nil && n.ID == trailing.ID {
			continue
		}
		diags = append(diags, Diagnostic{NodeID: n.ID, Reason: "message node is not the postback response of a button"})
	}
	return diags
}

func toNodeButtonType(t ButtonType) flow.ButtonType {
	if t == ButtonWebURL {
		return flow.ButtonURL
	}
	return flow.ButtonPostback
}
