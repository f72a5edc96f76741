// Package flow models one automation's conversation as a graph of typed nodes
// connected by directed edges, the representation edited in the visual editor.
package flow

import "time"

// Kind discriminates node variants. It is set when a node is constructed and
// is never inferred from which data fields happen to be present.
type Kind string

const (
	KindAutoresponder    Kind = "autoresponder"
	KindButton           Kind = "button"
	KindCondition        Kind = "condition"
	KindInstagramMessage Kind = "instagramMessage"
	KindAction           Kind = "action"
)

// Valid reports whether k is one of the five node kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindAutoresponder, KindButton, KindCondition, KindInstagramMessage, KindAction:
		return true
	}
	return false
}

// ButtonType is the node-level button variant. The flat config calls the URL
// variant "web_url"; the graph calls it "url".
type ButtonType string

const (
	ButtonURL      ButtonType = "url"
	ButtonPostback ButtonType = "postback"
)

type ConditionType string

const (
	ConditionKeyword ConditionType = "keyword"
	ConditionRandom  ConditionType = "random"
)

type ActionType string

const (
	ActionSendMessage ActionType = "send_message"
	ActionAddTag      ActionType = "add_tag"
	ActionRemoveTag   ActionType = "remove_tag"
	ActionNotifyHuman ActionType = "notify_human"
)

// Edge handles used on the outgoing edges of a condition node.
const (
	HandleYes = "yes"
	HandleNo  = "no"
)

// Position is the canvas location of a node. It carries no semantics.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// NodeData is implemented by the per-kind payloads below.
type NodeData interface {
	Kind() Kind
}

type AutoresponderData struct {
	Message         string   `json:"message"`
	Keywords        []string `json:"keywords"`
	Active          bool     `json:"active"`
	AutoresponderID string   `json:"autoresponder_id,omitempty"`
}

func (AutoresponderData) Kind() Kind { return KindAutoresponder }

type ButtonData struct {
	Message          string     `json:"message"`
	ButtonText       string     `json:"buttonText"`
	ButtonType       ButtonType `json:"buttonType"`
	ButtonURL        string     `json:"buttonUrl,omitempty"`
	PostbackResponse string     `json:"postbackResponse,omitempty"`
	PostbackPayload  string     `json:"postbackPayload,omitempty"`
}

func (ButtonData) Kind() Kind { return KindButton }

type ConditionData struct {
	ConditionType     ConditionType `json:"conditionType"`
	ConditionKeywords string        `json:"conditionKeywords,omitempty"`
	CaseSensitive     bool          `json:"caseSensitive,omitempty"`
}

func (ConditionData) Kind() Kind { return KindCondition }

type InstagramMessageData struct {
	Message string `json:"message"`
	Active  bool   `json:"active"`
}

func (InstagramMessageData) Kind() Kind { return KindInstagramMessage }

type ActionData struct {
	ActionType    ActionType `json:"actionType"`
	ActionMessage string     `json:"actionMessage,omitempty"`
	TagName       string     `json:"tagName,omitempty"`
}

func (ActionData) Kind() Kind { return KindAction }

// Node is one vertex of the graph. Data always matches Kind.
type Node struct {
	ID       string
	Kind     Kind
	Position Position
	Data     NodeData
}

// NewNode builds a node whose kind is taken from its data.
func NewNode(id string, data NodeData, pos Position) Node {
	return Node{ID: id, Kind: data.Kind(), Position: pos, Data: data}
}

// Edge connects Source to Target. SourceHandle is "yes" or "no" when the
// source is a condition node and empty otherwise.
type Edge struct {
	ID           string `json:"id"`
	Source       string `json:"source"`
	Target       string `json:"target"`
	SourceHandle string `json:"sourceHandle,omitempty"`
	Label        string `json:"label,omitempty"`
}

// Metadata travels with the persisted blob.
type Metadata struct {
	Origin    string    `json:"origin"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Origins recorded in Metadata.
const (
	OriginEditor     = "editor"
	OriginLegacyForm = "legacy_form"
)

// Graph is the canonical representation of one automation.
type Graph struct {
	Nodes    []Node   `json:"nodes"`
	Edges    []Edge   `json:"edges"`
	Metadata Metadata `json:"metadata"`
}

// Node returns the node with the given id, or nil.
func (g *Graph) Node(id string) *Node {
	for i := range g.Nodes {
		if g.Nodes[i].ID == id {
			return &g.Nodes[i]
		}
	}
	return nil
}

// Outgoing returns edges leaving id in edge-list order.
func (g *Graph) Outgoing(id string) []Edge {
	var out []Edge
	for _, e := range g.Edges {
		if e.Source == id {
			out = append(out, e)
		}
	}
	return out
}

// Incoming returns edges entering id in edge-list order.
func (g *Graph) Incoming(id string) []Edge {
	var in []Edge
	for _, e := range g.Edges {
		if e.Target == id {
			in = append(in, e)
		}
	}
	return in
}

// FirstOfKind returns the first node of kind k in node order, or nil.
func (g *Graph) FirstOfKind(k Kind) *Node {
	for i := range g.Nodes {
		if g.Nodes[i].Kind == k {
			return &g.Nodes[i]
		}
	}
	return nil
}

// Roots returns the nodes without incoming edges, in node order.
func (g *Graph) Roots() []Node {
	targets := make(map[string]struct{}, len(g.Edges))
	for _, e := range g.Edges {
		targets[e.Target] = struct{}{}
	}
	var roots []Node
	for _, n := range g.Nodes {
		if _, ok := targets[n.ID]; !ok {
			roots = append(roots, n)
		}
	}
	return roots
}
