package flow

import (
	"bytes"
	"encoding/json"
	"fmt"
)

type nodeJSON struct {
	ID       string          `json:"id"`
	Type     Kind            `json:"type"`
	Position Position        `json:"position"`
	Data     json.RawMessage `json:"data"`
}

func (n Node) MarshalJSON() ([]byte, error) {
	if n.Data == nil {
		return nil, fmt.Errorf("flow: node %q has no data", n.ID)
	}
	data, err := json.Marshal(n.Data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(nodeJSON{ID: n.ID, Type: n.Kind, Position: n.Position, Data: data})
}

func (n *Node) UnmarshalJSON(b []byte) error {
	var raw nodeJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	data, err := decodeData(raw.Type, raw.Data)
	if err != nil {
		return &StructureError{NodeID: raw.ID, Reason: err.Error()}
	}
	*n = Node{ID: raw.ID, Kind: raw.Type, Position: raw.Position, Data: data}
	return nil
}

func decodeData(kind Kind, raw json.RawMessage) (NodeData, error) {
	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		raw = json.RawMessage("{}")
	}
	switch kind {
	case KindAutoresponder:
		var d AutoresponderData
		err := unmarshalInto(raw, &d)
		return d, err
	case KindButton:
		var d ButtonData
		err := unmarshalInto(raw, &d)
		return d, err
	case KindCondition:
		var d ConditionData
		err := unmarshalInto(raw, &d)
		return d, err
	case KindInstagramMessage:
		var d InstagramMessageData
		err := unmarshalInto(raw, &d)
		return d, err
	case KindAction:
		var d ActionData
		err := unmarshalInto(raw, &d)
		return d, err
	case "":
		return nil, fmt.Errorf("missing node type")
	default:
		return nil, fmt.Errorf("unknown node type %q", kind)
	}
}

func unmarshalInto(raw json.RawMessage, v interface{}) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode data: %w", err)
	}
	return nil
}

// Serialize encodes g as the persisted blob. Nil node and edge lists are
// written as empty arrays so a decode/encode cycle reproduces the same bytes.
func Serialize(g *Graph) ([]byte, error) {
	if g == nil {
		return nil, fmt.Errorf("flow: nil graph")
	}
	out := *g
	if out.Nodes == nil {
		out.Nodes = []Node{}
	}
	if out.Edges == nil {
		out.Edges = []Edge{}
	}
	return json.Marshal(out)
}

// Deserialize decodes a blob produced by Serialize. It does not validate the
// structure; call Validate for that.
func Deserialize(b []byte) (*Graph, error) {
	var g Graph
	if err := json.Unmarshal(b, &g); err != nil {
		return nil, err
	}
	if g.Nodes == nil {
		g.Nodes = []Node{}
	}
	if g.Edges == nil {
		g.Edges = []Edge{}
	}
	return &g, nil
}
