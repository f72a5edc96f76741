package automation

import (
	"errors"
	"testing"

	"github.com/replyflow/core/internal/core/flow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func commentAutomation() Automation {
	return Automation{
		ID:        "a1",
		OwnerID:   "u1",
		Channel:   ChannelComment,
		Scope:     ScopeGeneral,
		Keywords:  []string{"precio", "info"},
		Message:   "Te envío los detalles por DM",
		ReplyPool: []string{"Gracias!", "¡Graci!"},
		Active:    true,
	}
}

func TestNormalize(t *testing.T) {
	a := Automation{
		Channel:   " Comment ",
		Keywords:  []string{" Precio ", "", "INFO", "precio"},
		Message:   "  hola ",
		ReplyPool: []string{" ok ", "  "},
		Button:    &Button{Type: "WEB_URL", Title: " Ver ", URL: " https://example.com "},
	}
	Normalize(&a)

	assert.Equal(t, ChannelComment, a.Channel)
	assert.Equal(t, ScopeGeneral, a.Scope)
	assert.Equal(t, []string{"precio", "info", "precio"}, a.Keywords)
	assert.Equal(t, "hola", a.Message)
	assert.Equal(t, []string{"ok"}, a.ReplyPool)
	assert.Equal(t, ButtonWebURL, a.Button.Type)
	assert.Equal(t, "https://example.com", a.Button.URL)
}

func TestNormalizeKeywords(t *testing.T) {
	assert.Equal(t, []string{"precio", "info"}, NormalizeKeywords([]string{"Precio", " info", "PRECIO", ""}))
	assert.Empty(t, NormalizeKeywords(nil))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(a *Automation)
		field  string
	}{
		{name: "valid comment automation", mutate: func(a *Automation) {}},
		{name: "valid match-all", mutate: func(a *Automation) { a.Keywords = nil }},
		{
			name: "valid dm with postback button",
			mutate: func(a *Automation) {
				a.Channel = ChannelDM
				a.ReplyPool = nil
				a.Button = &Button{Type: ButtonPostback, Title: "Más info", Payload: "GET_INFO", Response: "Aquí tienes"}
			},
		},
		{name: "duplicate keywords", mutate: func(a *Automation) { a.Keywords = []string{"info", "INFO"} }, field: "keywords"},
		{name: "keyword with comma", mutate: func(a *Automation) { a.Keywords = []string{"a,b"} }, field: "keywords"},
		{name: "empty message", mutate: func(a *Automation) { a.Message = "" }, field: "message"},
		{name: "empty reply pool", mutate: func(a *Automation) { a.ReplyPool = nil }, field: "reply_pool"},
		{
			name: "reply pool too large",
			mutate: func(a *Automation) {
				a.ReplyPool = []string{"1", "2", "3", "4", "5", "6", "7", "8", "9", "10", "11"}
			},
			field: "reply_pool",
		},
		{name: "specific without post", mutate: func(a *Automation) { a.Scope = ScopeSpecific }, field: "post_id"},
		{
			name:   "follower gating with button",
			mutate: func(a *Automation) { a.RequireFollower = true; a.Button = &Button{Type: ButtonWebURL, Title: "x", URL: "https://x.io"} },
			field:  "button",
		},
		{name: "relative url", mutate: func(a *Automation) { a.Button = &Button{Type: ButtonWebURL, Title: "x", URL: "/pricing"} }, field: "button.url"},
		{name: "unparseable url", mutate: func(a *Automation) { a.Button = &Button{Type: ButtonWebURL, Title: "x", URL: "http://[::1"} }, field: "button.url"},
		{name: "button without title", mutate: func(a *Automation) { a.Button = &Button{Type: ButtonWebURL, URL: "https://x.io"} }, field: "button.title"},
		{name: "postback without payload", mutate: func(a *Automation) { a.Button = &Button{Type: ButtonPostback, Title: "x", Response: "r"} }, field: "button.payload"},
		{name: "postback without response", mutate: func(a *Automation) { a.Button = &Button{Type: ButtonPostback, Title: "x", Payload: "P"} }, field: "button.response"},
		{name: "unknown channel", mutate: func(a *Automation) { a.Channel = "story" }, field: "channel"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := commentAutomation()
			tt.mutate(&a)
			err := Validate(a)
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			var ve *ValidationError
			require.True(t, errors.As(err, &ve), "got %v", err)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestToGraphShapes(t *testing.T) {
	t.Run("no keywords no button", func(t *testing.T) {
		a := commentAutomation()
		a.Keywords = nil
		g := ToGraph(a)
		require.Len(t, g.Nodes, 1)
		assert.Equal(t, flow.KindAutoresponder, g.Nodes[0].Kind)
		assert.Empty(t, g.Edges)
		assert.Equal(t, flow.OriginLegacyForm, g.Metadata.Origin)
	})

	t.Run("keywords wire the yes edge", func(t *testing.T) {
		g := ToGraph(commentAutomation())
		require.Len(t, g.Nodes, 2)
		assert.Equal(t, flow.KindCondition, g.Nodes[0].Kind)
		assert.Equal(t, "precio, info", g.Nodes[0].Data.(flow.ConditionData).ConditionKeywords)
		require.Len(t, g.Edges, 1)
		assert.Equal(t, flow.HandleYes, g.Edges[0].SourceHandle)
		assert.Equal(t, g.Nodes[1].ID, g.Edges[0].Target)
		assert.NoError(t, flow.Validate(g))
	})

	t.Run("postback button adds trailing message", func(t *testing.T) {
		a := commentAutomation()
		a.Button = &Button{Type: ButtonPostback, Title: "Info", Payload: "GET_INFO", Response: "Aquí tienes"}
		g := ToGraph(a)
		require.Len(t, g.Nodes, 4)
		assert.Equal(t, flow.KindButton, g.Nodes[2].Kind)
		assert.Equal(t, flow.KindInstagramMessage, g.Nodes[3].Kind)
		assert.Equal(t, "Aquí tienes", g.Nodes[3].Data.(flow.InstagramMessageData).Message)
		assert.Len(t, g.Edges, 3)
		assert.NoError(t, flow.Validate(g))
	})

	t.Run("url button maps type", func(t *testing.T) {
		a := commentAutomation()
		a.Button = &Button{Type: ButtonWebURL, Title: "Ver", URL: "https://shop.example.com/p/1"}
		g := ToGraph(a)
		require.Len(t, g.Nodes, 3)
		bd := g.Nodes[2].Data.(flow.ButtonData)
		assert.Equal(t, flow.ButtonURL, bd.ButtonType)
		assert.Equal(t, "https://shop.example.com/p/1", bd.ButtonURL)
	})
}

func TestRoundTripLaw(t *testing.T) {
	cases := map[string]Automation{
		"plain": commentAutomation(),
		"match all": func() Automation {
			a := commentAutomation()
			a.Keywords = []string{}
			return a
		}(),
		"web url": func() Automation {
			a := commentAutomation()
			a.Button = &Button{Type: ButtonWebURL, Title: "Ver", URL: "https://shop.example.com/?ref=ig"}
			return a
		}(),
		"postback": func() Automation {
			a := commentAutomation()
			a.Channel = ChannelDM
			a.ReplyPool = nil
			a.Button = &Button{Type: ButtonPostback, Title: "Info", Payload: "GET_INFO", Response: "Aquí tienes"}
			return a
		}(),
		"gated": func() Automation {
			a := commentAutomation()
			a.RequireFollower = true
			return a
		}(),
	}

	for name, a := range cases {
		t.Run(name, func(t *testing.T) {
			g := ToGraph(a)

			// Survives the persisted blob too.
			blob, err := flow.Serialize(g)
			require.NoError(t, err)
			g, err = flow.Deserialize(blob)
			require.NoError(t, err)

			got, diags := FromGraph(g, Automation{ID: a.ID, OwnerID: a.OwnerID})
			assert.Empty(t, diags)
			assert.Equal(t, a.Keywords, got.Keywords)
			assert.Equal(t, a.Message, got.Message)
			assert.Equal(t, a.Active, got.Active)
			if a.Button == nil {
				assert.Nil(t, got.Button)
				return
			}
			require.NotNil(t, got.Button)
			assert.Equal(t, *a.Button, *got.Button)
		})
	}
}

func TestFromGraphDiagnostics(t *testing.T) {
	base := commentAutomation()

	t.Run("nothing recognizable", func(t *testing.T) {
		g := &flow.Graph{Nodes: []flow.Node{
			flow.NewNode("act", flow.ActionData{ActionType: flow.ActionNotifyHuman}, flow.Position{}),
		}}
		got, diags := FromGraph(g, base)
		assert.Equal(t, base, got)
		require.Len(t, diags, 2)
		assert.Equal(t, "act", diags[0].NodeID)
	})

	t.Run("invalid graph", func(t *testing.T) {
		g := &flow.Graph{
			Nodes: []flow.Node{flow.NewNode("a", flow.AutoresponderData{Message: "x"}, flow.Position{})},
			Edges: []flow.Edge{{ID: "e", Source: "a", Target: "gone"}},
		}
		got, diags := FromGraph(g, base)
		assert.Equal(t, base, got)
		require.Len(t, diags, 1)
	})

	t.Run("random condition ignored", func(t *testing.T) {
		g := &flow.Graph{
			Nodes: []flow.Node{
				flow.NewNode("r", flow.ConditionData{ConditionType: flow.ConditionRandom}, flow.Position{}),
				flow.NewNode("a", flow.AutoresponderData{Message: "nuevo", Keywords: []string{"Hola", "hola"}, Active: true}, flow.Position{}),
			},
			Edges: []flow.Edge{{ID: "e", Source: "r", Target: "a", SourceHandle: flow.HandleYes}},
		}
		got, diags := FromGraph(g, base)
		require.Len(t, diags, 1)
		assert.Equal(t, "r", diags[0].NodeID)
		assert.Equal(t, []string{"hola"}, got.Keywords)
		assert.Equal(t, "nuevo", got.Message)
	})

	t.Run("response from trailing message", func(t *testing.T) {
		g := &flow.Graph{
			Nodes: []flow.Node{
				flow.NewNode("b", flow.ButtonData{Message: "m", ButtonText: "Go", ButtonType: flow.ButtonPostback, PostbackPayload: "K"}, flow.Position{}),
				flow.NewNode("m", flow.InstagramMessageData{Message: "respuesta", Active: true}, flow.Position{}),
			},
			Edges: []flow.Edge{{ID: "e", Source: "b", Target: "m"}},
		}
		got, diags := FromGraph(g, base)
		assert.Empty(t, diags)
		require.NotNil(t, got.Button)
		assert.Equal(t, "respuesta", got.Button.Response)
		assert.Equal(t, base.Keywords, got.Keywords, "no condition or autoresponder keeps keywords")
	})

	t.Run("does not alias base", func(t *testing.T) {
		b := base
		b.Button = &Button{Type: ButtonWebURL, Title: "x", URL: "https://x.io"}
		g := &flow.Graph{Nodes: []flow.Node{
			flow.NewNode("b", flow.ButtonData{Message: "m", ButtonText: "y", ButtonType: flow.ButtonURL, ButtonURL: "https://y.io"}, flow.Position{}),
		}}
		got, _ := FromGraph(g, b)
		assert.Equal(t, "https://y.io", got.Button.URL)
		assert.Equal(t, "https://x.io", b.Button.URL)
	})
}
