package automation

import (
	"errors"
	"time"

	"github.com/replyflow/core/internal/core/automation"
	"github.com/replyflow/core/internal/core/flow"
	"github.com/replyflow/core/internal/core/followup"
	"github.com/replyflow/core/internal/models"
)

var (
	errAutomationNotFound = errors.New("automation not found")
	errPayloadInUse       = errors.New("postback payload is already used by another automation")
)

// SaveInput is one save from either editing surface.
type SaveInput struct {
	Automation automation.Automation
	// FollowUps replaces the stored sequence; nil keeps it.
	FollowUps []followup.Step
	// Graph is stored as given; nil regenerates it from the flat fields.
	Graph *flow.Graph
}

type automationDTO struct {
	Channel         string             `json:"channel"          binding:"required,oneof=dm comment"`
	Scope           string             `json:"scope"`
	PostID          string             `json:"post_id"`
	PostURL         string             `json:"post_url"`
	PostCaption     string             `json:"post_caption"`
	Keywords        []string           `json:"keywords"`
	Message         string             `json:"message"`
	ReplyPool       []string           `json:"reply_pool"`
	Active          *bool              `json:"active"`
	RequireFollower bool               `json:"require_follower"`
	GatePrompt      string             `json:"gate_prompt"`
	Button          *automation.Button `json:"button"`
	FollowUps       []followup.Step    `json:"follow_ups"`
}

func (d automationDTO) input(id string) SaveInput {
	active := true
	if d.Active != nil {
		active = *d.Active
	}
	return SaveInput{
		Automation: automation.Automation{
			ID:              id,
			Channel:         automation.Channel(d.Channel),
			Scope:           automation.Scope(d.Scope),
			PostID:          d.PostID,
			PostURL:         d.PostURL,
			PostCaption:     d.PostCaption,
			Keywords:        d.Keywords,
			Message:         d.Message,
			ReplyPool:       d.ReplyPool,
			Active:          active,
			RequireFollower: d.RequireFollower,
			GatePrompt:      d.GatePrompt,
			Button:          d.Button,
		},
		FollowUps: d.FollowUps,
	}
}

type activeDTO struct {
	Active *bool `json:"active" binding:"required"`
}

type automationResponse struct {
	automation.Automation
	FollowUps []followup.Step `json:"follow_ups,omitempty"`
}

func toDomain(row models.AutomationModel, postbackResponse string) automation.Automation {
	a := automation.Automation{
		ID:              row.ID,
		OwnerID:         row.OwnerID,
		Channel:         automation.Channel(row.Channel),
		Scope:           automation.Scope(row.Scope),
		PostID:          row.PostID,
		PostURL:         row.PostURL,
		PostCaption:     row.PostCaption,
		Keywords:        []string(row.Keywords),
		Message:         row.Message,
		ReplyPool:       []string(row.ReplyPool),
		Active:          row.Active,
		RequireFollower: row.RequireFollower,
		GatePrompt:      row.GatePrompt,
	}
	if a.Keywords == nil {
		a.Keywords = []string{}
	}
	if row.ButtonType != "" {
		a.Button = &automation.Button{
			Type:    automation.ButtonType(row.ButtonType),
			Title:   row.ButtonTitle,
			URL:     row.ButtonURL,
			Payload: row.ButtonPayload,
		}
		if a.Button.Type == automation.ButtonPostback {
			a.Button.Response = postbackResponse
		}
	}
	return a
}

func toModel(a automation.Automation) models.AutomationModel {
	row := models.AutomationModel{
		OwnerID:         a.OwnerID,
		Channel:         string(a.Channel),
		Scope:           string(a.Scope),
		PostID:          a.PostID,
		PostURL:         a.PostURL,
		PostCaption:     a.PostCaption,
		Keywords:        models.StringArray(a.Keywords),
		Message:         a.Message,
		ReplyPool:       models.StringArray(a.ReplyPool),
		Active:          a.Active,
		RequireFollower: a.RequireFollower,
		GatePrompt:      a.GatePrompt,
	}
	row.ID = a.ID
	if b := a.Button; b != nil {
		row.ButtonType = string(b.Type)
		row.ButtonTitle = b.Title
		row.ButtonURL = b.URL
		row.ButtonPayload = b.Payload
	}
	return row
}

func wasGated(row models.AutomationModel) bool {
	return row.Active && row.RequireFollower
}

func nowUTC() time.Time { return time.Now().UTC() }
