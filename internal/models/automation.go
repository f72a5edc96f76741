package models

// AutomationModel is a comment or DM autoresponder. Button columns are empty
// when no button is configured; the postback response lives in
// PostbackActionModel.
type AutomationModel struct {
	Base
	OwnerID         string      `json:"owner_id"         gorm:"type:varchar(64);not null;index:idx_automations_owner_channel"`
	Channel         string      `json:"channel"          gorm:"type:varchar(16);not null;index:idx_automations_owner_channel"`
	Scope           string      `json:"scope"            gorm:"type:varchar(16);not null;default:general"`
	PostID          string      `json:"post_id"          gorm:"type:varchar(64);index"`
	PostURL         string      `json:"post_url"         gorm:"type:varchar(512)"`
	PostCaption     string      `json:"post_caption"     gorm:"type:text"`
	Keywords        StringArray `json:"keywords"         gorm:"type:text"`
	Message         string      `json:"message"          gorm:"type:text"`
	ReplyPool       StringArray `json:"reply_pool"       gorm:"type:text"`
	Active          bool        `json:"active"           gorm:"not null"`
	RequireFollower bool        `json:"require_follower"`
	GatePrompt      string      `json:"gate_prompt"      gorm:"type:text"`
	ButtonType      string      `json:"button_type"      gorm:"type:varchar(16)"`
	ButtonTitle     string      `json:"button_title"     gorm:"type:varchar(255)"`
	ButtonURL       string      `json:"button_url"       gorm:"type:varchar(2048)"`
	ButtonPayload   string      `json:"button_payload"   gorm:"type:varchar(191)"`
}

func (AutomationModel) TableName() string { return "automations" }

// PostbackActionModel maps a button payload key to the message sent when the
// button is pressed.
type PostbackActionModel struct {
	Record
	OwnerID      string `json:"owner_id"      gorm:"type:varchar(64);not null;uniqueIndex:uk_postback_owner_key"`
	PayloadKey   string `json:"payload_key"   gorm:"type:varchar(191);not null;uniqueIndex:uk_postback_owner_key"`
	AutomationID string `json:"automation_id" gorm:"type:char(36);index"`
	Response     string `json:"response"      gorm:"type:text"`
}

func (PostbackActionModel) TableName() string { return "postback_actions" }

// FollowUpStepModel belongs to exactly one of the three parent columns.
type FollowUpStepModel struct {
	Record
	DMAutomationID      *string `json:"dm_automation_id,omitempty"      gorm:"type:char(36);index"`
	CommentAutomationID *string `json:"comment_automation_id,omitempty" gorm:"type:char(36);index"`
	GeneralAutomationID *string `json:"general_automation_id,omitempty" gorm:"type:char(36);index"`
	SequenceOrder       int     `json:"sequence_order"                  gorm:"not null"`
	DelayHours          int     `json:"delay_hours"                     gorm:"not null"`
	Message             string  `json:"message"                         gorm:"type:text"`
	Active              bool    `json:"active"                          gorm:"not null"`
}

func (FollowUpStepModel) TableName() string { return "follow_up_steps" }
