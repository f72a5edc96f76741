package models

import (
	"time"

	"gorm.io/datatypes"
)

// FlowGraphModel stores the editor graph of an automation as a JSON blob.
type FlowGraphModel struct {
	Record
	OwnerID    string         `json:"owner_id"    gorm:"type:varchar(64);not null;uniqueIndex:uk_flow_source"`
	SourceType string         `json:"source_type" gorm:"type:varchar(16);not null;uniqueIndex:uk_flow_source"`
	SourceRef  string         `json:"source_ref"  gorm:"type:varchar(191);not null;uniqueIndex:uk_flow_source"`
	Graph      datatypes.JSON `json:"graph"`
	Origin     string         `json:"origin"      gorm:"type:varchar(32)"`
}

func (FlowGraphModel) TableName() string { return "flow_graphs" }

// GateSessionModel is the follower-gate conversation with one prospect.
type GateSessionModel struct {
	Record
	AutomationID string    `json:"automation_id" gorm:"type:char(36);not null;uniqueIndex:uk_gate_automation_prospect"`
	ProspectID   string    `json:"prospect_id"   gorm:"type:varchar(64);not null;uniqueIndex:uk_gate_automation_prospect"`
	OwnerID      string    `json:"owner_id"      gorm:"type:varchar(64);not null;index:idx_gate_owner_prospect"`
	State        string    `json:"state"         gorm:"type:varchar(32);not null;index"`
	StartedAt    time.Time `json:"started_at"`
	ExpiresAt    time.Time `json:"expires_at"    gorm:"index"`
}

func (GateSessionModel) TableName() string { return "gate_sessions" }
