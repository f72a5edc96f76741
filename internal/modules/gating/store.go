package gating

import (
	"context"
	"errors"
	"time"

	"github.com/replyflow/core/internal/core/gating"
	"github.com/replyflow/core/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var openStates = []string{string(gating.StateAwaiting), string(gating.StateConfirmed)}

// Store persists gate sessions, one row per (automation, prospect).
type Store struct{ db *gorm.DB }

func NewStore(db *gorm.DB) *Store { return &Store{db: db} }

// Get returns the session of a prospect with an automation, or nil.
func (s *Store) Get(automationID, prospectID string) (*gating.Session, error) {
	var row models.GateSessionModel
	err := s.db.Where("automation_id = ? AND prospect_id = ?", automationID, prospectID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	sess := toSession(row)
	return &sess, nil
}

// LatestAwaiting returns the most recently started session of the prospect
// that still waits for an answer, or nil.
func (s *Store) LatestAwaiting(ownerID, prospectID string) (*gating.Session, error) {
	var row models.GateSessionModel
	err := s.db.
		Where("owner_id = ? AND prospect_id = ? AND state = ?", ownerID, prospectID, gating.StateAwaiting).
		Order("started_at DESC").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	sess := toSession(row)
	return &sess, nil
}

// Put writes sess, replacing the earlier session of the same pair.
func (s *Store) Put(sess gating.Session) error {
	row := models.GateSessionModel{
		AutomationID: sess.AutomationID,
		ProspectID:   sess.ProspectID,
		OwnerID:      sess.OwnerID,
		State:        string(sess.State),
		StartedAt:    sess.StartedAt,
		ExpiresAt:    sess.ExpiresAt,
	}
	row.UpdatedAt = sess.UpdatedAt
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "automation_id"}, {Name: "prospect_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"owner_id", "state", "started_at", "expires_at", "updated_at"}),
	}).Create(&row).Error
}

// AbandonForAutomation closes every open session of an automation. It runs
// in the caller's transaction.
func (s *Store) AbandonForAutomation(tx *gorm.DB, automationID string, now time.Time) (int64, error) {
	res := tx.Model(&models.GateSessionModel{}).
		Where("automation_id = ? AND state IN ?", automationID, openStates).
		Updates(map[string]interface{}{"state": string(gating.StateAbandoned), "updated_at": now})
	return res.RowsAffected, res.Error
}

// AbandonExpired closes awaiting sessions whose deadline has passed.
func (s *Store) AbandonExpired(ctx context.Context, now time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Model(&models.GateSessionModel{}).
		Where("state = ? AND expires_at <= ?", gating.StateAwaiting, now).
		Updates(map[string]interface{}{"state": string(gating.StateAbandoned), "updated_at": now})
	return res.RowsAffected, res.Error
}

func toSession(row models.GateSessionModel) gating.Session {
	return gating.Session{
		AutomationID: row.AutomationID,
		OwnerID:      row.OwnerID,
		ProspectID:   row.ProspectID,
		State:        gating.State(row.State),
		StartedAt:    row.StartedAt,
		ExpiresAt:    row.ExpiresAt,
		UpdatedAt:    row.UpdatedAt,
	}
}
