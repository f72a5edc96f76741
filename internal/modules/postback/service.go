package postback

import (
	"context"
	"errors"
	"strings"

	"github.com/replyflow/core/internal/database"
	"github.com/replyflow/core/internal/models"
	"gorm.io/gorm"
)

type Service struct{ db *gorm.DB }

func NewService(db *gorm.DB) *Service { return &Service{db: db} }

// ErrKeyTaken is returned by Replace when another automation of the same
// owner already holds the payload key.
var ErrKeyTaken = errors.New("postback payload key is held by another automation")

// Replace drops the action owned by automationID and, when key is set, stores
// the new one. Actions of other automations are never touched; a key they
// hold fails the insert with ErrKeyTaken. Callers pass their transaction.
func (s *Service) Replace(tx *gorm.DB, ownerID, automationID, key, response string) error {
	key = strings.TrimSpace(key)
	if err := s.DeleteByAutomation(tx, automationID); err != nil {
		return err
	}
	if key == "" {
		return nil
	}
	err := tx.Create(&models.PostbackActionModel{
		OwnerID:      ownerID,
		PayloadKey:   key,
		AutomationID: automationID,
		Response:     response,
	}).Error
	if database.IsDuplicateKey(err) {
		return ErrKeyTaken
	}
	return err
}

// DeleteByAutomation removes the action bound to automationID.
func (s *Service) DeleteByAutomation(tx *gorm.DB, automationID string) error {
	return tx.Where("automation_id = ?", automationID).Delete(&models.PostbackActionModel{}).Error
}

// Lookup returns the stored response for a pressed payload key.
func (s *Service) Lookup(ctx context.Context, ownerID, key string) (string, bool, error) {
	var row models.PostbackActionModel
	err := s.db.WithContext(ctx).
		Where("owner_id = ? AND payload_key = ?", ownerID, strings.TrimSpace(key)).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return row.Response, true, nil
}

func (s *Service) List(ownerID string) ([]models.PostbackActionModel, error) {
	var rows []models.PostbackActionModel
	err := s.db.Where("owner_id = ?", ownerID).Order("payload_key ASC").Find(&rows).Error
	return rows, err
}

// ResponsesFor maps automation ids to their stored postback responses.
func (s *Service) ResponsesFor(automationIDs []string) (map[string]string, error) {
	out := make(map[string]string, len(automationIDs))
	if len(automationIDs) == 0 {
		return out, nil
	}
	var rows []models.PostbackActionModel
	if err := s.db.Where("automation_id IN ?", automationIDs).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, r := range rows {
		out[r.AutomationID] = r.Response
	}
	return out, nil
}
