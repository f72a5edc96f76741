package followup

import (
	"github.com/replyflow/core/internal/core/automation"
	"github.com/replyflow/core/internal/core/followup"
	"github.com/replyflow/core/internal/models"
	"gorm.io/gorm"
)

const anyParent = "dm_automation_id = ? OR comment_automation_id = ? OR general_automation_id = ?"

// Parent identifies the automation a sequence hangs off. The column it is
// stored under depends on the automation's channel and scope.
type Parent struct {
	AutomationID string
	Channel      automation.Channel
	Scope        automation.Scope
}

func ParentOf(a automation.Automation) Parent {
	return Parent{AutomationID: a.ID, Channel: a.Channel, Scope: a.Scope}
}

// columns returns the three foreign keys with exactly one of them set.
func (p Parent) columns() (dm, comment, general *string) {
	id := p.AutomationID
	switch {
	case p.Channel == automation.ChannelDM:
		return &id, nil, nil
	case p.Scope == automation.ScopeSpecific:
		return nil, &id, nil
	default:
		return nil, nil, &id
	}
}

type Service struct{ db *gorm.DB }

func NewService(db *gorm.DB) *Service { return &Service{db: db} }

// Save replaces the parent's sequence in its own transaction.
func (s *Service) Save(parent Parent, steps []followup.Step) ([]followup.Step, error) {
	var out []followup.Step
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		out, err = s.Replace(tx, parent, steps)
		return err
	})
	return out, err
}

// Replace deletes every step of the parent and inserts the prepared list.
// Only active, non-empty steps are kept and renumbered from 1.
func (s *Service) Replace(tx *gorm.DB, parent Parent, steps []followup.Step) ([]followup.Step, error) {
	prepared, err := followup.Prepare(steps)
	if err != nil {
		return nil, err
	}
	if err := s.DeleteByAutomation(tx, parent.AutomationID); err != nil {
		return nil, err
	}
	if len(prepared) == 0 {
		return prepared, nil
	}

	dm, comment, general := parent.columns()
	rows := make([]models.FollowUpStepModel, len(prepared))
	for i, st := range prepared {
		rows[i] = models.FollowUpStepModel{
			DMAutomationID:      dm,
			CommentAutomationID: comment,
			GeneralAutomationID: general,
			SequenceOrder:       st.SequenceOrder,
			DelayHours:          st.DelayHours,
			Message:             st.Message,
			Active:              st.Active,
		}
	}
	if err := tx.Create(&rows).Error; err != nil {
		return nil, err
	}
	return prepared, nil
}

// Reparent moves existing steps under the column matching parent, used when
// an automation changes channel or scope.
func (s *Service) Reparent(tx *gorm.DB, parent Parent) error {
	dm, comment, general := parent.columns()
	id := parent.AutomationID
	return tx.Model(&models.FollowUpStepModel{}).
		Where(anyParent, id, id, id).
		Updates(map[string]interface{}{
			"dm_automation_id":      dm,
			"comment_automation_id": comment,
			"general_automation_id": general,
		}).Error
}

func (s *Service) DeleteByAutomation(tx *gorm.DB, automationID string) error {
	return tx.Where(anyParent, automationID, automationID, automationID).
		Delete(&models.FollowUpStepModel{}).Error
}

// List returns the sequence of an automation ordered by sequence_order.
func (s *Service) List(automationID string) ([]followup.Step, error) {
	return s.list(s.db, automationID)
}

// ListMany loads the sequences of several automations at once.
func (s *Service) ListMany(automationIDs []string) (map[string][]followup.Step, error) {
	out := make(map[string][]followup.Step, len(automationIDs))
	if len(automationIDs) == 0 {
		return out, nil
	}
	var rows []models.FollowUpStepModel
	err := s.db.
		Where("dm_automation_id IN ? OR comment_automation_id IN ? OR general_automation_id IN ?",
			automationIDs, automationIDs, automationIDs).
		Order("sequence_order ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		id := parentID(r)
		out[id] = append(out[id], toStep(r))
	}
	return out, nil
}

func (s *Service) list(tx *gorm.DB, automationID string) ([]followup.Step, error) {
	var rows []models.FollowUpStepModel
	err := tx.Where(anyParent, automationID, automationID, automationID).
		Order("sequence_order ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]followup.Step, len(rows))
	for i, r := range rows {
		out[i] = toStep(r)
	}
	return out, nil
}

func parentID(r models.FollowUpStepModel) string {
	for _, p := range []*string{r.DMAutomationID, r.CommentAutomationID, r.GeneralAutomationID} {
		if p != nil {
			return *p
		}
	}
	return ""
}

func toStep(r models.FollowUpStepModel) followup.Step {
	return followup.Step{
		SequenceOrder: r.SequenceOrder,
		DelayHours:    r.DelayHours,
		Message:       r.Message,
		Active:        r.Active,
	}
}
