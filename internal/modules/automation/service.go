package automation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/replyflow/core/internal/core/automation"
	"github.com/replyflow/core/internal/core/flow"
	"github.com/replyflow/core/internal/core/followup"
	"github.com/replyflow/core/internal/models"
	followupmod "github.com/replyflow/core/internal/modules/followup"
	"github.com/replyflow/core/internal/modules/flowgraph"
	"github.com/replyflow/core/internal/modules/postback"
	"github.com/replyflow/core/internal/pkg/pagination"
	"github.com/replyflow/core/internal/pkg/response"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// GateCloser abandons the in-flight gate sessions of an automation.
type GateCloser interface {
	AbandonForAutomation(tx *gorm.DB, automationID string, now time.Time) error
}

type Service struct {
	db        *gorm.DB
	postbacks *postback.Service
	followups *followupmod.Service
	flows     *flowgraph.Service
	gates     GateCloser
	logger    *zap.Logger
	now       func() time.Time
}

func NewService(
	db *gorm.DB,
	postbacks *postback.Service,
	followups *followupmod.Service,
	flows *flowgraph.Service,
	gates GateCloser,
	logger *zap.Logger,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		db:        db,
		postbacks: postbacks,
		followups: followups,
		flows:     flows,
		gates:     gates,
		logger:    logger.Named("Automation"),
		now:       nowUTC,
	}
}

// List pages through an owner's automations, newest first. An empty channel
// lists both.
func (s *Service) List(ownerID, channel string, q pagination.Query) ([]automation.Automation, response.Pagination, error) {
	tx := s.db.Model(&models.AutomationModel{}).Where("owner_id = ?", ownerID).Order("created_at DESC")
	if channel != "" {
		tx = tx.Where("channel = ?", channel)
	}
	var rows []models.AutomationModel
	pag, err := pagination.Paginate(tx, q, &rows)
	if err != nil {
		return nil, pag, err
	}
	items, err := s.hydrate(rows)
	return items, pag, err
}

// ListActive returns the active automations of a channel, as used by
// matching. Postback responses are not loaded.
func (s *Service) ListActive(ctx context.Context, ownerID string, channel automation.Channel) ([]automation.Automation, error) {
	var rows []models.AutomationModel
	err := s.db.WithContext(ctx).
		Where("owner_id = ? AND channel = ? AND active = ?", ownerID, string(channel), true).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]automation.Automation, len(rows))
	for i, r := range rows {
		out[i] = toDomain(r, "")
	}
	return out, nil
}

// ListAll returns every automation of an owner with postback responses.
func (s *Service) ListAll(ownerID string) ([]automation.Automation, error) {
	var rows []models.AutomationModel
	if err := s.db.Where("owner_id = ?", ownerID).Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return s.hydrate(rows)
}

// Owners returns the ids of every owner with at least one automation.
func (s *Service) Owners() ([]string, error) {
	var owners []string
	err := s.db.Model(&models.AutomationModel{}).Distinct("owner_id").Order("owner_id").Pluck("owner_id", &owners).Error
	return owners, err
}

func (s *Service) GetByID(ownerID, id string) (*automation.Automation, error) {
	var row models.AutomationModel
	if err := s.db.First(&row, "id = ? AND owner_id = ?", id, ownerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	items, err := s.hydrate([]models.AutomationModel{row})
	if err != nil {
		return nil, err
	}
	return &items[0], nil
}

// FollowUps returns the stored sequence of an automation.
func (s *Service) FollowUps(id string) ([]followup.Step, error) {
	return s.followups.List(id)
}

// Save normalises and validates the automation, then writes it together with
// its postback action, follow-up sequence and flow graph in one transaction.
// Turning gating off abandons the automation's open gate sessions.
func (s *Service) Save(ownerID string, in SaveInput) (*automation.Automation, error) {
	a := in.Automation
	a.OwnerID = ownerID
	automation.Normalize(&a)
	if err := automation.Validate(a); err != nil {
		return nil, err
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var prev *models.AutomationModel
		if a.ID != "" {
			var row models.AutomationModel
			err := tx.First(&row, "id = ? AND owner_id = ?", a.ID, ownerID).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errAutomationNotFound
			}
			if err != nil {
				return err
			}
			prev = &row
		}

		payload := ""
		if a.Button != nil && a.Button.Type == automation.ButtonPostback {
			payload = a.Button.Payload
			if err := s.ensurePayloadFree(tx, ownerID, a.ID, payload); err != nil {
				return err
			}
		}

		row := toModel(a)
		if prev != nil {
			row.CreatedAt = prev.CreatedAt
			if err := tx.Save(&row).Error; err != nil {
				return err
			}
		} else if err := tx.Create(&row).Error; err != nil {
			return err
		}
		a.ID = row.ID

		reply := ""
		if payload != "" {
			reply = a.Button.Response
		}
		if err := s.postbacks.Replace(tx, ownerID, a.ID, payload, reply); err != nil {
			if errors.Is(err, postback.ErrKeyTaken) {
				return errPayloadInUse
			}
			return fmt.Errorf("replace postback action: %w", err)
		}

		parent := followupmod.ParentOf(a)
		if in.FollowUps != nil {
			if _, err := s.followups.Replace(tx, parent, in.FollowUps); err != nil {
				return err
			}
		} else if prev != nil {
			if err := s.followups.Reparent(tx, parent); err != nil {
				return err
			}
		}

		g := in.Graph
		if g == nil {
			g = automation.ToGraph(a)
		}
		if prev != nil && prev.Channel != string(a.Channel) {
			if err := s.flows.DeleteByRef(tx, ownerID, a.ID); err != nil {
				return err
			}
		}
		if err := s.flows.Save(tx, ownerID, string(a.Channel), a.ID, g); err != nil {
			return fmt.Errorf("save flow graph: %w", err)
		}

		if prev != nil && wasGated(*prev) && !a.Gated() {
			return s.gates.AbandonForAutomation(tx, a.ID, s.now())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("automation saved",
		zap.String("automation_id", a.ID),
		zap.String("owner_id", ownerID),
		zap.String("channel", string(a.Channel)))
	return &a, nil
}

// SaveGraph saves an automation merged from an edited graph, keeping the
// graph as given.
func (s *Service) SaveGraph(ownerID string, a automation.Automation, g *flow.Graph) (*automation.Automation, error) {
	return s.Save(ownerID, SaveInput{Automation: a, Graph: g})
}

// SetActive toggles an automation and the message nodes of its graph.
func (s *Service) SetActive(ownerID, id string, active bool) (*automation.Automation, error) {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var row models.AutomationModel
		err := tx.First(&row, "id = ? AND owner_id = ?", id, ownerID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errAutomationNotFound
		}
		if err != nil {
			return err
		}
		if row.Active == active {
			return nil
		}
		if err := tx.Model(&row).Update("active", active).Error; err != nil {
			return err
		}
		if err := s.flows.SetActive(tx, ownerID, row.Channel, row.ID, active); err != nil {
			return err
		}
		if !active && wasGated(row) {
			return s.gates.AbandonForAutomation(tx, row.ID, s.now())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetByID(ownerID, id)
}

// Delete soft-deletes an automation and removes its postback action,
// follow-ups and flow graph. Open gate sessions are abandoned.
func (s *Service) Delete(ownerID, id string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var row models.AutomationModel
		err := tx.First(&row, "id = ? AND owner_id = ?", id, ownerID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errAutomationNotFound
		}
		if err != nil {
			return err
		}
		if err := tx.Delete(&row).Error; err != nil {
			return err
		}
		if err := s.postbacks.DeleteByAutomation(tx, id); err != nil {
			return err
		}
		if err := s.followups.DeleteByAutomation(tx, id); err != nil {
			return err
		}
		if err := s.flows.DeleteByRef(tx, ownerID, id); err != nil {
			return err
		}
		return s.gates.AbandonForAutomation(tx, id, s.now())
	})
}

func (s *Service) ensurePayloadFree(tx *gorm.DB, ownerID, selfID, payload string) error {
	q := tx.Model(&models.AutomationModel{}).
		Where("owner_id = ? AND button_type = ? AND button_payload = ?", ownerID, string(automation.ButtonPostback), payload)
	if selfID != "" {
		q = q.Where("id <> ?", selfID)
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return errPayloadInUse
	}
	return nil
}

func (s *Service) hydrate(rows []models.AutomationModel) ([]automation.Automation, error) {
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		if r.ButtonType == string(automation.ButtonPostback) {
			ids = append(ids, r.ID)
		}
	}
	responses, err := s.postbacks.ResponsesFor(ids)
	if err != nil {
		return nil, err
	}
	out := make([]automation.Automation, len(rows))
	for i, r := range rows {
		out[i] = toDomain(r, responses[r.ID])
	}
	return out, nil
}
