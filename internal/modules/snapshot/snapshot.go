// Package snapshot periodically exports every owner's automations, flows,
// postback actions and follow-ups as one JSON document per owner.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/replyflow/core/internal/core/automation"
	"github.com/replyflow/core/internal/core/followup"
	"github.com/replyflow/core/internal/models"
	"go.uber.org/zap"
)

const defaultPrefix = "snapshots"

type AutomationLister interface {
	Owners() ([]string, error)
	ListAll(ownerID string) ([]automation.Automation, error)
}

type FlowLister interface {
	ListByOwner(ownerID string) ([]models.FlowGraphModel, error)
}

type PostbackLister interface {
	List(ownerID string) ([]models.PostbackActionModel, error)
}

type FollowUpLister interface {
	ListMany(automationIDs []string) (map[string][]followup.Step, error)
}

// Document is the exported state of one owner.
type Document struct {
	OwnerID     string            `json:"owner_id"`
	TakenAt     time.Time         `json:"taken_at"`
	Automations []automationEntry `json:"automations"`
	Flows       []flowEntry       `json:"flows"`
	Postbacks   []postbackEntry   `json:"postbacks"`
}

type automationEntry struct {
	automation.Automation
	FollowUps []followup.Step `json:"follow_ups,omitempty"`
}

type flowEntry struct {
	SourceType string          `json:"source_type"`
	SourceRef  string          `json:"source_ref"`
	Origin     string          `json:"origin"`
	UpdatedAt  time.Time       `json:"updated_at"`
	Graph      json.RawMessage `json:"graph"`
}

type postbackEntry struct {
	PayloadKey   string `json:"payload_key"`
	AutomationID string `json:"automation_id"`
	Response     string `json:"response"`
}

type Service struct {
	automations AutomationLister
	flows       FlowLister
	postbacks   PostbackLister
	followups   FollowUpLister
	uploader    Uploader
	prefix      string
	logger      *zap.Logger
	now         func() time.Time
}

func NewService(
	automations AutomationLister,
	flows FlowLister,
	postbacks PostbackLister,
	followups FollowUpLister,
	uploader Uploader,
	prefix string,
	logger *zap.Logger,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &Service{
		automations: automations,
		flows:       flows,
		postbacks:   postbacks,
		followups:   followups,
		uploader:    uploader,
		prefix:      prefix,
		logger:      logger.Named("Snapshot"),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Run exports every owner. It keeps going after a failed owner and returns
// the first error.
func (s *Service) Run(ctx context.Context) error {
	owners, err := s.automations.Owners()
	if err != nil {
		return fmt.Errorf("list owners: %w", err)
	}
	now := s.now()
	var first error
	exported := 0
	for _, owner := range owners {
		if err := ctx.Err(); err != nil {
			return err
		}
		key, err := s.Export(ctx, owner, now)
		if err != nil {
			s.logger.Error("snapshot export failed", zap.String("owner_id", owner), zap.Error(err))
			if first == nil {
				first = err
			}
			continue
		}
		exported++
		s.logger.Debug("snapshot exported", zap.String("owner_id", owner), zap.String("key", key))
	}
	s.logger.Info("snapshot run finished", zap.Int("owners", len(owners)), zap.Int("exported", exported))
	return first
}

// Export uploads the document of one owner and returns its object key.
func (s *Service) Export(ctx context.Context, ownerID string, now time.Time) (string, error) {
	doc, err := s.Build(ownerID, now)
	if err != nil {
		return "", err
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}
	key := ObjectKey(s.prefix, ownerID, now)
	if err := s.uploader.Upload(ctx, key, body, "application/json"); err != nil {
		return "", err
	}
	return key, nil
}

// Build assembles the document of one owner.
func (s *Service) Build(ownerID string, now time.Time) (*Document, error) {
	autos, err := s.automations.ListAll(ownerID)
	if err != nil {
		return nil, fmt.Errorf("list automations: %w", err)
	}
	ids := make([]string, len(autos))
	for i, a := range autos {
		ids[i] = a.ID
	}
	steps, err := s.followups.ListMany(ids)
	if err != nil {
		return nil, fmt.Errorf("list follow-ups: %w", err)
	}
	flows, err := s.flows.ListByOwner(ownerID)
	if err != nil {
		return nil, fmt.Errorf("list flows: %w", err)
	}
	postbacks, err := s.postbacks.List(ownerID)
	if err != nil {
		return nil, fmt.Errorf("list postbacks: %w", err)
	}

	doc := &Document{
		OwnerID:     ownerID,
		TakenAt:     now,
		Automations: make([]automationEntry, len(autos)),
		Flows:       make([]flowEntry, len(flows)),
		Postbacks:   make([]postbackEntry, len(postbacks)),
	}
	for i, a := range autos {
		doc.Automations[i] = automationEntry{Automation: a, FollowUps: steps[a.ID]}
	}
	for i, f := range flows {
		doc.Flows[i] = flowEntry{
			SourceType: f.SourceType,
			SourceRef:  f.SourceRef,
			Origin:     f.Origin,
			UpdatedAt:  f.UpdatedAt,
			Graph:      json.RawMessage(f.Graph),
		}
	}
	for i, p := range postbacks {
		doc.Postbacks[i] = postbackEntry{PayloadKey: p.PayloadKey, AutomationID: p.AutomationID, Response: p.Response}
	}
	return doc, nil
}

// ObjectKey renders prefix/owner/2006-01-02T15-04-05Z.json.
func ObjectKey(prefix, ownerID string, now time.Time) string {
	return normalizeObjectKey(prefix + "/" + ownerID + "/" + now.UTC().Format("2006-01-02T15-04-05Z") + ".json")
}
