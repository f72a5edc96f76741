package flowgraph

import (
	"errors"
	"fmt"
	"time"

	"github.com/replyflow/core/internal/core/automation"
	"github.com/replyflow/core/internal/core/flow"
	"github.com/replyflow/core/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	errInvalidSourceType = errors.New("source_type must be dm or comment")
	errFlowNotFound      = errors.New("flow not found")
	errAutomationMissing = errors.New("automation not found")
	errChannelMismatch   = errors.New("flow source_type does not match the automation channel")
)

// AutomationStore is the automation persistence the graph merge writes into.
type AutomationStore interface {
	GetByID(ownerID, id string) (*automation.Automation, error)
	SaveGraph(ownerID string, a automation.Automation, g *flow.Graph) (*automation.Automation, error)
}

type Service struct{ db *gorm.DB }

func NewService(db *gorm.DB) *Service { return &Service{db: db} }

// ValidSourceType reports whether t names a flow source.
func ValidSourceType(t string) bool {
	return t == string(automation.ChannelDM) || t == string(automation.ChannelComment)
}

// Upsert validates and stores g under its key, replacing any earlier blob.
func (s *Service) Upsert(ownerID, sourceType, sourceRef string, g *flow.Graph) error {
	return s.Save(s.db, ownerID, sourceType, sourceRef, g)
}

// Save is Upsert inside the caller's transaction.
func (s *Service) Save(tx *gorm.DB, ownerID, sourceType, sourceRef string, g *flow.Graph) error {
	if !ValidSourceType(sourceType) {
		return errInvalidSourceType
	}
	if err := flow.Validate(g); err != nil {
		return err
	}
	blob, err := flow.Serialize(g)
	if err != nil {
		return fmt.Errorf("serialize flow: %w", err)
	}
	row := models.FlowGraphModel{
		OwnerID:    ownerID,
		SourceType: sourceType,
		SourceRef:  sourceRef,
		Graph:      datatypes.JSON(blob),
		Origin:     g.Metadata.Origin,
	}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "owner_id"}, {Name: "source_type"}, {Name: "source_ref"}},
		DoUpdates: clause.AssignmentColumns([]string{"graph", "origin", "updated_at"}),
	}).Create(&row).Error
}

// Get returns the stored graph, or nil when none exists.
func (s *Service) Get(ownerID, sourceType, sourceRef string) (*flow.Graph, error) {
	return s.get(s.db, ownerID, sourceType, sourceRef)
}

func (s *Service) get(tx *gorm.DB, ownerID, sourceType, sourceRef string) (*flow.Graph, error) {
	var row models.FlowGraphModel
	err := tx.Where("owner_id = ? AND source_type = ? AND source_ref = ?", ownerID, sourceType, sourceRef).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	g, err := flow.Deserialize(row.Graph)
	if err != nil {
		return nil, fmt.Errorf("stored flow %s/%s: %w", sourceType, sourceRef, err)
	}
	return g, nil
}

func (s *Service) Delete(tx *gorm.DB, ownerID, sourceType, sourceRef string) error {
	return tx.Where("owner_id = ? AND source_type = ? AND source_ref = ?", ownerID, sourceType, sourceRef).
		Delete(&models.FlowGraphModel{}).Error
}

// DeleteByRef removes the blob of an automation whatever its source type.
func (s *Service) DeleteByRef(tx *gorm.DB, ownerID, sourceRef string) error {
	return tx.Where("owner_id = ? AND source_ref = ?", ownerID, sourceRef).
		Delete(&models.FlowGraphModel{}).Error
}

// SetActive flips the active flag on the message nodes of a stored graph.
// A missing graph is not an error.
func (s *Service) SetActive(tx *gorm.DB, ownerID, sourceType, sourceRef string, active bool) error {
	g, err := s.get(tx, ownerID, sourceType, sourceRef)
	if err != nil || g == nil {
		return err
	}
	for i := range g.Nodes {
		switch d := g.Nodes[i].Data.(type) {
		case flow.AutoresponderData:
			d.Active = active
			g.Nodes[i].Data = d
		case flow.InstagramMessageData:
			d.Active = active
			g.Nodes[i].Data = d
		}
	}
	g.Metadata.UpdatedAt = time.Now().UTC()
	return s.Save(tx, ownerID, sourceType, sourceRef, g)
}

// ListByOwner returns every stored blob of an owner.
func (s *Service) ListByOwner(ownerID string) ([]models.FlowGraphModel, error) {
	var rows []models.FlowGraphModel
	err := s.db.Where("owner_id = ?", ownerID).Order("source_type, source_ref").Find(&rows).Error
	return rows, err
}

// ApplyResult is the automation after merging a graph plus what could not be
// merged.
type ApplyResult struct {
	Automation  *automation.Automation  `json:"automation"`
	Diagnostics []automation.Diagnostic `json:"diagnostics"`
}

// ApplyToAutomation merges the stored graph into the flat automation it
// belongs to and saves both. The graph itself is kept as edited.
func (s *Service) ApplyToAutomation(store AutomationStore, ownerID, sourceType, sourceRef string) (*ApplyResult, error) {
	g, err := s.Get(ownerID, sourceType, sourceRef)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, errFlowNotFound
	}
	base, err := store.GetByID(ownerID, sourceRef)
	if err != nil {
		return nil, err
	}
	if base == nil {
		return nil, errAutomationMissing
	}
	if string(base.Channel) != sourceType {
		return nil, errChannelMismatch
	}

	merged, diags := automation.FromGraph(g, *base)
	if diags == nil {
		diags = []automation.Diagnostic{}
	}
	saved, err := store.SaveGraph(ownerID, merged, g)
	if err != nil {
		return &ApplyResult{Automation: base, Diagnostics: diags}, err
	}
	return &ApplyResult{Automation: saved, Diagnostics: diags}, nil
}
