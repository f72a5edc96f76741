package counters

import (
	"context"
	"errors"
	"regexp"

	"github.com/replyflow/core/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	MessagesSent       = "messages_sent"
	ContactedProspects = "contacted_prospects"
)

var (
	errInvalidName  = errors.New("counter name must match [a-z0-9_]{1,64}")
	errInvalidDelta = errors.New("delta must be positive")
	namePattern     = regexp.MustCompile(`^[a-z0-9_]{1,64}$`)
)

type Service struct{ db *gorm.DB }

func NewService(db *gorm.DB) *Service { return &Service{db: db} }

// Increment adds delta to the owner's counter. A non-empty key makes the call
// idempotent: a key that was already applied leaves the counter unchanged and
// reports applied=false.
func (s *Service) Increment(ctx context.Context, ownerID, name, key string, delta int64) (int64, bool, error) {
	if !namePattern.MatchString(name) {
		return 0, false, errInvalidName
	}
	if delta <= 0 {
		return 0, false, errInvalidDelta
	}

	var value int64
	applied := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if key != "" {
			res := tx.Clauses(clause.OnConflict{DoNothing: true}).
				Create(&models.CounterIncrementModel{OwnerID: ownerID, Name: name, Key: key})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				var err error
				value, err = get(tx, ownerID, name)
				return err
			}
		}

		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "owner_id"}, {Name: "name"}},
			DoUpdates: clause.Assignments(map[string]interface{}{"value": gorm.Expr("value + ?", delta)}),
		}).Create(&models.CounterModel{OwnerID: ownerID, Name: name, Value: delta}).Error
		if err != nil {
			return err
		}
		applied = true
		value, err = get(tx, ownerID, name)
		return err
	})
	return value, applied, err
}

// All returns every counter of the owner by name.
func (s *Service) All(ownerID string) (map[string]int64, error) {
	var rows []models.CounterModel
	if err := s.db.Where("owner_id = ?", ownerID).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := map[string]int64{MessagesSent: 0, ContactedProspects: 0}
	for _, r := range rows {
		out[r.Name] = r.Value
	}
	return out, nil
}

func get(tx *gorm.DB, ownerID, name string) (int64, error) {
	var row models.CounterModel
	err := tx.Where("owner_id = ? AND name = ?", ownerID, name).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	return row.Value, err
}
