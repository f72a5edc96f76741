package models

// CounterModel is a per-owner running total.
type CounterModel struct {
	Record
	OwnerID string `json:"owner_id" gorm:"type:varchar(64);not null;uniqueIndex:uk_counter_owner_name"`
	Name    string `json:"name"     gorm:"type:varchar(64);not null;uniqueIndex:uk_counter_owner_name"`
	Value   int64  `json:"value"    gorm:"not null;default:0"`
}

func (CounterModel) TableName() string { return "counters" }

// CounterIncrementModel remembers applied increment keys so a retried
// increment is not counted twice.
type CounterIncrementModel struct {
	Record
	OwnerID string `json:"owner_id" gorm:"type:varchar(64);not null;uniqueIndex:uk_counter_increment"`
	Name    string `json:"name"     gorm:"type:varchar(64);not null;uniqueIndex:uk_counter_increment"`
	Key     string `json:"key"      gorm:"column:increment_key;type:varchar(191);not null;uniqueIndex:uk_counter_increment"`
}

func (CounterIncrementModel) TableName() string { return "counter_increments" }

// ProcessedEventModel records the outcome of every handled inbound event.
type ProcessedEventModel struct {
	Record
	OwnerID      string `json:"owner_id"      gorm:"type:varchar(64);not null;uniqueIndex:uk_processed_event"`
	EventID      string `json:"event_id"      gorm:"type:varchar(191);not null;uniqueIndex:uk_processed_event"`
	Kind         string `json:"kind"          gorm:"type:varchar(16)"`
	Status       string `json:"status"        gorm:"type:varchar(32);index"`
	Reason       string `json:"reason"        gorm:"type:varchar(255)"`
	AutomationID string `json:"automation_id" gorm:"type:char(36)"`
}

func (ProcessedEventModel) TableName() string { return "processed_events" }
