package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AnalysisJSON is a custom type for storing the raw analysis payload in JSONB.
type AnalysisJSON json.RawMessage

// Value implements the driver.Valuer interface
func (j AnalysisJSON) Value() (driver.Value, error) {
	if len(j) == 0 {
		return nil, nil
	}
	return string(j), nil
}

// Scan implements the sql.Scanner interface
func (j *AnalysisJSON) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	switch v := value.(type) {
	case []byte:
		*j = append((*j)[0:0], v...)
	case string:
		*j = AnalysisJSON(v)
	default:
		return errors.New("unsupported type for AnalysisJSON")
	}
	return nil
}

func (j AnalysisJSON) MarshalJSON() ([]byte, error) {
	if len(j) == 0 {
		return []byte("null"), nil
	}
	return j, nil
}

func (j *AnalysisJSON) UnmarshalJSON(data []byte) error {
	*j = append((*j)[0:0], data...)
	return nil
}

// FoodEntry is one accepted meal analysis. Entries are created only for
// allowed analyses and are never mutated afterwards.
type FoodEntry struct {
	ID             uuid.UUID      `gorm:"type:uuid;primarykey" json:"id"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`
	UserID         uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	Timestamp      time.Time      `gorm:"not null;index" json:"timestamp"`
	ImagePathOrURL string         `gorm:"size:512;not null" json:"image_path_or_url"`
	CaptionText    *string        `gorm:"type:text" json:"caption_text,omitempty"`
	AIParsedJSON   AnalysisJSON   `gorm:"type:jsonb" json:"ai_parsed_json,omitempty"`
}

func (FoodEntry) TableName() string {
	return "food_entries"
}

func (e *FoodEntry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
