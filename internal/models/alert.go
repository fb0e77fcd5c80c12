/**
 * @description
 * Alert database model. A notification-worthy Evidence item that cleared
 * the Stream Controller's alert confidence threshold. That threshold is a
 * single value shared by every evidence type; there are no per-type
 * thresholds.
 *
 * @dependencies
 * - gorm.io/gorm
 * - github.com/google/uuid
 */

package models

import (
	"time"

	"github.com/google/uuid"
)

// Severity is the alert's urgency bucket.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Alert is a notification-worthy Evidence item.
type Alert struct {
	ID         uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	EvidenceID uuid.UUID    `gorm:"type:uuid;column:evidence_id;index" json:"evidence_id"`
	Type       EvidenceType `gorm:"column:type;type:varchar(32);index" json:"type"`
	Severity   Severity     `gorm:"column:severity;type:varchar(16)" json:"severity"`
	Confidence float64      `gorm:"column:confidence" json:"confidence"`

	Addresses StringSet `gorm:"column:addresses;type:text[]" json:"addresses"`
	TokenID   string    `gorm:"column:token_id;type:varchar(80);index" json:"token_id"`

	Ack       bool      `gorm:"column:ack;default:false" json:"ack"`
	Timestamp time.Time `gorm:"column:timestamp;index" json:"timestamp"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"-"`
}

// TableName overrides the table name used by Alert to `alerts`.
func (Alert) TableName() string {
	return "alerts"
}

// SeverityFor derives an alert severity band from a detector confidence.
func SeverityFor(confidence float64) Severity {
	switch {
	case confidence >= 0.9:
		return SeverityCritical
	case confidence >= 0.75:
		return SeverityHigh
	case confidence >= 0.5:
		return SeverityMedium
	default:
		return SeverityLow
	}
}
