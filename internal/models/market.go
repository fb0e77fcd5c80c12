/**
 * @description
 * Market database model. Maps to the 'markets' table; one row per resolved
 * condition, keyed by condition-id.
 *
 * @dependencies
 * - gorm.io/gorm
 */

package models

import "time"

// MarketStatus mirrors the venue's lifecycle for a condition.
type MarketStatus string

const (
	MarketStatusActive   MarketStatus = "ACTIVE"
	MarketStatusClosed   MarketStatus = "CLOSED"
	MarketStatusResolved MarketStatus = "RESOLVED"
	MarketStatusUnknown  MarketStatus = "UNKNOWN"
)

// Market is resolved from a token-id via the off-chain metadata catalog.
type Market struct {
	ConditionID string       `gorm:"primaryKey;column:condition_id;type:varchar(80)" json:"condition_id"`
	QuestionID  string       `gorm:"column:question_id;type:varchar(80)" json:"question_id"`
	Oracle      string       `gorm:"column:oracle;type:varchar(42)" json:"oracle"`
	YesTokenID  string       `gorm:"column:yes_token_id;type:varchar(80);index" json:"yes_token_id"`
	NoTokenID   string       `gorm:"column:no_token_id;type:varchar(80);index" json:"no_token_id"`
	Slug        string       `gorm:"column:slug;index" json:"slug"`
	Question    string       `gorm:"column:question;type:text" json:"question"`
	Status      MarketStatus `gorm:"column:status;type:varchar(16);default:'UNKNOWN'" json:"status"`
	Tags        StringSet    `gorm:"column:tags;type:text[]" json:"tags"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"-"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"-"`
}

// TableName overrides the table name used by Market to `markets`.
func (Market) TableName() string {
	return "markets"
}

// Outcome identifies which side of a condition a token-id resolves to.
type Outcome string

const (
	OutcomeYes     Outcome = "YES"
	OutcomeNo      Outcome = "NO"
	OutcomeUnknown Outcome = "UNKNOWN"
)

// OutcomeFor returns which side of m the given token-id resolves to.
func (m Market) OutcomeFor(tokenID string) Outcome {
	switch tokenID {
	case m.YesTokenID:
		return OutcomeYes
	case m.NoTokenID:
		return OutcomeNo
	default:
		return OutcomeUnknown
	}
}
