/**
 * @description
 * Evidence database model. One row per detector finding, produced by the
 * detector suite and never mutated after creation.
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

// EvidenceType enumerates the nine kinds of forensic finding: eight from
// the detector suite, plus MALFORMED_EVENT, which the Stream Controller
// records for logs it cannot decode.
type EvidenceType string

const (
	EvidenceNewWalletInsider EvidenceType = "NEW_WALLET_INSIDER"
	EvidenceHighWinRate      EvidenceType = "HIGH_WIN_RATE"
	EvidenceGasAnomaly       EvidenceType = "GAS_ANOMALY"
	EvidenceSelfTrade        EvidenceType = "SELF_TRADE"
	EvidenceCircularTrade    EvidenceType = "CIRCULAR_TRADE"
	EvidenceAtomicWash       EvidenceType = "ATOMIC_WASH"
	EvidenceVolumeSpike      EvidenceType = "VOLUME_SPIKE"
	EvidenceSybilCluster     EvidenceType = "SYBIL_CLUSTER"
	EvidenceMalformedEvent   EvidenceType = "MALFORMED_EVENT"
)

// Evidence is one detection finding.
type Evidence struct {
	ID         uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	Type       EvidenceType `gorm:"column:type;type:varchar(32);index" json:"type"`
	Confidence float64      `gorm:"column:confidence" json:"confidence"`
	Timestamp  time.Time    `gorm:"column:timestamp;index" json:"timestamp"`

	Addresses    StringSet `gorm:"column:addresses;type:text[]" json:"addresses"`
	Transactions StringSet `gorm:"column:transactions;type:text[]" json:"transactions"`
	TokenID      string    `gorm:"column:token_id;type:varchar(80);index" json:"token_id"`
	Volume       float64   `gorm:"column:volume" json:"volume"`

	Details JSONMap `gorm:"column:details;type:text" json:"details"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"-"`
}

// TableName overrides the table name used by Evidence to `evidence`.
func (Evidence) TableName() string {
	return "evidence"
}
