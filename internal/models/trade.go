/**
 * @description
 * Trade database model. Maps to the 'trades' table; one row per decoded
 * OrderFilled occurrence.
 *
 * @dependencies
 * - gorm.io/gorm
 */

package models

import "time"

// Side is the direction of a decoded trade relative to the outcome token.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Trade represents one decoded OrderFilled event.
type Trade struct {
	ID       uint64 `gorm:"primaryKey;autoIncrement" json:"-"`
	TxHash   string `gorm:"column:tx_hash;type:varchar(66);uniqueIndex:idx_trades_tx_log,priority:1" json:"tx_hash"`
	LogIndex uint   `gorm:"column:log_index;uniqueIndex:idx_trades_tx_log,priority:2" json:"log_index"`

	BlockNumber int64     `gorm:"column:block_number;index" json:"block_number"`
	Timestamp   time.Time `gorm:"column:timestamp;index" json:"timestamp"`
	Exchange    string    `gorm:"column:exchange;type:varchar(42)" json:"exchange"`

	Maker string `gorm:"column:maker;type:varchar(42);index:idx_trades_maker" json:"maker"`
	Taker string `gorm:"column:taker;type:varchar(42);index:idx_trades_taker" json:"taker"`

	MakerAssetID string `gorm:"column:maker_asset_id;type:varchar(80)" json:"maker_asset_id"`
	TakerAssetID string `gorm:"column:taker_asset_id;type:varchar(80)" json:"taker_asset_id"`

	// Fixed-point amounts as decoded, 6-decimal USDC/outcome-token precision,
	// stored as their raw integer string to avoid float round-trip loss.
	MakerAmountFilled string `gorm:"column:maker_amount_filled;type:varchar(40)" json:"maker_amount_filled"`
	TakerAmountFilled string `gorm:"column:taker_amount_filled;type:varchar(40)" json:"taker_amount_filled"`

	TokenID string `gorm:"column:token_id;type:varchar(80);index:idx_trades_token" json:"token_id"`
	Side    Side   `gorm:"column:side;type:varchar(4)" json:"side"`

	Price  float64 `gorm:"column:price" json:"price"`
	Size   float64 `gorm:"column:size" json:"size"`
	Volume float64 `gorm:"column:volume" json:"volume"`

	GasPrice string `gorm:"column:gas_price;type:varchar(40)" json:"gas_price"`

	IsWash        bool    `gorm:"column:is_wash;index" json:"is_wash"`
	WashType      string  `gorm:"column:wash_type;type:varchar(32)" json:"wash_type,omitempty"`
	WashConfidence float64 `gorm:"column:wash_confidence" json:"wash_confidence,omitempty"`

	// HasSplitInTx/HasMergeInTx are set by the Stream Controller when the
	// same transaction also carries a PositionSplit/PositionsMerge log. The
	// match is by transaction hash only; which account split or merged is
	// not checked. They are not persisted, only used by the atomic-wash
	// detector against the in-memory ring.
	HasSplitInTx bool `gorm:"-" json:"-"`
	HasMergeInTx bool `gorm:"-" json:"-"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"-"`
}

// TableName overrides the table name used by Trade to `trades`.
func (Trade) TableName() string {
	return "trades"
}
