/**
 * @description
 * Bit-exact decoding of OrderFilled, PositionSplit/PositionsMerge and
 * PositionsConverted logs into structured events, plus the price/size/
 * volume/side derivation for fills. Malformed events are dropped and
 * counted, never surfaced as fatal.
 *
 * @dependencies
 * - github.com/ethereum/go-ethereum/accounts/abi
 * - github.com/ethereum/go-ethereum/common
 * - github.com/ethereum/go-ethereum/core/types
 */

package decode

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/polysleuth/forensics/internal/forensics"
	"github.com/polysleuth/forensics/internal/models"
)

// Fill is the raw, undelivered decode of an OrderFilled log.
type Fill struct {
	MakerOrderHash [32]byte
	TakerOrderHash [32]byte
	Maker          common.Address
	Taker          common.Address
	MakerAssetID   *big.Int
	TakerAssetID   *big.Int
	MakerAmount    *big.Int
	TakerAmount    *big.Int
	Fee            *big.Int
}

// SplitMergeKind distinguishes a mint (split) from a burn (merge).
type SplitMergeKind string

const (
	KindSplit SplitMergeKind = "SPLIT"
	KindMerge SplitMergeKind = "MERGE"
)

// SplitMerge is a decoded PositionSplit or PositionsMerge event.
type SplitMerge struct {
	Kind               SplitMergeKind
	Stakeholder        common.Address
	Collateral         common.Address
	ParentCollectionID [32]byte
	ConditionID        [32]byte
	Partition          []*big.Int
	Amount             *big.Int
}

// Converted is a decoded PositionsConverted (neg-risk adapter) event. It
// carries no maker/taker/price and is never fed to the evidence store's
// trade collection.
type Converted struct {
	Stakeholder common.Address
	ConditionID [32]byte
	Amount      *big.Int
	IndexSets   []*big.Int
	OutAmount   *big.Int
}

// DecodeOrderFilled unpacks an OrderFilled log's data payload.
func DecodeOrderFilled(log types.Log) (*Fill, error) {
	values, err := orderFilledArgs.Unpack(log.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: unpack OrderFilled: %v", forensics.ErrDecode, err)
	}
	if len(values) != 9 {
		return nil, fmt.Errorf("%w: OrderFilled arity", forensics.ErrDecode)
	}

	f := &Fill{
		MakerOrderHash: values[0].([32]byte),
		TakerOrderHash: values[1].([32]byte),
		Maker:          values[2].(common.Address),
		Taker:          values[3].(common.Address),
		MakerAssetID:   values[4].(*big.Int),
		TakerAssetID:   values[5].(*big.Int),
		MakerAmount:    values[6].(*big.Int),
		TakerAmount:    values[7].(*big.Int),
		Fee:            values[8].(*big.Int),
	}

	makerZero := f.MakerAssetID.Sign() == 0
	takerZero := f.TakerAssetID.Sign() == 0
	if makerZero == takerZero {
		// Both zero or both non-zero: exactly one must be the collateral side.
		return nil, fmt.Errorf("%w: OrderFilled must have exactly one zero asset id", forensics.ErrDecode)
	}

	return f, nil
}

// DeriveTrade turns a decoded Fill into a stored Trade record.
func DeriveTrade(f *Fill, log types.Log, exchange common.Address, blockTimestamp int64, gasPrice *big.Int) (*models.Trade, error) {
	var tokenID *big.Int
	var side models.Side
	var usdcAmount, tokenAmount *big.Int

	if f.MakerAssetID.Sign() == 0 {
		side = models.SideBuy
		tokenID = f.TakerAssetID
		usdcAmount = f.MakerAmount
		tokenAmount = f.TakerAmount
	} else {
		side = models.SideSell
		tokenID = f.MakerAssetID
		usdcAmount = f.TakerAmount
		tokenAmount = f.MakerAmount
	}

	if tokenAmount.Sign() == 0 {
		return nil, fmt.Errorf("%w: zero token amount denominator", forensics.ErrDecode)
	}

	price := roundHalfEven(new(big.Rat).SetFrac(usdcAmount, tokenAmount), 4)
	size := fixedToFloat(tokenAmount, 6)
	volume := roundHalfEven(new(big.Rat).SetFloat64(price*size), 6)

	gp := "0"
	if gasPrice != nil {
		gp = gasPrice.String()
	}

	return &models.Trade{
		TxHash:            log.TxHash.Hex(),
		LogIndex:          uint(log.Index),
		BlockNumber:       int64(log.BlockNumber),
		Timestamp:         time.Unix(blockTimestamp, 0).UTC(),
		Exchange:          exchange.Hex(),
		Maker:             f.Maker.Hex(),
		Taker:             f.Taker.Hex(),
		MakerAssetID:      f.MakerAssetID.String(),
		TakerAssetID:      f.TakerAssetID.String(),
		MakerAmountFilled: f.MakerAmount.String(),
		TakerAmountFilled: f.TakerAmount.String(),
		TokenID:           tokenID.String(),
		Side:              side,
		Price:             price,
		Size:              size,
		Volume:            volume,
		GasPrice:          gp,
	}, nil
}

// DecodeSplitMerge unpacks a PositionSplit or PositionsMerge log.
func DecodeSplitMerge(log types.Log, kind SplitMergeKind) (*SplitMerge, error) {
	values, err := splitMergeArgs.Unpack(log.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: unpack %s: %v", forensics.ErrDecode, kind, err)
	}
	if len(values) != 6 {
		return nil, fmt.Errorf("%w: %s arity", forensics.ErrDecode, kind)
	}

	return &SplitMerge{
		Kind:               kind,
		Stakeholder:        values[0].(common.Address),
		Collateral:         values[1].(common.Address),
		ParentCollectionID: values[2].([32]byte),
		ConditionID:        values[3].([32]byte),
		Partition:          values[4].([]*big.Int),
		Amount:             values[5].(*big.Int),
	}, nil
}

// DecodeConverted unpacks a PositionsConverted log.
func DecodeConverted(log types.Log) (*Converted, error) {
	values, err := convertedArgs.Unpack(log.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: unpack PositionsConverted: %v", forensics.ErrDecode, err)
	}
	if len(values) != 5 {
		return nil, fmt.Errorf("%w: PositionsConverted arity", forensics.ErrDecode)
	}

	return &Converted{
		Stakeholder: values[0].(common.Address),
		ConditionID: values[1].([32]byte),
		Amount:      values[2].(*big.Int),
		IndexSets:   values[3].([]*big.Int),
		OutAmount:   values[4].(*big.Int),
	}, nil
}

// fixedToFloat renders an integer fixed-point amount with the given decimal
// count as a float64.
func fixedToFloat(amount *big.Int, decimals int) float64 {
	scale := new(big.Rat).SetInt(pow10(decimals))
	r := new(big.Rat).SetInt(amount)
	r.Quo(r, scale)
	f, _ := r.Float64()
	return f
}

func pow10(n int) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}

// roundHalfEven rounds r to `decimals` fractional digits using round-half-to-even,
// returning the result as a float64.
func roundHalfEven(r *big.Rat, decimals int) float64 {
	scale := pow10(decimals)
	scaled := new(big.Rat).Mul(r, new(big.Rat).SetInt(scale))

	num := scaled.Num()
	den := scaled.Denom()

	quotient := new(big.Int)
	remainder := new(big.Int)
	quotient.QuoRem(num, den, remainder)

	if remainder.Sign() != 0 {
		twiceRemainder := new(big.Int).Mul(remainder, big.NewInt(2))
		twiceRemainder.Abs(twiceRemainder)
		cmp := twiceRemainder.Cmp(den)

		roundUp := false
		switch {
		case cmp > 0:
			roundUp = true
		case cmp == 0:
			// Half-even: round up only if that makes the result even.
			roundUp = quotient.Bit(0) == 1
		}

		if roundUp {
			quotient.Add(quotient, big.NewInt(1))
		}
	}

	result := new(big.Rat).SetFrac(quotient, scale)
	f, _ := result.Float64()
	return f
}
