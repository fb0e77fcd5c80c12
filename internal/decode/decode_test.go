package decode

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polysleuth/forensics/internal/models"
)

func TestDeriveTrade_BuySide(t *testing.T) {
	f := &Fill{
		Maker:        common.HexToAddress("0x1"),
		Taker:        common.HexToAddress("0x2"),
		MakerAssetID: big.NewInt(0),
		TakerAssetID: big.NewInt(123),
		MakerAmount:  big.NewInt(550_000),  // 0.55 USDC (6dp)
		TakerAmount:  big.NewInt(1_000_000), // 1 outcome token (6dp)
		Fee:          big.NewInt(0),
	}
	log := types.Log{
		TxHash:      common.HexToHash("0xabc"),
		Index:       3,
		BlockNumber: 100,
	}

	trade, err := DeriveTrade(f, log, common.HexToAddress("0xexchange"), 1_700_000_000, big.NewInt(30_000_000_000))
	require.NoError(t, err)

	assert.Equal(t, models.SideBuy, trade.Side)
	assert.Equal(t, "123", trade.TokenID)
	assert.InDelta(t, 0.55, trade.Price, 1e-9)
	assert.InDelta(t, 1.0, trade.Size, 1e-9)
	assert.InDelta(t, 0.55, trade.Volume, 1e-9)
	assert.Equal(t, uint(3), trade.LogIndex)
	assert.Equal(t, int64(100), trade.BlockNumber)
	assert.Equal(t, "30000000000", trade.GasPrice)
}

func TestDeriveTrade_SellSide(t *testing.T) {
	f := &Fill{
		Maker:        common.HexToAddress("0x1"),
		Taker:        common.HexToAddress("0x2"),
		MakerAssetID: big.NewInt(456),
		TakerAssetID: big.NewInt(0),
		MakerAmount:  big.NewInt(2_000_000), // 2 tokens
		TakerAmount:  big.NewInt(1_200_000), // 1.2 USDC
		Fee:          big.NewInt(0),
	}
	log := types.Log{TxHash: common.HexToHash("0xdef"), Index: 1, BlockNumber: 200}

	trade, err := DeriveTrade(f, log, common.HexToAddress("0xexchange"), 1_700_000_100, nil)
	require.NoError(t, err)

	assert.Equal(t, models.SideSell, trade.Side)
	assert.Equal(t, "456", trade.TokenID)
	assert.InDelta(t, 0.6, trade.Price, 1e-9)
	assert.InDelta(t, 2.0, trade.Size, 1e-9)
	assert.Equal(t, "0", trade.GasPrice)
}

func TestDecodeOrderFilled_RejectsMalformedData(t *testing.T) {
	log := types.Log{TxHash: common.HexToHash("0x1"), Index: 0, BlockNumber: 1}
	_, err := DecodeOrderFilled(types.Log{
		TxHash: log.TxHash,
		Data:   nil,
	})
	assert.Error(t, err)
}

func TestDeriveTrade_ZeroTokenAmountRejected(t *testing.T) {
	f := &Fill{
		Maker:        common.HexToAddress("0x1"),
		Taker:        common.HexToAddress("0x2"),
		MakerAssetID: big.NewInt(0),
		TakerAssetID: big.NewInt(1),
		MakerAmount:  big.NewInt(100),
		TakerAmount:  big.NewInt(0),
	}
	log := types.Log{TxHash: common.HexToHash("0x2"), Index: 0, BlockNumber: 1}
	_, err := DeriveTrade(f, log, common.HexToAddress("0xexchange"), 1, nil)
	assert.Error(t, err)
}
