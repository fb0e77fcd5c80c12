package stream

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polysleuth/forensics/internal/chain"
	"github.com/polysleuth/forensics/internal/decode"
	"github.com/polysleuth/forensics/internal/store"
)

func TestClassifySplitMergeTxs_TagsByTxHash(t *testing.T) {
	splitTx := common.HexToHash("0xaaa")
	mergeTx := common.HexToHash("0xbbb")
	neither := common.HexToHash("0xccc")

	logs := []chain.RawLog{
		{TxHash: splitTx, Topics: []common.Hash{decode.PositionSplitTopic0}},
		{TxHash: mergeTx, Topics: []common.Hash{decode.PositionsMergeTopic0}},
		{TxHash: neither, Topics: []common.Hash{decode.OrderFilledTopic0}},
	}

	split, merge := classifySplitMergeTxs(logs)

	assert.True(t, split[splitTx.Hex()])
	assert.False(t, split[mergeTx.Hex()])
	assert.True(t, merge[mergeTx.Hex()])
	assert.False(t, merge[neither.Hex()])
}

func TestClassifySplitMergeTxs_IgnoresLogsWithoutTopics(t *testing.T) {
	logs := []chain.RawLog{{TxHash: common.HexToHash("0x1"), Topics: nil}}
	split, merge := classifySplitMergeTxs(logs)
	assert.Empty(t, split)
	assert.Empty(t, merge)
}

func TestIsCancelled_ReflectsChannelClosure(t *testing.T) {
	cancel := make(chan struct{})
	assert.False(t, isCancelled(cancel))
	close(cancel)
	assert.True(t, isCancelled(cancel))
}

func TestController_StartIsIdempotentAndStopReturnsToIdle(t *testing.T) {
	st := store.New(10, 10, nil, nil)
	defer st.Close()

	c := New(nil, nil, st, nil, nil, nil, 0)
	assert.Equal(t, StateIdle, c.State())

	// A long poll interval keeps the loop parked on loadSyncState/ticker
	// without ever reaching the network-dependent tick path.
	c.Start(time.Hour, 100)
	assert.Equal(t, StateStreaming, c.State())

	// Calling Start again while streaming must be a no-op, not spawn a
	// second loop goroutine.
	c.Start(time.Hour, 100)
	assert.Equal(t, StateStreaming, c.State())

	c.Stop()
	assert.Equal(t, StateIdle, c.State())
}

func TestController_StopWhileIdleIsNoop(t *testing.T) {
	st := store.New(10, 10, nil, nil)
	defer st.Close()

	c := New(nil, nil, st, nil, nil, nil, 0)
	require.Equal(t, StateIdle, c.State())

	assert.NotPanics(t, func() { c.Stop() })
	assert.Equal(t, StateIdle, c.State())
}

func TestController_LoadSyncStateWithoutDBDefaultsToZero(t *testing.T) {
	c := New(nil, nil, store.New(10, 10, nil, nil), nil, nil, nil, 0)
	assert.Equal(t, int64(0), c.loadSyncState(nil))
}
