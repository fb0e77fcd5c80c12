package store

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polysleuth/forensics/internal/models"
)

func makeTrade(txHash string, logIndex uint, block int64, ts time.Time) models.Trade {
	return models.Trade{
		TxHash:      txHash,
		LogIndex:    logIndex,
		BlockNumber: block,
		Timestamp:   ts,
		Maker:       "0xmaker",
		Taker:       "0xtaker",
		TokenID:     "token-1",
		Side:        models.SideBuy,
		Price:       0.5,
		Size:        10,
		Volume:      5,
	}
}

func TestAddTrade_DuplicateTxLogIndexIsIdempotent(t *testing.T) {
	s := New(10, 10, nil, nil)
	defer s.Close()

	now := time.Now().UTC()
	first := s.AddTrade(makeTrade("0xabc", 1, 100, now), false)
	second := s.AddTrade(makeTrade("0xabc", 1, 100, now), false)

	assert.Equal(t, first.TxHash, second.TxHash)
	assert.Equal(t, int64(1), s.Stats().TotalTrades, "duplicate (tx_hash, log_index) must not be counted twice")

	trades := s.QueryTrades(Filter{TokenID: "token-1", Limit: 10})
	require.Len(t, trades, 1)
}

func TestAddTrade_RingEvictsOldest(t *testing.T) {
	s := New(3, 10, nil, nil)
	defer s.Close()

	base := time.Now().UTC()
	for i := 0; i < 5; i++ {
		s.AddTrade(makeTrade("0xtx", uint(i), int64(i), base.Add(time.Duration(i)*time.Second)), false)
	}

	snapshot := s.Snapshot()
	require.Len(t, snapshot.Trades, 3, "ring capacity must bound in-memory trades")

	// The three surviving trades must be the three most recently added.
	var logIndices []uint
	for _, tr := range snapshot.Trades {
		logIndices = append(logIndices, tr.LogIndex)
	}
	assert.ElementsMatch(t, []uint{2, 3, 4}, logIndices)
}

func TestQueryTrades_FiltersByAddressAndSide(t *testing.T) {
	s := New(10, 10, nil, nil)
	defer s.Close()

	base := time.Now().UTC()
	t1 := makeTrade("0x1", 0, 1, base)
	t1.Maker = "0xalice"
	t1.Side = models.SideBuy
	s.AddTrade(t1, false)

	t2 := makeTrade("0x2", 0, 2, base.Add(time.Second))
	t2.Maker = "0xbob"
	t2.Side = models.SideSell
	s.AddTrade(t2, false)

	buys := s.QueryTrades(Filter{Address: "0xalice", Limit: 10})
	require.Len(t, buys, 1)
	assert.Equal(t, "0xalice", buys[0].Maker)

	sells := s.QueryTrades(Filter{Side: models.SideSell, Limit: 10})
	require.Len(t, sells, 1)
	assert.Equal(t, models.SideSell, sells[0].Side)
}

func TestSnapshot_OrdersByBlockThenLogIndex(t *testing.T) {
	s := New(10, 10, nil, nil)
	defer s.Close()

	base := time.Now().UTC()
	s.AddTrade(makeTrade("0xb", 1, 10, base), false)
	s.AddTrade(makeTrade("0xa", 0, 10, base), false)
	s.AddTrade(makeTrade("0xc", 0, 5, base), false)

	snapshot := s.Snapshot()
	require.Len(t, snapshot.Trades, 3)
	assert.Equal(t, int64(5), snapshot.Trades[0].BlockNumber)
	assert.Equal(t, int64(10), snapshot.Trades[1].BlockNumber)
	assert.Equal(t, uint(0), snapshot.Trades[1].LogIndex)
	assert.Equal(t, int64(10), snapshot.Trades[2].BlockNumber)
	assert.Equal(t, uint(1), snapshot.Trades[2].LogIndex)
}

func TestAckAlert_FlipsAckInPlace(t *testing.T) {
	s := New(10, 10, nil, nil)
	defer s.Close()

	added := s.AddAlert(models.Alert{TokenID: "token-1"}, false)
	require.False(t, added.Ack)

	acked, ok := s.AckAlert(added.ID)
	require.True(t, ok)
	assert.True(t, acked.Ack)

	snapshot := s.Snapshot()
	require.Len(t, snapshot.Alerts, 1)
	assert.True(t, snapshot.Alerts[0].Ack, "ring copy must reflect the ack, not just the returned value")
}

func TestAckAlert_UnknownIDReturnsFalse(t *testing.T) {
	s := New(10, 10, nil, nil)
	defer s.Close()

	_, ok := s.AckAlert(uuid.New())
	assert.False(t, ok)
}

func TestMarkWash_FlipsIsWashAndCountsOnce(t *testing.T) {
	s := New(10, 10, nil, nil)
	defer s.Close()

	now := time.Now().UTC()
	s.AddTrade(makeTrade("0xabc", 1, 100, now), false)

	marked, ok := s.MarkWash("0xabc", 1, "SELF_TRADE", 1.0)
	require.True(t, ok)
	assert.True(t, marked.IsWash)
	assert.Equal(t, "SELF_TRADE", marked.WashType)
	assert.Equal(t, int64(1), s.Stats().WashTradeCount)

	// Marking the same trade again must not double-count.
	_, ok = s.MarkWash("0xabc", 1, "CIRCULAR", 0.85)
	require.True(t, ok)
	assert.Equal(t, int64(1), s.Stats().WashTradeCount)

	snapshot := s.Snapshot()
	require.Len(t, snapshot.Trades, 1)
	assert.True(t, snapshot.Trades[0].IsWash)
}

func TestMarkWash_UnknownTradeReturnsFalse(t *testing.T) {
	s := New(10, 10, nil, nil)
	defer s.Close()

	_, ok := s.MarkWash("0xmissing", 0, "SELF_TRADE", 1.0)
	assert.False(t, ok)
}
