/**
 * @description
 * RPC client for block-range and tip-following log retrieval against a
 * Polygon-class EVM. Wraps go-ethereum's ethclient with retry/backoff,
 * automatic block-range halving on "range too large" upstream errors, and
 * an LRU cache for block timestamps.
 *
 * @dependencies
 * - github.com/ethereum/go-ethereum (ethclient, common, core/types)
 * - golang.org/x/time/rate: outbound call throttling
 */

package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"golang.org/x/time/rate"

	"github.com/polysleuth/forensics/internal/forensics"
	"github.com/polysleuth/forensics/internal/logger"
)

// RawLog is the unmodified log record as returned by the node.
type RawLog = types.Log

const timestampCacheSize = 4096

// rpcRateLimit is a courtesy limit on outbound calls to the upstream node,
// independent of the retry/backoff policy on individual failing calls.
const rpcRateLimit = rate.Limit(20)

// minRangeBlocks is the floor the range-halving loop will not go below;
// spec treats <= 1000 blocks as always acceptable, so 1 is a safe floor.
const minRangeBlocks = 1

// Client is the RPC client used by the Stream Controller and one-shot backfills.
type Client struct {
	eth       *ethclient.Client
	limiter   *rate.Limiter
	tsCache   *blockTimestampLRU
	log       *logger.Entry
}

// Dial connects to the given RPC endpoint.
func Dial(rpcURL string) (*Client, error) {
	eth, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", forensics.ErrUpstream, rpcURL, err)
	}
	return &Client{
		eth:     eth,
		limiter: rate.NewLimiter(rpcRateLimit, 1),
		tsCache: newBlockTimestampLRU(timestampCacheSize),
		log:     logger.Component("chain"),
	}, nil
}

// Close releases the underlying connection.
func (c *Client) Close() {
	c.eth.Close()
}

func (c *Client) wait(ctx context.Context) error {
	return c.limiter.Wait(ctx)
}

// GetBlockNumber returns the current chain head.
func (c *Client) GetBlockNumber(ctx context.Context) (int64, error) {
	var head uint64
	err := withRetry(ctx, func(ctx context.Context) error {
		if err := c.wait(ctx); err != nil {
			return err
		}
		n, err := c.eth.BlockNumber(ctx)
		if err != nil {
			return err
		}
		head = n
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: block number: %v", forensics.ErrUpstream, err)
	}
	return int64(head), nil
}

// GetLogs returns logs matching any of topics0 emitted by any of addresses
// within [fromBlock, toBlock] (both ends inclusive), halving the range automatically when the
// upstream rejects it as too large.
func (c *Client) GetLogs(ctx context.Context, fromBlock, toBlock int64, addresses []common.Address, topics0 []common.Hash) ([]RawLog, error) {
	if fromBlock > toBlock {
		return nil, nil
	}
	return c.getLogsRange(ctx, fromBlock, toBlock, addresses, topics0)
}

func (c *Client) getLogsRange(ctx context.Context, fromBlock, toBlock int64, addresses []common.Address, topics0 []common.Hash) ([]RawLog, error) {
	var logs []types.Log
	err := withRetry(ctx, func(ctx context.Context) error {
		if err := c.wait(ctx); err != nil {
			return err
		}
		q := ethereum.FilterQuery{
			FromBlock: big.NewInt(fromBlock),
			ToBlock:   big.NewInt(toBlock),
			Addresses: addresses,
			Topics:    [][]common.Hash{topics0},
		}
		result, err := c.eth.FilterLogs(ctx, q)
		if err != nil {
			return err
		}
		logs = result
		return nil
	})

	if err != nil {
		if isRangeTooLarge(err) && (toBlock-fromBlock) > minRangeBlocks {
			mid := fromBlock + (toBlock-fromBlock)/2
			c.log.With(logger.Fields{"from": fromBlock, "to": toBlock, "mid": mid}).Warn("range too large, halving")
			left, lerr := c.getLogsRange(ctx, fromBlock, mid, addresses, topics0)
			if lerr != nil {
				return nil, lerr
			}
			right, rerr := c.getLogsRange(ctx, mid+1, toBlock, addresses, topics0)
			if rerr != nil {
				return nil, rerr
			}
			return append(left, right...), nil
		}
		return nil, fmt.Errorf("%w: get logs [%d,%d]: %v", forensics.ErrUpstream, fromBlock, toBlock, err)
	}

	return logs, nil
}

// GetTransactionGasPrice returns the effective gas price paid by txHash,
// used to annotate trades for the gas-anomaly detector.
func (c *Client) GetTransactionGasPrice(ctx context.Context, txHash common.Hash) (*big.Int, error) {
	var gasPrice *big.Int
	err := withRetry(ctx, func(ctx context.Context) error {
		if err := c.wait(ctx); err != nil {
			return err
		}
		tx, _, err := c.eth.TransactionByHash(ctx, txHash)
		if err != nil {
			return err
		}
		gasPrice = tx.GasPrice()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: tx gas price %s: %v", forensics.ErrUpstream, txHash.Hex(), err)
	}
	return gasPrice, nil
}

func isRangeTooLarge(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "query returned more than") ||
		strings.Contains(msg, "range too large") ||
		(strings.Contains(msg, "block range") && strings.Contains(msg, "large")) ||
		strings.Contains(msg, "limit exceeded")
}

// GetBlockTimestamp returns the timestamp (seconds) of blockNumber, cached.
func (c *Client) GetBlockTimestamp(ctx context.Context, blockNumber int64) (int64, error) {
	if ts, ok := c.tsCache.get(blockNumber); ok {
		return ts, nil
	}

	var ts int64
	err := withRetry(ctx, func(ctx context.Context) error {
		if err := c.wait(ctx); err != nil {
			return err
		}
		header, err := c.eth.HeaderByNumber(ctx, big.NewInt(blockNumber))
		if err != nil {
			return err
		}
		ts = int64(header.Time)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: block timestamp %d: %v", forensics.ErrUpstream, blockNumber, err)
	}

	c.tsCache.put(blockNumber, ts)
	return ts, nil
}
