/**
 * @description
 * Standalone one-shot backfill CLI: runs the Stream Controller's tick
 * logic over the last N confirmed blocks and exits, without starting the
 * REST/WebSocket surface. Useful for warming the Evidence Store before
 * the server starts, or for replaying a range after an outage.
 */

package main

import (
	"context"
	"flag"
	"log"

	"github.com/ethereum/go-ethereum/common"

	"github.com/polysleuth/forensics/internal/alertbus"
	"github.com/polysleuth/forensics/internal/chain"
	"github.com/polysleuth/forensics/internal/config"
	"github.com/polysleuth/forensics/internal/dbconn"
	"github.com/polysleuth/forensics/internal/market"
	"github.com/polysleuth/forensics/internal/store"
	"github.com/polysleuth/forensics/internal/stream"
)

func main() {
	blocks := flag.Int64("blocks", 1000, "number of confirmed blocks to backfill")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	pgDB, err := dbconn.ConnectPostgres(cfg)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}

	redisClient, err := dbconn.ConnectRedis(cfg)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}

	chainClient, err := chain.Dial(cfg.Chain.RPCURL)
	if err != nil {
		log.Fatalf("failed to dial chain rpc: %v", err)
	}
	defer chainClient.Close()

	fetcher := market.NewGammaFetcher(cfg.Market.GammaURL)
	resolver := market.NewResolver(pgDB, redisClient, fetcher)

	bus := alertbus.New()
	st := store.New(cfg.Stream.RingTrades, cfg.Stream.RingAlerts, pgDB, bus)
	defer st.Close()

	exchangeAddresses := make([]common.Address, 0, len(cfg.Chain.ExchangeAddresses))
	for _, a := range cfg.Chain.ExchangeAddresses {
		exchangeAddresses = append(exchangeAddresses, common.HexToAddress(a))
	}

	controller := stream.New(chainClient, resolver, st, bus, pgDB, exchangeAddresses, cfg.Stream.Confirmations)

	log.Printf("backfilling last %d confirmed blocks", *blocks)
	if err := controller.Backfill(context.Background(), *blocks); err != nil {
		log.Fatalf("backfill failed: %v", err)
	}

	stats := st.Stats()
	log.Printf("backfill complete: %d trades, %d alerts", stats.TotalTrades, stats.TotalAlerts)
}
