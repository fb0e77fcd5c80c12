/**
 * @description
 * Entry point for the PolySleuth forensics API server. Wires config,
 * storage, the chain client, the market resolver, the detector-driving
 * Stream Controller, and the REST/WebSocket surface, then starts serving.
 *
 * @dependencies
 * - github.com/gofiber/fiber/v2
 */

package main

import (
	"log"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/polysleuth/forensics/internal/alertbus"
	"github.com/polysleuth/forensics/internal/api"
	"github.com/polysleuth/forensics/internal/api/handlers"
	"github.com/polysleuth/forensics/internal/chain"
	"github.com/polysleuth/forensics/internal/config"
	"github.com/polysleuth/forensics/internal/dbconn"
	"github.com/polysleuth/forensics/internal/market"
	"github.com/polysleuth/forensics/internal/store"
	"github.com/polysleuth/forensics/internal/stream"
	"github.com/polysleuth/forensics/internal/wsapi"
)

func main() {
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
	controller.Start(cfg.Stream.PollInterval, cfg.Stream.BlocksPerPoll)

	app := fiber.New(fiber.Config{
		AppName:       "PolySleuth Forensics Engine",
		StrictRouting: true,
		CaseSensitive: true,
	})

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     "*",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowMethods:     "GET, POST, PUT, DELETE, OPTIONS",
		AllowCredentials: true,
	}))

	deps := handlers.Deps{
		Store:    st,
		Stream:   controller,
		Bus:      bus,
		DB:       pgDB,
		Resolver: resolver,
		Chain:    chainClient,
		Config:   cfg,
	}
	api.SetupRoutes(app, deps)

	wsHandler := wsapi.NewHandler(bus, st)
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(wsHandler.Upgrade))

	log.Printf("starting polysleuth forensics engine on port %s", cfg.Server.Port)
	if err := app.Listen(":" + cfg.Server.Port); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}
