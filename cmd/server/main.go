package main // Entry point package

import (
	"context"
	"log"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/parkops/daypass/internal/booking"
	"github.com/parkops/daypass/internal/captcha"
	"github.com/parkops/daypass/internal/config"
	"github.com/parkops/daypass/internal/database"
	"github.com/parkops/daypass/internal/handler"
	"github.com/parkops/daypass/internal/queue"
	"github.com/parkops/daypass/internal/repository"
	"github.com/parkops/daypass/internal/router"
	queue_publisher "github.com/parkops/daypass/internal/service"
)

func main() {
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()

	// Redis is optional; rate limiting, response caching and proof
	// replay checks all degrade gracefully when rdb is nil.
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Println("redis unavailable; rate limiting, caching and proof replay checks disabled")
	}

	facilityRepo := repository.NewFacilityRepo(db)
	recordRepo := repository.NewRecordRepo(db)
	passRepo := repository.NewPassRepo(db)

	verifier := captcha.NewJWTVerifier(cfg.CaptchaSecret, rdb, 2*time.Duration(cfg.HoldTTLMin)*time.Minute)
	publisher := queue_publisher.Publisher{}

	engine := booking.NewEngine(
		facilityRepo, recordRepo, passRepo,
		verifier, publisher,
		cfg.HoldSecret, time.Duration(cfg.HoldTTLMin)*time.Minute,
	)

	// Sweeper reclaims capacity from lapsed holds on a fixed interval.
	sweeper := booking.NewSweeper(passRepo, recordRepo, publisher, 0)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sweeper.Run(ctx, time.Duration(cfg.SweepIntervalMin)*time.Minute)

	// Background consumer draining pass.events into logs/pass.log.
	go func() {
		if err := queue.StartPassConsumer(); err != nil {
			log.Printf("pass consumer stopped: %v", err)
		}
	}()

	e := echo.New()
	router.RegisterRoutes(e)
	router.RegisterBooking(e, handler.NewBookingHandler(engine), rdb)
	router.RegisterAdmin(e, handler.NewAdminHandler(engine), cfg.JWTSecret)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)

	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
