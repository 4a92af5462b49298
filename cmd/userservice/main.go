package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/amazingshop/userservice/internal/cache"
	"github.com/amazingshop/userservice/internal/config"
	"github.com/amazingshop/userservice/internal/es"
	"github.com/amazingshop/userservice/internal/httpserver"
	"github.com/amazingshop/userservice/internal/logging"
	"github.com/amazingshop/userservice/internal/middleware"
	"github.com/amazingshop/userservice/internal/mykafka"
	"github.com/amazingshop/userservice/internal/repo"
	"github.com/amazingshop/userservice/internal/service"
	"github.com/amazingshop/userservice/internal/tokens"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	logger := logging.New(cfg.LogLevel)

	initCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	db, err := config.InitDB(initCtx, cfg)
	cancel()
	if err != nil {
		log.Fatalf("db init error: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	err = rdb.Ping(pingCtx).Err()
	cancel()
	if err != nil {
		log.Fatalf("redis init error: %v", err)
	}

	producer := mykafka.NewProducer(config.CSV(cfg.KafkaAddress), cfg.KafkaTopic)
	defer producer.Close()

	var index service.MessageIndexer
	if cfg.ESURL != "" {
		client, err := es.NewClient(cfg.ESURL, cfg.ESUser, cfg.ESPassword)
		if err != nil {
			logger.Warn("es unavailable, chat search disabled", "error", err)
		} else {
			index = es.NewMessageIndex(client)
		}
	}

	gormRepo := &repo.GormRepo{DB: db}
	users := cache.NewUsers(gormRepo, cache.NewStore(rdb, cfg.CacheTTL))
	codec := tokens.NewCodec(cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)

	sessions := &service.AuthService{Users: users, Codec: codec}
	registration := &service.RegistrationService{
		Users:    users,
		Sessions: sessions,
		Producer: producer,
	}
	oauth := &service.OAuthService{
		Users:    users,
		Sessions: sessions,
		Verifier: service.NewGoogleVerifier(cfg.GoogleClientID),
	}
	userSvc := &service.UserService{Users: users}
	chatSvc := &service.ChatService{
		Repo:  gormRepo,
		Cache: cache.NewStore(rdb, cfg.CacheTTL),
		Index: index,
	}

	e := echo.New()
	e.HideBanner = true
	e.Server.ReadTimeout = 10 * time.Second
	e.Server.WriteTimeout = 15 * time.Second
	e.Server.ReadHeaderTimeout = 3 * time.Second
	e.Use(middleware.RequestLogger(logger))

	httpserver.Register(e, &httpserver.Deps{
		Gate: &middleware.AuthGate{Codec: codec, Users: users},
		Auth: &httpserver.AuthHTTP{
			Sessions:     sessions,
			Registration: registration,
			OAuth:        oauth,
		},
		Users: &httpserver.UserHTTP{Svc: userSvc},
		Chats: &httpserver.ChatHTTP{Svc: chatSvc},
		Admin: &httpserver.AdminHTTP{Svc: userSvc},
	})

	go func() {
		if err := e.Start(cfg.HTTPAddr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("echo start: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	<-stop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("echo shutdown: %v", err)
	}
}
