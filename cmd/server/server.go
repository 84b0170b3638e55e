package main

import (
	"context"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/thereayou/notiflow/internal/config"
	"github.com/thereayou/notiflow/internal/database"
	"github.com/thereayou/notiflow/internal/handlers"
	"github.com/thereayou/notiflow/internal/service"
	"github.com/thereayou/notiflow/internal/ws"
	"github.com/thereayou/notiflow/pkg/auth"
)

type Server struct {
	Router *gin.Engine
	DB     *database.Database
	Redis  *redis.Client
	Hub    *ws.Hub
	Log    *zap.Logger
}

func NewServer(cfg *config.Config) *Server {
	log := newLogger(cfg.LogLevel)

	db := &database.Database{}
	if err := db.Connect(cfg.DatabaseURL); err != nil {
		log.Fatal("postgres connect failed", zap.Error(err))
	}

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatal("invalid REDIS_URL", zap.Error(err))
		}
		rdb = redis.NewClient(redisOpts)
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			log.Fatal("redis connect failed", zap.Error(err))
		}
	}

	jwtMgr := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTTTL)

	hub := ws.NewHub(log.Named("hub"))
	go hub.Run()

	dispatcher := service.NewHubDispatcher(hub, log.Named("dispatch"))
	messageSvc := service.NewMessageService(db, dispatcher, log.Named("messages"))

	authorizer := ws.NewJoinAuthorizer(log.Named("rooms"))
	messageHandler := handlers.NewMessageHandler(messageSvc, authorizer, hub, log.Named("ws"))

	authH := handlers.NewAuthHandler(db, jwtMgr, rdb, log.Named("auth"))
	httpMsgH := handlers.NewHTTPMessageHandler(messageSvc, log.Named("http"))
	wsH := handlers.NewWebSocketHandler(hub, messageHandler, log.Named("ws"))

	router := gin.Default()
	APIEndpoints(router, jwtMgr, rdb, authH, httpMsgH, wsH)

	return &Server{
		Router: router,
		DB:     db,
		Redis:  rdb,
		Hub:    hub,
		Log:    log,
	}
}

func (s *Server) Run(port string) {
	if port == "" {
		port = "8080"
	}
	s.Log.Info("server starting", zap.String("port", port))
	if err := s.Router.Run(":" + port); err != nil {
		s.Hub.Stop()
		s.Log.Fatal("server run error", zap.Error(err))
	}
}

func newLogger(level string) *zap.Logger {
	cfg := zap.NewProductionConfig()

	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		zapLevel = zapcore.InfoLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)

	log, err := cfg.Build()
	if err != nil {
		os.Exit(1)
	}
	return log
}
