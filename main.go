package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"keeper/internal/auth"
	"keeper/internal/cache"
	"keeper/internal/commands"
	"keeper/internal/config"
	"keeper/internal/db"
	"keeper/internal/engine"
	"keeper/internal/events"
	"keeper/internal/handlers"
	"keeper/internal/middleware"
	"keeper/internal/notifications"
	"keeper/internal/observability"
	"keeper/internal/presence"
	"keeper/internal/rabbitmq"
	"keeper/internal/repositories"
	"keeper/internal/ws"
)

func main() {
	cfg := config.Load()

	logger, err := observability.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, cfg.OTLPEndpoint, cfg.ServiceName)
	if err != nil {
		logger.Fatal("failed to init tracing", zap.Error(err))
	}

	database, err := db.Connect(ctx, cfg.DatabaseDSN, logger)
	if err != nil {
		logger.Fatal("failed to connect to db", zap.Error(err))
	}
	defer database.Close()
	store := repositories.NewStore(database)

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	users := cache.NewUserCache(rdb, store.Users(), cfg.Realtime.UserCacheTTL, logger)
	online := presence.NewRedisRegistry(rdb, cfg.Realtime.PresenceKey)
	bus := events.NewRedisBus(rdb, cfg.Realtime.EventsChannel, logger)
	actors := auth.NewResolver(auth.NewTokenParser(cfg.JWTSecret), users)

	amqpConn, err := rabbitmq.Dial(cfg.AMQP.URL, cfg.AMQP.Exchange)
	if err != nil {
		logger.Warn("rabbitmq unavailable, commands and push notifications disabled", zap.Error(err))
		amqpConn = nil
	} else {
		defer amqpConn.Close()
	}
	publisher := rabbitmq.NewPublisher(amqpConn, cfg.AMQP.Exchange, logger)
	defer publisher.Close()

	dispatcher := notifications.NewDispatcher(notifications.Config{
		RoutingKey: cfg.AMQP.NotificationRoutingKey,
		Workers:    cfg.AMQP.NotificationWorkers,
		Buffer:     cfg.AMQP.NotificationBuffer,
	}, publisher, logger)
	if err := dispatcher.Start(ctx); err != nil {
		logger.Fatal("failed to start notification dispatcher", zap.Error(err))
	}

	visibility := engine.NewVisibilityManager(store, bus, logger)
	messages := engine.NewMessageEngine(store, visibility, online, dispatcher, bus, logger)
	friends := engine.NewFriendshipEngine(store, bus, logger)
	rooms := engine.NewRoomService(store, bus, logger)

	if amqpConn != nil {
		startConsumer(ctx, amqpConn, cfg.AMQP, commands.NewRouter(actors, messages, logger), logger)
	}

	hub := ws.NewHub(online, rooms, logger)
	sub, err := bus.Subscribe(ctx)
	if err != nil {
		logger.Fatal("failed to subscribe to event bus", zap.Error(err))
	}
	defer sub.Close()
	go hub.Run(ctx, sub)

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestID(), otelgin.Middleware(cfg.ServiceName), observability.HTTPMetricsMiddleware())

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	router.GET("/ws", ws.NewHandler(hub, actors, logger).Handle)
	handlers.RegisterDebugRoutes(router, publisher, online, cfg.Env != "production")

	messageHandler := handlers.NewMessageHandler(messages, logger)
	roomHandler := handlers.NewRoomHandler(visibility, rooms, logger)
	friendHandler := handlers.NewFriendHandler(friends, logger)
	userHandler := handlers.NewUserHandler(users, logger)

	api := router.Group("/", middleware.AuthMiddleware(actors))
	api.GET("/rooms/:room_id/messages", messageHandler.GetMessages)
	api.GET("/rooms/:room_id/pinned", messageHandler.GetPinned)
	api.GET("/rooms/:room_id/authorize", roomHandler.AuthorizeJoin)
	api.PUT("/messages/:message_id/link-preview", messageHandler.UpdateLinkPreview)

	api.POST("/dms", roomHandler.OpenDM)
	api.GET("/dms", roomHandler.ListDMs)
	api.POST("/dms/:room_id/hide", roomHandler.HideDM)

	api.POST("/groups", roomHandler.CreateGroup)
	api.POST("/groups/join", roomHandler.JoinGroup)
	api.GET("/groups", roomHandler.ListGroups)
	api.PUT("/groups/:room_id", roomHandler.RenameGroup)
	api.DELETE("/groups/:room_id", roomHandler.DeleteGroup)
	api.DELETE("/groups/:room_id/participants/:user_id", roomHandler.KickParticipant)

	api.GET("/friends", friendHandler.ListFriends)
	api.DELETE("/friends/:username", friendHandler.Remove)
	api.GET("/friends/requests", friendHandler.ListPending)
	api.POST("/friends/requests", friendHandler.SendRequest)
	api.POST("/friends/requests/:username/accept", friendHandler.Accept)
	api.POST("/friends/requests/:username/decline", friendHandler.Decline)
	api.DELETE("/friends/requests/:username", friendHandler.Cancel)

	api.PUT("/users/me/push-token", userHandler.SavePushToken)

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: router}
	go func() {
		logger.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown failed", zap.Error(err))
	}
	if err := dispatcher.Stop(shutdownCtx); err != nil {
		logger.Warn("notification dispatcher did not drain", zap.Error(err))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn("tracing shutdown failed", zap.Error(err))
	}
}

func startConsumer(ctx context.Context, conn *amqp.Connection, cfg config.AMQPConfig, router *commands.Router, logger *zap.Logger) {
	consumer, err := rabbitmq.NewConsumer(conn, rabbitmq.ConsumerConfig{
		Exchange: cfg.Exchange,
		Queue:    cfg.CommandQueue,
		Binding:  cfg.CommandBinding,
		Prefetch: 32,
	}, router.HandleDelivery, logger)
	if err != nil {
		logger.Fatal("failed to start command consumer", zap.Error(err))
	}

	go func() {
		defer consumer.Close()
		if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("command consumer stopped", zap.Error(err))
		}
	}()
}
