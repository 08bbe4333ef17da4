package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "contest-engine-backend/docs"
	"contest-engine-backend/internal/common/config"
	"contest-engine-backend/internal/common/logger"
	"contest-engine-backend/internal/common/middleware"
	"contest-engine-backend/internal/common/validation"
	contesthttp "contest-engine-backend/internal/features/contest/delivery/http"
	contestredis "contest-engine-backend/internal/features/contest/repository/redis"
	contestservice "contest-engine-backend/internal/features/contest/service"
	poolhttp "contest-engine-backend/internal/features/pool/delivery/http"
	poolredis "contest-engine-backend/internal/features/pool/repository/redis"
	poolservice "contest-engine-backend/internal/features/pool/service"
	wallethttp "contest-engine-backend/internal/features/wallet/delivery/http"
	walletredis "contest-engine-backend/internal/features/wallet/repository/redis"
	redisplatform "contest-engine-backend/internal/platform/redis"
	"contest-engine-backend/internal/platform/telegram"
	"contest-engine-backend/internal/platform/ton"
)

// @title           Contest Engine API
// @version         1.0
// @description     Engagement scoring and prize distribution engine for Telegram Mini App contests. All endpoints require init_data authentication.

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey TelegramInitData
// @in header
// @name init_data
// @description Telegram Mini App init_data string for authentication

// @tag.name contests
// @tag.description Contest lifecycle - creation, activation, cancellation, second chance

// @tag.name scoring
// @tag.description Engagement scoring - activity points and boosts

// @tag.name ranking
// @tag.description Leaderboards and live positions

// @tag.name wallet
// @tag.description Wallet address linking for blockchain prizes

// @tag.name admin
// @tag.description Operational surface - scheduler, retries, gift pool

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()
	logger.Init("contest-engine", cfg.Debug)

	rdb, err := redisplatform.Open(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()
	logger.Info().Msg("Redis connection established")

	contestRepo := contestredis.NewRedisContestRepository(rdb.Client)
	poolRepo := poolredis.NewRedisPoolRepository(rdb.Client)
	walletRepo := walletredis.NewRedisWalletRepository(rdb.Client)

	poolSvc := poolservice.NewPoolService(poolRepo)
	contestSvc := contestservice.NewContestService(contestRepo, poolSvc)
	scoringSvc := contestservice.NewScoringService(contestRepo)
	rankingSvc := contestservice.NewRankingService(contestRepo)

	tgClient := telegram.NewClient(cfg.Telegram.BotToken)

	var chain contestservice.ChainTransfer
	if cfg.Ton.WalletSeed != "" {
		sender, err := ton.NewSender(ctx, cfg.Ton.ConfigURL, cfg.Ton.WalletSeed)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to initialize TON sender")
		}
		chain = sender
	} else {
		logger.Warn().Msg("TON_WALLET_SEED not set, blockchain prizes disabled")
		chain = disabledChain{}
	}

	distSvc := contestservice.NewDistributionService(
		contestRepo, poolSvc, walletRepo, tgClient, chain,
		cfg.Distribution.SendDelay, cfg.Distribution.SendTimeout,
	)

	scheduler := contestservice.NewSchedulerService(
		contestRepo, rankingSvc, distSvc,
		cfg.Scheduler.TickInterval, cfg.Scheduler.RecoveryInterval,
	)
	scheduler.Start()
	defer scheduler.Stop()

	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger())
	router.Use(middleware.ErrorHandler())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{cfg.Server.Origin}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Content-Type", "Authorization", "Accept", "init_data"}
	router.Use(cors.New(corsConfig))

	router.GET("/health", func(c *gin.Context) {
		if err := rdb.Ping(c.Request.Context()).Err(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "down", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	v1 := router.Group("/api/v1")
	v1.Use(middleware.TelegramInitData(cfg.Telegram.BotToken))
	v1.Use(middleware.RequireAuth())

	contesthttp.NewContestHandler(contestSvc, scoringSvc, rankingSvc, validation.CommentGate{}).RegisterRoutes(v1)
	wallethttp.NewWalletHandler(walletRepo, chain).RegisterRoutes(v1)

	adminGroup := v1.Group("")
	adminGroup.Use(middleware.RequireAdmin(cfg.Telegram.AdminIDs))
	contesthttp.NewAdminHandler(scheduler, distSvc, contestRepo).RegisterRoutes(adminGroup)
	poolhttp.NewPoolHandler(poolSvc).RegisterRoutes(adminGroup)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Int("port", cfg.Server.Port).Msg("Starting HTTP server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server forced to shutdown")
	}

	logger.Info().Msg("Server exited")
}

// disabledChain stands in when no payout wallet is configured. Transfers
// fail so the attempt is captured on the distribution record.
type disabledChain struct{}

func (disabledChain) ValidateAddress(string) bool { return false }

func (disabledChain) Transfer(context.Context, string, int64, string) error {
	return errors.New("blockchain transfers are not configured")
}
