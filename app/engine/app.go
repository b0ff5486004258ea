package engine

import (
	"context"
	"net/http"
	"time"

	"github.com/robfig/cron/v3"
	"go.temporal.io/sdk/worker"
	temporalworkflow "go.temporal.io/sdk/workflow"
	"go.uber.org/zap"

	"github.com/stackingdao/points-engine/pkg/db"
	"github.com/stackingdao/points-engine/pkg/logging"
	"github.com/stackingdao/points-engine/pkg/points/activity"
	"github.com/stackingdao/points-engine/pkg/points/types"
	"github.com/stackingdao/points-engine/pkg/points/workflow"
	"github.com/stackingdao/points-engine/pkg/redis"
	"github.com/stackingdao/points-engine/pkg/stacks"
	"github.com/stackingdao/points-engine/pkg/temporal"
	"github.com/stackingdao/points-engine/pkg/utils"
)

type App struct {
	Logger         *zap.Logger
	DB             *db.DB
	Oracle         *stacks.Client
	TemporalClient *temporal.Client
	RedisClient    *redis.Client

	// AccrualWorker serves the accrual queue; LeaderboardWorker serves
	// recalculations so a long accrual run cannot starve ranking updates.
	AccrualWorker     worker.Worker
	LeaderboardWorker worker.Worker

	// Cron drives the wallet balance refresh between accrual runs.
	Cron     *cron.Cron
	CronSpec string

	// Consumer turns finalized-block stream entries into recalculations.
	Consumer *redis.StreamConsumer

	// Server is the HTTP server that serves health and manual triggers.
	Server *http.Server
}

// Initialize wires the engine: storage, oracle, workers, scheduler, consumer
// and the ops server. Fails fast on any unreachable dependency.
func Initialize(ctx context.Context) *App {
	logger, err := logging.New("engine")
	if err != nil {
		// nothing else to do here, we'll just log to stderr
		panic(err)
	}

	pointsDb, dbErr := db.New(ctx, logger)
	if dbErr != nil {
		logger.Fatal("Unable to initialize points database", zap.Error(dbErr))
	}

	temporalClient, err := temporal.NewClient(ctx, logger)
	if err != nil {
		logger.Fatal("Unable to establish temporal connection", zap.Error(err))
	}

	redisClient, err := redis.NewClient(ctx, logger)
	if err != nil {
		logger.Fatal("Unable to connect to Redis", zap.Error(err))
	}

	oracle := stacks.NewFromEnv()

	activityContext := &activity.Context{
		Logger:      logger,
		Oracle:      oracle,
		Wallets:     pointsDb,
		Ledger:      pointsDb,
		Leaderboard: pointsDb,
	}
	workflowContext := &workflow.Context{
		ActivityContext: activityContext,
		Config: workflow.Config{
			BatchSize:         utils.EnvInt("ACCRUAL_BATCH_SIZE", workflow.DefaultBatchSize),
			MaxParallelChunks: utils.EnvInt("ACCRUAL_MAX_PARALLEL_CHUNKS", workflow.DefaultMaxParallelChunks),
			WriteBatchSize:    utils.EnvInt("LEADERBOARD_WRITE_BATCH_SIZE", workflow.DefaultWriteBatchSize),
		},
	}

	accrualWorker := worker.New(
		temporalClient.TClient,
		temporalClient.AccrualQueue,
		worker.Options{
			MaxConcurrentWorkflowTaskPollers: 5,
			MaxConcurrentActivityTaskPollers: 10,
			WorkerStopTimeout:                time.Minute,
		},
	)
	accrualWorker.RegisterWorkflowWithOptions(
		workflowContext.DailyAccrualWorkflow,
		temporalworkflow.RegisterOptions{Name: temporal.DailyAccrualWorkflowName},
	)
	accrualWorker.RegisterActivity(activityContext.ResolveBlock)
	accrualWorker.RegisterActivity(activityContext.LoadWalletAddresses)
	accrualWorker.RegisterActivity(activityContext.AccrueChunk)
	accrualWorker.RegisterActivity(activityContext.RefreshWalletBalances)

	leaderboardWorker := worker.New(
		temporalClient.TClient,
		temporalClient.LeaderboardQueue,
		worker.Options{
			MaxConcurrentWorkflowTaskPollers: 5,
			MaxConcurrentActivityTaskPollers: 5,
			WorkerStopTimeout:                time.Minute,
		},
	)
	leaderboardWorker.RegisterWorkflowWithOptions(
		workflowContext.RecalculateLeaderboardWorkflow,
		temporalworkflow.RegisterOptions{Name: temporal.RecalculateLeaderboardWorkflowName},
	)
	leaderboardWorker.RegisterActivity(activityContext.BuildLeaderboard)
	leaderboardWorker.RegisterActivity(activityContext.WriteLeaderboardRanks)
	leaderboardWorker.RegisterActivity(activityContext.TruncateStaleRanks)

	app := &App{
		Logger:            logger,
		DB:                pointsDb,
		Oracle:            oracle,
		TemporalClient:    temporalClient,
		RedisClient:       redisClient,
		AccrualWorker:     accrualWorker,
		LeaderboardWorker: leaderboardWorker,
		CronSpec:          utils.Env("BALANCE_REFRESH_CRON", "0 0 */6 * * *"),
	}

	if err := app.SetupScheduler(ctx, activityContext); err != nil {
		logger.Fatal("Unable to set up balance refresh scheduler", zap.Error(err))
	}
	app.SetupConsumer()
	app.SetupServer()

	return app
}

// SetupScheduler sets up the cron that refreshes wallet current balances.
// Refreshes run outside Temporal: they touch no ledger state and losing one
// tick costs nothing.
func (a *App) SetupScheduler(ctx context.Context, ac *activity.Context) error {
	a.Cron = cron.New(cron.WithSeconds(), cron.WithChain(cron.Recover(cron.DefaultLogger)))

	_, err := a.Cron.AddFunc(a.CronSpec, func() {
		// keep each run bounded
		rctx, cancel := context.WithTimeout(ctx, 30*time.Minute)
		defer cancel()
		if _, err := ac.RefreshWalletBalances(rctx); err != nil {
			a.Logger.Warn("balance refresh failed", zap.Error(err))
		}
	})

	return err
}

// SetupConsumer builds the finalized-block stream consumer. Each finalized
// block triggers one recalculation; the block-hash-derived workflow ID makes
// redelivered entries no-ops.
func (a *App) SetupConsumer() {
	consumer, err := redis.NewStreamConsumer(a.RedisClient, redis.StreamConsumerConfig{
		Stream:   redis.FinalizedBlocksStream,
		Group:    "points-engine",
		Consumer: utils.Env("HOSTNAME", "engine"),
		Logger:   a.Logger,
	})
	if err != nil {
		a.Logger.Fatal("Unable to create stream consumer", zap.Error(err))
	}
	a.Consumer = consumer
}

func (a *App) handleFinalizedBlock(ctx context.Context, msg redis.Message) error {
	hash := msg.GetHash()
	if hash == "" {
		a.Logger.Warn("finalized block entry without hash", zap.String("id", msg.ID))
		return nil
	}

	_, err := a.TemporalClient.StartLeaderboardWorkflow(ctx, types.RecalcInput{BlockHash: hash})
	if err != nil {
		if temporal.IsWorkflowAlreadyStarted(err) {
			a.Logger.Debug("recalculation already running for block", zap.String("hash", hash))
			return nil
		}
		return err
	}

	a.Logger.Info("recalculation triggered",
		zap.Uint64("height", msg.GetHeight()),
		zap.String("hash", hash),
	)

	return nil
}

// Start starts the workers, cron, consumer and ops server, and blocks until
// the context is canceled.
func (a *App) Start(ctx context.Context) {
	if err := a.TemporalClient.EnsureDailyAccrualSchedule(ctx, a.Logger); err != nil {
		a.Logger.Fatal("Unable to ensure daily accrual schedule", zap.Error(err))
	}

	if err := a.AccrualWorker.Start(); err != nil {
		a.Logger.Fatal("Unable to start accrual worker", zap.Error(err))
	}
	if err := a.LeaderboardWorker.Start(); err != nil {
		a.Logger.Fatal("Unable to start leaderboard worker", zap.Error(err))
	}

	a.Cron.Start()
	a.Logger.Info("Balance refresh cron started", zap.String("cronSpec", a.CronSpec))

	go func() {
		if err := a.Consumer.Run(ctx, a.handleFinalizedBlock); err != nil && ctx.Err() == nil {
			a.Logger.Error("Stream consumer stopped", zap.Error(err))
		}
	}()

	go func() {
		a.Logger.Info("Ops server listening", zap.String("addr", a.Server.Addr))
		if err := a.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.Logger.Error("Ops server stopped", zap.Error(err))
		}
	}()

	<-ctx.Done()
	a.Stop()
}

// Stop stops everything in reverse dependency order.
func (a *App) Stop() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = a.Server.Shutdown(shutdownCtx)

	if a.Cron != nil {
		<-a.Cron.Stop().Done()
	}

	a.AccrualWorker.Stop()
	a.LeaderboardWorker.Stop()

	a.TemporalClient.Close()
	_ = a.RedisClient.Close()
	_ = a.DB.Close()

	time.Sleep(200 * time.Millisecond)
	a.Logger.Info("Engine stopped")
}
