package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/stackingdao/points-engine/pkg/db"
	"github.com/stackingdao/points-engine/pkg/db/models"
	"github.com/stackingdao/points-engine/pkg/logging"
	"github.com/stackingdao/points-engine/pkg/points"
	"github.com/stackingdao/points-engine/pkg/stacks"
	"github.com/stackingdao/points-engine/pkg/utils"
)

// aggregateTotals is one wallet's carried-over totals from the legacy points
// system. Numbers stay json.Number so large totals survive parsing intact.
type aggregateTotals struct {
	UserPoints     json.Number `json:"user_points"`
	ReferralPoints json.Number `json:"referral_points"`
}

const seedBatchSize = 50

// seed imports a legacy points aggregate: registers a zero-balance wallet for
// every address, then writes one "migration" and one "referral" ledger entry
// per wallet, all pinned to the provided block. Re-running is safe; the ledger
// dedupes on (wallet, source, block).
func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger, err := logging.New("seed")
	if err != nil {
		panic(err)
	}

	seedFile := utils.Env("SEED_FILE", "")
	if seedFile == "" {
		logger.Fatal("SEED_FILE environment variable is required")
	}

	raw, err := os.ReadFile(seedFile)
	if err != nil {
		logger.Fatal("Unable to read seed file", zap.String("path", seedFile), zap.Error(err))
	}

	var aggregate map[string]aggregateTotals
	if err := json.Unmarshal(raw, &aggregate); err != nil {
		logger.Fatal("Unable to parse seed file", zap.String("path", seedFile), zap.Error(err))
	}

	blockHash := utils.Env("SEED_BLOCK_HASH", "")
	if blockHash == "" {
		height := uint64(utils.EnvInt("SEED_BLOCK_HEIGHT", 0))
		if height == 0 {
			logger.Fatal("SEED_BLOCK_HASH or SEED_BLOCK_HEIGHT is required")
		}
		block, err := stacks.NewFromEnv().BlockByHeight(ctx, height)
		if err != nil {
			logger.Fatal("Unable to resolve seed block", zap.Uint64("height", height), zap.Error(err))
		}
		blockHash = block.Hash
	}

	pointsDb, err := db.New(ctx, logger)
	if err != nil {
		logger.Fatal("Unable to initialize points database", zap.Error(err))
	}
	defer func() { _ = pointsDb.Close() }()

	// Zero-balance wallets are enough here: current balances only matter for
	// bonus points and the refresher fills them in on its next pass.
	wallets := make([]*models.Wallet, 0, len(aggregate))
	for address := range aggregate {
		wallets = append(wallets, &models.Wallet{Address: address})
	}
	created, err := pointsDb.RegisterWallets(ctx, wallets)
	if err != nil {
		logger.Fatal("Unable to register wallets", zap.Error(err))
	}
	logger.Info("Registered wallets", zap.Int("created", created), zap.Int("total", len(wallets)))

	entries := make([]*models.LedgerEntry, 0, 2*len(aggregate))
	for address, totals := range aggregate {
		entries = append(entries, seedEntry(logger, address, blockHash, points.SourceMigration, totals.UserPoints)...)
		entries = append(entries, seedEntry(logger, address, blockHash, points.SourceReferral, totals.ReferralPoints)...)
	}

	inserted := 0
	for start := 0; start < len(entries); start += seedBatchSize {
		end := start + seedBatchSize
		if end > len(entries) {
			end = len(entries)
		}
		n, err := pointsDb.InsertLedgerEntries(ctx, entries[start:end])
		if err != nil {
			logger.Fatal("Unable to insert ledger entries", zap.Error(err))
		}
		inserted += n
	}

	logger.Info("Seed complete",
		zap.String("block", blockHash),
		zap.Int("entries", len(entries)),
		zap.Int("inserted", inserted),
	)
}

// seedEntry converts one legacy total into a ledger entry. Legacy totals were
// already multiplied, so the entry carries a multiplier of one; fractional
// totals round up, matching what the legacy export did.
func seedEntry(logger *zap.Logger, address, blockHash string, source points.Source, total json.Number) []*models.LedgerEntry {
	amount, err := decimal.NewFromString(total.String())
	if err != nil {
		logger.Warn("Skipping malformed seed total",
			zap.String("address", address),
			zap.String("source", source.String()),
			zap.String("total", total.String()),
		)
		return nil
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil
	}

	return []*models.LedgerEntry{{
		Wallet:     address,
		Source:     source.String(),
		Block:      blockHash,
		Amount:     amount.Ceil().String(),
		Multiplier: decimal.NewFromInt(1).String(),
	}}
}
