package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/stackingdao/points-engine/pkg/db/models"
	"github.com/stackingdao/points-engine/pkg/points/types"
	"github.com/stackingdao/points-engine/pkg/temporal"
	"github.com/stackingdao/points-engine/pkg/utils"
)

// SetupServer sets up the ops HTTP server: health plus manual triggers for
// the two drivers.
func (a *App) SetupServer() {
	// use <ip>:<port> to bind to a specific interface or :<port> to bind to all interfaces
	addr := utils.Env("ADDR", ":3001")

	r := mux.NewRouter()

	r.HandleFunc("/health", a.HandleHealth).Methods("GET")
	r.HandleFunc("/v1/accrual/run", a.HandleRunAccrual).Methods("POST")
	r.HandleFunc("/v1/leaderboard/recalculate", a.HandleRecalculate).Methods("POST")
	r.HandleFunc("/v1/wallets/{address}", a.HandleRegisterWallet).Methods("POST")
	r.HandleFunc("/v1/bonus/reset", a.HandleResetBonusWindow).Methods("POST")

	a.Server = &http.Server{Addr: addr, Handler: r}
}

func (a *App) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := a.DB.Db.Ping(ctx); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"status": "errored", "error": "database connection error"})
		return
	}

	if err := a.RedisClient.Health(ctx); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"status": "errored", "error": "redis connection error"})
		return
	}

	temporalHealth, err := a.TemporalClient.Health(ctx)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"status": "errored", "error": "temporal connection error"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "ok",
		"temporal": temporalHealth,
	})
}

// HandleRunAccrual triggers one accrual run. An empty body runs at the chain
// tip; {"height": N} replays at a specific block.
func (a *App) HandleRunAccrual(w http.ResponseWriter, r *http.Request) {
	var input types.AccrualInput
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	run, err := a.TemporalClient.StartAccrualWorkflow(r.Context(), input)
	if err != nil {
		if temporal.IsWorkflowAlreadyStarted(err) {
			writeError(w, http.StatusConflict, "accrual run already in progress for this height")
			return
		}
		a.Logger.Error("failed to start accrual workflow", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to start accrual run")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"workflowId": run.GetID(),
		"runId":      run.GetRunID(),
	})
}

// HandleRecalculate triggers one full leaderboard recalculation. A blockHash
// in the body dedupes against the stream-triggered run for the same block.
func (a *App) HandleRecalculate(w http.ResponseWriter, r *http.Request) {
	var input types.RecalcInput
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	if input.BlockHash == "" {
		input.BlockHash = fmt.Sprintf("manual-%d", time.Now().UnixNano())
	}

	run, err := a.TemporalClient.StartLeaderboardWorkflow(r.Context(), input)
	if err != nil {
		if temporal.IsWorkflowAlreadyStarted(err) {
			writeError(w, http.StatusConflict, "recalculation already in progress for this block")
			return
		}
		a.Logger.Error("failed to start leaderboard workflow", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to start recalculation")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"workflowId": run.GetID(),
		"runId":      run.GetRunID(),
	})
}

// HandleRegisterWallet adds one wallet to the registry. The wallet's live STX
// balance becomes both its current and snapshot balance, so bonus accrual
// starts from zero growth. Registering an existing wallet changes nothing.
func (a *App) HandleRegisterWallet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	address := mux.Vars(r)["address"]
	if address == "" {
		writeError(w, http.StatusBadRequest, "missing wallet address")
		return
	}

	balance, err := a.Oracle.StxBalance(ctx, address)
	if err != nil {
		a.Logger.Warn("failed to read wallet balance", zap.String("address", address), zap.Error(err))
		writeError(w, http.StatusBadGateway, "failed to read wallet balance")
		return
	}

	tip, err := a.Oracle.TipHeight(ctx)
	if err != nil {
		writeError(w, http.StatusBadGateway, "failed to resolve chain tip")
		return
	}
	block, err := a.Oracle.BlockByHeight(ctx, tip)
	if err != nil {
		writeError(w, http.StatusBadGateway, "failed to resolve chain tip")
		return
	}

	created, err := a.DB.RegisterWallets(ctx, []*models.Wallet{{
		Address:         address,
		FirstSeenBlock:  block.Hash,
		SnapshotBalance: balance,
		CurrentBalance:  balance,
	}})
	if err != nil {
		a.Logger.Error("failed to register wallet", zap.String("address", address), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to register wallet")
		return
	}

	status := http.StatusOK
	if created > 0 {
		status = http.StatusCreated
	}
	writeJSON(w, status, map[string]interface{}{
		"address": address,
		"created": created > 0,
	})
}

// HandleResetBonusWindow snapshots every wallet's current balance, restarting
// bonus accrual from zero growth across the board.
func (a *App) HandleResetBonusWindow(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	wallets, err := a.DB.ReadWallets(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read wallets")
		return
	}

	balances := make(map[string]uint64, len(wallets))
	for _, wallet := range wallets {
		balances[wallet.Address] = wallet.CurrentBalance
	}

	updated, err := a.DB.SnapshotBalances(ctx, balances)
	if err != nil {
		a.Logger.Error("failed to reset bonus window", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to reset bonus window")
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{"wallets": updated})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
