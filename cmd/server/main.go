// Package main provides a read-only HTTP API over the materialized view:
// rounds, their ledgers, and the platform-wide totals.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"round-indexer/internal/domain"
	"round-indexer/internal/identity"
	"round-indexer/internal/observability"
	"round-indexer/internal/storage"
	"round-indexer/internal/storage/memory"
	"round-indexer/internal/storage/migrations"
	pgstore "round-indexer/internal/storage/postgres"
)

// Server serves read-only queries over the indexed state.
type Server struct {
	rounds        storage.RoundStore
	investments   storage.InvestmentStore
	withdrawals   storage.WithdrawalStore
	claims        storage.YieldClaimStore
	distributions storage.YieldDistributionStore
	stats         storage.PlatformStatsStore
	logger        *log.Logger
}

func main() {
	loadEnvFile()

	addr := flag.String("addr", ":8080", "HTTP listen address")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)

	if !*useMemory && *postgresDSN == "" {
		logger.Fatal("--postgres-dsn is required (use --use-memory for in-memory storage)")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv := &Server{
		rounds:        memory.NewRoundStore(),
		investments:   memory.NewInvestmentStore(),
		withdrawals:   memory.NewWithdrawalStore(),
		claims:        memory.NewYieldClaimStore(),
		distributions: memory.NewYieldDistributionStore(),
		stats:         memory.NewPlatformStatsStore(),
		logger:        logger,
	}

	if !*useMemory {
		pool, err := pgstore.NewPool(ctx, *postgresDSN)
		if err != nil {
			logger.Fatalf("Failed to connect to postgres: %v", err)
		}
		defer pool.Close()

		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			logger.Fatalf("Failed to run migrations: %v", err)
		}

		srv.rounds = pgstore.NewRoundStore(pool)
		srv.investments = pgstore.NewInvestmentStore(pool)
		srv.withdrawals = pgstore.NewWithdrawalStore(pool)
		srv.claims = pgstore.NewYieldClaimStore(pool)
		srv.distributions = pgstore.NewYieldDistributionStore(pool)
		srv.stats = pgstore.NewPlatformStatsStore(pool)
	}

	httpServer := &http.Server{
		Addr:              *addr,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, shutting down...", sig)

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)
		cancel()
	}()

	logger.Printf("Starting query server on %s", *addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("HTTP server error: %v", err)
	}

	logger.Println("Shutdown complete")
}

// routes builds the HTTP mux.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/stats", s.handleStats)
	mux.HandleFunc("/rounds", s.handleRounds)
	mux.HandleFunc("/rounds/", s.handleRound)

	return mux
}

// RoundResponse is the JSON shape of one round. Amounts are decimal
// strings to survive JSON number precision limits.
type RoundResponse struct {
	Address          string  `json:"address"`
	Founder          *string `json:"founder"`
	EquityToken      *string `json:"equity_token"`
	CompanyName      string  `json:"company_name"`
	TargetRaise      string  `json:"target_raise"`
	EquityPercentage int64   `json:"equity_percentage"`
	TotalRaised      string  `json:"total_raised"`
	TotalWithdrawn   string  `json:"total_withdrawn"`
	TokensIssued     string  `json:"tokens_issued"`
	InvestorCount    int64   `json:"investor_count"`
	State            int16   `json:"state"`
	CompletionTime   int64   `json:"completion_time,omitempty"`
	CompletionReason int16   `json:"completion_reason,omitempty"`
	Shell            bool    `json:"shell"`
	CreatedAt        int64   `json:"created_at"`
	UpdatedAt        int64   `json:"updated_at"`
}

// InvestmentResponse is the JSON shape of one investment ledger row.
type InvestmentResponse struct {
	ID             string `json:"id"`
	RoundAddress   string `json:"round_address"`
	Investor       string `json:"investor"`
	USDCAmount     string `json:"usdc_amount"`
	TokensReceived string `json:"tokens_received"`
	TotalRaised    string `json:"total_raised"`
	TxHash         string `json:"tx_hash"`
	LogIndex       uint32 `json:"log_index"`
	Timestamp      int64  `json:"timestamp"`
}

// WithdrawalResponse is the JSON shape of one withdrawal ledger row.
type WithdrawalResponse struct {
	ID              string `json:"id"`
	RoundAddress    string `json:"round_address"`
	Founder         string `json:"founder"`
	PrincipalAmount string `json:"principal_amount"`
	YieldAmount     string `json:"yield_amount"`
	TotalAmount     string `json:"total_amount"`
	TxHash          string `json:"tx_hash"`
	LogIndex        uint32 `json:"log_index"`
	Timestamp       int64  `json:"timestamp"`
}

// YieldClaimResponse is the JSON shape of one yield claim ledger row.
type YieldClaimResponse struct {
	ID           string `json:"id"`
	RoundAddress string `json:"round_address"`
	Investor     string `json:"investor"`
	Amount       string `json:"amount"`
	TxHash       string `json:"tx_hash"`
	LogIndex     uint32 `json:"log_index"`
	Timestamp    int64  `json:"timestamp"`
}

// YieldDistributionResponse is the JSON shape of one distribution row.
type YieldDistributionResponse struct {
	ID            string `json:"id"`
	RoundAddress  string `json:"round_address"`
	TotalYield    string `json:"total_yield"`
	FounderYield  string `json:"founder_yield"`
	InvestorYield string `json:"investor_yield"`
	TxHash        string `json:"tx_hash"`
	LogIndex      uint32 `json:"log_index"`
	Timestamp     int64  `json:"timestamp"`
}

// StatsResponse is the JSON shape of the platform-wide totals.
type StatsResponse struct {
	TotalRaised string `json:"total_raised"`
	UpdatedAt   int64  `json:"updated_at"`
}

// handleStats returns the platform-wide aggregate.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.stats.Get(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, StatsResponse{
		TotalRaised: amountString(stats.TotalRaised),
		UpdatedAt:   stats.UpdatedAt,
	})
}

// handleRounds returns all rounds.
func (s *Server) handleRounds(w http.ResponseWriter, r *http.Request) {
	rounds, err := s.rounds.List(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}

	resp := make([]RoundResponse, 0, len(rounds))
	for _, rd := range rounds {
		resp = append(resp, toRoundResponse(rd))
	}
	s.writeJSON(w, resp)
}

// handleRound serves /rounds/{address} and its ledger sub-resources.
func (s *Server) handleRound(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/rounds/")
	parts := strings.SplitN(strings.Trim(rest, "/"), "/", 2)
	if parts[0] == "" {
		http.NotFound(w, r)
		return
	}

	address := identity.Normalize(parts[0])

	if len(parts) == 1 {
		round, err := s.rounds.GetByAddress(r.Context(), address)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, toRoundResponse(round))
		return
	}

	switch parts[1] {
	case "investments":
		s.handleInvestments(w, r, address)
	case "withdrawals":
		s.handleWithdrawals(w, r, address)
	case "yield-claims":
		s.handleYieldClaims(w, r, address)
	case "yield-distributions":
		s.handleYieldDistributions(w, r, address)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleInvestments(w http.ResponseWriter, r *http.Request, address string) {
	rows, err := s.investments.GetByRound(r.Context(), address)
	if err != nil {
		s.writeError(w, err)
		return
	}

	resp := make([]InvestmentResponse, 0, len(rows))
	for _, inv := range rows {
		resp = append(resp, InvestmentResponse{
			ID:             inv.ID,
			RoundAddress:   inv.RoundAddress,
			Investor:       inv.Investor,
			USDCAmount:     amountString(inv.USDCAmount),
			TokensReceived: amountString(inv.TokensReceived),
			TotalRaised:    amountString(inv.TotalRaised),
			TxHash:         inv.TxHash,
			LogIndex:       inv.LogIndex,
			Timestamp:      inv.Timestamp,
		})
	}
	s.writeJSON(w, resp)
}

func (s *Server) handleWithdrawals(w http.ResponseWriter, r *http.Request, address string) {
	rows, err := s.withdrawals.GetByRound(r.Context(), address)
	if err != nil {
		s.writeError(w, err)
		return
	}

	resp := make([]WithdrawalResponse, 0, len(rows))
	for _, wd := range rows {
		resp = append(resp, WithdrawalResponse{
			ID:              wd.ID,
			RoundAddress:    wd.RoundAddress,
			Founder:         wd.Founder,
			PrincipalAmount: amountString(wd.PrincipalAmount),
			YieldAmount:     amountString(wd.YieldAmount),
			TotalAmount:     amountString(wd.TotalAmount),
			TxHash:          wd.TxHash,
			LogIndex:        wd.LogIndex,
			Timestamp:       wd.Timestamp,
		})
	}
	s.writeJSON(w, resp)
}

func (s *Server) handleYieldClaims(w http.ResponseWriter, r *http.Request, address string) {
	rows, err := s.claims.GetByRound(r.Context(), address)
	if err != nil {
		s.writeError(w, err)
		return
	}

	resp := make([]YieldClaimResponse, 0, len(rows))
	for _, c := range rows {
		resp = append(resp, YieldClaimResponse{
			ID:           c.ID,
			RoundAddress: c.RoundAddress,
			Investor:     c.Investor,
			Amount:       amountString(c.Amount),
			TxHash:       c.TxHash,
			LogIndex:     c.LogIndex,
			Timestamp:    c.Timestamp,
		})
	}
	s.writeJSON(w, resp)
}

func (s *Server) handleYieldDistributions(w http.ResponseWriter, r *http.Request, address string) {
	rows, err := s.distributions.GetByRound(r.Context(), address)
	if err != nil {
		s.writeError(w, err)
		return
	}

	resp := make([]YieldDistributionResponse, 0, len(rows))
	for _, d := range rows {
		resp = append(resp, YieldDistributionResponse{
			ID:            d.ID,
			RoundAddress:  d.RoundAddress,
			TotalYield:    amountString(d.TotalYield),
			FounderYield:  amountString(d.FounderYield),
			InvestorYield: amountString(d.InvestorYield),
			TxHash:        d.TxHash,
			LogIndex:      d.LogIndex,
			Timestamp:     d.Timestamp,
		})
	}
	s.writeJSON(w, resp)
}

func toRoundResponse(r *domain.Round) RoundResponse {
	return RoundResponse{
		Address:          r.Address,
		Founder:          r.Founder,
		EquityToken:      r.EquityToken,
		CompanyName:      r.CompanyName,
		TargetRaise:      amountString(r.TargetRaise),
		EquityPercentage: r.EquityPercentage,
		TotalRaised:      amountString(r.TotalRaised),
		TotalWithdrawn:   amountString(r.TotalWithdrawn),
		TokensIssued:     amountString(r.TokensIssued),
		InvestorCount:    r.InvestorCount,
		State:            int16(r.State),
		CompletionTime:   r.CompletionTime,
		CompletionReason: r.CompletionReason,
		Shell:            r.Shell,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}

// writeJSON writes a JSON response body.
func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Printf("Error encoding response: %v", err)
	}
}

// writeError maps storage errors to HTTP status codes.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, storage.ErrNotFound) {
		status = http.StatusNotFound
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	fmt.Fprintf(w, "{\"error\":%q}\n", err.Error())
}

// amountString renders an amount, treating nil as zero.
func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

// loadEnvFile loads environment variables from .env file if it exists.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return // File doesn't exist, use system env vars
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Don't override existing env vars
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
