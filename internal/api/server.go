package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"ict-sweep-bot/config"
)

// BotAPI is what the runner exposes to the status server. Snapshots are
// plain data so the server never reaches into live strategy state.
type BotAPI interface {
	Status() StatusSnapshot
	OpenTrades() []TradeSnapshot
	ClosedTrades() []TradeSnapshot
	Account() AccountSnapshot
}

// StatusSnapshot is the per-symbol engine state.
type StatusSnapshot struct {
	Running   bool                  `json:"running"`
	StartedAt time.Time             `json:"started_at"`
	Timeframe string                `json:"timeframe"`
	Symbols   map[string]SymbolInfo `json:"symbols"`
}

// SymbolInfo is one symbol's machine state.
type SymbolInfo struct {
	State      string  `json:"state"`
	ATR        float64 `json:"atr"`
	BarsSeen   int     `json:"bars_seen"`
	OpenTrades int     `json:"open_trades"`
}

// TradeSnapshot is one trade, open or closed.
type TradeSnapshot struct {
	ID          string    `json:"id"`
	Symbol      string    `json:"symbol"`
	Direction   string    `json:"direction"`
	Status      string    `json:"status"`
	Entry       float64   `json:"entry"`
	Stop        float64   `json:"stop"`
	Contracts   int       `json:"contracts"`
	Remaining   int       `json:"remaining"`
	RealizedPnL float64   `json:"realized_pnl"`
	OpenedAt    time.Time `json:"opened_at"`
}

// AccountSnapshot is the risk manager's view of the account.
type AccountSnapshot struct {
	Equity        float64 `json:"equity"`
	DailyPnL      float64 `json:"daily_pnl"`
	OpenPositions int     `json:"open_positions"`
	InCooldown    bool    `json:"in_cooldown"`
	DailyLimitHit bool    `json:"daily_limit_hit"`
}

// Server is the read-only status HTTP API.
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	bot        BotAPI
	logger     zerolog.Logger
}

// NewServer builds the server and its routes.
func NewServer(cfg config.ServerConfig, bot BotAPI, logger zerolog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{"http://localhost:5173", "http://localhost:8090"}
	corsConfig.AllowMethods = []string{"GET", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type"}
	router.Use(cors.New(corsConfig))

	s := &Server{
		router: router,
		bot:    bot,
		logger: logger.With().Str("component", "api").Logger(),
		httpServer: &http.Server{
			Addr:              cfg.Addr,
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	apiGroup := s.router.Group("/api")
	apiGroup.GET("/status", s.handleStatus)
	apiGroup.GET("/trades", s.handleTrades)
	apiGroup.GET("/trades/open", s.handleOpenTrades)
	apiGroup.GET("/account", s.handleAccount)
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.httpServer.Addr).Msg("Status API listening")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops the server, letting in-flight requests finish.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
