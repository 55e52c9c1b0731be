package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.bot.Status())
}

func (s *Server) handleTrades(c *gin.Context) {
	trades := s.bot.ClosedTrades()
	if trades == nil {
		trades = []TradeSnapshot{}
	}
	c.JSON(http.StatusOK, gin.H{"trades": trades, "count": len(trades)})
}

func (s *Server) handleOpenTrades(c *gin.Context) {
	trades := s.bot.OpenTrades()
	if trades == nil {
		trades = []TradeSnapshot{}
	}
	c.JSON(http.StatusOK, gin.H{"trades": trades, "count": len(trades)})
}

func (s *Server) handleAccount(c *gin.Context) {
	c.JSON(http.StatusOK, s.bot.Account())
}
