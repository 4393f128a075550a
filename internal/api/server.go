// Package api exposes the dashboard core over HTTP for a local UI.
package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/athena-web3/dashboard-core/internal/core/domain"
	"github.com/athena-web3/dashboard-core/internal/core/service"
	"github.com/athena-web3/dashboard-core/internal/logging"
	"github.com/athena-web3/dashboard-core/pkg/version"
)

// Deps are the components the API serves.
type Deps struct {
	Aggregator   *service.BalanceAggregator
	Catalog      *service.CatalogLoader
	Orchestrator *service.SwapOrchestrator
	Resolver     *service.AddressResolver
	Wallet       func() domain.WalletState

	// Metrics and Feed are mounted at /metrics and /ws when set.
	Metrics http.Handler
	Feed    http.Handler
	Log     logging.Logger
}

type Server struct {
	deps Deps
	log  logging.Logger
}

func NewServer(deps Deps) *Server {
	return &Server{deps: deps, log: logging.OrNop(deps.Log)}
}

// Router builds the gin engine.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	r.GET("/healthz", s.health)
	if s.deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(s.deps.Metrics))
	}
	if s.deps.Feed != nil {
		r.GET("/ws", gin.WrapH(s.deps.Feed))
	}

	r.GET("/addresses", s.addresses)
	r.GET("/balances", s.balances)
	r.GET("/chains", s.chains)
	r.GET("/chains/:id/tokens", s.tokens)

	swap := r.Group("/swap")
	swap.GET("", s.session)
	swap.POST("/quote", s.quote)
	swap.POST("/execute", s.execute)
	swap.POST("/:id/restore", s.restore)
	return r
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debugw("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"latency", time.Since(start),
		)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"build":  version.GetBuildInfo(),
	})
}

func (s *Server) addresses(c *gin.Context) {
	wallet := s.deps.Wallet()
	if chainID := c.Query("chain"); chainID != "" {
		c.JSON(http.StatusOK, gin.H{"addresses": s.deps.Resolver.AddressesForChain(wallet, chainID)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"addresses": s.deps.Resolver.ConnectedAddresses(wallet)})
}

// balances serves the cached result unless refresh=true.
func (s *Server) balances(c *gin.Context) {
	wallet := s.deps.Wallet()
	if !wallet.Connected {
		c.JSON(http.StatusOK, gin.H{"balances": []domain.TokenBalance{}, "summary": service.Summarize(nil)})
		return
	}

	var balances []domain.TokenBalance
	if c.Query("refresh") == "true" {
		balances = s.deps.Aggregator.GetAllBalances(c.Request.Context(), wallet)
	} else {
		balances = s.deps.Aggregator.Balances(c.Request.Context(), wallet)
	}
	c.JSON(http.StatusOK, gin.H{"balances": balances, "summary": service.Summarize(balances)})
}

func (s *Server) chains(c *gin.Context) {
	chains := s.deps.Catalog.Chains()
	if len(chains) == 0 {
		loaded, err := s.deps.Catalog.LoadChains(c.Request.Context())
		if err != nil {
			s.fail(c, "load chains", err)
			return
		}
		s.deps.Resolver.SetChains(loaded)
		chains = loaded
	}
	c.JSON(http.StatusOK, gin.H{"chains": chains})
}

func (s *Server) tokens(c *gin.Context) {
	chainID := c.Param("id")
	tokens, ok := s.deps.Catalog.Tokens(chainID)
	if !ok {
		var err error
		if tokens, err = s.deps.Catalog.LoadTokens(c.Request.Context(), chainID); err != nil {
			s.fail(c, "load tokens", err)
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"tokens": tokens})
}

func (s *Server) session(c *gin.Context) {
	c.JSON(http.StatusOK, sessionView(s.deps.Orchestrator.Session()))
}

func (s *Server) quote(c *gin.Context) {
	var req domain.QuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid quote request: " + err.Error()})
		return
	}
	session, err := s.deps.Orchestrator.RequestQuote(c.Request.Context(), s.deps.Wallet(), req)
	if err != nil {
		s.fail(c, "get quote", err)
		return
	}
	c.JSON(http.StatusOK, sessionView(session))
}

func (s *Server) execute(c *gin.Context) {
	session, err := s.deps.Orchestrator.Execute(c.Request.Context())
	if err != nil {
		s.fail(c, "execute swap", err)
		return
	}
	c.JSON(http.StatusOK, sessionView(session))
}

func (s *Server) restore(c *gin.Context) {
	session, ok := s.deps.Orchestrator.Restore(c.Request.Context(), c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no recent session for " + c.Param("id")})
		return
	}
	c.JSON(http.StatusOK, sessionView(session))
}

// fail maps the error classes onto status codes with the dashboard message.
func (s *Server) fail(c *gin.Context, action string, err error) {
	status := http.StatusBadGateway
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrSuperseded):
		status = http.StatusConflict
	}
	c.JSON(status, gin.H{"error": domain.UserMessage(action, err)})
}

type sessionResponse struct {
	domain.SwapSession
	Summary *service.QuoteSummary `json:"summary,omitempty"`
}

func sessionView(session domain.SwapSession) sessionResponse {
	out := sessionResponse{SwapSession: session}
	if sum, ok := service.SummarizeQuote(session.Quote); ok {
		out.Summary = &sum
	}
	return out
}
