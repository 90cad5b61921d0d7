package rpc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/tolelom/drawchain/core"
)

// Server serves JSON-RPC at POST / and read-only REST routes over HTTP.
type Server struct {
	handler   *Handler
	addr      string
	authToken string // empty → no auth required
	engine    *gin.Engine
	srv       *http.Server
}

// NewServer creates a Server on addr. If authToken is non-empty, every
// request must carry a matching "Authorization: Bearer <token>" header.
func NewServer(addr string, handler *Handler, authToken string) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{handler: handler, addr: addr, authToken: authToken, engine: gin.New()}
	s.engine.Use(gin.Recovery(), requestLogger(), s.auth())
	s.routes()
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Handler exposes the router, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) routes() {
	s.engine.POST("/", s.serveRPC)

	s.engine.GET("/config", s.rest(func(c *gin.Context) (any, error) {
		return s.handler.state.GetGameConfig()
	}))
	s.engine.GET("/accounts/:addr", s.rest(func(c *gin.Context) (any, error) {
		return s.handler.Account(c.Param("addr"))
	}))
	s.engine.GET("/receipts/:id", s.rest(func(c *gin.Context) (any, error) {
		return s.handler.state.GetReceipt(c.Param("id"))
	}))

	rounds := s.engine.Group("/rounds")
	rounds.GET("/open", s.rest(func(c *gin.Context) (any, error) {
		return s.handler.OpenRounds()
	}))
	rounds.GET("/:id", s.rest(func(c *gin.Context) (any, error) {
		id, err := uintParam(c.Param("id"), 64)
		if err != nil {
			return nil, err
		}
		return s.handler.state.GetRound(id)
	}))
	rounds.GET("/:id/cards", s.rest(func(c *gin.Context) (any, error) {
		id, err := uintParam(c.Param("id"), 64)
		if err != nil {
			return nil, err
		}
		offset, err := uintParam(c.DefaultQuery("offset", "0"), 32)
		if err != nil {
			return nil, err
		}
		limit, err := uintParam(c.DefaultQuery("limit", "100"), 32)
		if err != nil {
			return nil, err
		}
		return s.handler.Cards(id, uint32(offset), uint32(limit))
	}))
	rounds.GET("/:id/claims/:addr", s.rest(func(c *gin.Context) (any, error) {
		id, err := uintParam(c.Param("id"), 64)
		if err != nil {
			return nil, err
		}
		return s.handler.Claim(id, c.Param("addr"))
	}))

	keno := s.engine.Group("/keno")
	keno.GET("/bets/:id", s.rest(func(c *gin.Context) (any, error) {
		id, err := uintParam(c.Param("id"), 64)
		if err != nil {
			return nil, err
		}
		return s.handler.state.GetKenoBet(id)
	}))
	keno.GET("/tables/:version", s.rest(func(c *gin.Context) (any, error) {
		v, err := uintParam(c.Param("version"), 32)
		if err != nil {
			return nil, err
		}
		return s.handler.state.GetPayoutTable(uint32(v))
	}))
}

// Start binds the port synchronously (so callers know immediately if binding
// fails) then serves requests in a background goroutine.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("rpc server: %v", err)
		}
	}()
	return nil
}

// Stop gracefully shuts down the HTTP server, waiting up to 5 seconds for
// in-flight requests to complete.
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}

func (s *Server) auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.authToken != "" && c.GetHeader("Authorization") != "Bearer "+s.authToken {
			if c.Request.Method == http.MethodPost {
				c.AbortWithStatusJSON(http.StatusOK, errResponse(nil, CodeUnauthorized, "unauthorized"))
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "category": core.CategoryUnauthorized})
			return
		}
		c.Next()
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields(log.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start),
		}).Debug("http request")
	}
}

func (s *Server) serveRPC(c *gin.Context) {
	// Limit request body to 1 MB to prevent memory exhaustion.
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, 1*1024*1024)

	var req Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusOK, errResponse(nil, CodeParseError, err.Error()))
		return
	}
	if req.JSONRPC != "2.0" {
		c.JSON(http.StatusOK, errResponse(req.ID, CodeInvalidRequest, "jsonrpc must be '2.0'"))
		return
	}
	c.JSON(http.StatusOK, s.handler.Dispatch(req))
}

// rest adapts a query to a JSON response, mapping engine errors to HTTP
// statuses.
func (s *Server) rest(q func(c *gin.Context) (any, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := q(c)
		if err != nil {
			cat := core.Category(err)
			c.JSON(httpStatus(cat), gin.H{"error": err.Error(), "category": cat})
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func httpStatus(category string) int {
	switch category {
	case core.CategoryNotFound:
		return http.StatusNotFound
	case core.CategoryValidation:
		return http.StatusBadRequest
	case core.CategoryUnauthorized:
		return http.StatusUnauthorized
	case core.CategoryInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusConflict
	}
}

func uintParam(s string, bitSize int) (uint64, error) {
	v, err := strconv.ParseUint(s, 10, bitSize)
	if err != nil {
		return 0, fmt.Errorf("bad number %q: %w", s, core.ErrInvalid)
	}
	return v, nil
}
