// Package api serves a trained character model over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v5"
	"golang.org/x/time/rate"

	"github.com/samcharles93/charlm/internal/logger"
)

// Config bounds what a client may ask of the server.
type Config struct {
	// MaxNewTokens caps max_new_tokens per request.
	MaxNewTokens int `yaml:"max_new_tokens"`
	// DefaultNewTokens applies when a request omits max_new_tokens.
	DefaultNewTokens int `yaml:"default_new_tokens"`
	// RatePerSecond and Burst configure the token bucket in front of
	// /v1/generate. A non-positive rate disables limiting.
	RatePerSecond float64 `yaml:"rate_per_second"`
	Burst         int     `yaml:"burst"`
}

func DefaultConfig() Config {
	return Config{
		MaxNewTokens:     1000,
		DefaultNewTokens: 200,
		RatePerSecond:    5,
		Burst:            10,
	}
}

type Server struct {
	cfg     Config
	gen     *Generator
	limiter *rate.Limiter
	log     logger.Logger
	clock   func() time.Time
}

func NewServer(gen *Generator, cfg Config, log logger.Logger) *Server {
	def := DefaultConfig()
	if cfg.MaxNewTokens <= 0 {
		cfg.MaxNewTokens = def.MaxNewTokens
	}
	if cfg.DefaultNewTokens <= 0 {
		cfg.DefaultNewTokens = min(def.DefaultNewTokens, cfg.MaxNewTokens)
	}
	if log == nil {
		log = logger.Discard()
	}
	s := &Server{
		cfg:   cfg,
		gen:   gen,
		log:   log.With("component", "api"),
		clock: time.Now,
	}
	if cfg.RatePerSecond > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), max(cfg.Burst, 1))
	}
	return s
}

func (s *Server) Register(e *echo.Echo) {
	e.GET("/healthz", s.handleHealth)
	e.GET("/v1/model", s.handleModel)
	e.POST("/v1/generate", s.handleGenerate, s.rateLimit)
}

func (s *Server) rateLimit(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c *echo.Context) error {
		if s.limiter != nil && !s.limiter.Allow() {
			c.Response().Header().Set("Retry-After", "1")
			return writeError(c, http.StatusTooManyRequests, "rate_limit_error", ErrRateLimited.Error(), "")
		}
		return next(c)
	}
}

func (s *Server) handleHealth(c *echo.Context) error {
	return writeJSON(c, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleModel(c *echo.Context) error {
	m := s.gen.Model()
	return writeJSON(c, http.StatusOK, ModelInfo{
		Object:     "model",
		Config:     m.Config(),
		VocabSize:  s.gen.Vocab().Size(),
		Vocabulary: s.gen.Vocab().Chars(),
		Params:     m.NumParams(),
	})
}

func (s *Server) handleGenerate(c *echo.Context) error {
	req, err := decodeJSON[GenerateRequest](c.Request().Body)
	if err != nil {
		return writeBadRequest(c, err)
	}
	n, err := s.newTokens(req.MaxNewTokens)
	if err != nil {
		return writeBadRequest(c, err)
	}
	if !s.gen.Vocab().Contains(req.Prompt) {
		return writeBadRequest(c, newInvalidRequest("prompt", "prompt contains characters outside the model vocabulary"))
	}

	id := newGenerationID()
	created := s.clock().Unix()
	if req.Stream || c.QueryParam("stream") == "true" {
		return s.streamGenerate(c, req, n, id, created)
	}

	gen, err := s.gen.Generate(c.Request().Context(), req.Prompt, n, req.Seed, nil)
	if err != nil {
		return s.generateFailed(c, err)
	}
	s.log.Debug("generated", "id", id, "prompt_tokens", gen.PromptTokens, "completion_tokens", n)
	return writeJSON(c, http.StatusOK, GenerateResponse{
		ID:         id,
		Object:     "generation",
		Created:    created,
		Prompt:     req.Prompt,
		Text:       req.Prompt + gen.Completion,
		Completion: gen.Completion,
		Usage: Usage{
			PromptTokens:     gen.PromptTokens,
			CompletionTokens: n,
		},
	})
}

func (s *Server) streamGenerate(c *echo.Context, req GenerateRequest, n int, id string, created int64) error {
	w, err := newSSEWriter(c, id, created)
	if err != nil {
		return writeBadRequest(c, err)
	}
	gen, err := s.gen.Generate(c.Request().Context(), req.Prompt, n, req.Seed, w.Delta)
	if err != nil {
		if !w.Started() {
			return s.generateFailed(c, err)
		}
		if !errors.Is(err, context.Canceled) {
			s.log.Warn("stream aborted", "id", id, "error", err)
			w.Fail(err)
		}
		return nil
	}
	return w.Finish("length", Usage{PromptTokens: gen.PromptTokens, CompletionTokens: n})
}

func (s *Server) generateFailed(c *echo.Context, err error) error {
	if errors.Is(err, ErrInvalidRequest) {
		return writeBadRequest(c, err)
	}
	s.log.Error("generation failed", "error", err)
	return writeError(c, http.StatusInternalServerError, "server_error", err.Error(), "")
}

func (s *Server) newTokens(requested *int) (int, error) {
	if requested == nil {
		return s.cfg.DefaultNewTokens, nil
	}
	n := *requested
	if n < 0 || n > s.cfg.MaxNewTokens {
		return 0, newInvalidRequest("max_new_tokens",
			fmt.Sprintf("max_new_tokens must be between 0 and %d, got %d", s.cfg.MaxNewTokens, n))
	}
	return n, nil
}
