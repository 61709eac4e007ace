// Package server exposes the control API over HTTP. Every lifecycle route is
// a POST taking {"service": ..., "key": ...} and answering {"ok": ..., "data": ...},
// where data is an HTTP-style status code on failure and the operation's
// payload on success.
package server

import (
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pelletier/go-toml/v2"

	"github.com/loykin/sproc/internal/metrics"
	"github.com/loykin/sproc/internal/supervisor"
)

// request is the body of every control call.
type request struct {
	Service string `json:"service"`
	Key     string `json:"key"`
}

// response is the uniform control-plane answer.
type response struct {
	OK   bool `json:"ok"`
	Data any  `json:"data"`
}

// NewRouter builds the control-plane router. The shared secret is captured
// here; changing it requires restarting the server.
func NewRouter(sup *supervisor.Supervisor, key string, logger *slog.Logger) *gin.Engine {
	if logger == nil {
		logger = slog.Default()
	}
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	authed := func(c *gin.Context) (request, bool) {
		var req request
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response{OK: false, Data: http.StatusBadRequest})
			return req, false
		}
		if subtle.ConstantTimeCompare([]byte(req.Key), []byte(key)) != 1 {
			metrics.IncUnauthorized()
			logger.Warn("rejected control request with bad key", "service", req.Service, "remote", c.ClientIP())
			c.JSON(http.StatusOK, response{OK: false, Data: http.StatusUnauthorized})
			return req, false
		}
		return req, true
	}

	fail := func(c *gin.Context, err error) {
		code := http.StatusBadRequest
		if errors.Is(err, supervisor.ErrNotFound) {
			code = http.StatusNotFound
		}
		c.JSON(http.StatusOK, response{OK: false, Data: code})
	}

	r.POST("/start", func(c *gin.Context) {
		req, ok := authed(c)
		if !ok {
			return
		}
		if err := sup.Start(req.Service); err != nil {
			logger.Warn("start request failed", "service", req.Service, "error", err)
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, response{OK: true, Data: http.StatusOK})
	})

	r.POST("/kill", func(c *gin.Context) {
		req, ok := authed(c)
		if !ok {
			return
		}
		if err := sup.Kill(req.Service); err != nil {
			logger.Warn("kill request failed", "service", req.Service, "error", err)
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, response{OK: true, Data: http.StatusOK})
	})

	r.POST("/info", func(c *gin.Context) {
		req, ok := authed(c)
		if !ok {
			return
		}
		snap, err := sup.Info(req.Service)
		if err != nil {
			logger.Warn("info request failed", "service", req.Service, "error", err)
			// info failures answer with an empty payload, not a status code
			c.JSON(http.StatusOK, response{OK: false, Data: ""})
			return
		}
		body, err := toml.Marshal(snap)
		if err != nil {
			c.JSON(http.StatusOK, response{OK: false, Data: ""})
			return
		}
		c.JSON(http.StatusOK, response{OK: true, Data: string(body)})
	})

	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusOK, response{OK: false, Data: http.StatusNotFound})
	})
	return r
}

// New wraps the router in an http.Server with sane timeouts.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
