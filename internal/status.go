package internal

import (
	"context"
	"net/http"
	"time"

	"ctf-arena/internal/ctf"
	"ctf-arena/internal/store"

	"github.com/gin-gonic/gin"
)

// Status is public: the countdown is shown before login too.
func Status(st store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		cfg, err := st.GetConfig(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, ctf.StatusAt(cfg, time.Now()))
	}
}

// Checker is one dependency probed by the health endpoint.
type Checker interface {
	Check(ctx context.Context) error
}

type CheckerFunc func(ctx context.Context) error

func (f CheckerFunc) Check(ctx context.Context) error { return f(ctx) }

func Health(checkers map[string]Checker) gin.HandlerFunc {
	type result struct {
		Status string `json:"status"`
	}

	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		checks := make(map[string]result, len(checkers))
		status := http.StatusOK
		for name, chk := range checkers {
			if err := chk.Check(ctx); err != nil {
				requestLogger(c).Error("health check failed", "name", name, "error", err)
				checks[name] = result{Status: "error"}
				status = http.StatusServiceUnavailable
				continue
			}
			checks[name] = result{Status: "ok"}
		}
		c.JSON(status, checks)
	}
}
