package internal

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"ctf-arena/internal/ctf"
	"ctf-arena/internal/metrics"
	"ctf-arena/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	cookieName = "ctf_token"
	sessionKey = "session"
	loggerKey  = "logger"
)

type claims struct {
	UserID string `json:"uid"`
	jwt.RegisteredClaims
}

// Session is the authenticated caller, loaded fresh from the store on every request.
type Session struct {
	User ctf.User
}

func (s *Session) UserID() string { return s.User.ID }

func (s *Session) IsAdmin() bool { return s.User.IsAdmin() }

func tokenFrom(c *gin.Context) string {
	if tok, err := c.Cookie(cookieName); err == nil && tok != "" {
		return tok
	}
	if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return ""
}

func parseToken(secret, tokenStr string) (*claims, error) {
	tok, err := jwt.ParseWithClaims(tokenStr, &claims{}, func(token *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !tok.Valid {
		return nil, errors.New("bad token")
	}
	cl, ok := tok.Claims.(*claims)
	if !ok || cl.UserID == "" {
		return nil, errors.New("bad claims")
	}
	return cl, nil
}

// Auth validates the token and loads the caller's current profile. The role
// is read from the store, never from the token.
func Auth(secret string, st store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := tokenFrom(c)
		if tokenStr == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "not authorized"})
			return
		}

		cl, err := parseToken(secret, tokenStr)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}

		u, err := st.GetUser(c.Request.Context(), cl.UserID)
		if errors.Is(err, ctf.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "account no longer exists"})
			return
		}
		if err != nil {
			abortError(c, err)
			return
		}

		c.Set(sessionKey, &Session{User: u})
		c.Next()
	}
}

func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !session(c).IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin only"})
			return
		}
		c.Next()
	}
}

func session(c *gin.Context) *Session {
	return c.MustGet(sessionKey).(*Session)
}

func uid(c *gin.Context) string {
	return session(c).UserID()
}

// Metrics records request counts and latency per route template.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		method := c.Request.Method

		metrics.RequestInProgress.WithLabelValues(method, path).Inc()
		startTime := time.Now()

		c.Next()

		status := strconv.Itoa(c.Writer.Status())
		metrics.RequestCounter.WithLabelValues(status, method, path).Inc()
		metrics.RequestDuration.WithLabelValues(status, method, path).Observe(time.Since(startTime).Seconds())
		metrics.RequestInProgress.WithLabelValues(method, path).Dec()
	}
}

// AccessLog logs one line per request and makes the logger available to handlers.
func AccessLog(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(loggerKey, logger)
		start := time.Now()

		c.Next()

		status := c.Writer.Status()
		level := slog.LevelInfo
		if status >= 500 {
			level = slog.LevelError
		}
		logger.Log(c.Request.Context(), level, "request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"duration", time.Since(start),
			"ip", c.ClientIP(),
		)
	}
}

func requestLogger(c *gin.Context) *slog.Logger {
	if v, ok := c.Get(loggerKey); ok {
		if l, ok := v.(*slog.Logger); ok {
			return l
		}
	}
	return slog.Default()
}

// RateLimit rejects clients that exceed the limiter's budget.
func RateLimit(rl *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.Allow(c.ClientIP()) {
			metrics.RateLimiterRejections.Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "Too many requests. Please try again later.",
			})
			return
		}
		c.Next()
	}
}
