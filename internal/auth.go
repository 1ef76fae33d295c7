package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"time"

	"ctf-arena/internal/ctf"
	"ctf-arena/internal/mail"
	"ctf-arena/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const (
	resetTokenTTL = time.Hour
	resetMessage  = "If the email exists, a reset link will be sent"
)

type AuthConfig struct {
	Secret       string
	TokenTTL     time.Duration
	CookieSecure bool
}

func issueToken(cfg AuthConfig, userID string, now time.Time) (string, error) {
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(cfg.TokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "ctf-arena",
		},
	})
	return tok.SignedString([]byte(cfg.Secret))
}

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), 10)
	return string(hash), err
}

func Register(st store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Email       string `json:"email"`
			Password    string `json:"password"`
			DisplayName string `json:"display_name"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(400, gin.H{"error": "bad json"})
			return
		}
		req.DisplayName = strings.TrimSpace(req.DisplayName)
		email, err := ctf.NormalizeEmail(req.Email)
		if err != nil {
			respondError(c, err)
			return
		}
		if err := ctf.ValidatePassword(req.Password); err != nil {
			respondError(c, err)
			return
		}

		hash, err := HashPassword(req.Password)
		if err != nil {
			respondError(c, err)
			return
		}

		playerID := store.NewPlayerID()
		u := &ctf.User{Email: email, Role: ctf.RolePlayer, PlayerID: &playerID}
		if req.DisplayName != "" {
			u.DisplayName = &req.DisplayName
		}
		if err := st.CreateUser(c.Request.Context(), u, hash); err != nil {
			respondError(c, err)
			return
		}
		logAction(c.Request.Context(), st, requestLogger(c), &u.ID, "register", "user registered")
		c.JSON(http.StatusCreated, u)
	}
}

func Login(st store.Store, cfg AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(400, gin.H{"error": "bad json"})
			return
		}

		u, passHash, err := st.Credentials(c.Request.Context(), strings.TrimSpace(req.Email))
		if errors.Is(err, ctf.ErrNotFound) {
			c.JSON(401, gin.H{"error": "invalid credentials"})
			return
		}
		if err != nil {
			respondError(c, err)
			return
		}
		if bcrypt.CompareHashAndPassword([]byte(passHash), []byte(req.Password)) != nil {
			c.JSON(401, gin.H{"error": "invalid credentials"})
			return
		}

		s, err := issueToken(cfg, u.ID, time.Now())
		if err != nil {
			respondError(c, err)
			return
		}
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(cookieName, s, int(cfg.TokenTTL.Seconds()), "/", "", cfg.CookieSecure, true)

		logAction(c.Request.Context(), st, requestLogger(c), &u.ID, "login", "success")
		c.JSON(200, gin.H{"ok": true, "token": s, "user": u})
	}
}

func Logout(cfg AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.SetCookie(cookieName, "", -1, "/", "", cfg.CookieSecure, true)
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

func hashResetToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// RequestPasswordReset answers the same way whether or not the email exists.
func RequestPasswordReset(st store.Store, m mail.Mailer, clientURL string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Email string `json:"email"`
		}
		if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Email) == "" {
			c.JSON(400, gin.H{"error": "email is required"})
			return
		}
		ctx := c.Request.Context()

		u, _, err := st.Credentials(ctx, strings.TrimSpace(req.Email))
		if errors.Is(err, ctf.ErrNotFound) {
			c.JSON(http.StatusOK, gin.H{"message": resetMessage})
			return
		}
		if err != nil {
			respondError(c, err)
			return
		}

		b := make([]byte, 32)
		if _, err := rand.Read(b); err != nil {
			respondError(c, err)
			return
		}
		token := hex.EncodeToString(b)

		if err := st.CreatePasswordReset(ctx, u.ID, hashResetToken(token), time.Now().Add(resetTokenTTL)); err != nil {
			respondError(c, err)
			return
		}

		link := strings.TrimRight(clientURL, "/") + "/reset-password?token=" + token
		if err := m.SendPasswordReset(ctx, u.Email, link); err != nil {
			respondError(c, err)
			return
		}
		logAction(ctx, st, requestLogger(c), &u.ID, "password_reset_requested", "")
		c.JSON(http.StatusOK, gin.H{"message": resetMessage})
	}
}

func ConfirmPasswordReset(st store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Token    string `json:"token"`
			Password string `json:"password"`
		}
		if err := c.ShouldBindJSON(&req); err != nil || req.Token == "" {
			c.JSON(400, gin.H{"error": "bad request"})
			return
		}
		if err := ctf.ValidatePassword(req.Password); err != nil {
			respondError(c, err)
			return
		}
		ctx := c.Request.Context()

		userID, err := st.ConsumePasswordReset(ctx, hashResetToken(req.Token), time.Now())
		if errors.Is(err, ctf.ErrNotFound) {
			c.JSON(400, gin.H{"error": "invalid or expired token"})
			return
		}
		if err != nil {
			respondError(c, err)
			return
		}

		hash, err := HashPassword(req.Password)
		if err != nil {
			respondError(c, err)
			return
		}
		if err := st.SetPassword(ctx, userID, hash); err != nil {
			respondError(c, err)
			return
		}
		logAction(ctx, st, requestLogger(c), &userID, "password_reset", "")
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}
