package internal

import (
	"log/slog"
	"net/http"
	"path/filepath"

	"ctf-arena/internal/attachments"
	"ctf-arena/internal/mail"
	"ctf-arena/internal/realtime"
	"ctf-arena/internal/scoreboard"
	"ctf-arena/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Deps struct {
	Store       store.Store
	Board       *scoreboard.Board
	Publisher   realtime.Publisher
	Files       *attachments.Dir
	Mailer      mail.Mailer
	Logger      *slog.Logger
	Auth        AuthConfig
	ClientURL   string
	StaticDir   string
	RateLimiter *RateLimiter
	Checks      map[string]Checker
}

func Router(d Deps) *gin.Engine {
	st := d.Store
	auth := Auth(d.Auth.Secret, st)

	r := gin.New()
	r.Use(gin.Recovery(), AccessLog(d.Logger), Metrics())

	r.GET("/healthz", Health(d.Checks))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if d.StaticDir != "" {
		r.Static("/static", d.StaticDir)
		r.GET("/", func(c *gin.Context) { c.File(filepath.Join(d.StaticDir, "index.html")) })
	}

	api := r.Group("/api")
	{
		authGroup := api.Group("/auth")
		if d.RateLimiter != nil {
			authGroup.Use(RateLimit(d.RateLimiter))
		}
		authGroup.POST("/register", Register(st))
		authGroup.POST("/login", Login(st, d.Auth))
		authGroup.POST("/logout", Logout(d.Auth))
		authGroup.POST("/reset-password", RequestPasswordReset(st, d.Mailer, d.ClientURL))
		authGroup.POST("/reset-password/confirm", ConfirmPasswordReset(st))

		api.GET("/status", Status(st))

		api.GET("/me", auth, Me())
		api.PATCH("/me", auth, UpdateMe(st))
		api.GET("/profile", auth, Profile(st))

		// challenges
		api.GET("/challenges", auth, ListChallenges(st))
		api.GET("/challenges/:id", auth, GetChallenge(st))
		api.GET("/challenges/:id/file", auth, ChallengeFile(st, d.Files))
		api.POST("/challenges/:id/submit", auth, SubmitFlag(st, d.Publisher))

		// teams
		api.GET("/teams", auth, ListTeams(st))
		api.POST("/teams", auth, CreateTeam(st))
		api.POST("/teams/:id/join", auth, JoinTeam(st))
		api.POST("/teams/:id/leave", auth, LeaveTeam(st))
		api.DELETE("/teams/:id", auth, DeleteTeam(st))

		// leaderboard
		api.GET("/scoreboard", Scoreboard(d.Board))
		api.GET("/scoreboard/ws", ScoreboardWS(d.Board))

		// admin
		admin := api.Group("/admin", auth, RequireAdmin())
		{
			admin.GET("/logs", AdminLogs(st))
			admin.GET("/stats", AdminStats(st))
			admin.GET("/report", AdminReport(st))

			admin.GET("/users", AdminUsers(st))
			admin.PUT("/users/:id/role", AdminSetRole(st))
			admin.DELETE("/users/:id", AdminDeleteUser(st, d.Board))

			admin.GET("/challenges", AdminChallenges(st))
			admin.POST("/challenges", AdminCreateChallenge(st))
			admin.PUT("/challenges/:id", AdminUpdateChallenge(st, d.Board))
			admin.DELETE("/challenges/:id", AdminDeleteChallenge(st, d.Board))
			admin.POST("/challenges/:id/file", AdminUploadFile(st, d.Files))

			admin.GET("/config", AdminGetConfig(st))
			admin.PUT("/config", AdminUpdateConfig(st))
			admin.POST("/config/toggle", AdminToggleCTF(st))
		}
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})
	return r
}
