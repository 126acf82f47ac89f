package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"cuterank/internal/config"
	"cuterank/internal/middleware"
	"cuterank/internal/models"
	"cuterank/internal/service"
)

type Submitter interface {
	Submit(ctx context.Context, in service.SubmissionInput) (service.Outcome, error)
}

type Moderator interface {
	Approve(ctx context.Context, actor, id int64) error
	Ban(ctx context.Context, actor, id int64) (service.BanResult, error)
	Delete(ctx context.Context, actor, id int64) error
	BanUser(ctx context.Context, actor, userID int64) (models.WarningState, error)
	UnbanUser(ctx context.Context, actor, userID int64) (models.WarningState, error)
	Stats(ctx context.Context, actor int64) (models.Stats, error)
	ListPending(ctx context.Context, actor int64, limit, offset int) ([]models.Submission, error)
	ListFlagged(ctx context.Context, actor int64, limit, offset int) ([]models.Submission, error)
}

type Leaderboard interface {
	Top(ctx context.Context) ([]service.LeaderboardEntry, error)
	ImageAt(ctx context.Context, place int) ([]byte, error)
	Notices(ctx context.Context, userID int64, limit int) ([]models.Notice, error)
	Size() int
}

// Probe is one dependency checked by /healthz.
type Probe struct {
	Name  string
	Check func(ctx context.Context) error
}

type HandlerSet struct {
	log         zerolog.Logger
	cfg         *config.AppConfig
	submissions Submitter
	moderation  Moderator
	board       Leaderboard
	probes      []Probe
}

func NewHandlerSet(log zerolog.Logger, cfg *config.AppConfig, submissions Submitter, moderation Moderator, board Leaderboard, probes ...Probe) HandlerSet {
	return HandlerSet{
		log:         log,
		cfg:         cfg,
		submissions: submissions,
		moderation:  moderation,
		board:       board,
		probes:      probes,
	}
}

func (h HandlerSet) Register(router *gin.RouterGroup) {
	router.GET("/healthz", h.Health)

	v1 := router.Group("/v1")
	v1.GET("/leaderboard", h.Leaderboard)
	v1.GET("/leaderboard/:rank", h.LeaderboardImage)

	authed := v1.Group("", middleware.Authenticate(h.cfg.Security.JWTSecret))
	authed.POST("/submissions", h.Submit)
	authed.GET("/notices", h.Notices)

	admin := authed.Group("/admin", middleware.RequireAdmin(h.cfg.IsAdmin))
	admin.GET("/stats", h.AdminStats)
	admin.GET("/submissions/pending", h.AdminListPending)
	admin.GET("/submissions/flagged", h.AdminListFlagged)
	admin.POST("/submissions/:id/approve", h.AdminApprove)
	admin.POST("/submissions/:id/ban", h.AdminBan)
	admin.DELETE("/submissions/:id", h.AdminDelete)
	admin.POST("/users/:id/ban", h.AdminBanUser)
	admin.POST("/users/:id/unban", h.AdminUnbanUser)
}
