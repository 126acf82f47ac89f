package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"cuterank/internal/middleware"
	"cuterank/internal/models"
	"cuterank/internal/service"
)

type submissionItem struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"userId"`
	Username  string    `json:"username,omitempty"`
	RawScore  float64   `json:"rawScore"`
	Status    string    `json:"status"`
	Flagged   bool      `json:"flagged"`
	HasCache  bool      `json:"hasCache"`
	CreatedAt time.Time `json:"createdAt"`
}

func toItems(subs []models.Submission) []submissionItem {
	items := make([]submissionItem, 0, len(subs))
	for _, s := range subs {
		items = append(items, submissionItem{
			ID:        s.ID,
			UserID:    s.UserID,
			Username:  s.DisplayName(),
			RawScore:  s.RawScore,
			Status:    string(s.Status),
			Flagged:   s.Flagged,
			HasCache:  s.CachedFile() != "",
			CreatedAt: s.CreatedAt,
		})
	}
	return items
}

func (h HandlerSet) actor(c *gin.Context) int64 {
	id, _ := middleware.CurrentIdentity(c)
	return id.UserID
}

func paging(c *gin.Context) (limit, offset int) {
	limit = 20
	if v, err := strconv.Atoi(c.Query("perPage")); err == nil && v > 0 && v <= 100 {
		limit = v
	}
	if v, err := strconv.Atoi(c.Query("page")); err == nil && v > 1 {
		offset = (v - 1) * limit
	}
	return limit, offset
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_id"})
		return 0, false
	}
	return id, true
}

func (h HandlerSet) adminError(c *gin.Context, op string, err error) {
	switch {
	case errors.Is(err, service.ErrUnauthorized):
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
	default:
		h.log.Error().Err(err).Str("op", op).Msg("admin action failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
	}
}

func (h HandlerSet) AdminStats(c *gin.Context) {
	st, err := h.moderation.Stats(c.Request.Context(), h.actor(c))
	if err != nil {
		h.adminError(c, "stats", err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h HandlerSet) AdminListPending(c *gin.Context) {
	limit, offset := paging(c)
	subs, err := h.moderation.ListPending(c.Request.Context(), h.actor(c), limit, offset)
	if err != nil {
		h.adminError(c, "list pending", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": toItems(subs)})
}

func (h HandlerSet) AdminListFlagged(c *gin.Context) {
	limit, offset := paging(c)
	subs, err := h.moderation.ListFlagged(c.Request.Context(), h.actor(c), limit, offset)
	if err != nil {
		h.adminError(c, "list flagged", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": toItems(subs)})
}

func (h HandlerSet) AdminApprove(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.moderation.Approve(c.Request.Context(), h.actor(c), id); err != nil {
		h.adminError(c, "approve", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "status": models.StatusApproved})
}

func (h HandlerSet) AdminBan(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	res, err := h.moderation.Ban(c.Request.Context(), h.actor(c), id)
	if err != nil {
		h.adminError(c, "ban", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":        id,
		"status":    models.StatusRejected,
		"escalated": res.Escalated,
		"warnings":  res.State.Warnings,
		"banned":    res.State.Banned,
	})
}

func (h HandlerSet) AdminDelete(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.moderation.Delete(c.Request.Context(), h.actor(c), id); err != nil {
		h.adminError(c, "delete", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h HandlerSet) AdminBanUser(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	st, err := h.moderation.BanUser(c.Request.Context(), h.actor(c), id)
	if err != nil {
		h.adminError(c, "ban user", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"userId": id, "warnings": st.Warnings, "banned": st.Banned})
}

func (h HandlerSet) AdminUnbanUser(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	st, err := h.moderation.UnbanUser(c.Request.Context(), h.actor(c), id)
	if err != nil {
		h.adminError(c, "unban user", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"userId": id, "warnings": st.Warnings, "banned": st.Banned})
}
