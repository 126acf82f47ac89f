package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"cuterank/internal/media/sniffer"
	"cuterank/internal/messages"
	"cuterank/internal/middleware"
	"cuterank/internal/service"
)

func (h HandlerSet) Leaderboard(c *gin.Context) {
	entries, err := h.board.Top(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("leaderboard failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": messages.Failure})
		return
	}
	if len(entries) == 0 {
		c.JSON(http.StatusOK, gin.H{"items": entries, "message": messages.TopEmpty})
		return
	}
	for i := range entries {
		if entries[i].Name == "" {
			entries[i].Name = messages.Anonymous
		}
	}
	c.JSON(http.StatusOK, gin.H{"items": entries})
}

func (h HandlerSet) LeaderboardImage(c *gin.Context) {
	place, err := strconv.Atoi(c.Param("rank"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": messages.RankOutOfRangeText(h.board.Size())})
		return
	}

	data, err := h.board.ImageAt(c.Request.Context(), place)
	switch {
	case errors.Is(err, service.ErrRankOutOfRange):
		c.JSON(http.StatusBadRequest, gin.H{"error": messages.RankOutOfRangeText(h.board.Size())})
		return
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": messages.NoCachedImage})
		return
	case err != nil:
		h.log.Error().Err(err).Int("place", place).Msg("leaderboard image failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": messages.Failure})
		return
	}

	contentType := "application/octet-stream"
	if res, err := sniffer.Detect(data); err == nil {
		contentType = res.MIME
	}
	c.Data(http.StatusOK, contentType, data)
}

func (h HandlerSet) Notices(c *gin.Context) {
	id, ok := middleware.CurrentIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))

	notices, err := h.board.Notices(c.Request.Context(), id.UserID, limit)
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", id.UserID).Msg("notices failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": messages.Failure})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": notices})
}
