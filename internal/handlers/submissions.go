package handlers

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"cuterank/internal/messages"
	"cuterank/internal/middleware"
	"cuterank/internal/service"
)

type submissionResponse struct {
	Status       string `json:"status"`
	Message      string `json:"message"`
	SubmissionID int64  `json:"submissionId,omitempty"`
	Score        int    `json:"score,omitempty"`
	Rank         int    `json:"rank,omitempty"`
	Flagged      bool   `json:"flagged,omitempty"`
	Card         []byte `json:"card,omitempty"`
}

func (h HandlerSet) Submit(c *gin.Context) {
	id, ok := middleware.CurrentIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	maxBytes := h.cfg.HTTP.MaxUploadMB << 20
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)

	image, err := formBytes(c, "image")
	if err != nil || len(image) == 0 {
		c.JSON(http.StatusBadRequest, submissionResponse{Status: "invalid_image", Message: messages.InvalidImage})
		return
	}
	avatar, _ := formBytes(c, "avatar")

	username := id.UsernamePtr()
	if name := c.PostForm("displayName"); name != "" {
		username = &name
	}

	out, err := h.submissions.Submit(c.Request.Context(), service.SubmissionInput{
		UserID:   id.UserID,
		Username: username,
		Image:    image,
		Avatar:   avatar,
	})
	if err != nil {
		h.submitError(c, id.UserID, err)
		return
	}

	switch out.Status {
	case service.StatusAccepted:
		resp := submissionResponse{
			Status:  string(out.Status),
			Message: messages.AcceptedText(out.Score, out.Rank),
			Score:   out.Score,
			Rank:    out.Rank,
			Flagged: out.Flagged,
			Card:    out.Card,
		}
		if out.Submission != nil {
			resp.SubmissionID = out.Submission.ID
		}
		c.JSON(http.StatusCreated, resp)
	case service.StatusRateLimited:
		c.Header("Retry-After", strconv.Itoa(int(out.RetryAfter.Seconds())))
		c.JSON(http.StatusTooManyRequests, submissionResponse{Status: string(out.Status), Message: messages.RateLimitedText(out.RetryAfter)})
	case service.StatusBanned:
		c.Status(http.StatusNoContent)
	case service.StatusDuplicateOwn:
		c.JSON(http.StatusOK, submissionResponse{Status: string(out.Status), Message: messages.DuplicateOwn})
	case service.StatusDuplicateOther:
		resp := submissionResponse{Status: string(out.Status), Message: messages.DuplicateOther}
		if d := out.Duplicate; d != nil {
			resp.Message = messages.DuplicateScoredText(d.Score, d.Rank)
			resp.Score, resp.Rank = d.Score, d.Rank
		}
		c.JSON(http.StatusOK, resp)
	case service.StatusNSFWRejected:
		c.JSON(http.StatusUnprocessableEntity, submissionResponse{Status: string(out.Status), Message: messages.NSFW})
	default:
		h.log.Error().Str("status", string(out.Status)).Msg("unhandled submission outcome")
		c.JSON(http.StatusInternalServerError, submissionResponse{Status: "error", Message: messages.Failure})
	}
}

func (h HandlerSet) submitError(c *gin.Context, userID int64, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidImage):
		c.JSON(http.StatusBadRequest, submissionResponse{Status: "invalid_image", Message: messages.InvalidImage})
	case errors.Is(err, service.ErrScoringUnavailable),
		errors.Is(err, service.ErrClassifierUnavailable),
		errors.Is(err, service.ErrTransportUnavailable):
		h.log.Warn().Err(err).Int64("user_id", userID).Msg("submission aborted")
		c.JSON(http.StatusServiceUnavailable, submissionResponse{Status: "unavailable", Message: messages.Unavailable})
	default:
		h.log.Error().Err(err).Int64("user_id", userID).Msg("submission failed")
		c.JSON(http.StatusInternalServerError, submissionResponse{Status: "error", Message: messages.Failure})
	}
}

func formBytes(c *gin.Context, field string) ([]byte, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		return nil, err
	}
	return readPart(fh)
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
