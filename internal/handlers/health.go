package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type healthResponse struct {
	Status      string            `json:"status"`
	Checks      map[string]string `json:"checks"`
	Environment string            `json:"environment"`
}

func (h HandlerSet) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	resp := healthResponse{Status: "ok", Checks: make(map[string]string, len(h.probes)), Environment: h.cfg.Environment}
	for _, p := range h.probes {
		if err := p.Check(ctx); err != nil {
			h.log.Error().Err(err).Str("probe", p.Name).Msg("health probe failed")
			resp.Checks[p.Name] = "error"
			resp.Status = "degraded"
			continue
		}
		resp.Checks[p.Name] = "ok"
	}

	code := http.StatusOK
	if resp.Status != "ok" {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, resp)
}
