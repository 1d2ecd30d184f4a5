package server

import (
	"net/http"

	"github.com/gorhill/cronexpr"
	"github.com/labstack/echo/v4"

	"github.com/briefly-ai/briefly/internal/brief"
	"github.com/briefly-ai/briefly/internal/store"
)

// TopicsHandler manages saved recurring research topics.
type TopicsHandler struct {
	Store *store.Store
}

func (h *TopicsHandler) Register(api *echo.Group, secret []byte) {
	g := api.Group("/topics")
	g.Use(func(next echo.HandlerFunc) echo.HandlerFunc { return withAuth(next, secret) })
	g.POST("", h.create)
	g.GET("", h.list)
	g.DELETE("/:id", h.delete)
}

func (h *TopicsHandler) create(c echo.Context) error {
	var req CreateTopicRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Topic == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "topic is required")
	}
	if req.Depth == "" {
		req.Depth = string(brief.DepthModerate)
	}
	if !brief.Depth(req.Depth).Valid() {
		return echo.NewHTTPError(http.StatusBadRequest, "unknown depth")
	}
	if !validCron(req.CronSpec) {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid cron_spec")
	}

	userID := c.Get("user_id").(string)
	id, err := h.Store.CreateTopic(c.Request().Context(), userID, req.Topic, req.Depth, req.CronSpec)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, IDResponse{ID: id})
}

func (h *TopicsHandler) list(c echo.Context) error {
	userID := c.Get("user_id").(string)
	recs, err := h.Store.ListTopics(c.Request().Context(), userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	out := make([]TopicResponse, 0, len(recs))
	for _, rec := range recs {
		out = append(out, TopicResponse{
			ID:        rec.ID,
			Topic:     rec.Topic,
			Depth:     rec.Depth,
			CronSpec:  rec.CronSpec,
			LastRunAt: rec.LastRunAt,
			CreatedAt: rec.CreatedAt,
		})
	}
	return c.JSON(http.StatusOK, out)
}

func (h *TopicsHandler) delete(c echo.Context) error {
	userID := c.Get("user_id").(string)
	if err := h.Store.DeleteTopic(c.Request().Context(), c.Param("id"), userID); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func validCron(spec string) bool {
	switch spec {
	case "@daily", "@hourly":
		return true
	case "":
		return false
	}
	_, err := cronexpr.Parse(spec)
	return err == nil
}
