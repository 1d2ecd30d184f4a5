package server

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/briefly-ai/briefly/internal/brief"
	"github.com/briefly-ai/briefly/internal/memory"
	"github.com/briefly-ai/briefly/internal/store"
)

type BriefsHandler struct {
	Store  *store.Store
	Runner Runner
	Index  *memory.Index // optional
	Logger *log.Logger
}

func (h *BriefsHandler) Register(api *echo.Group, secret []byte) {
	b := api.Group("/briefs")
	b.Use(func(next echo.HandlerFunc) echo.HandlerFunc { return withAuth(next, secret) })
	b.POST("", h.generate)
	b.GET("/:id", h.get)

	u := api.Group("/users")
	u.Use(func(next echo.HandlerFunc) echo.HandlerFunc { return withAuth(next, secret) })
	u.GET("/:id/history", h.history)
	u.GET("/:id/stats", h.stats)
	u.DELETE("/:id", h.deleteUser)
}

func (h *BriefsHandler) generate(c echo.Context) error {
	var req GenerateBriefRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Topic == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "topic is required")
	}
	userID := c.Get("user_id").(string)

	res, err := h.Runner.Run(c.Request().Context(), brief.Request{
		Topic:             req.Topic,
		Depth:             brief.Depth(req.Depth),
		UserID:            userID,
		IsFollowUp:        req.IsFollowUp,
		AdditionalContext: req.AdditionalContext,
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	h.persist(c, userID, req.Depth, res)

	return c.JSON(http.StatusOK, BriefResponse{
		Brief:       res.Brief,
		Failures:    res.Failures,
		ExecutionMS: res.ExecutionTime.Milliseconds(),
	})
}

// persist saves the brief, the run record and the index entry. All of it is
// best-effort: the caller already has the brief in hand.
func (h *BriefsHandler) persist(c echo.Context, userID, depth string, res brief.RunResult) {
	ctx := c.Request().Context()
	if depth == "" {
		depth = string(brief.DepthModerate)
	}

	payload, err := json.Marshal(res.Brief)
	if err != nil {
		h.Logger.Printf("marshal brief %s: %v", res.Brief.ID, err)
		return
	}
	if err := h.Store.SaveBrief(ctx, store.BriefRecord{
		ID:          res.Brief.ID,
		UserID:      userID,
		Topic:       res.Brief.Topic,
		Depth:       depth,
		Payload:     payload,
		ExecutionMS: res.ExecutionTime.Milliseconds(),
	}); err != nil {
		h.Logger.Printf("save brief %s: %v", res.Brief.ID, err)
		return
	}

	failures, _ := json.Marshal(res.Failures)
	if err := h.Store.RecordRun(ctx, store.RunRecord{
		RunID:       res.Brief.ID,
		BriefID:     res.Brief.ID,
		UserID:      userID,
		Topic:       res.Brief.Topic,
		Depth:       depth,
		Success:     res.Brief.FailureReason == "",
		Failures:    failures,
		ExecutionMS: res.ExecutionTime.Milliseconds(),
	}); err != nil {
		h.Logger.Printf("record run %s: %v", res.Brief.ID, err)
	}

	if h.Index != nil {
		if err := h.Index.IndexBrief(res.Brief); err != nil {
			h.Logger.Printf("index brief %s: %v", res.Brief.ID, err)
		}
	}
}

func (h *BriefsHandler) get(c echo.Context) error {
	userID := c.Get("user_id").(string)
	rec, ok, err := h.Store.GetBrief(c.Request().Context(), c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !ok || rec.UserID != userID {
		return echo.NewHTTPError(http.StatusNotFound, "brief not found")
	}
	var b brief.FinalBrief
	if err := json.Unmarshal(rec.Payload, &b); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, BriefResponse{Brief: b, ExecutionMS: rec.ExecutionMS})
}

func (h *BriefsHandler) history(c echo.Context) error {
	userID, err := h.pathUser(c)
	if err != nil {
		return err
	}
	limit := 20
	recs, err := h.Store.ListBriefs(c.Request().Context(), userID, limit, 0)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	out := HistoryResponse{Briefs: make([]HistoryItem, 0, len(recs))}
	for _, rec := range recs {
		out.Briefs = append(out.Briefs, HistoryItem{ID: rec.ID, Topic: rec.Topic, Depth: rec.Depth, CreatedAt: rec.CreatedAt})
	}
	return c.JSON(http.StatusOK, out)
}

func (h *BriefsHandler) stats(c echo.Context) error {
	userID, err := h.pathUser(c)
	if err != nil {
		return err
	}
	stats, err := h.Store.GetUserStats(c.Request().Context(), userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, StatsResponse{UserStats: stats})
}

func (h *BriefsHandler) deleteUser(c echo.Context) error {
	userID, err := h.pathUser(c)
	if err != nil {
		return err
	}
	if err := h.Store.DeleteUserData(c.Request().Context(), userID); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

// pathUser resolves the :id path parameter and enforces that it matches the
// authenticated user.
func (h *BriefsHandler) pathUser(c echo.Context) (string, error) {
	authed := c.Get("user_id").(string)
	id := c.Param("id")
	if id == "me" || id == "" {
		return authed, nil
	}
	if id != authed {
		return "", echo.NewHTTPError(http.StatusForbidden, "not your data")
	}
	return id, nil
}
