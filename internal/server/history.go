package server

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/mindloop/internal/export"
	"github.com/mohammad-safakhou/mindloop/models"
)

func (s *Server) registerHistory(g *echo.Group) {
	g.GET("", s.listHistory)
	g.GET("/search", s.searchHistory)
	g.GET("/export", s.exportHistory)
	g.GET("/:id", s.getCycle)
	g.GET("/:id/export", s.exportCycle)
}

func (s *Server) listHistory(c echo.Context) error {
	cycles := s.orch.History()
	out := make([]CycleSummary, len(cycles))
	for i, cy := range cycles {
		out[i] = summarize(cy)
	}
	return c.JSON(http.StatusOK, out)
}

func summarize(c *models.Cycle) CycleSummary {
	sum := CycleSummary{
		ID:        c.ID,
		Number:    c.Number,
		Topic:     c.Topic,
		Status:    c.Status,
		Rounds:    c.TotalRounds,
		Thoughts:  len(c.Thoughts.Thoughts()),
		StartTime: c.StartTime.UTC().Format(time.RFC3339),
	}
	if !c.EndTime.IsZero() {
		sum.EndTime = c.EndTime.UTC().Format(time.RFC3339)
	}
	return sum
}

// Search history
//
//	@Summary	Full-text search over archived cycles
//	@Tags		history
//	@Produce	json
//	@Param		q		query		string	true	"Query string"
//	@Param		limit	query		int		false	"Max hits (default 20)"
//	@Success	200		{object}	SearchResponse
//	@Router		/api/history/search [get]
func (s *Server) searchHistory(c echo.Context) error {
	q := c.QueryParam("q")
	if q == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "q is required")
	}
	limit := 20
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		limit = n
	}
	hits, err := s.orch.Search(q, limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, SearchResponse{Query: q, Hits: hits})
}

func (s *Server) getCycle(c echo.Context) error {
	cycle, err := s.orch.Cycle(c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, cycle)
}

func (s *Server) exportCycle(c echo.Context) error {
	cycle, err := s.orch.Cycle(c.Param("id"))
	if err != nil {
		return err
	}
	return s.writeExport(c, fmt.Sprintf("cycle-%d", cycle.Number), []*models.Cycle{cycle})
}

func (s *Server) exportHistory(c echo.Context) error {
	return s.writeExport(c, "mindloop-history", s.orch.History())
}

func (s *Server) writeExport(c echo.Context, name string, cycles []*models.Cycle) error {
	f, err := export.ParseFormat(c.QueryParam("format"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, f.ContentType())
	resp.Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", name+"."+string(f)))
	resp.WriteHeader(http.StatusOK)
	return export.Write(resp, f, cycles, s.agentName)
}

func (s *Server) agentName(role string) string {
	for _, a := range s.orch.Agents() {
		if a.Role == role {
			return a.Name
		}
	}
	return role
}
