package server

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

func (s *Server) registerCycles(g *echo.Group) {
	g.POST("", s.startCycle)
	g.POST("/pause", s.pause)
	g.POST("/resume", s.resume)
	g.POST("/stop", s.stop)
	g.POST("/finalize", s.finalize)
	g.POST("/comments", s.comment)
	g.POST("/chaos", s.chaos)
	g.POST("/evaluate", s.evaluate)
	g.POST("/next-round", s.nextRound)
	g.POST("/suggest", s.suggest)
	g.POST("/continue", s.continueCycle)
}

// Start cycle
//
//	@Summary	Start a cycle on a topic or on a page seeded from a URL
//	@Tags		cycles
//	@Accept		json
//	@Produce	json
//	@Param		payload	body		StartCycleRequest	true	"Topic or URL"
//	@Success	201		{object}	models.Cycle
//	@Failure	400		{object}	HTTPError
//	@Failure	409		{object}	HTTPError
//	@Router		/api/cycles [post]
func (s *Server) startCycle(c echo.Context) error {
	var req StartCycleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	topic := req.Topic
	if strings.TrimSpace(topic) == "" && strings.TrimSpace(req.URL) != "" {
		seeded, err := s.seed(c.Request().Context(), req.URL)
		if err != nil {
			s.logger.Warn("seed topic", zap.String("url", req.URL), zap.Error(err))
			return echo.NewHTTPError(http.StatusBadRequest, "could not read a topic from the url: "+err.Error())
		}
		topic = seeded
	}
	// The cycle outlives the request.
	cycle, err := s.orch.Start(c.Request().Context(), topic)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, cycle)
}

func (s *Server) pause(c echo.Context) error {
	if err := s.orch.Pause(); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s.orch.Snapshot())
}

func (s *Server) resume(c echo.Context) error {
	if err := s.orch.Resume(c.Request().Context()); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s.orch.Snapshot())
}

func (s *Server) stop(c echo.Context) error {
	if err := s.orch.Stop(c.Request().Context()); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s.orch.Snapshot())
}

func (s *Server) finalize(c echo.Context) error {
	cycle, err := s.orch.Finalize(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, cycle)
}

func (s *Server) comment(c echo.Context) error {
	var req CommentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	uc, err := s.orch.AddComment(req.Text)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, uc)
}

// Chaos
//
//	@Summary	Ask the trickster to disrupt the current cycle
//	@Tags		cycles
//	@Produce	json
//	@Success	201	{object}	models.AgentThought
//	@Failure	409	{object}	HTTPError
//	@Failure	502	{object}	HTTPError
//	@Router		/api/cycles/chaos [post]
func (s *Server) chaos(c echo.Context) error {
	th, err := s.orch.TriggerChaos(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, th)
}

func (s *Server) evaluate(c echo.Context) error {
	if err := s.orch.EvaluateCompleteness(c.Request().Context()); err != nil {
		return err
	}
	return c.JSON(http.StatusAccepted, s.orch.Snapshot())
}

func (s *Server) nextRound(c echo.Context) error {
	var req NextRoundRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := s.orch.RequestNextRound(c.Request().Context(), req.Topic); err != nil {
		return err
	}
	return c.JSON(http.StatusAccepted, s.orch.Snapshot())
}

func (s *Server) suggest(c echo.Context) error {
	out, err := s.orch.SuggestContinuation(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, SuggestionResponse{Suggestion: out})
}

func (s *Server) continueCycle(c echo.Context) error {
	var req ContinueRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	cycle, err := s.orch.StartContinuationCycle(c.Request().Context(), req.Suggestion)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, cycle)
}
