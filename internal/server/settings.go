package server

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/mindloop/internal/agents"
	"github.com/mohammad-safakhou/mindloop/internal/catalog"
)

func (s *Server) registerSettings(api *echo.Group) {
	api.GET("/agents", s.listAgents)
	api.POST("/agents", s.addAgent)
	api.POST("/agents/reset", s.resetAgents)
	api.GET("/agents/export", s.exportAgents)
	api.POST("/agents/import", s.importAgents)
	api.PUT("/agents/:role", s.updateAgent)
	api.DELETE("/agents/:role", s.removeAgent)

	api.GET("/models", s.listModels)
	api.POST("/models", s.addModel)
	api.DELETE("/models/:id", s.removeModel)
	api.GET("/presets", s.listPresets)
	api.POST("/presets/:id/apply", s.applyPreset)

	api.PUT("/settings", s.updateSettings)
}

func (s *Server) listAgents(c echo.Context) error {
	return c.JSON(http.StatusOK, s.orch.Agents())
}

func (s *Server) addAgent(c echo.Context) error {
	var req agents.Config
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := s.orch.AddCustomAgent(c.Request().Context(), req); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, s.orch.Agents())
}

// Update agent
//
//	@Summary	Toggle an agent or change its model or prompt
//	@Tags		agents
//	@Accept		json
//	@Produce	json
//	@Param		role	path		string				true	"Agent role"
//	@Param		payload	body		AgentUpdateRequest	true	"Fields to change"
//	@Success	200		{array}		agents.Config
//	@Failure	400		{object}	HTTPError
//	@Router		/api/agents/{role} [put]
func (s *Server) updateAgent(c echo.Context) error {
	var req AgentUpdateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx, role := c.Request().Context(), c.Param("role")
	if req.Model != nil {
		if err := s.orch.SetAgentModel(ctx, role, *req.Model); err != nil {
			return err
		}
	}
	if req.Prompt != nil {
		if err := s.orch.SetAgentPrompt(ctx, role, *req.Prompt); err != nil {
			return err
		}
	}
	if req.Active != nil {
		if err := s.orch.SetAgentActive(ctx, role, *req.Active); err != nil {
			return err
		}
	}
	return c.JSON(http.StatusOK, s.orch.Agents())
}

func (s *Server) removeAgent(c echo.Context) error {
	if err := s.orch.RemoveCustomAgent(c.Request().Context(), c.Param("role")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) resetAgents(c echo.Context) error {
	if err := s.orch.ResetAgents(c.Request().Context()); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s.orch.Agents())
}

func (s *Server) exportAgents(c echo.Context) error {
	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "application/yaml")
	resp.Header().Set(echo.HeaderContentDisposition, `attachment; filename="agents.yaml"`)
	resp.WriteHeader(http.StatusOK)
	return s.orch.ExportAgents(resp)
}

// Import agents
//
//	@Summary	Replace agent configs from a YAML document
//	@Tags		agents
//	@Accept		application/yaml
//	@Produce	json
//	@Success	200	{array}		agents.Config
//	@Failure	400	{object}	HTTPError
//	@Router		/api/agents/import [post]
func (s *Server) importAgents(c echo.Context) error {
	body := http.MaxBytesReader(c.Response(), c.Request().Body, 1<<20)
	if err := s.orch.ImportAgents(c.Request().Context(), body); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s.orch.Agents())
}

func (s *Server) listModels(c echo.Context) error {
	return c.JSON(http.StatusOK, ModelsResponse{Groups: s.orch.Catalog().Groups()})
}

func (s *Server) addModel(c echo.Context) error {
	var req catalog.Model
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := s.orch.AddCustomModel(c.Request().Context(), req); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, s.orch.Catalog().Custom())
}

func (s *Server) removeModel(c echo.Context) error {
	if err := s.orch.RemoveCustomModel(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) listPresets(c echo.Context) error {
	return c.JSON(http.StatusOK, catalog.Presets())
}

func (s *Server) applyPreset(c echo.Context) error {
	id := c.Param("id")
	changed, err := s.orch.ApplyPreset(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, PresetAppliedResponse{Preset: id, Changed: changed})
}

func (s *Server) updateSettings(c echo.Context) error {
	var req SettingsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	if req.APIKey != nil {
		if err := s.orch.SetAPIKey(ctx, *req.APIKey); err != nil {
			return err
		}
	}
	if req.AutoAdvance != nil {
		if err := s.orch.SetAutoAdvance(ctx, *req.AutoAdvance); err != nil {
			return err
		}
	}
	if req.InterAgentDelayMs != nil {
		if err := s.orch.SetInterAgentDelay(ctx, time.Duration(*req.InterAgentDelayMs)*time.Millisecond); err != nil {
			return err
		}
	}
	if req.ContinuousMode != nil {
		s.orch.EnableContinuousMode(*req.ContinuousMode)
	}
	return c.JSON(http.StatusOK, s.orch.Snapshot())
}
