package server

import (
	"github.com/mohammad-safakhou/mindloop/internal/archive"
	"github.com/mohammad-safakhou/mindloop/internal/catalog"
	"github.com/mohammad-safakhou/mindloop/models"
)

// HTTPError is the error envelope returned by the server.
type HTTPError struct {
	Error string `json:"error"`
}

type LoginRequest struct {
	Password string `json:"password"`
}

// TokenResponse carries a bearer token.
type TokenResponse struct {
	Token string `json:"token"`
}

// StartCycleRequest starts a cycle on Topic, or on a topic seeded from URL.
type StartCycleRequest struct {
	Topic string `json:"topic"`
	URL   string `json:"url"`
}

type CommentRequest struct {
	Text string `json:"text"`
}

type NextRoundRequest struct {
	Topic string `json:"topic"`
}

type ContinueRequest struct {
	Suggestion string `json:"suggestion"`
}

type SuggestionResponse struct {
	Suggestion string `json:"suggestion"`
}

// CycleSummary is one history row.
type CycleSummary struct {
	ID        string        `json:"id"`
	Number    int           `json:"number"`
	Topic     string        `json:"topic"`
	Status    models.Status `json:"status"`
	Rounds    int           `json:"rounds"`
	Thoughts  int           `json:"thoughts"`
	StartTime string        `json:"start_time"`
	EndTime   string        `json:"end_time,omitempty"`
}

type SearchResponse struct {
	Query string        `json:"query"`
	Hits  []archive.Hit `json:"hits"`
}

// AgentUpdateRequest changes the fields that are set.
type AgentUpdateRequest struct {
	Active *bool   `json:"is_active,omitempty"`
	Model  *string `json:"model,omitempty"`
	Prompt *string `json:"prompt_template,omitempty"`
}

type ModelsResponse struct {
	Groups []catalog.Group `json:"groups"`
}

type PresetAppliedResponse struct {
	Preset  string   `json:"preset"`
	Changed []string `json:"changed"`
}

// SettingsRequest changes the fields that are set.
type SettingsRequest struct {
	APIKey            *string `json:"api_key,omitempty"`
	AutoAdvance       *bool   `json:"auto_advance,omitempty"`
	InterAgentDelayMs *int    `json:"inter_agent_delay_ms,omitempty"`
	ContinuousMode    *bool   `json:"continuous_mode,omitempty"`
}
