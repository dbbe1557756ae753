// Package mindloop runs cycles: the coordinator analyses a topic and hands
// out tasks, agents answer one after another, and the coordinator
// synthesizes and optionally asks for another round.
package mindloop

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mohammad-safakhou/mindloop/config"
	"github.com/mohammad-safakhou/mindloop/internal/agents"
	"github.com/mohammad-safakhou/mindloop/internal/archive"
	"github.com/mohammad-safakhou/mindloop/internal/catalog"
	"github.com/mohammad-safakhou/mindloop/internal/events"
	"github.com/mohammad-safakhou/mindloop/internal/parser"
	"github.com/mohammad-safakhou/mindloop/internal/store"
	"github.com/mohammad-safakhou/mindloop/models"
	"github.com/mohammad-safakhou/mindloop/provider/openrouter"
)

// Completer performs one chat completion with its own retry ladder.
type Completer interface {
	Complete(ctx context.Context, apiKey string, req openrouter.Request) (openrouter.Response, error)
}

// Metrics receives cycle-level counters.
type Metrics interface {
	CycleArchived(status string)
	AgentFailed(role string)
	PhaseEntered(phase string)
}

type nopMetrics struct{}

func (nopMetrics) CycleArchived(string) {}
func (nopMetrics) AgentFailed(string)   {}
func (nopMetrics) PhaseEntered(string)  {}

// Options wire an Orchestrator. Completer, Registry, Catalog and Archive are
// required.
type Options struct {
	Completer Completer
	Registry  *agents.Registry
	Catalog   *catalog.Catalog
	Archive   *archive.Archive
	Store     store.StateStore
	Pacer     Pacer
	Tasks     parser.TaskExtractor
	Events    events.Sink
	Metrics   Metrics
	Logger    *zap.Logger

	Cycle             config.CycleConfig
	AgentPolicy       openrouter.Policy
	CoordinatorPolicy openrouter.Policy
	// APIKey is used when the persisted state carries none.
	APIKey          string
	InterAgentDelay time.Duration

	Now   func() time.Time
	NewID func() string
}

// State is a read-only view for presentation.
type State struct {
	Current           *models.Cycle `json:"current"`
	Running           bool          `json:"running"`
	Loading           bool          `json:"loading"`
	ActiveAgent       string        `json:"active_agent,omitempty"`
	Error             string        `json:"error,omitempty"`
	StatusMessage     string        `json:"status_message,omitempty"`
	ContinuousMode    bool          `json:"continuous_mode"`
	AutoAdvance       bool          `json:"auto_advance"`
	InterAgentDelayMs int           `json:"inter_agent_delay_ms"`
	HasAPIKey         bool          `json:"has_api_key"`
	HistoryLen        int           `json:"history_len"`
}

// token identifies one drive of a cycle. Work started under a token whose
// generation is no longer current is discarded.
type token struct {
	cycleID string
	gen     uint64
}

// errStale marks work whose cycle stopped being current while it ran.
var errStale = errors.New("cycle no longer current")

// Orchestrator owns the current cycle and every intent on it. One per
// process; all methods are safe for concurrent use.
type Orchestrator struct {
	completer Completer
	registry  *agents.Registry
	catalog   *catalog.Catalog
	archive   *archive.Archive
	store     store.StateStore
	pacer     Pacer
	tasks     parser.TaskExtractor
	sink      events.Sink
	metrics   Metrics
	logger    *zap.Logger
	cfg       config.CycleConfig

	agentPolicy       openrouter.Policy
	coordinatorPolicy openrouter.Policy
	now               func() time.Time
	newID             func() string

	baseCtx    context.Context
	cancelBase context.CancelFunc
	wg         sync.WaitGroup
	persistMu  sync.Mutex

	mu              sync.Mutex
	current         *models.Cycle
	running         bool
	inflight        int
	activeAgent     string
	gen             uint64
	cancelDrive     context.CancelFunc
	apiKey          string
	autoAdvance     bool
	continuous      bool
	interAgentDelay time.Duration
	errMsg          string
	errAt           time.Time
	status          string
	statusAt        time.Time
}

func New(opts Options) (*Orchestrator, error) {
	if opts.Completer == nil || opts.Registry == nil || opts.Catalog == nil || opts.Archive == nil {
		return nil, fmt.Errorf("mindloop: completer, registry, catalog and archive are required")
	}
	o := &Orchestrator{
		completer:         opts.Completer,
		registry:          opts.Registry,
		catalog:           opts.Catalog,
		archive:           opts.Archive,
		store:             opts.Store,
		pacer:             opts.Pacer,
		tasks:             opts.Tasks,
		sink:              opts.Events,
		metrics:           opts.Metrics,
		logger:            opts.Logger,
		cfg:               opts.Cycle.Normalize(),
		agentPolicy:       opts.AgentPolicy,
		coordinatorPolicy: opts.CoordinatorPolicy,
		now:               opts.Now,
		newID:             opts.NewID,
		apiKey:            strings.TrimSpace(opts.APIKey),
		interAgentDelay:   opts.InterAgentDelay,
	}
	if o.pacer == nil {
		o.pacer = NoPacer{}
	}
	if o.tasks == nil {
		o.tasks = parser.SectionExtractor{}
	}
	if o.sink == nil {
		o.sink = events.Nop
	}
	if o.metrics == nil {
		o.metrics = nopMetrics{}
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.agentPolicy.MaxAttempts == 0 {
		o.agentPolicy = openrouter.AgentPolicy
	}
	if o.coordinatorPolicy.MaxAttempts == 0 {
		o.coordinatorPolicy = openrouter.CoordinatorPolicy
	}
	if o.now == nil {
		o.now = time.Now
	}
	if o.newID == nil {
		o.newID = uuid.NewString
	}
	if o.interAgentDelay <= 0 {
		o.interAgentDelay = 2 * time.Second
	}
	o.baseCtx, o.cancelBase = context.WithCancel(context.Background())
	return o, nil
}

// Load restores the persisted state. A missing state is not an error.
func (o *Orchestrator) Load(ctx context.Context) error {
	if o.store == nil {
		return nil
	}
	st, ok, err := o.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}
	if !ok {
		return nil
	}
	if err := o.archive.Restore(st.CycleHistory); err != nil {
		return err
	}
	if len(st.Agents) > 0 {
		o.registry.Restore(st.Agents)
	}
	o.catalog.SetCustom(st.CustomModels)

	o.mu.Lock()
	defer o.mu.Unlock()
	if k := strings.TrimSpace(st.APIKey); k != "" {
		o.apiKey = k
	}
	o.autoAdvance = st.AutoAdvance
	if st.InterAgentDelayMs > 0 {
		o.interAgentDelay = time.Duration(st.InterAgentDelayMs) * time.Millisecond
		o.applyDelayLocked()
	}
	o.logger.Info("state loaded",
		zap.Int("history", len(st.CycleHistory)),
		zap.Int("agents", len(st.Agents)),
		zap.Bool("api_key", o.apiKey != ""))
	return nil
}

// Wait blocks until background work has drained.
func (o *Orchestrator) Wait() { o.wg.Wait() }

// Close cancels background work and waits for it.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	o.gen++
	o.running = false
	if o.cancelDrive != nil {
		o.cancelDrive()
		o.cancelDrive = nil
	}
	o.mu.Unlock()
	o.cancelBase()
	o.wg.Wait()
}

func (o *Orchestrator) Snapshot() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	now := o.now()
	st := State{
		Current:           o.current.Clone(),
		Running:           o.running,
		Loading:           o.inflight > 0,
		ActiveAgent:       o.activeAgent,
		ContinuousMode:    o.continuous,
		AutoAdvance:       o.autoAdvance,
		InterAgentDelayMs: int(o.interAgentDelay / time.Millisecond),
		HasAPIKey:         o.apiKey != "",
		HistoryLen:        o.archive.Len(),
	}
	if o.errMsg != "" && now.Sub(o.errAt) < o.cfg.ErrorTTL {
		st.Error = o.errMsg
	}
	if o.status != "" && now.Sub(o.statusAt) < o.cfg.StatusTTL {
		st.StatusMessage = o.status
	}
	return st
}

// History returns the archived cycles.
func (o *Orchestrator) History() []*models.Cycle { return o.archive.List() }

// Start begins a new cycle on topic and runs it in the background.
// Failing preconditions leave everything untouched.
func (o *Orchestrator) Start(ctx context.Context, topic string) (*models.Cycle, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, configErr(ErrEmptyTopic)
	}

	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return nil, stateErr(ErrAlreadyRunning)
	}
	if o.apiKey == "" {
		o.setErrorLocked("Set an API key before starting a cycle")
		o.mu.Unlock()
		return nil, configErr(ErrMissingAPIKey)
	}
	if len(o.registry.ActiveWorkers()) == 0 {
		o.setErrorLocked("No active agents. Enable at least one agent in the settings.")
		o.mu.Unlock()
		return nil, configErr(ErrNoActiveAgents)
	}

	archivedPrev := false
	if prev := o.current; prev != nil && !o.archive.Contains(prev.ID) {
		o.stopCycleLocked(prev, "stopped")
		archivedPrev = true
	}

	c := models.NewCycle(o.newID(), o.archive.NextNumber(), topic, o.now())
	o.current = c
	o.errMsg = ""
	tok := o.beginDriveLocked()
	o.emitLocked(events.CycleStarted, "", c.Topic)
	o.metrics.PhaseEntered(string(c.Phase))
	o.setStatusLocked(fmt.Sprintf("Cycle %d started", c.Number))
	out := c.Clone()
	o.logger.Info("cycle started", zap.String("cycle_id", c.ID), zap.Int("number", c.Number))
	o.mu.Unlock()

	if archivedPrev {
		o.commitLogged(ctx)
	}
	o.spawnDrive(tok)
	return out, nil
}

// Pause halts the current cycle at the next phase boundary. In-flight work
// is cancelled and its result discarded; Resume re-drives the phase.
func (o *Orchestrator) Pause() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.current == nil {
		return stateErr(ErrNoCurrentCycle)
	}
	if !o.running {
		return nil
	}
	o.endDriveLocked()
	o.inflight = 0
	o.activeAgent = ""
	o.setStatusLocked("Paused")
	o.emitLocked(events.Paused, "", "")
	return nil
}

// Resume re-drives the phase the current cycle was paused in.
func (o *Orchestrator) Resume(ctx context.Context) error {
	o.mu.Lock()
	if o.current == nil {
		o.mu.Unlock()
		return stateErr(ErrNoCurrentCycle)
	}
	if o.running {
		o.mu.Unlock()
		return stateErr(ErrAlreadyRunning)
	}
	if o.current.Phase == models.PhaseWaiting {
		o.mu.Unlock()
		return stateErr(ErrInvalidPhase)
	}
	if o.apiKey == "" {
		o.mu.Unlock()
		return configErr(ErrMissingAPIKey)
	}
	tok := o.beginDriveLocked()
	o.setStatusLocked("Resumed")
	o.emitLocked(events.Resumed, "", "")
	o.mu.Unlock()

	o.spawnDrive(tok)
	return nil
}

// Stop archives whatever the current cycle holds and clears it. Without a
// current cycle it does nothing.
func (o *Orchestrator) Stop(ctx context.Context) error {
	o.mu.Lock()
	c := o.current
	if c == nil {
		o.mu.Unlock()
		return nil
	}
	o.endDriveLocked()
	o.inflight = 0
	o.activeAgent = ""
	status := models.StatusStopped
	if c.IsComplete {
		status = models.StatusCompleted
	}
	o.stopCycleLocked(c, status)
	o.current = nil
	o.setStatusLocked(fmt.Sprintf("Cycle %d stopped", c.Number))
	o.mu.Unlock()

	return o.commit(ctx)
}

// stopCycleLocked archives c with a summary line.
func (o *Orchestrator) stopCycleLocked(c *models.Cycle, status models.Status) {
	c.Status = status
	if c.EndTime.IsZero() {
		c.EndTime = o.now()
	}
	if c.Synthesis == "" {
		c.Synthesis = fmt.Sprintf("Cycle %d stopped by user. Processed %d thoughts.", c.Number, len(c.Thoughts.Thoughts()))
	}
	o.archiveLocked(c)
	o.emitCycleLocked(c, events.CycleStopped, "", c.Synthesis)
}

// Finalize completes the current cycle with the best conclusion it has and
// clears it.
func (o *Orchestrator) Finalize(ctx context.Context) (*models.Cycle, error) {
	o.mu.Lock()
	c := o.current
	if c == nil {
		o.mu.Unlock()
		return nil, stateErr(ErrNoCurrentCycle)
	}
	o.endDriveLocked()
	o.inflight = 0
	o.activeAgent = ""

	synthesis, ok := c.LatestEssence(agents.Coordinator)
	switch {
	case ok && strings.TrimSpace(synthesis) != "":
	case c.IntermediateOutput != "":
		synthesis = c.IntermediateOutput
	default:
		synthesis = fmt.Sprintf("Cycle %d finalized. Processed %d thoughts.", c.Number, len(c.Thoughts.Thoughts()))
	}
	c.Synthesis = synthesis
	c.IsComplete = true
	c.Phase = models.PhaseWaiting
	c.Status = models.StatusCompleted
	if c.EndTime.IsZero() {
		c.EndTime = o.now()
	}
	o.archiveLocked(c)
	o.emitCycleLocked(c, events.CycleCompleted, "", "finalized")
	o.current = nil
	out := c.Clone()
	o.mu.Unlock()

	return out, o.commit(ctx)
}

// AddComment appends a user comment to the current cycle. The coordinator
// sees it in the next analysis and synthesis prompts, the trickster in its
// next interjection.
func (o *Orchestrator) AddComment(text string) (models.UserComment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return models.UserComment{}, configErr(ErrEmptyComment)
	}
	o.mu.Lock()
	c := o.current
	if c == nil {
		o.mu.Unlock()
		return models.UserComment{}, stateErr(ErrNoCurrentCycle)
	}
	uc := models.UserComment{
		ID:          o.newID(),
		Content:     text,
		Timestamp:   o.now(),
		CycleNumber: c.Number,
		RoundNumber: c.RoundNumber,
	}
	c.Append(uc)
	o.emitLocked(events.CommentAdded, "", text)
	archived := o.rearchiveLocked(c)
	o.mu.Unlock()

	if archived {
		o.commitLogged(o.baseCtx)
	}
	return uc, nil
}

// TriggerChaos asks the trickster to disrupt the current cycle. It runs
// synchronously and leaves the phase untouched.
func (o *Orchestrator) TriggerChaos(ctx context.Context) (models.AgentThought, error) {
	o.mu.Lock()
	c := o.current
	if c == nil {
		o.mu.Unlock()
		return models.AgentThought{}, stateErr(ErrNoCurrentCycle)
	}
	if o.inflight > 0 {
		o.mu.Unlock()
		return models.AgentThought{}, stateErr(ErrBusy)
	}
	if o.apiKey == "" {
		o.mu.Unlock()
		return models.AgentThought{}, configErr(ErrMissingAPIKey)
	}
	trickster, ok := o.registry.Get(agents.Chaos)
	if !ok {
		o.mu.Unlock()
		return models.AgentThought{}, configErr(fmt.Errorf("%w: %s", agents.ErrUnknownAgent, agents.Chaos))
	}
	p := progress{
		topic:        c.Topic,
		phase:        c.Phase,
		round:        c.RoundNumber,
		intermediate: c.IntermediateOutput,
		lines:        thoughtLines(c.Thoughts.Thoughts(), o.agentName),
		comments:     c.Thoughts.Comments(),
	}
	cycleID := c.ID
	o.mu.Unlock()

	resp, err := o.complete(ctx, agents.Chaos, openrouter.Request{
		Model:        trickster.ModelID,
		SystemPrompt: trickster.PromptTemplate,
		UserPrompt:   chaosPrompt(p),
		MaxTokens:    chaosTokens,
		Temperature:  agentTemperature,
		Policy:       o.agentPolicy,
	})
	if err != nil {
		o.mu.Lock()
		o.setErrorLocked("The trickster could not join the cycle")
		o.mu.Unlock()
		return models.AgentThought{}, err
	}

	o.mu.Lock()
	c = o.current
	if c == nil || c.ID != cycleID {
		o.mu.Unlock()
		return models.AgentThought{}, stateErr(ErrNoCurrentCycle)
	}
	th := o.thoughtLocked(c, agents.Chaos, models.KindChaos, resp, "")
	archived := o.rearchiveLocked(c)
	o.mu.Unlock()

	if archived {
		o.commitLogged(ctx)
	}
	return th, nil
}

// RequestNextRound continues the current cycle with another round on
// refinedTopic (or the same topic when empty).
func (o *Orchestrator) RequestNextRound(ctx context.Context, refinedTopic string) error {
	o.mu.Lock()
	c := o.current
	if c == nil {
		o.mu.Unlock()
		return stateErr(ErrNoCurrentCycle)
	}
	if o.running {
		o.mu.Unlock()
		return stateErr(ErrAlreadyRunning)
	}
	if c.Phase != models.PhaseWaiting && c.Phase != models.PhaseEvaluation {
		o.mu.Unlock()
		return stateErr(ErrInvalidPhase)
	}
	if c.RoundNumber >= o.cfg.MaxRounds {
		o.mu.Unlock()
		return stateErr(ErrRoundLimit)
	}
	if o.apiKey == "" {
		o.mu.Unlock()
		return configErr(ErrMissingAPIKey)
	}
	if len(o.registry.ActiveWorkers()) == 0 {
		o.mu.Unlock()
		return configErr(ErrNoActiveAgents)
	}
	o.nextRoundLocked(c, refinedTopic)
	tok := o.beginDriveLocked()
	o.mu.Unlock()

	o.spawnDrive(tok)
	return nil
}

func (o *Orchestrator) nextRoundLocked(c *models.Cycle, refinedTopic string) {
	c.NextRound(strings.TrimSpace(refinedTopic))
	o.metrics.PhaseEntered(string(c.Phase))
	o.emitLocked(events.RoundStarted, "", c.Topic)
	o.logger.Info("next round", zap.String("cycle_id", c.ID), zap.Int("round", c.RoundNumber), zap.Int("total_rounds", c.TotalRounds))
}

// SuggestContinuation asks the coordinator for follow-up directions and
// stores them on the current cycle.
func (o *Orchestrator) SuggestContinuation(ctx context.Context) (string, error) {
	o.mu.Lock()
	c := o.current
	if c == nil {
		o.mu.Unlock()
		return "", stateErr(ErrNoCurrentCycle)
	}
	if o.apiKey == "" {
		o.mu.Unlock()
		return "", configErr(ErrMissingAPIKey)
	}
	coord, _ := o.registry.Get(agents.Coordinator)
	prompt := suggestionPrompt(c.Topic, c.IntermediateOutput, thoughtLines(c.Thoughts.Thoughts(), o.agentName))
	cycleID := c.ID
	o.mu.Unlock()

	resp, err := o.complete(ctx, agents.Coordinator, openrouter.Request{
		Model:        coord.ModelID,
		SystemPrompt: coord.PromptTemplate,
		UserPrompt:   prompt,
		MaxTokens:    suggestionTokens,
		Temperature:  agentTemperature,
		Policy:       o.coordinatorPolicy,
	})
	if err != nil {
		return "", err
	}

	o.mu.Lock()
	c = o.current
	if c == nil || c.ID != cycleID {
		o.mu.Unlock()
		return resp.Content, nil
	}
	c.ContinuationSuggestion = resp.Content
	archived := o.rearchiveLocked(c)
	o.mu.Unlock()
	if archived {
		o.commitLogged(ctx)
	}
	return resp.Content, nil
}

// StartContinuationCycle starts a new cycle on the topic named in
// suggestion, or in the current cycle's stored suggestion when empty.
func (o *Orchestrator) StartContinuationCycle(ctx context.Context, suggestion string) (*models.Cycle, error) {
	o.mu.Lock()
	c := o.current
	if c == nil {
		o.mu.Unlock()
		return nil, stateErr(ErrNoCurrentCycle)
	}
	if o.running {
		o.mu.Unlock()
		return nil, stateErr(ErrAlreadyRunning)
	}
	if strings.TrimSpace(suggestion) == "" {
		suggestion = c.ContinuationSuggestion
	}
	topic := parser.ContinuationTopic(suggestion, c.Topic)
	archived := false
	if !o.archive.Contains(c.ID) {
		status := models.StatusStopped
		if c.IsComplete {
			status = models.StatusCompleted
		}
		o.stopCycleLocked(c, status)
		archived = true
	}
	o.mu.Unlock()

	if archived {
		o.commitLogged(ctx)
	}
	return o.Start(ctx, topic)
}

// EvaluateCompleteness runs the completeness check on the current cycle in
// the background, as if synthesis had just finished.
func (o *Orchestrator) EvaluateCompleteness(ctx context.Context) error {
	o.mu.Lock()
	c := o.current
	if c == nil {
		o.mu.Unlock()
		return stateErr(ErrNoCurrentCycle)
	}
	if o.running {
		o.mu.Unlock()
		return stateErr(ErrAlreadyRunning)
	}
	if c.Phase != models.PhaseWaiting || c.Synthesis == "" {
		o.mu.Unlock()
		return stateErr(ErrInvalidPhase)
	}
	if o.apiKey == "" {
		o.mu.Unlock()
		return configErr(ErrMissingAPIKey)
	}
	o.setPhaseLocked(c, models.PhaseEvaluation)
	tok := o.beginDriveLocked()
	o.mu.Unlock()

	o.spawnDrive(tok)
	return nil
}

// EnableContinuousMode makes every completed cycle start a follow-up cycle.
func (o *Orchestrator) EnableContinuousMode(on bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.continuous = on
	o.emitLocked(events.SettingsChanged, "", fmt.Sprintf("continuous_mode=%t", on))
}

// beginDriveLocked marks the current cycle running under a fresh token.
func (o *Orchestrator) beginDriveLocked() token {
	if o.cancelDrive != nil {
		o.cancelDrive()
	}
	o.gen++
	o.running = true
	return token{cycleID: o.current.ID, gen: o.gen}
}

// endDriveLocked invalidates the running drive.
func (o *Orchestrator) endDriveLocked() {
	o.gen++
	o.running = false
	if o.cancelDrive != nil {
		o.cancelDrive()
		o.cancelDrive = nil
	}
}

func (o *Orchestrator) liveLocked(t token) bool {
	return o.running && o.gen == t.gen && o.current != nil && o.current.ID == t.cycleID
}

func (o *Orchestrator) spawnDrive(t token) {
	ctx, cancel := context.WithCancel(o.baseCtx)
	o.mu.Lock()
	if !o.liveLocked(t) {
		o.mu.Unlock()
		cancel()
		return
	}
	o.cancelDrive = cancel
	o.wg.Add(1)
	o.mu.Unlock()

	go func() {
		defer o.wg.Done()
		defer cancel()
		o.drive(ctx, t)
	}()
}

// complete runs one model call, tracking it as in flight.
func (o *Orchestrator) complete(ctx context.Context, role string, req openrouter.Request) (openrouter.Response, error) {
	o.mu.Lock()
	key := o.apiKey
	o.inflight++
	o.activeAgent = role
	o.mu.Unlock()

	resp, err := o.completer.Complete(ctx, key, req)

	o.mu.Lock()
	if o.inflight > 0 {
		o.inflight--
	}
	if o.inflight == 0 {
		o.activeAgent = ""
	}
	o.mu.Unlock()
	return resp, err
}

func (o *Orchestrator) agentName(role string) string {
	if a, ok := o.registry.Get(role); ok {
		return a.Name
	}
	return role
}

// thoughtLocked parses resp and appends the resulting thought to c.
func (o *Orchestrator) thoughtLocked(c *models.Cycle, role string, kind models.ThoughtKind, resp openrouter.Response, received string) models.AgentThought {
	res := parser.Parse(resp.Content, parser.EssenceCap(role == agents.Coordinator))
	th := models.AgentThought{
		ID:              o.newID(),
		AgentRole:       role,
		Reasoning:       res.Reasoning,
		Essence:         res.Essence,
		ReceivedContext: received,
		Timestamp:       o.now(),
		CycleNumber:     c.Number,
		RoundNumber:     c.RoundNumber,
		Kind:            kind,
		Confidence:      confidence(res.Strategy),
		ModelUsed:       resp.Model,
	}
	c.Append(th)
	o.emitCycleLocked(c, events.ThoughtAdded, role, string(kind))
	return th
}

// confidence rates how cleanly the answer followed the requested format.
func confidence(s parser.Strategy) float64 {
	switch s {
	case parser.StrategySections:
		return 0.9
	case parser.StrategyKeyword:
		return 0.8
	case parser.StrategyParagraphs:
		return 0.7
	case parser.StrategySentences:
		return 0.6
	default:
		return 0.5
	}
}

func (o *Orchestrator) setPhaseLocked(c *models.Cycle, p models.Phase) {
	c.Phase = p
	o.metrics.PhaseEntered(string(p))
	o.emitCycleLocked(c, events.PhaseChanged, "", "")
}

func (o *Orchestrator) setErrorLocked(msg string) {
	o.errMsg = msg
	o.errAt = o.now()
}

func (o *Orchestrator) setStatusLocked(msg string) {
	o.status = msg
	o.statusAt = o.now()
}

func (o *Orchestrator) emitLocked(t events.Type, role, msg string) {
	if o.current == nil {
		o.sink.Emit(events.Event{Type: t, Role: role, Message: msg, At: o.now()})
		return
	}
	o.emitCycleLocked(o.current, t, role, msg)
}

func (o *Orchestrator) emitCycleLocked(c *models.Cycle, t events.Type, role, msg string) {
	o.sink.Emit(events.Event{
		Type:        t,
		CycleID:     c.ID,
		Phase:       string(c.Phase),
		Round:       c.RoundNumber,
		TotalRounds: c.TotalRounds,
		Role:        role,
		Message:     msg,
		At:          o.now(),
	})
}

// archiveLocked stores a snapshot of c and counts it.
func (o *Orchestrator) archiveLocked(c *models.Cycle) {
	o.archiveSnapshotLocked(c)
	o.metrics.CycleArchived(string(c.Status))
	o.emitCycleLocked(c, events.CycleArchived, "", string(c.Status))
}

// rearchiveLocked refreshes the archived copy of c after it changed while
// waiting. It reports whether c had been archived.
func (o *Orchestrator) rearchiveLocked(c *models.Cycle) bool {
	if !o.archive.Contains(c.ID) {
		return false
	}
	o.archiveSnapshotLocked(c)
	return true
}

func (o *Orchestrator) archiveSnapshotLocked(c *models.Cycle) {
	if err := o.archive.Put(c); err != nil {
		o.logger.Error("archive cycle", zap.String("cycle_id", c.ID), zap.Error(err))
	}
}

// commit writes the whole persisted state.
func (o *Orchestrator) commit(ctx context.Context) error {
	if o.store == nil {
		return nil
	}
	o.persistMu.Lock()
	defer o.persistMu.Unlock()

	o.mu.Lock()
	st := store.State{
		CycleHistory:      o.archive.List(),
		APIKey:            o.apiKey,
		AutoAdvance:       o.autoAdvance,
		InterAgentDelayMs: int(o.interAgentDelay / time.Millisecond),
		Agents:            o.registry.Snapshot(),
		CustomModels:      o.catalog.Custom(),
	}
	o.mu.Unlock()

	if err := o.store.Save(ctx, st); err != nil {
		o.logger.Error("persist state", zap.Error(err))
		return fmt.Errorf("persist state: %w", err)
	}
	return nil
}

// commitLogged persists from paths that have no caller to report to.
func (o *Orchestrator) commitLogged(ctx context.Context) {
	if err := o.commit(ctx); err != nil {
		o.mu.Lock()
		o.setErrorLocked("Saving state failed")
		o.mu.Unlock()
	}
}
