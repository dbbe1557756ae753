package mindloop

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mohammad-safakhou/mindloop/internal/agents"
	"github.com/mohammad-safakhou/mindloop/internal/events"
	"github.com/mohammad-safakhou/mindloop/internal/parser"
	"github.com/mohammad-safakhou/mindloop/models"
	"github.com/mohammad-safakhou/mindloop/provider/openrouter"
)

// drive runs phases until the cycle waits, fails or stops being current.
func (o *Orchestrator) drive(ctx context.Context, t token) {
	log := o.logger.With(zap.String("cycle_id", t.cycleID))
	for {
		o.mu.Lock()
		if !o.liveLocked(t) {
			o.mu.Unlock()
			return
		}
		phase := o.current.Phase
		o.mu.Unlock()

		var err error
		switch phase {
		case models.PhaseAnalysis:
			err = o.analysis(ctx, t)
		case models.PhaseExecution:
			err = o.execution(ctx, t)
		case models.PhaseSynthesis:
			err = o.synthesis(ctx, t)
		case models.PhaseEvaluation:
			err = o.evaluation(ctx, t)
		default:
			o.mu.Lock()
			if o.liveLocked(t) {
				o.running = false
			}
			o.mu.Unlock()
			return
		}
		if err == nil {
			continue
		}
		if errors.Is(err, errStale) {
			log.Debug("discarding late result", zap.String("phase", string(phase)))
			return
		}
		o.fail(t, phase, err)
		return
	}
}

// coordinatorCall runs a coordinator request and re-checks the token.
func (o *Orchestrator) coordinatorCall(ctx context.Context, t token, prompt string, maxTokens int, temperature float32) (openrouter.Response, error) {
	coord, ok := o.registry.Get(agents.Coordinator)
	if !ok {
		return openrouter.Response{}, configErr(fmt.Errorf("%w: %s", agents.ErrUnknownAgent, agents.Coordinator))
	}
	resp, err := o.complete(ctx, agents.Coordinator, openrouter.Request{
		Model:        coord.ModelID,
		SystemPrompt: coord.PromptTemplate,
		UserPrompt:   prompt,
		MaxTokens:    maxTokens,
		Temperature:  temperature,
		Policy:       o.coordinatorPolicy,
	})
	o.mu.Lock()
	live := o.liveLocked(t)
	o.mu.Unlock()
	if !live {
		return openrouter.Response{}, errStale
	}
	return resp, err
}

func (o *Orchestrator) analysis(ctx context.Context, t token) error {
	workers := o.registry.ActiveWorkers()
	if len(workers) == 0 {
		return configErr(ErrNoActiveAgents)
	}

	o.mu.Lock()
	c := o.current
	in := analysisInput{
		topic:      c.Topic,
		workers:    workers,
		comments:   c.PendingComments(),
		round:      c.RoundNumber,
		structured: o.cfg.StructuredTasks,
	}
	if c.RoundNumber > 1 {
		in.previousSynthesis = c.Synthesis
	}
	o.setStatusLocked("The coordinator is analysing the topic")
	o.mu.Unlock()
	o.logger.Info("analysis", zap.String("cycle_id", t.cycleID), zap.Int("workers", len(workers)))

	resp, err := o.coordinatorCall(ctx, t, analysisPrompt(in), analysisTokens, coordinatorTemperature)
	if err != nil {
		return err
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.liveLocked(t) {
		return errStale
	}
	c = o.current
	c.IntermediateOutput = resp.Content
	o.thoughtLocked(c, agents.Coordinator, models.KindAnalysis, resp, c.Topic)
	c.ActiveAgents = make([]string, len(workers))
	for i, w := range workers {
		c.ActiveAgents[i] = w.Role
	}
	c.CompletedAgents = nil
	c.FailedAgents = nil
	o.setPhaseLocked(c, models.PhaseExecution)
	return nil
}

// execution runs every frozen role that has not been attempted yet, one at
// a time. Individual agent failures are recorded, not returned.
func (o *Orchestrator) execution(ctx context.Context, t token) error {
	attempted := 0
	lastFailed := false
	for {
		o.mu.Lock()
		if !o.liveLocked(t) {
			o.mu.Unlock()
			return errStale
		}
		c := o.current
		role, ok := nextRole(c)
		if !ok {
			o.mu.Unlock()
			break
		}
		analysis, topic := c.IntermediateOutput, c.Topic
		o.mu.Unlock()

		if attempted > 0 {
			if err := o.pacer.BetweenAgents(ctx, lastFailed); err != nil {
				return o.staleOr(t, err)
			}
		}
		attempted++
		failed, err := o.runAgent(ctx, t, role, analysis, topic)
		if err != nil {
			return err
		}
		lastFailed = failed
	}

	if err := o.compensate(ctx, t); err != nil {
		return err
	}
	if err := o.pacer.BeforeSynthesis(ctx); err != nil {
		return o.staleOr(t, err)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.liveLocked(t) {
		return errStale
	}
	o.setPhaseLocked(o.current, models.PhaseSynthesis)
	return nil
}

// runAgent executes one role. It reports whether the agent failed; the
// error is only set when the cycle went stale.
func (o *Orchestrator) runAgent(ctx context.Context, t token, role, analysis, topic string) (bool, error) {
	log := o.logger.With(zap.String("cycle_id", t.cycleID), zap.String("role", role))
	agent, ok := o.registry.Get(role)
	if !ok {
		o.markFailed(t, role)
		return true, nil
	}
	task := o.tasks.Extract(analysis, topic, []parser.Assignee{{Role: role, Name: agent.Name}})[role]

	o.mu.Lock()
	o.setStatusLocked(agent.Name + " is thinking")
	o.emitLocked(events.AgentStarted, role, task)
	o.mu.Unlock()

	resp, err := o.complete(ctx, role, openrouter.Request{
		Model:        agent.ModelID,
		SystemPrompt: agent.PromptTemplate,
		UserPrompt:   agentPrompt(topic, task),
		MaxTokens:    agentTokens,
		Temperature:  agentTemperature,
		Policy:       o.agentPolicy,
	})

	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.liveLocked(t) {
		return false, errStale
	}
	c := o.current
	if err != nil {
		log.Warn("agent failed", zap.String("model", agent.ModelID), zap.Error(err))
		c.FailedAgents = append(c.FailedAgents, role)
		o.metrics.AgentFailed(role)
		o.emitCycleLocked(c, events.AgentFailed, role, err.Error())
		return true, nil
	}
	o.thoughtLocked(c, role, models.KindExecution, resp, task)
	c.CompletedAgents = append(c.CompletedAgents, role)
	return false, nil
}

// markFailed records role as failed without calling it.
func (o *Orchestrator) markFailed(t token, role string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.liveLocked(t) {
		return
	}
	o.current.FailedAgents = append(o.current.FailedAgents, role)
	o.metrics.AgentFailed(role)
	o.emitCycleLocked(o.current, events.AgentFailed, role, agents.ErrUnknownAgent.Error())
}

// compensate runs once all agents were attempted: failed agents are
// deactivated, and when fewer than half worked the coordinator covers for
// them.
func (o *Orchestrator) compensate(ctx context.Context, t token) error {
	o.mu.Lock()
	if !o.liveLocked(t) {
		o.mu.Unlock()
		return errStale
	}
	c := o.current
	failed := append([]string(nil), c.FailedAgents...)
	working := len(c.CompletedAgents)
	total := len(c.ActiveAgents)
	needed := len(failed) > 0 && float64(working) < float64(total)/2 && !hasKind(c, models.KindCompensation)
	topic := c.Topic
	o.mu.Unlock()

	if len(failed) > 0 {
		for _, role := range failed {
			if err := o.registry.SetActive(role, false); err != nil {
				o.logger.Warn("deactivate agent", zap.String("role", role), zap.Error(err))
			}
		}
		o.commitLogged(ctx)
	}
	if !needed {
		return nil
	}

	names := make([]string, len(failed))
	for i, role := range failed {
		names[i] = o.agentName(role)
	}
	o.logger.Info("compensating failed agents", zap.String("cycle_id", t.cycleID), zap.Int("working", working), zap.Int("total", total))
	resp, err := o.coordinatorCall(ctx, t, compensationPrompt(topic, names), compensationTokens, agentTemperature)
	if errors.Is(err, errStale) {
		return err
	}
	if err != nil {
		o.logger.Warn("compensation failed", zap.String("cycle_id", t.cycleID), zap.Error(err))
		return nil
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.liveLocked(t) {
		return errStale
	}
	o.thoughtLocked(o.current, agents.Coordinator, models.KindCompensation, resp, topic)
	return nil
}

func (o *Orchestrator) synthesis(ctx context.Context, t token) error {
	o.mu.Lock()
	c := o.current
	var results []agentResult
	worker := false
	for _, th := range c.RoundThoughts(c.RoundNumber) {
		switch th.Kind {
		case models.KindExecution:
			worker = true
		case models.KindCompensation, models.KindChaos:
		default:
			continue
		}
		results = append(results, agentResult{name: o.agentName(th.AgentRole), reasoning: th.Reasoning, essence: th.Essence})
	}
	topic := c.Topic
	comments := c.PendingComments()
	o.setStatusLocked("The coordinator is synthesizing the results")
	o.mu.Unlock()
	if !worker {
		return ErrNothingToSynthesize
	}

	resp, err := o.coordinatorCall(ctx, t, synthesisPrompt(topic, results, comments), synthesisTokens, coordinatorTemperature)
	if err != nil {
		return err
	}

	o.mu.Lock()
	if !o.liveLocked(t) {
		o.mu.Unlock()
		return errStale
	}
	c = o.current
	th := models.AgentThought{
		ID:          o.newID(),
		AgentRole:   agents.Coordinator,
		Reasoning:   resp.Content,
		Essence:     parser.Truncate(resp.Content, parser.CoordinatorEssenceCap),
		Timestamp:   o.now(),
		CycleNumber: c.Number,
		RoundNumber: c.RoundNumber,
		Kind:        models.KindSynthesis,
		Confidence:  confidence(parser.StrategySections),
		ModelUsed:   resp.Model,
	}
	c.Append(th)
	o.emitCycleLocked(c, events.ThoughtAdded, agents.Coordinator, string(models.KindSynthesis))
	c.Synthesis = resp.Content

	if o.cfg.EvaluateCompleteness && c.RoundNumber < o.cfg.MaxRounds {
		o.setPhaseLocked(c, models.PhaseEvaluation)
		o.mu.Unlock()
		return nil
	}
	o.completeLocked(c)
	o.mu.Unlock()
	o.commitLogged(ctx)
	return nil
}

// evaluation asks the coordinator whether another round is worth it.
// Failures end the cycle normally.
func (o *Orchestrator) evaluation(ctx context.Context, t token) error {
	o.mu.Lock()
	c := o.current
	prompt := evaluationPrompt(c.Topic, c.Synthesis, c.RoundNumber, o.cfg.MaxRounds)
	o.setStatusLocked("The coordinator is evaluating completeness")
	o.mu.Unlock()

	resp, err := o.coordinatorCall(ctx, t, prompt, evaluationTokens, coordinatorTemperature)
	if errors.Is(err, errStale) {
		return err
	}

	o.mu.Lock()
	if !o.liveLocked(t) {
		o.mu.Unlock()
		return errStale
	}
	c = o.current
	if err != nil {
		o.logger.Warn("evaluation failed, completing cycle", zap.String("cycle_id", c.ID), zap.Error(err))
		o.completeLocked(c)
		o.mu.Unlock()
		o.commitLogged(ctx)
		return nil
	}

	o.thoughtLocked(c, agents.Coordinator, models.KindEvaluation, resp, c.Synthesis)
	c.ContinuationSuggestion = resp.Content
	v := parser.ParseVerdict(resp.Content)
	if v.Continue && v.RefinedTopic != "" && c.RoundNumber < o.cfg.MaxRounds && o.autoAdvance {
		o.nextRoundLocked(c, v.RefinedTopic)
		o.mu.Unlock()
		return nil
	}
	o.completeLocked(c)
	o.mu.Unlock()
	o.commitLogged(ctx)
	return nil
}

// completeLocked moves c to waiting, archives it and, in continuous mode,
// schedules the follow-up cycle.
func (o *Orchestrator) completeLocked(c *models.Cycle) {
	c.IsComplete = true
	c.Status = models.StatusCompleted
	c.EndTime = o.now()
	o.setPhaseLocked(c, models.PhaseWaiting)
	o.running = false
	o.cancelDrive = nil
	o.archiveLocked(c)
	o.emitCycleLocked(c, events.CycleCompleted, "", "")
	o.setStatusLocked(fmt.Sprintf("Cycle %d complete", c.Number))
	o.logger.Info("cycle completed",
		zap.String("cycle_id", c.ID),
		zap.Int("round", c.RoundNumber),
		zap.Int("thoughts", len(c.Thoughts)))

	if o.continuous {
		o.scheduleContinuationLocked(c)
	}
}

// scheduleContinuationLocked starts "Developing ideas: ..." after the
// continuous delay unless something else happened in the meantime.
func (o *Orchestrator) scheduleContinuationLocked(c *models.Cycle) {
	essence, _ := c.LatestEssence(agents.Coordinator)
	topic := "Developing ideas: " + parser.Truncate(essence, 100) + "..."
	cycleID := c.ID
	delay := o.cfg.ContinuousDelay
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-o.baseCtx.Done():
			return
		case <-timer.C:
		}
		o.mu.Lock()
		still := o.continuous && !o.running && o.current != nil && o.current.ID == cycleID
		o.mu.Unlock()
		if !still {
			return
		}
		if _, err := o.Start(o.baseCtx, topic); err != nil {
			o.logger.Warn("continuous mode start", zap.Error(err))
		}
	}()
}

// fail ends the cycle after an unrecoverable phase error: it is archived
// as failed and cleared.
func (o *Orchestrator) fail(t token, phase models.Phase, err error) {
	o.mu.Lock()
	if !o.liveLocked(t) {
		o.mu.Unlock()
		return
	}
	c := o.current
	o.endDriveLocked()
	o.inflight = 0
	o.activeAgent = ""
	c.Status = models.StatusFailed
	c.FailureReason = fmt.Sprintf("%s: %v", phase, err)
	c.EndTime = o.now()
	o.archiveLocked(c)
	o.emitCycleLocked(c, events.CycleFailed, "", c.FailureReason)
	o.current = nil
	o.setErrorLocked(userMessage(phase, err))
	o.logger.Error("cycle failed", zap.String("cycle_id", c.ID), zap.String("phase", string(phase)), zap.Error(err))
	o.mu.Unlock()

	// ctx belongs to the drive that was just cancelled.
	o.commitLogged(o.baseCtx)
}

func userMessage(phase models.Phase, err error) string {
	switch {
	case errors.Is(err, openrouter.ErrRateLimitExhausted):
		return "Rate limit exceeded. Wait a minute or switch to another model."
	case errors.Is(err, openrouter.ErrModelUnavailable):
		return "The selected model is unavailable. Pick another model in the settings."
	case errors.Is(err, openrouter.ErrTimeout):
		return "The model did not answer in time."
	case errors.Is(err, ErrNothingToSynthesize):
		return "No agent results to synthesize."
	}
	return fmt.Sprintf("Error during %s: %v", phase, err)
}

// staleOr maps a pacing error to errStale when the cycle is no longer live.
func (o *Orchestrator) staleOr(t token, err error) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.liveLocked(t) {
		return errStale
	}
	return err
}

// nextRole returns the first frozen role neither completed nor failed.
func nextRole(c *models.Cycle) (string, bool) {
	done := make(map[string]struct{}, len(c.CompletedAgents)+len(c.FailedAgents))
	for _, r := range c.CompletedAgents {
		done[r] = struct{}{}
	}
	for _, r := range c.FailedAgents {
		done[r] = struct{}{}
	}
	for _, r := range c.ActiveAgents {
		if _, ok := done[r]; !ok {
			return r, true
		}
	}
	return "", false
}

func hasKind(c *models.Cycle, k models.ThoughtKind) bool {
	for _, th := range c.RoundThoughts(c.RoundNumber) {
		if th.Kind == k {
			return true
		}
	}
	return false
}
