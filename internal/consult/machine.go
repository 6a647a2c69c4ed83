// Package consult runs the consultation: it interprets answers, picks
// questions, judges completeness and drives each session through its stages.
package consult

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ashureev/campaign-consult/internal/domain"
	apperrors "github.com/ashureev/campaign-consult/internal/errors"
	"github.com/ashureev/campaign-consult/internal/metrics"
)

// Event drives a stage transition.
type Event string

// Machine events. EventWait ends a run until the user replies.
const (
	EventWait     Event = ""
	EventStart    Event = "start"
	EventAnswer   Event = "answer"
	EventClarify  Event = "clarify"
	EventAskNext  Event = "ask_next"
	EventValidate Event = "validate"
	EventReady    Event = "ready"
	EventMissing  Event = "missing"
	EventFinalize Event = "finalize"
	EventReset    Event = "reset"
	EventGuide    Event = "guide"
	EventAbort    Event = "abort"
)

// ErrIllegalTransition is returned for an event the current stage does not accept.
var ErrIllegalTransition = errors.New("illegal transition")

// defaultMaxSteps bounds the events processed in one Advance call.
const defaultMaxSteps = 32

// Outcome is what one Advance call produced.
type Outcome struct {
	SessionID          string             `json:"session_id"`
	Stage              domain.Stage       `json:"stage"`
	NextQuestion       *domain.Question   `json:"next_question,omitempty"`
	ProgressPercentage int                `json:"progress_percentage"`
	Errors             []string           `json:"errors,omitempty"`
	Notice             string             `json:"notice,omitempty"`
	Action             Action             `json:"action,omitempty"`
	Quality            *Quality           `json:"quality,omitempty"`
	Evaluation         *domain.Evaluation `json:"evaluation,omitempty"`
	Brief              *domain.Brief      `json:"brief,omitempty"`
}

// run is the state of one Advance call.
type run struct {
	s        *domain.Session
	answer   string
	pending  *domain.Question
	out      *Outcome
	errStart int
	reported []string // errors cleared by a reset during this run
}

type action func(ctx context.Context, r *run) (Event, error)

type transitionKey struct {
	from domain.Stage
	on   Event
}

type transition struct {
	next domain.Stage
	act  action
}

// Machine drives sessions through the consultation stages.
type Machine struct {
	processor   *Processor
	prioritizer *Prioritizer
	evaluator   Completeness
	recovery    RecoveryPolicy
	metrics     *metrics.Metrics
	logger      *slog.Logger
	now         func() time.Time
	maxSteps    int

	table map[transitionKey]transition
}

// MachineConfig holds the collaborators of a Machine. Nil fields get defaults.
type MachineConfig struct {
	Processor     *Processor
	Prioritizer   *Prioritizer
	Evaluator     Completeness
	MaxRecoveries int
	Metrics       *metrics.Metrics
	Logger        *slog.Logger
	Clock         func() time.Time
}

// NewMachine creates a machine.
func NewMachine(cfg MachineConfig) *Machine {
	m := &Machine{
		processor:   cfg.Processor,
		prioritizer: cfg.Prioritizer,
		evaluator:   cfg.Evaluator,
		recovery:    RecoveryPolicy{MaxRecoveries: cfg.MaxRecoveries},
		metrics:     cfg.Metrics,
		logger:      cfg.Logger,
		now:         cfg.Clock,
		maxSteps:    defaultMaxSteps,
	}
	if m.processor == nil {
		m.processor = NewProcessor(nil, 0)
	}
	if m.prioritizer == nil {
		m.prioritizer = NewPrioritizer(nil)
	}
	if m.evaluator == nil {
		m.evaluator = NewEvaluator()
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	if m.now == nil {
		m.now = time.Now
	}
	m.table = m.buildTable()
	return m
}

func (m *Machine) buildTable() map[transitionKey]transition {
	t := map[transitionKey]transition{
		{domain.StageInitial, EventStart}:       {domain.StageGathering, m.onStart},
		{domain.StageGathering, EventAnswer}:    {domain.StageGathering, m.onAnswer},
		{domain.StageGathering, EventClarify}:   {domain.StageGathering, m.onClarify},
		{domain.StageGathering, EventAskNext}:   {domain.StageGathering, m.onAskNext},
		{domain.StageGathering, EventValidate}:  {domain.StageValidating, m.onValidate},
		{domain.StageValidating, EventValidate}: {domain.StageValidating, m.onValidate},
		{domain.StageValidating, EventMissing}:  {domain.StageGathering, m.onMissing},
		{domain.StageValidating, EventReady}:    {domain.StageReady, m.onReady},
		{domain.StageReady, EventFinalize}:      {domain.StageCompleted, m.onFinalize},
	}
	for _, st := range domain.Stages {
		if st.IsTerminal() {
			continue
		}
		t[transitionKey{st, EventReset}] = transition{domain.StageGathering, m.onReset}
		t[transitionKey{st, EventGuide}] = transition{domain.StageGathering, m.onGuide}
		t[transitionKey{st, EventAbort}] = transition{domain.StageFailed, m.onAbort}
	}
	return t
}

// Accepts reports whether stage st has a transition for event ev.
func (m *Machine) Accepts(st domain.Stage, ev Event) bool {
	_, ok := m.table[transitionKey{st, ev}]
	return ok
}

// Next returns the stage a legal (st, ev) pair leads to.
func (m *Machine) Next(st domain.Stage, ev Event) (domain.Stage, bool) {
	tr, ok := m.table[transitionKey{st, ev}]
	return tr.next, ok
}

// Advance runs s until it waits for the user or ends. answer is nil when the
// caller has nothing new from the user. s is modified in place.
func (m *Machine) Advance(ctx context.Context, s *domain.Session, answer *string) (*Outcome, error) {
	if s.Stage.IsTerminal() {
		return nil, apperrors.NewSessionClosed(s.ID, string(s.Stage))
	}
	r := &run{s: s, out: &Outcome{SessionID: s.ID}, errStart: len(s.Errors)}
	if answer != nil {
		r.answer = *answer
	}

	var ev Event
	if err := s.Validate(); err != nil {
		ev = m.recoverFrom(r, EventWait, err)
	} else {
		ev = m.startEvent(s, answer != nil)
	}
	if err := m.loop(ctx, r, ev); err != nil {
		return nil, err
	}

	out := r.out
	out.Stage = s.Stage
	if t := s.OpenTurn(); t != nil {
		out.NextQuestion = &domain.Question{Text: t.Question, Type: t.Type, Kind: t.Kind}
	}
	out.ProgressPercentage = Percentage(s)
	if errs := append(r.reported, s.Errors[r.errStart:]...); len(errs) > 0 {
		out.Errors = errs
	}
	if out.Brief == nil && s.Brief != nil {
		out.Brief = s.Brief
	}
	return out, nil
}

func (m *Machine) startEvent(s *domain.Session, hasAnswer bool) Event {
	switch s.Stage {
	case domain.StageInitial:
		return EventStart
	case domain.StageGathering:
		if hasAnswer {
			return EventAnswer
		}
		if s.OpenTurn() != nil {
			return EventWait
		}
		return EventAskNext
	case domain.StageValidating:
		return EventValidate
	case domain.StageReady:
		return EventFinalize
	default:
		return EventWait
	}
}

func (m *Machine) loop(ctx context.Context, r *run, ev Event) error {
	s := r.s
	for steps := 0; ev != EventWait && !s.Stage.IsTerminal(); steps++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if steps >= m.maxSteps {
			s.AddError(fmt.Sprintf("%s: no progress after %d steps", ErrorStateCorruption, steps))
			s.SetStage(domain.StageFailed, string(EventAbort), m.now())
			m.metrics.Finished(string(domain.StageFailed), false)
			return nil
		}

		tr, ok := m.table[transitionKey{s.Stage, ev}]
		if !ok {
			ev = m.recoverFrom(r, EventWait, fmt.Errorf("%w: %s on %s", ErrIllegalTransition, s.Stage, ev))
			continue
		}
		next, err := tr.act(ctx, r)
		if err != nil {
			ev = m.recoverFrom(r, ev, err)
			continue
		}
		m.logger.Debug("transition", "session_id", s.ID, "from", s.Stage, "event", ev, "to", tr.next)
		s.SetStage(tr.next, string(ev), m.now())
		ev = next
	}
	return nil
}

// recoverFrom records err and returns the event that continues the run.
func (m *Machine) recoverFrom(r *run, failed Event, err error) Event {
	s := r.s
	kind := Classify(err)
	act := m.recovery.Decide(s, kind)
	s.Recoveries++
	s.AddError(fmt.Sprintf("%s: %v", kind, err))
	m.metrics.Recovered(string(kind), string(act))
	m.logger.Warn("recovering consultation", "session_id", s.ID, "stage", s.Stage, "kind", kind, "action", act, "error", err)

	switch act {
	case RecoveryEscalate:
		return EventAbort
	case RecoveryReset:
		return EventReset
	case RecoveryGuidance:
		return EventGuide
	default:
		if failed == EventWait {
			return EventReset
		}
		return failed
	}
}

func (m *Machine) ask(s *domain.Session, q domain.Question) error {
	if err := s.Ask(q, m.now()); err != nil {
		return err
	}
	m.metrics.QuestionAsked(string(q.Type), string(q.Kind))
	return nil
}

func (m *Machine) onStart(_ context.Context, r *run) (Event, error) {
	s := r.s
	found, errs := m.processor.registry.Initial(s.UserInput)
	for _, c := range found {
		s.Intent.Merge(c.Field, c.Value, c.Confidence)
	}
	for _, err := range errs {
		s.AddError(failureIssue(err))
	}
	q, ok := m.prioritizer.Next(s)
	if !ok || s.BudgetLeft() == 0 {
		return EventValidate, nil
	}
	if err := m.ask(s, q); err != nil {
		return EventWait, err
	}
	return EventWait, nil
}

func (m *Machine) onAnswer(_ context.Context, r *run) (Event, error) {
	s := r.s
	res := m.processor.Process(s, r.answer, m.now())
	r.out.Quality = &res.Quality
	r.out.Action = res.Action
	for _, issue := range res.Quality.Issues {
		if strings.HasPrefix(issue, "extraction_failed") {
			s.AddError(issue)
		}
	}

	switch res.Action {
	case ActionRequestResponse:
		r.out.Notice = "Please share an answer so we can continue."
		return EventWait, nil
	case ActionClarify:
		return EventClarify, nil
	case ActionValidate:
		return EventValidate, nil
	}
	if s.BudgetLeft() == 0 {
		return EventValidate, nil
	}
	return EventAskNext, nil
}

func (m *Machine) onClarify(_ context.Context, r *run) (Event, error) {
	s := r.s
	if s.BudgetLeft() == 0 {
		return EventValidate, nil
	}
	if len(s.Turns) == 0 {
		return EventAskNext, nil
	}
	qt := s.Turns[len(s.Turns)-1].Type
	if s.Clarifications(qt) >= m.prioritizer.MaxClarifications() {
		return EventAskNext, nil
	}
	if err := m.ask(s, m.prioritizer.Clarify(s, qt)); err != nil {
		return EventWait, err
	}
	return EventWait, nil
}

func (m *Machine) onAskNext(_ context.Context, r *run) (Event, error) {
	s := r.s
	if s.OpenTurn() != nil {
		return EventWait, nil
	}
	if s.BudgetLeft() == 0 {
		return EventValidate, nil
	}
	q, ok := m.prioritizer.Next(s)
	if !ok {
		return EventValidate, nil
	}
	if err := m.ask(s, q); err != nil {
		return EventWait, err
	}
	return EventWait, nil
}

func (m *Machine) onValidate(ctx context.Context, r *run) (Event, error) {
	s := r.s
	ev, err := m.evaluator.Evaluate(ctx, s)
	if err != nil {
		return EventWait, err
	}

	if !ev.HasEnoughInfo {
		if s.OpenTurn() != nil {
			r.pending = nil
		} else if q, ok := m.lookahead(s, ev.MissingCritical); ok {
			r.pending = &q
		} else {
			ev.HasEnoughInfo = true
			ev.Forced = true
			ev.Reasoning += "; no further questions available"
		}
	}

	s.Evaluation = &ev
	s.MissingCritical = append([]domain.Field(nil), ev.MissingCritical...)
	r.out.Evaluation = &ev
	if ev.HasEnoughInfo {
		return EventReady, nil
	}
	return EventMissing, nil
}

// lookahead finds the question a missing verdict would ask.
func (m *Machine) lookahead(s *domain.Session, missing []domain.Field) (domain.Question, bool) {
	if s.BudgetLeft() == 0 {
		return domain.Question{}, false
	}
	for _, f := range missing {
		if q, ok := m.prioritizer.Targeted(s, f); ok {
			return q, true
		}
	}
	return m.prioritizer.Next(s)
}

func (m *Machine) onMissing(_ context.Context, r *run) (Event, error) {
	if r.pending == nil || r.s.OpenTurn() != nil {
		return EventWait, nil
	}
	q := *r.pending
	r.pending = nil
	if err := m.ask(r.s, q); err != nil {
		return EventWait, err
	}
	return EventWait, nil
}

func (m *Machine) onReady(_ context.Context, r *run) (Event, error) {
	r.s.HasEnoughInfo = true
	return EventFinalize, nil
}

func (m *Machine) onFinalize(_ context.Context, r *run) (Event, error) {
	s := r.s
	b := Finalize(s, m.now())
	s.Brief = b
	s.FinalSummary = b.Summary
	r.out.Brief = b
	forced := s.Evaluation != nil && s.Evaluation.Forced
	m.metrics.Finished(string(domain.StageCompleted), forced)
	return EventWait, nil
}

func (m *Machine) onReset(_ context.Context, r *run) (Event, error) {
	s := r.s
	for _, fix := range s.Repair(m.now()) {
		m.logger.Info("repaired session", "session_id", s.ID, "fix", fix)
	}
	// Recoveries keeps the count; the session starts over with a clean slate.
	r.reported = append(r.reported, s.Errors[r.errStart:]...)
	s.Errors = nil
	r.errStart = 0
	r.out.Notice = "Let's pick up where we left off."
	if s.OpenTurn() != nil {
		return EventWait, nil
	}
	return EventAskNext, nil
}

func (m *Machine) onGuide(_ context.Context, r *run) (Event, error) {
	s := r.s
	if s.OpenTurn() != nil {
		return EventWait, nil
	}
	if s.BudgetLeft() == 0 || s.Asked(domain.QuestionProductService) {
		return EventAskNext, nil
	}
	if err := m.ask(s, m.prioritizer.Guidance()); err != nil {
		return EventWait, err
	}
	return EventWait, nil
}

func (m *Machine) onAbort(_ context.Context, r *run) (Event, error) {
	m.metrics.Finished(string(domain.StageFailed), false)
	r.out.Notice = "Sorry, this consultation could not continue. Please start a new one."
	return EventWait, nil
}
