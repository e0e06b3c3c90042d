package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/voxtask/voxtask/internal/nlu"
	"github.com/voxtask/voxtask/internal/observe"
	"github.com/voxtask/voxtask/internal/resilience"
	"github.com/voxtask/voxtask/internal/session"
	"github.com/voxtask/voxtask/internal/taskstore"
)

// slotNewName holds the replacement name during a project rename. It is a
// conversation-only slot; the extractor never produces it.
const slotNewName = "new_name"

// slotUpdateValue is the pseudo-slot for a task update's target value. It is
// satisfied by any of status, priority, or due_date being present.
const slotUpdateValue = "update_value"

// Default confidence gates and the execution time budget.
const (
	DefaultExecuteThreshold = 0.8
	DefaultClarifyThreshold = 0.6
	DefaultActionTimeout    = 10 * time.Second
	DefaultFallbackTimeout  = 5 * time.Second
)

// Notifier receives state-change notifications for delivery to the user's
// live connections. Push must not block; delivery is best effort.
type Notifier interface {
	Push(userID string, n taskstore.Notification)
}

// Config assembles a [Dispatcher]. Store and Contexts are required; everything
// else is optional and degrades gracefully when absent.
type Config struct {
	// Store is the persistence collaborator for tasks and projects.
	Store taskstore.Store

	// Contexts holds per-user multi-turn conversation state.
	Contexts *session.Store

	// Fallback, when non-nil, refines low-confidence classifications.
	Fallback *nlu.LLMFallback

	// Titles, when non-nil, resolves misheard task names against stored
	// titles before a lookup is declared failed.
	Titles *nlu.TitleMatcher

	// Metrics, when non-nil, receives dispatch instrumentation.
	Metrics *observe.Metrics

	// Notifier, when non-nil, receives notifications for executed mutations.
	Notifier Notifier

	// ExecuteThreshold is the minimum confidence for immediate execution.
	// Default: 0.8.
	ExecuteThreshold float64

	// ClarifyThreshold is the minimum confidence to start a clarification
	// conversation. Below it the utterance is rejected. Default: 0.6.
	ClarifyThreshold float64

	// ActionTimeout bounds the persistence call of one executed command.
	// Default: 10s.
	ActionTimeout time.Duration

	// FallbackTimeout bounds one LLM fallback classification. Default: 5s.
	FallbackTimeout time.Duration

	// Clock overrides the time source. Used in tests.
	Clock func() time.Time
}

// Dispatcher routes utterances through classification, slot filling, and
// execution. One instance serves all users. Dispatches for the same user are
// serialised, even when the user holds several connections, so a second
// utterance never observes a half-processed conversation; different users
// proceed independently.
type Dispatcher struct {
	store    taskstore.Store
	contexts *session.Store
	fallback *nlu.LLMFallback
	breaker  *resilience.CircuitBreaker
	titles   *nlu.TitleMatcher
	metrics  *observe.Metrics
	notifier Notifier

	lockMu    sync.Mutex
	userLocks map[string]*sync.Mutex

	executeThreshold float64
	clarifyThreshold float64
	actionTimeout    time.Duration
	fallbackTimeout  time.Duration
	now              func() time.Time
}

// New creates a [Dispatcher] from cfg, applying documented defaults for zero
// values.
func New(cfg Config) *Dispatcher {
	if cfg.ExecuteThreshold <= 0 {
		cfg.ExecuteThreshold = DefaultExecuteThreshold
	}
	if cfg.ClarifyThreshold <= 0 {
		cfg.ClarifyThreshold = DefaultClarifyThreshold
	}
	if cfg.ActionTimeout <= 0 {
		cfg.ActionTimeout = DefaultActionTimeout
	}
	if cfg.FallbackTimeout <= 0 {
		cfg.FallbackTimeout = DefaultFallbackTimeout
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	d := &Dispatcher{
		store:            cfg.Store,
		contexts:         cfg.Contexts,
		userLocks:        make(map[string]*sync.Mutex),
		fallback:         cfg.Fallback,
		titles:           cfg.Titles,
		metrics:          cfg.Metrics,
		notifier:         cfg.Notifier,
		executeThreshold: cfg.ExecuteThreshold,
		clarifyThreshold: cfg.ClarifyThreshold,
		actionTimeout:    cfg.ActionTimeout,
		fallbackTimeout:  cfg.FallbackTimeout,
		now:              cfg.Clock,
	}
	if cfg.Fallback != nil {
		d.breaker = resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			Name: "llm-fallback",
		})
	}
	return d
}

// Dispatch handles one utterance for userID and returns the result to speak
// back. It never returns an error: every failure mode becomes an
// [ActionResult]. The persistence collaborator is called at most once per
// dispatch.
func (d *Dispatcher) Dispatch(ctx context.Context, userID string, utt Utterance) ActionResult {
	lock := d.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	start := d.now()
	res, outcome := d.dispatch(ctx, userID, utt)

	if d.metrics != nil {
		d.metrics.DispatchDuration.Record(ctx, d.now().Sub(start).Seconds())
		d.metrics.RecordOutcome(ctx, string(res.Intent), outcome)
	}
	slog.Debug("dispatch: handled utterance",
		"user", userID,
		"session", utt.SessionID,
		"heard_confidence", utt.Confidence,
		"intent", res.Intent,
		"confidence", res.Confidence,
		"outcome", outcome,
	)
	return res
}

// userLock returns the mutex serialising dispatches for userID. A user can
// hold several connections at once; without this, two utterances arriving on
// different connections could both read the same pending context and execute
// the same command twice.
func (d *Dispatcher) userLock(userID string) *sync.Mutex {
	d.lockMu.Lock()
	defer d.lockMu.Unlock()

	lock, ok := d.userLocks[userID]
	if !ok {
		lock = &sync.Mutex{}
		d.userLocks[userID] = lock
	}
	return lock
}

func (d *Dispatcher) dispatch(ctx context.Context, userID string, utt Utterance) (ActionResult, string) {
	text := strings.TrimSpace(utt.Text)
	if text == "" {
		return TranscriptionFailureResult(), "rejected"
	}

	if prior, ok := d.contexts.Get(userID); ok {
		return d.continueConversation(ctx, userID, prior, text)
	}

	if isCancel(text) {
		// Nothing pending; still acknowledge rather than guessing an intent.
		return ActionResult{
			Success:  true,
			Intent:   nlu.IntentUnknown,
			Response: "Okay, nothing to cancel.",
		}, "cancelled"
	}

	intent, confidence := nlu.Classify(text)
	source := "pattern"

	var llmEntities nlu.EntitySet
	if d.fallback != nil && confidence < d.executeThreshold {
		if refined, ok := d.refine(ctx, text); ok && refined.Confidence > confidence {
			intent, confidence = refined.Intent, refined.Confidence
			llmEntities = refined.Entities
			source = "llm"
		}
	}
	if d.metrics != nil {
		d.metrics.RecordClassification(ctx, string(intent), source)
	}

	if intent == nlu.IntentUnknown || confidence < d.clarifyThreshold {
		return ActionResult{
			Success:     false,
			Intent:      nlu.IntentUnknown,
			Confidence:  confidence,
			ErrorKind:   ErrClassificationLowConfidence,
			Response:    "Sorry, I didn't understand that. Here are some things you can say:",
			Suggestions: Suggestions(),
		}, "rejected"
	}

	entities := nlu.Extract(text, intent, d.now())
	for slot, value := range llmEntities {
		if _, ok := entities[slot]; !ok {
			entities[slot] = value
		}
	}

	missing := missingSlots(intent, entities)
	if confidence >= d.executeThreshold && len(missing) == 0 {
		return d.executeOnce(ctx, userID, intent, confidence, entities, text)
	}

	d.contexts.Set(userID, session.Context{
		Intent:       intent,
		Confidence:   confidence,
		Entities:     entities,
		LastActivity: d.now(),
		TurnCount:    1,
	})

	if len(missing) > 0 {
		slot := missing[0]
		return ActionResult{
			Success:      true,
			Intent:       intent,
			Confidence:   confidence,
			Entities:     entities,
			AwaitingSlot: slot,
			Response:     questionFor(intent, slot),
		}, "awaiting_slot"
	}

	// All slots present but confidence is mid-band: ask for confirmation
	// before touching anything.
	return ActionResult{
		Success:    true,
		Intent:     intent,
		Confidence: confidence,
		Entities:   entities,
		Response:   confirmPrompt(intent, entities),
	}, "awaiting_confirmation"
}

// continueConversation advances an in-progress multi-turn command. Answering
// a clarifying question counts as confirming the pending intent, so once the
// slot set is complete the command executes.
func (d *Dispatcher) continueConversation(ctx context.Context, userID string, prior session.Context, text string) (ActionResult, string) {
	if isCancel(text) {
		d.contexts.Clear(userID)
		return ActionResult{
			Success:  true,
			Intent:   prior.Intent,
			Response: "Okay, cancelled.",
		}, "cancelled"
	}

	entities := prior.Entities.Clone()
	for slot, value := range nlu.Extract(text, prior.Intent, d.now()) {
		// The extractor's implicit medium default must not clobber a priority
		// already collected on an earlier turn.
		if slot == nlu.SlotPriority && value == nlu.PriorityMedium {
			if _, ok := entities[slot]; ok {
				continue
			}
		}
		entities[slot] = value
	}

	missing := missingSlots(prior.Intent, entities)
	if len(missing) > 0 && isFreeTextSlot(missing[0]) && !isAffirmative(text) {
		// A bare reply to a clarifying question is the slot value itself.
		if v := answerSpan(text); v != "" {
			entities[missing[0]] = v
			missing = missingSlots(prior.Intent, entities)
		}
	}

	if len(missing) == 0 {
		return d.executeOnce(ctx, userID, prior.Intent, prior.Confidence, entities, text)
	}

	d.contexts.Set(userID, session.Context{
		Intent:       prior.Intent,
		Confidence:   prior.Confidence,
		Entities:     entities,
		LastActivity: d.now(),
		TurnCount:    prior.TurnCount + 1,
	})

	slot := missing[0]
	return ActionResult{
		Success:      true,
		Intent:       prior.Intent,
		Confidence:   prior.Confidence,
		Entities:     entities,
		AwaitingSlot: slot,
		Response:     questionFor(prior.Intent, slot),
	}, "awaiting_slot"
}

// executeOnce runs the command exactly once under the action timeout and
// clears the user's conversation context whether it succeeded or failed.
func (d *Dispatcher) executeOnce(ctx context.Context, userID string, intent nlu.Intent, confidence float64, entities nlu.EntitySet, text string) (ActionResult, string) {
	defer d.contexts.Clear(userID)

	var res ActionResult
	err := resilience.WithTimeout(ctx, d.actionTimeout, func(tctx context.Context) error {
		var execErr error
		res, execErr = d.execute(tctx, userID, intent, entities, text)
		return execErr
	})
	res.Intent = intent
	res.Confidence = confidence
	res.Entities = entities

	if err != nil {
		slog.Warn("dispatch: command failed",
			"user", userID,
			"intent", intent,
			"error", err,
		)
		if d.metrics != nil &&
			!errors.Is(err, taskstore.ErrNotFound) && !errors.Is(err, taskstore.ErrDuplicate) {
			d.metrics.RecordStoreError(ctx, string(intent))
		}
		res.Success = false
		res.ErrorKind = ErrActionExecution
		if res.Response == "" {
			res.Response = "Something went wrong while handling that. Please try again."
		}
		return res, "failed"
	}

	res.Success = true
	return res, "executed"
}

// refine consults the LLM fallback behind the circuit breaker and a timeout.
// Failures are logged and swallowed; the pattern result stands.
func (d *Dispatcher) refine(ctx context.Context, text string) (nlu.Classification, bool) {
	var refined nlu.Classification
	err := d.breaker.Execute(func() error {
		return resilience.WithTimeout(ctx, d.fallbackTimeout, func(tctx context.Context) error {
			var cerr error
			refined, cerr = d.fallback.Classify(tctx, text)
			return cerr
		})
	})
	if err != nil {
		slog.Debug("dispatch: llm fallback unavailable", "error", err)
		return nlu.Classification{}, false
	}
	if refined.Intent == nlu.IntentUnknown {
		return nlu.Classification{}, false
	}
	return refined, true
}

// ─── Slot bookkeeping ────────────────────────────────────────────────────────

// requiredSlotTable lists, per intent, the slots that must be present before
// execution, ordered by how important they are to ask about first.
var requiredSlotTable = map[nlu.Intent][]string{
	nlu.IntentCreateTask:    {nlu.SlotTaskName},
	nlu.IntentCompleteTask:  {nlu.SlotTaskName},
	nlu.IntentUpdateTask:    {nlu.SlotTaskName, slotUpdateValue},
	nlu.IntentAssignTask:    {nlu.SlotTaskName, nlu.SlotAssignee},
	nlu.IntentCreateProject: {nlu.SlotProjectName},
	nlu.IntentUpdateProject: {nlu.SlotProjectName, slotNewName},
}

// missingSlots returns the required slots absent from entities, in asking
// order. Queries, navigation, and help never have required slots.
func missingSlots(intent nlu.Intent, entities nlu.EntitySet) []string {
	var missing []string
	for _, slot := range requiredSlotTable[intent] {
		if slot == slotUpdateValue {
			if !hasUpdateValue(entities) {
				missing = append(missing, slot)
			}
			continue
		}
		if _, ok := entities[slot]; !ok {
			missing = append(missing, slot)
		}
	}
	return missing
}

// hasUpdateValue reports whether entities carries anything an update could
// apply.
func hasUpdateValue(entities nlu.EntitySet) bool {
	for _, slot := range []string{nlu.SlotStatus, nlu.SlotPriority, nlu.SlotDueDate} {
		if _, ok := entities[slot]; ok {
			return true
		}
	}
	return false
}

// isFreeTextSlot reports whether a bare reply can fill the slot verbatim.
// Dates, priorities, and statuses go through the extractor instead.
func isFreeTextSlot(slot string) bool {
	switch slot {
	case nlu.SlotTaskName, nlu.SlotProjectName, nlu.SlotAssignee, slotNewName:
		return true
	}
	return false
}

// questionFor returns the clarifying question for a missing slot.
func questionFor(intent nlu.Intent, slot string) string {
	switch slot {
	case nlu.SlotTaskName:
		if intent == nlu.IntentCreateTask {
			return "What should the task be called?"
		}
		return "Which task do you mean?"
	case nlu.SlotProjectName:
		if intent == nlu.IntentCreateProject {
			return "What should the project be called?"
		}
		return "Which project do you mean?"
	case slotNewName:
		return "What should the new name be?"
	case nlu.SlotAssignee:
		return "Who should it be assigned to?"
	case nlu.SlotDueDate:
		return "When is it due?"
	case nlu.SlotPriority:
		return "What priority should it have?"
	case slotUpdateValue:
		return "What would you like to change: the status, priority, or due date?"
	}
	return "Could you give me a bit more detail?"
}

// confirmPrompt asks the user to confirm a mid-confidence command whose slots
// are already complete.
func confirmPrompt(intent nlu.Intent, entities nlu.EntitySet) string {
	subject := entities[nlu.SlotTaskName]
	if subject == "" {
		subject = entities[nlu.SlotProjectName]
	}

	var action string
	switch intent {
	case nlu.IntentCreateTask:
		action = "create a task"
	case nlu.IntentCompleteTask:
		action = "complete a task"
	case nlu.IntentUpdateTask:
		action = "update a task"
	case nlu.IntentAssignTask:
		action = "assign a task"
	case nlu.IntentCreateProject:
		action = "create a project"
	case nlu.IntentUpdateProject:
		action = "update a project"
	case nlu.IntentQueryTasks:
		action = "list your tasks"
	case nlu.IntentQueryProjects:
		action = "list your projects"
	case nlu.IntentNavigate:
		action = "navigate"
	case nlu.IntentHelp:
		action = "see the command list"
	default:
		action = "do that"
	}

	if subject != "" {
		return "It sounds like you want to " + action + " (" + subject + "). Say yes to confirm, or cancel."
	}
	return "It sounds like you want to " + action + ". Say yes to confirm, or cancel."
}

// ─── Reply parsing ───────────────────────────────────────────────────────────

var cancelPhrases = map[string]struct{}{
	"cancel":     {},
	"never mind": {},
	"nevermind":  {},
	"forget it":  {},
	"stop":       {},
	"no":         {},
	"nope":       {},
}

var affirmativePhrases = map[string]struct{}{
	"yes":      {},
	"yeah":     {},
	"yep":      {},
	"sure":     {},
	"confirm":  {},
	"do it":    {},
	"go ahead": {},
}

func normalizeReply(text string) string {
	return strings.ToLower(strings.Trim(strings.TrimSpace(text), ".,!?"))
}

func isCancel(text string) bool {
	_, ok := cancelPhrases[normalizeReply(text)]
	return ok
}

func isAffirmative(text string) bool {
	_, ok := affirmativePhrases[normalizeReply(text)]
	return ok
}

var (
	// reAnswerTail trims qualifier clauses from a bare slot-filling reply,
	// mirroring how the extractor trims captured names.
	reAnswerTail   = regexp.MustCompile(`(?i)\s+(?:with\b|due\b|by\b|before\b|assigned\b|(?:urgent|high|medium|low)(?:\s+priority)?\b).*$`)
	reAnswerPrefix = regexp.MustCompile(`(?i)^(?:call\s+it|name\s+it|it'?s|make\s+it)\s+`)
)

// answerSpan extracts the slot value from a bare reply like "buy groceries
// due tomorrow" or "call it Website Redesign".
func answerSpan(text string) string {
	s := strings.TrimSpace(text)
	s = reAnswerPrefix.ReplaceAllString(s, "")
	s = reAnswerTail.ReplaceAllString(s, "")
	s = strings.Trim(s, " \t.,!?\"'")
	lower := strings.ToLower(s)
	for _, article := range []string{"a ", "an ", "the "} {
		if strings.HasPrefix(lower, article) {
			s = s[len(article):]
			break
		}
	}
	return strings.TrimSpace(s)
}
