package dispatch_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/voxtask/voxtask/internal/dispatch"
	"github.com/voxtask/voxtask/internal/nlu"
	"github.com/voxtask/voxtask/internal/session"
	"github.com/voxtask/voxtask/internal/taskstore"
	storemock "github.com/voxtask/voxtask/internal/taskstore/mock"
	"github.com/voxtask/voxtask/pkg/provider/llm"
	llmmock "github.com/voxtask/voxtask/pkg/provider/llm/mock"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.t = c.t.Add(d)
}

type fakeNotifier struct {
	pushed []taskstore.Notification
}

func (n *fakeNotifier) Push(_ string, notif taskstore.Notification) {
	n.pushed = append(n.pushed, notif)
}

// harness bundles a dispatcher with its collaborators so tests can inspect
// both sides of a dispatch.
type harness struct {
	d        *dispatch.Dispatcher
	store    *storemock.Store
	contexts *session.Store
	clock    *fakeClock
	notifier *fakeNotifier
}

func newHarness(t *testing.T, mutate func(*dispatch.Config)) *harness {
	t.Helper()

	clock := &fakeClock{t: time.Date(2026, time.March, 4, 9, 0, 0, 0, time.UTC)}
	store := &storemock.Store{}
	contexts := session.NewStore(5*time.Minute, 10, session.WithClock(clock.Now))
	notifier := &fakeNotifier{}

	cfg := dispatch.Config{
		Store:    store,
		Contexts: contexts,
		Notifier: notifier,
		Clock:    clock.Now,
	}
	if mutate != nil {
		mutate(&cfg)
	}

	return &harness{
		d:        dispatch.New(cfg),
		store:    store,
		contexts: contexts,
		clock:    clock,
		notifier: notifier,
	}
}

func (h *harness) say(text string) dispatch.ActionResult {
	return h.d.Dispatch(context.Background(), "u1", dispatch.Utterance{Text: text})
}

func TestDispatch_HighConfidenceCreateExecutesOnce(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)

	res := h.say("Create a task called Review proposal with high priority due tomorrow")

	if !res.Success {
		t.Fatalf("result = %+v, want success", res)
	}
	if res.Intent != nlu.IntentCreateTask {
		t.Errorf("intent = %q, want create_task", res.Intent)
	}
	if got := h.store.CallsTo("CreateTask"); got != 1 {
		t.Errorf("CreateTask calls = %d, want exactly 1", got)
	}
	if h.contexts.Len() != 0 {
		t.Errorf("context count = %d, want 0 after execution", h.contexts.Len())
	}
	want := `Created task "Review proposal" with high priority, due 2026-03-05.`
	if res.Response != want {
		t.Errorf("response = %q, want %q", res.Response, want)
	}
	if res.Payload == nil || res.Payload.Task == nil || res.Payload.Task.Title != "Review proposal" {
		t.Errorf("payload = %+v, want created task", res.Payload)
	}
	if len(h.notifier.pushed) != 1 {
		t.Errorf("pushed notifications = %d, want 1", len(h.notifier.pushed))
	}
}

func TestDispatch_LowConfidenceRejectsWithoutSideEffects(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)

	res := h.say("the weather is quite nice today isn't it")

	if res.Success {
		t.Fatalf("result = %+v, want rejection", res)
	}
	if res.ErrorKind != dispatch.ErrClassificationLowConfidence {
		t.Errorf("error kind = %q, want %q", res.ErrorKind, dispatch.ErrClassificationLowConfidence)
	}
	if len(res.Suggestions) == 0 {
		t.Error("suggestions are empty, want example commands")
	}
	if len(h.store.Calls) != 0 {
		t.Errorf("store calls = %v, want none", h.store.Calls)
	}
	if h.contexts.Len() != 0 {
		t.Errorf("context count = %d, want 0 for rejected utterance", h.contexts.Len())
	}
}

func TestDispatch_MultiTurnSlotFilling(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)

	first := h.say("create a new task")
	if !first.Success {
		t.Fatalf("first turn = %+v, want success", first)
	}
	if first.AwaitingSlot != nlu.SlotTaskName {
		t.Fatalf("awaiting slot = %q, want task_name", first.AwaitingSlot)
	}
	if first.Response != "What should the task be called?" {
		t.Errorf("clarifying question = %q", first.Response)
	}
	if got := h.store.CallsTo("CreateTask"); got != 0 {
		t.Fatalf("CreateTask calls after first turn = %d, want 0", got)
	}
	if h.contexts.Len() != 1 {
		t.Fatalf("context count = %d, want 1 while awaiting a slot", h.contexts.Len())
	}

	second := h.say("Buy groceries")
	if !second.Success {
		t.Fatalf("second turn = %+v, want success", second)
	}
	if got := h.store.CallsTo("CreateTask"); got != 1 {
		t.Errorf("CreateTask calls = %d, want exactly 1", got)
	}
	if second.Response != `Created task "Buy groceries".` {
		t.Errorf("response = %q", second.Response)
	}
	if h.contexts.Len() != 0 {
		t.Errorf("context count = %d, want 0 after execution", h.contexts.Len())
	}
}

func TestDispatch_PriorityFromEarlierTurnSurvivesSlotFill(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)

	h.say("create an urgent task")
	res := h.say("File the tax return")

	if !res.Success {
		t.Fatalf("result = %+v, want success", res)
	}
	if res.Payload == nil || res.Payload.Task == nil {
		t.Fatalf("payload = %+v, want created task", res.Payload)
	}
	if res.Payload.Task.Priority != taskstore.PriorityUrgent {
		t.Errorf("priority = %q, want urgent from the first turn", res.Payload.Task.Priority)
	}
}

func TestDispatch_CancelClearsPendingConversation(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)

	h.say("create a new task")
	res := h.say("never mind")

	if !res.Success {
		t.Fatalf("result = %+v, want neutral success", res)
	}
	if res.Response != "Okay, cancelled." {
		t.Errorf("response = %q", res.Response)
	}
	if h.contexts.Len() != 0 {
		t.Errorf("context count = %d, want 0 after cancel", h.contexts.Len())
	}
	if got := h.store.CallsTo("CreateTask"); got != 0 {
		t.Errorf("CreateTask calls = %d, want 0", got)
	}
}

func TestDispatch_CancelWithoutPendingConversation(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)

	res := h.say("cancel")

	if !res.Success {
		t.Fatalf("result = %+v, want success", res)
	}
	if len(h.store.Calls) != 0 {
		t.Errorf("store calls = %v, want none", h.store.Calls)
	}
}

func TestDispatch_ExpiredContextIsInvisible(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)

	h.say("create a new task")
	h.clock.Advance(6 * time.Minute)

	// The slot-filling answer arrives after the window; it must be treated
	// as a brand new utterance, which on its own classifies as nothing.
	res := h.say("Buy groceries")

	if res.Success {
		t.Fatalf("result = %+v, want rejection of the orphaned answer", res)
	}
	if res.ErrorKind != dispatch.ErrClassificationLowConfidence {
		t.Errorf("error kind = %q, want low confidence", res.ErrorKind)
	}
	if got := h.store.CallsTo("CreateTask"); got != 0 {
		t.Errorf("CreateTask calls = %d, want 0", got)
	}
}

func TestDispatch_MidConfidenceAsksForConfirmation(t *testing.T) {
	t.Parallel()
	// With a stricter execute gate, a two-keyword match lands in the
	// clarification band even though its slots are complete.
	h := newHarness(t, func(cfg *dispatch.Config) {
		cfg.ExecuteThreshold = 0.85
	})
	h.store.Tasks = []taskstore.Task{{ID: "t1", UserID: "u1", Title: "report"}}

	first := h.say("Finish the report")
	if !first.Success {
		t.Fatalf("first turn = %+v, want success", first)
	}
	if first.AwaitingSlot != "" {
		t.Fatalf("awaiting slot = %q, want confirmation prompt instead", first.AwaitingSlot)
	}
	if !strings.Contains(first.Response, "Say yes to confirm") {
		t.Errorf("response = %q, want confirmation prompt", first.Response)
	}
	if got := h.store.CallsTo("UpdateTask"); got != 0 {
		t.Fatalf("UpdateTask calls after first turn = %d, want 0", got)
	}

	second := h.say("yes")
	if !second.Success {
		t.Fatalf("confirmation turn = %+v, want success", second)
	}
	if got := h.store.CallsTo("UpdateTask"); got != 1 {
		t.Errorf("UpdateTask calls = %d, want exactly 1", got)
	}
	if second.Response != `Marked "report" as complete.` {
		t.Errorf("response = %q", second.Response)
	}
}

func TestDispatch_AssignTask(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	h.store.Tasks = []taskstore.Task{{ID: "t1", UserID: "u1", Title: "budget review"}}

	res := h.say("Assign the budget review to Alice")

	if !res.Success {
		t.Fatalf("result = %+v, want success", res)
	}
	if res.Response != `Assigned "budget review" to Alice.` {
		t.Errorf("response = %q", res.Response)
	}
	if got := h.store.CallsTo("UpdateTask"); got != 1 {
		t.Errorf("UpdateTask calls = %d, want 1", got)
	}
}

func TestDispatch_StoreFailureClearsContextAndReports(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	h.store.Err = errors.New("connection reset")

	res := h.say("Mark the grocery shopping task as complete")

	if res.Success {
		t.Fatalf("result = %+v, want failure", res)
	}
	if res.ErrorKind != dispatch.ErrActionExecution {
		t.Errorf("error kind = %q, want %q", res.ErrorKind, dispatch.ErrActionExecution)
	}
	if res.Response == "" {
		t.Error("response is empty, want a retry invitation")
	}
	if h.contexts.Len() != 0 {
		t.Errorf("context count = %d, want 0 after a failed execution", h.contexts.Len())
	}
	if got := h.store.CallsTo("UpdateTask"); got != 0 {
		t.Errorf("UpdateTask calls = %d, want 0 when lookup already failed", got)
	}
}

func TestDispatch_UnknownTaskNameReportsNotFound(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)

	res := h.say("Mark the grocery shopping task as complete")

	if res.Success {
		t.Fatalf("result = %+v, want failure", res)
	}
	if res.ErrorKind != dispatch.ErrActionExecution {
		t.Errorf("error kind = %q, want action execution error", res.ErrorKind)
	}
	if !strings.Contains(res.Response, "couldn't find a task") {
		t.Errorf("response = %q, want a not-found explanation", res.Response)
	}
}

func TestDispatch_PhoneticTitleResolution(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{t: time.Date(2026, time.March, 4, 9, 0, 0, 0, time.UTC)}
	store := taskstore.NewMemoryStore()
	contexts := session.NewStore(5*time.Minute, 10, session.WithClock(clock.Now))
	d := dispatch.New(dispatch.Config{
		Store:    store,
		Contexts: contexts,
		Titles:   nlu.NewTitleMatcher(),
		Clock:    clock.Now,
	})

	ctx := context.Background()
	if _, err := store.CreateTask(ctx, taskstore.Task{UserID: "u1", Title: "Buy groceries"}); err != nil {
		t.Fatalf("seed task: %v", err)
	}

	res := d.Dispatch(ctx, "u1", dispatch.Utterance{Text: "Mark by grocery's as done"})

	if !res.Success {
		t.Fatalf("result = %+v, want success via phonetic resolution", res)
	}
	if !strings.Contains(res.Response, "Buy groceries") {
		t.Errorf("response = %q, want the corrected title", res.Response)
	}

	stored, err := store.FindTaskByTitle(ctx, "u1", "Buy groceries")
	if err != nil {
		t.Fatalf("find task after completion: %v", err)
	}
	if stored.Status != taskstore.StatusCompleted {
		t.Errorf("status = %q, want completed", stored.Status)
	}
}

func TestDispatch_DuplicateProjectIsFriendlyFailure(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	h.store.CreateErr = taskstore.ErrDuplicate

	res := h.say("Create a project called Apollo")

	if res.Success {
		t.Fatalf("result = %+v, want failure", res)
	}
	if res.Response != `You already have a project called "Apollo".` {
		t.Errorf("response = %q", res.Response)
	}
}

func TestDispatch_QueryTasksListsTitles(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	h.store.Tasks = []taskstore.Task{
		{ID: "t1", UserID: "u1", Title: "Write minutes"},
		{ID: "t2", UserID: "u1", Title: "Book flights"},
	}

	res := h.say("show my tasks")

	if !res.Success {
		t.Fatalf("result = %+v, want success", res)
	}
	if got := h.store.CallsTo("QueryTasks"); got != 1 {
		t.Errorf("QueryTasks calls = %d, want 1", got)
	}
	want := `You have 2 tasks: "Write minutes" and "Book flights".`
	if res.Response != want {
		t.Errorf("response = %q, want %q", res.Response, want)
	}
	if res.Payload == nil || len(res.Payload.Tasks) != 2 {
		t.Errorf("payload = %+v, want both tasks", res.Payload)
	}
}

func TestDispatch_HelpReturnsCatalog(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)

	res := h.say("help")

	if !res.Success {
		t.Fatalf("result = %+v, want success", res)
	}
	if res.Payload == nil || len(res.Payload.Commands) == 0 {
		t.Fatalf("payload = %+v, want command catalog", res.Payload)
	}
	if len(h.store.Calls) != 0 {
		t.Errorf("store calls = %v, want none for help", h.store.Calls)
	}
}

func TestDispatch_NavigateResolvesTarget(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)

	res := h.say("go to the projects page")

	if !res.Success {
		t.Fatalf("result = %+v, want success", res)
	}
	if res.Payload == nil || res.Payload.Navigation != "projects" {
		t.Errorf("payload = %+v, want navigation target projects", res.Payload)
	}
	if len(h.store.Calls) != 0 {
		t.Errorf("store calls = %v, want none for navigation", h.store.Calls)
	}
}

func TestDispatch_EmptyTranscriptionIsHandled(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)

	res := h.say("   ")

	if res.Success {
		t.Fatalf("result = %+v, want failure", res)
	}
	if res.ErrorKind != dispatch.ErrTranscriptionFailure {
		t.Errorf("error kind = %q, want transcription failure", res.ErrorKind)
	}
}

func TestDispatch_LLMFallbackRefinesUnknownUtterance(t *testing.T) {
	t.Parallel()

	provider := &llmmock.Provider{
		Response: &llm.CompletionResponse{
			Content: `{"intent": "create_task", "confidence": 0.9, "entities": {"task_name": "get milk"}}`,
		},
	}
	h := newHarness(t, func(cfg *dispatch.Config) {
		cfg.Fallback = nlu.NewLLMFallback(provider)
	})

	res := h.say("I need to get milk at some point")

	if !res.Success {
		t.Fatalf("result = %+v, want success via fallback", res)
	}
	if res.Intent != nlu.IntentCreateTask {
		t.Errorf("intent = %q, want create_task", res.Intent)
	}
	if res.Response != `Created task "get milk".` {
		t.Errorf("response = %q", res.Response)
	}
	if len(provider.Calls) != 1 {
		t.Errorf("fallback calls = %d, want 1", len(provider.Calls))
	}
}

func TestDispatch_LLMFallbackFailureDegradesToPatternResult(t *testing.T) {
	t.Parallel()

	provider := &llmmock.Provider{Err: errors.New("model overloaded")}
	h := newHarness(t, func(cfg *dispatch.Config) {
		cfg.Fallback = nlu.NewLLMFallback(provider)
	})

	res := h.say("I need to get milk at some point")

	if res.Success {
		t.Fatalf("result = %+v, want rejection when both paths fail", res)
	}
	if res.ErrorKind != dispatch.ErrClassificationLowConfidence {
		t.Errorf("error kind = %q, want low confidence", res.ErrorKind)
	}
	if len(h.store.Calls) != 0 {
		t.Errorf("store calls = %v, want none", h.store.Calls)
	}
}

// gateStore blocks CreateTask until released so a test can hold one dispatch
// mid-execution while a second one arrives.
type gateStore struct {
	*storemock.Store
	entered chan struct{}
	release chan struct{}
}

func (s *gateStore) CreateTask(ctx context.Context, task taskstore.Task) (taskstore.Task, error) {
	s.entered <- struct{}{}
	<-s.release
	return s.Store.CreateTask(ctx, task)
}

func TestDispatch_ConcurrentUtterancesForOneUserAreSerialised(t *testing.T) {
	t.Parallel()

	gate := &gateStore{
		Store:   &storemock.Store{},
		entered: make(chan struct{}, 2),
		release: make(chan struct{}),
	}
	clock := &fakeClock{t: time.Date(2026, time.March, 4, 9, 0, 0, 0, time.UTC)}
	d := dispatch.New(dispatch.Config{
		Store:    gate,
		Contexts: session.NewStore(5*time.Minute, 10, session.WithClock(clock.Now)),
		Clock:    clock.Now,
	})
	say := func(text string, done chan<- dispatch.ActionResult) {
		done <- d.Dispatch(context.Background(), "u1", dispatch.Utterance{Text: text})
	}

	// Leave the user awaiting a task name.
	results := make(chan dispatch.ActionResult, 3)
	say("create a new task", results)
	if res := <-results; res.AwaitingSlot != nlu.SlotTaskName {
		t.Fatalf("awaiting slot = %q, want task_name", res.AwaitingSlot)
	}

	// Two slot-filling answers race in on separate connections. Only one may
	// consume the pending context; the other must wait and then be handled as
	// a fresh utterance.
	go say("Buy groceries", results)
	<-gate.entered
	go say("Call mom", results)

	select {
	case <-gate.entered:
		t.Fatal("second dispatch reached the store while the first was still executing")
	case <-time.After(50 * time.Millisecond):
	}

	close(gate.release)
	<-results
	<-results

	if got := gate.Store.CallsTo("CreateTask"); got != 1 {
		t.Errorf("CreateTask calls = %d, want exactly 1", got)
	}
}
