package queue_test

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"taskq/internal/queue"
	"taskq/internal/testsupport"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func openStore(t *testing.T) (*queue.Store, *testsupport.Clock) {
	t.Helper()
	clock := testsupport.NewClock(epoch)
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg, queue.WithNowFunc(clock.Now))
	return store, clock
}

func TestCreateQueueIsIdempotent(t *testing.T) {
	store, _ := openStore(t)
	ctx := context.Background()

	first, err := store.CreateQueue(ctx, "main")
	if err != nil {
		t.Fatalf("CreateQueue failed: %v", err)
	}
	second, err := store.CreateQueue(ctx, "main")
	if err != nil {
		t.Fatalf("CreateQueue (again) failed: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected same queue id, got %d and %d", first.ID, second.ID)
	}
	queues, err := store.Queues(ctx)
	if err != nil {
		t.Fatalf("Queues failed: %v", err)
	}
	if len(queues) != 2 {
		t.Fatalf("expected main and small_jobs, got %+v", queues)
	}
}

func TestEnqueueUnknownLane(t *testing.T) {
	store, _ := openStore(t)
	_, err := store.Enqueue(context.Background(), "nope", queue.NewTask{Kind: "raw", Payload: []byte("{}")})
	if !errors.Is(err, queue.ErrUnknownQueue) {
		t.Fatalf("expected ErrUnknownQueue, got %v", err)
	}
}

func TestEnqueuePersistsFields(t *testing.T) {
	store, _ := openStore(t)
	rec := testsupport.EnqueueRaw(t, store, "main", queue.NewTask{
		Kind:        "http_lookup",
		Category:    3,
		Description: "lookup isbn",
		Priority:    2,
		RetryLimit:  4,
	})
	if rec.Status != queue.StatusQueued {
		t.Fatalf("expected queued, got %s", rec.Status)
	}
	if rec.QueueName != "main" || rec.Kind != "http_lookup" || rec.Category != 3 || rec.Priority != 2 || rec.RetryLimit != 4 {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if !rec.QueuedAt.Equal(epoch) || !rec.RetryAt.Equal(epoch) {
		t.Fatalf("expected timestamps at epoch, got queued=%s retry=%s", rec.QueuedAt, rec.RetryAt)
	}
}

func TestNextReadyTaskOrdering(t *testing.T) {
	store, clock := openStore(t)
	ctx := context.Background()

	low := testsupport.EnqueueRaw(t, store, "main", queue.NewTask{Priority: 0})
	high := testsupport.EnqueueRaw(t, store, "main", queue.NewTask{Priority: 1})
	clock.Advance(time.Second)
	highLater := testsupport.EnqueueRaw(t, store, "main", queue.NewTask{Priority: 1})
	sameTime := testsupport.EnqueueRaw(t, store, "main", queue.NewTask{Priority: 0})
	testsupport.EnqueueRaw(t, store, "small_jobs", queue.NewTask{Priority: 9})

	want := []int64{high.ID, highLater.ID, low.ID, sameTime.ID}
	for i, id := range want {
		next, err := store.NextReadyTask(ctx, "main")
		if err != nil {
			t.Fatalf("NextReadyTask failed: %v", err)
		}
		if next == nil || !next.Ready() {
			t.Fatalf("step %d: expected ready task, got %+v", i, next)
		}
		if next.Record.ID != id {
			t.Fatalf("step %d: expected task %d, got %d", i, id, next.Record.ID)
		}
		if err := store.MarkRunning(ctx, id); err != nil {
			t.Fatalf("MarkRunning failed: %v", err)
		}
		if err := store.MarkComplete(ctx, id, nil); err != nil {
			t.Fatalf("MarkComplete failed: %v", err)
		}
	}

	next, err := store.NextReadyTask(ctx, "main")
	if err != nil {
		t.Fatalf("NextReadyTask failed: %v", err)
	}
	if next != nil {
		t.Fatalf("expected empty lane, got %+v", next.Record)
	}
}

func TestNextReadyTaskReportsWait(t *testing.T) {
	store, clock := openStore(t)
	ctx := context.Background()

	rec := testsupport.EnqueueRaw(t, store, "main", queue.NewTask{RetryLimit: 3})
	if err := store.MarkRunning(ctx, rec.ID); err != nil {
		t.Fatalf("MarkRunning failed: %v", err)
	}
	status, err := store.MarkRequeue(ctx, rec.ID, nil, func(int) time.Duration { return time.Minute })
	if err != nil {
		t.Fatalf("MarkRequeue failed: %v", err)
	}
	if status != queue.StatusWaiting {
		t.Fatalf("expected waiting, got %s", status)
	}

	next, err := store.NextReadyTask(ctx, "main")
	if err != nil {
		t.Fatalf("NextReadyTask failed: %v", err)
	}
	if next == nil || next.Record.ID != rec.ID {
		t.Fatalf("expected waiting task, got %+v", next)
	}
	if next.Ready() || next.Wait != time.Minute {
		t.Fatalf("expected one minute wait, got %s", next.Wait)
	}

	clock.Advance(time.Minute)
	next, err = store.NextReadyTask(ctx, "main")
	if err != nil {
		t.Fatalf("NextReadyTask failed: %v", err)
	}
	if next == nil || !next.Ready() {
		t.Fatalf("expected task ready after deadline, got %+v", next)
	}
}

func TestMarkRequeueExhaustsRetryLimit(t *testing.T) {
	store, _ := openStore(t)
	ctx := context.Background()
	rec := testsupport.EnqueueRaw(t, store, "main", queue.NewTask{RetryLimit: 2})

	var delays []int
	delay := func(n int) time.Duration {
		delays = append(delays, n)
		return 0
	}

	prev := 0
	for attempt := 1; attempt <= 3; attempt++ {
		if err := store.MarkRunning(ctx, rec.ID); err != nil {
			t.Fatalf("attempt %d: MarkRunning failed: %v", attempt, err)
		}
		status, err := store.MarkRequeue(ctx, rec.ID, nil, delay)
		if err != nil {
			t.Fatalf("attempt %d: MarkRequeue failed: %v", attempt, err)
		}
		got, err := store.GetTask(ctx, rec.ID)
		if err != nil {
			t.Fatalf("GetTask failed: %v", err)
		}
		if got.RetryCount < prev {
			t.Fatalf("retry count decreased from %d to %d", prev, got.RetryCount)
		}
		prev = got.RetryCount
		if got.RetryCount > got.RetryLimit {
			t.Fatalf("retry count %d exceeds limit %d", got.RetryCount, got.RetryLimit)
		}
		if attempt < 3 && status != queue.StatusWaiting {
			t.Fatalf("attempt %d: expected waiting, got %s", attempt, status)
		}
		if attempt == 3 {
			if status != queue.StatusFailed || got.Status != queue.StatusFailed {
				t.Fatalf("expected failed after limit, got %s/%s", status, got.Status)
			}
			if got.FailureReason != queue.RetryLimitExceededReason {
				t.Fatalf("unexpected failure reason %q", got.FailureReason)
			}
		}
	}
	if len(delays) != 2 || delays[0] != 1 || delays[1] != 2 {
		t.Fatalf("expected delay keyed by new retry count [1 2], got %v", delays)
	}
}

func TestMarkRunningRejectsClaimedTask(t *testing.T) {
	store, _ := openStore(t)
	ctx := context.Background()
	rec := testsupport.EnqueueRaw(t, store, "main", queue.NewTask{})

	if err := store.MarkRunning(ctx, rec.ID); err != nil {
		t.Fatalf("MarkRunning failed: %v", err)
	}
	if err := store.MarkRunning(ctx, rec.ID); !errors.Is(err, queue.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if err := store.MarkRunning(ctx, 9999); !errors.Is(err, queue.ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound, got %v", err)
	}
}

func TestMarkFailedStoresReasonAndException(t *testing.T) {
	store, _ := openStore(t)
	ctx := context.Background()
	rec := testsupport.EnqueueRaw(t, store, "main", queue.NewTask{RetryLimit: 5})

	if err := store.MarkRunning(ctx, rec.ID); err != nil {
		t.Fatalf("MarkRunning failed: %v", err)
	}
	if err := store.MarkFailed(ctx, rec.ID, nil, "boom", []byte(`{"message":"boom"}`)); err != nil {
		t.Fatalf("MarkFailed failed: %v", err)
	}
	got, err := store.GetTask(ctx, rec.ID)
	if err != nil {
		t.Fatalf("GetTask failed: %v", err)
	}
	if got.Status != queue.StatusFailed || got.FailureReason != "boom" || string(got.Exception) != `{"message":"boom"}` {
		t.Fatalf("unexpected failed task: %+v", got)
	}
	if got.RetryCount != 0 {
		t.Fatalf("expected retry count to stay 0, got %d", got.RetryCount)
	}

	if err := store.RetryFailed(ctx, rec.ID); err != nil {
		t.Fatalf("RetryFailed failed: %v", err)
	}
	got, err = store.GetTask(ctx, rec.ID)
	if err != nil {
		t.Fatalf("GetTask failed: %v", err)
	}
	if got.Status != queue.StatusQueued || got.FailureReason != "" || got.Exception != nil {
		t.Fatalf("expected clean queued task after retry, got %+v", got)
	}
	if err := store.RetryFailed(ctx, rec.ID); !errors.Is(err, queue.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition for non-failed task, got %v", err)
	}
}

func TestStoreEventSkipsMissingTask(t *testing.T) {
	store, _ := openStore(t)
	ctx := context.Background()

	missing := int64(4242)
	ev, err := store.StoreEvent(ctx, &missing, queue.NewEvent{Description: "lost"})
	if err != nil {
		t.Fatalf("StoreEvent failed: %v", err)
	}
	if ev != nil {
		t.Fatalf("expected no event for missing task, got %+v", ev)
	}

	standalone, err := store.StoreEvent(ctx, nil, queue.NewEvent{Description: "standalone"})
	if err != nil {
		t.Fatalf("StoreEvent failed: %v", err)
	}
	if standalone == nil || standalone.TaskID != nil {
		t.Fatalf("expected standalone event, got %+v", standalone)
	}

	all, err := store.AllEvents(ctx)
	if err != nil {
		t.Fatalf("AllEvents failed: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected one event, got %d", len(all))
	}
}

func TestDeleteTaskRemovesEvents(t *testing.T) {
	store, _ := openStore(t)
	ctx := context.Background()
	rec := testsupport.EnqueueRaw(t, store, "main", queue.NewTask{})
	other := testsupport.EnqueueRaw(t, store, "main", queue.NewTask{})

	for _, id := range []int64{rec.ID, rec.ID, other.ID} {
		id := id
		if _, err := store.StoreEvent(ctx, &id, queue.NewEvent{Description: "note"}); err != nil {
			t.Fatalf("StoreEvent failed: %v", err)
		}
	}

	removed, err := store.DeleteTask(ctx, rec.ID)
	if err != nil {
		t.Fatalf("DeleteTask failed: %v", err)
	}
	if removed != 2 {
		t.Fatalf("expected 2 events removed, got %d", removed)
	}
	if got, _ := store.GetTask(ctx, rec.ID); got != nil {
		t.Fatalf("expected task to be deleted, got %+v", got)
	}
	events, err := store.EventsForTask(ctx, other.ID)
	if err != nil {
		t.Fatalf("EventsForTask failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected other task's event to survive, got %d", len(events))
	}
	if _, err := store.DeleteTask(ctx, rec.ID); !errors.Is(err, queue.ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound, got %v", err)
	}
}

func TestCleanupOldEventsRespectsThreshold(t *testing.T) {
	store, clock := openStore(t)
	ctx := context.Background()

	if _, err := store.StoreEvent(ctx, nil, queue.NewEvent{Description: "old"}); err != nil {
		t.Fatalf("StoreEvent failed: %v", err)
	}
	clock.Advance(6 * 24 * time.Hour)
	if _, err := store.StoreEvent(ctx, nil, queue.NewEvent{Description: "recent"}); err != nil {
		t.Fatalf("StoreEvent failed: %v", err)
	}
	clock.Advance(24*time.Hour + time.Millisecond)

	removed, err := store.CleanupOldEvents(ctx, 7*24*time.Hour)
	if err != nil {
		t.Fatalf("CleanupOldEvents failed: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected one old event removed, got %d", removed)
	}
	events, err := store.AllEvents(ctx)
	if err != nil {
		t.Fatalf("AllEvents failed: %v", err)
	}
	if len(events) != 1 || events[0].Description != "recent" {
		t.Fatalf("expected recent event to survive, got %+v", events)
	}
}

func TestCleanupOldTasksSkipsRecentAndRunning(t *testing.T) {
	store, clock := openStore(t)
	ctx := context.Background()

	old := testsupport.EnqueueRaw(t, store, "main", queue.NewTask{})
	oldID := old.ID
	if _, err := store.StoreEvent(ctx, &oldID, queue.NewEvent{Description: "old failure"}); err != nil {
		t.Fatalf("StoreEvent failed: %v", err)
	}
	running := testsupport.EnqueueRaw(t, store, "small_jobs", queue.NewTask{})
	if err := store.MarkRunning(ctx, running.ID); err != nil {
		t.Fatalf("MarkRunning failed: %v", err)
	}
	clock.Advance(8 * 24 * time.Hour)
	recent := testsupport.EnqueueRaw(t, store, "main", queue.NewTask{})

	result, err := store.CleanupOldTasks(ctx, 7*24*time.Hour)
	if err != nil {
		t.Fatalf("CleanupOldTasks failed: %v", err)
	}
	if result.Tasks != 1 || result.Events != 1 {
		t.Fatalf("expected one task and one event removed, got %+v", result)
	}
	if got, _ := store.GetTask(ctx, old.ID); got != nil {
		t.Fatal("expected old task to be removed")
	}
	for _, id := range []int64{running.ID, recent.ID} {
		if got, _ := store.GetTask(ctx, id); got == nil {
			t.Fatalf("expected task %d to survive", id)
		}
	}
}

func TestCleanupOrphanEvents(t *testing.T) {
	store, _ := openStore(t)
	ctx := context.Background()

	kept := testsupport.EnqueueRaw(t, store, "main", queue.NewTask{})
	keptID := kept.ID
	if _, err := store.StoreEvent(ctx, &keptID, queue.NewEvent{Description: "referenced"}); err != nil {
		t.Fatalf("StoreEvent failed: %v", err)
	}
	done := testsupport.EnqueueRaw(t, store, "main", queue.NewTask{})
	if err := store.MarkRunning(ctx, done.ID); err != nil {
		t.Fatalf("MarkRunning failed: %v", err)
	}
	if err := store.MarkComplete(ctx, done.ID, nil); err != nil {
		t.Fatalf("MarkComplete failed: %v", err)
	}

	// A second connection without foreign keys can leave a dangling reference,
	// as older databases written without enforcement may contain.
	raw, err := sql.Open("sqlite", store.Path())
	if err != nil {
		t.Fatalf("open raw connection: %v", err)
	}
	defer raw.Close()
	if _, err := raw.Exec(`INSERT INTO events (task_id, description, created_at) VALUES (9999, 'dangling', 0)`); err != nil {
		t.Fatalf("insert orphan: %v", err)
	}

	result, err := store.CleanupOrphanEvents(ctx)
	if err != nil {
		t.Fatalf("CleanupOrphanEvents failed: %v", err)
	}
	if result.Events != 1 || result.Tasks != 1 {
		t.Fatalf("expected one orphan event and one completed task removed, got %+v", result)
	}
	events, err := store.EventsForTask(ctx, kept.ID)
	if err != nil {
		t.Fatalf("EventsForTask failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("referenced event must survive, got %d", len(events))
	}
	if got, _ := store.GetTask(ctx, done.ID); got != nil {
		t.Fatal("expected completed task without events to be removed")
	}
}

func TestRecoverRunning(t *testing.T) {
	store, _ := openStore(t)
	ctx := context.Background()
	rec := testsupport.EnqueueRaw(t, store, "main", queue.NewTask{})
	if err := store.MarkRunning(ctx, rec.ID); err != nil {
		t.Fatalf("MarkRunning failed: %v", err)
	}

	n, err := store.RecoverRunning(ctx)
	if err != nil {
		t.Fatalf("RecoverRunning failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected one task recovered, got %d", n)
	}
	next, err := store.NextReadyTask(ctx, "main")
	if err != nil {
		t.Fatalf("NextReadyTask failed: %v", err)
	}
	if next == nil || next.Record.ID != rec.ID || !next.Ready() {
		t.Fatalf("expected recovered task to be ready, got %+v", next)
	}
}

func TestReleaseRunningKeepsRetryCount(t *testing.T) {
	store, _ := openStore(t)
	ctx := context.Background()
	rec := testsupport.EnqueueRaw(t, store, "main", queue.NewTask{RetryLimit: 3})
	if err := store.MarkRunning(ctx, rec.ID); err != nil {
		t.Fatalf("MarkRunning failed: %v", err)
	}
	if _, err := store.MarkRequeue(ctx, rec.ID, nil, nil); err != nil {
		t.Fatalf("MarkRequeue failed: %v", err)
	}
	if err := store.MarkRunning(ctx, rec.ID); err != nil {
		t.Fatalf("MarkRunning (again) failed: %v", err)
	}
	if err := store.ReleaseRunning(ctx, rec.ID); err != nil {
		t.Fatalf("ReleaseRunning failed: %v", err)
	}
	got, err := store.GetTask(ctx, rec.ID)
	if err != nil {
		t.Fatalf("GetTask failed: %v", err)
	}
	if got.Status != queue.StatusQueued || got.RetryCount != 1 {
		t.Fatalf("expected queued task with retry count 1, got %s/%d", got.Status, got.RetryCount)
	}
	if err := store.ReleaseRunning(ctx, rec.ID); !errors.Is(err, queue.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition releasing a queued task, got %v", err)
	}
}

func TestListTasksAndActiveCategories(t *testing.T) {
	store, _ := openStore(t)
	ctx := context.Background()

	a := testsupport.EnqueueRaw(t, store, "main", queue.NewTask{Category: 1})
	b := testsupport.EnqueueRaw(t, store, "small_jobs", queue.NewTask{Category: 2})
	aID := a.ID
	for i := 0; i < 2; i++ {
		if _, err := store.StoreEvent(ctx, &aID, queue.NewEvent{Description: "note"}); err != nil {
			t.Fatalf("StoreEvent failed: %v", err)
		}
	}
	if err := store.MarkRunning(ctx, b.ID); err != nil {
		t.Fatalf("MarkRunning failed: %v", err)
	}
	if err := store.MarkFailed(ctx, b.ID, nil, "bad", nil); err != nil {
		t.Fatalf("MarkFailed failed: %v", err)
	}

	category := int64(1)
	tasks, err := store.ListTasks(ctx, queue.TaskFilter{Category: &category})
	if err != nil {
		t.Fatalf("ListTasks failed: %v", err)
	}
	if len(tasks) != 1 || tasks[0].ID != a.ID || tasks[0].EventCount != 2 {
		t.Fatalf("unexpected filtered tasks: %+v", tasks)
	}

	failed, err := store.ListTasks(ctx, queue.TaskFilter{Statuses: []queue.Status{queue.StatusFailed}})
	if err != nil {
		t.Fatalf("ListTasks failed: %v", err)
	}
	if len(failed) != 1 || failed[0].ID != b.ID {
		t.Fatalf("unexpected failed tasks: %+v", failed)
	}

	if active, err := store.HasActiveTasks(ctx, 1); err != nil || !active {
		t.Fatalf("expected category 1 to be active, got %v (%v)", active, err)
	}
	if active, err := store.HasActiveTasks(ctx, 2); err != nil || active {
		t.Fatalf("expected category 2 to be inactive, got %v (%v)", active, err)
	}
}

func TestCheckHealth(t *testing.T) {
	store, _ := openStore(t)
	testsupport.EnqueueRaw(t, store, "main", queue.NewTask{})

	health, err := store.CheckHealth(context.Background())
	if err != nil {
		t.Fatalf("CheckHealth failed: %v", err)
	}
	if !health.DatabaseExists || !health.DatabaseReadable || !health.IntegrityCheck {
		t.Fatalf("unexpected health: %+v", health)
	}
	if health.SchemaVersion != 1 || len(health.MissingTables) != 0 || health.TotalTasks != 1 {
		t.Fatalf("unexpected health details: %+v", health)
	}
}

func TestOpenRejectsSchemaMismatch(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	path := store.Path()
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	raw, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open raw connection: %v", err)
	}
	if _, err := raw.Exec(`UPDATE schema_version SET version = 99`); err != nil {
		t.Fatalf("bump version: %v", err)
	}
	raw.Close()

	if _, err := queue.OpenPath(path); !errors.Is(err, queue.ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}

func TestOpenRejectsMissingTables(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	path := store.Path()
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	raw, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open raw connection: %v", err)
	}
	if _, err := raw.Exec(`DROP TABLE events`); err != nil {
		t.Fatalf("drop events: %v", err)
	}
	raw.Close()

	_, err = queue.OpenPath(path)
	if !errors.Is(err, queue.ErrSchemaIncomplete) {
		t.Fatalf("expected ErrSchemaIncomplete, got %v", err)
	}
	if !strings.Contains(err.Error(), "events") {
		t.Fatalf("error should name the missing table: %v", err)
	}
}
