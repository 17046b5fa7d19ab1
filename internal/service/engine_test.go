package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/roamline/trip-api/internal/core"
	"github.com/roamline/trip-api/internal/data"
	"github.com/roamline/trip-api/internal/domain/model"
	apperrors "github.com/roamline/trip-api/internal/errors"
	"github.com/roamline/trip-api/internal/hub"
	"github.com/roamline/trip-api/internal/mocks"
	"github.com/roamline/trip-api/internal/observability/notify"
)

// stubProcessor is a controllable ItemProcessor for engine tests.
type stubProcessor struct {
	mu        sync.Mutex
	items     []core.ProcessorItem
	failOn    map[string]error
	processed []string
}

func (s *stubProcessor) LoadItems(context.Context, *model.Trip) ([]core.ProcessorItem, error) {
	return s.items, nil
}

func (s *stubProcessor) ProcessItem(_ context.Context, item core.ProcessorItem) error {
	s.mu.Lock()
	s.processed = append(s.processed, item.ID)
	s.mu.Unlock()
	if err, ok := s.failOn[item.ID]; ok {
		return err
	}
	return nil
}

func (s *stubProcessor) Results() ([]byte, error) {
	return []byte(`{}`), nil
}

func (s *stubProcessor) processedItems() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.processed...)
}

type engineFixture struct {
	jobs      *mocks.MockJobRepository
	trips     *mocks.MockTripRepository
	publisher *mocks.MockPublisher
	processor *stubProcessor
	engine    *Engine
}

func newEngineFixture(t *testing.T, processor *stubProcessor) *engineFixture {
	t.Helper()
	ctrl := gomock.NewController(t)

	f := &engineFixture{
		jobs:      mocks.NewMockJobRepository(ctrl),
		trips:     mocks.NewMockTripRepository(ctrl),
		publisher: mocks.NewMockPublisher(ctrl),
		processor: processor,
	}

	f.engine = MustNewEngine(EngineOptions{
		Jobs:  f.jobs,
		Trips: f.trips,
		Processors: func(model.JobKind) (core.ItemProcessor, error) {
			return processor, nil
		},
		Publisher: f.publisher,
		Logger:    slog.Default(),
	})
	return f
}

func pendingJob() *model.JobRecord {
	return &model.JobRecord{
		ID:      "job-1",
		OwnerID: "user-1",
		TripID:  "trip-1",
		Kind:    model.JobKindTravelTime,
		Status:  model.JobStatusPending,
	}
}

func testTrip() *model.Trip {
	return &model.Trip{ID: "trip-1", OwnerID: "user-1", Name: "Kyoto"}
}

// waitForTerminalPublish returns a channel closed when the publisher sees the
// given terminal event type. Every published event must carry the full
// envelope: trip id and a job snapshot.
func waitForTerminalPublish(f *engineFixture, eventType string) <-chan struct{} {
	done := make(chan struct{})
	var once sync.Once
	f.publisher.EXPECT().Publish("trip-1", gomock.Any()).Do(func(_ string, event any) {
		msg, ok := event.(hub.ServerMessage)
		if !ok || msg.TripID != "trip-1" || msg.Job == nil {
			return
		}
		if msg.Type == eventType {
			once.Do(func() { close(done) })
		}
	}).AnyTimes()
	return done
}

func TestEngine_Start_UnknownJob(t *testing.T) {
	f := newEngineFixture(t, &stubProcessor{})
	f.jobs.EXPECT().GetByID(gomock.Any(), "missing").Return(nil, data.ErrJobNotFound)

	err := f.engine.Start(context.Background(), "missing")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestEngine_Start_AlreadyRunning(t *testing.T) {
	processor := &stubProcessor{items: []core.ProcessorItem{{ID: "a"}}}
	f := newEngineFixture(t, processor)

	f.jobs.EXPECT().GetByID(gomock.Any(), "job-1").Return(pendingJob(), nil).Times(2)
	f.trips.EXPECT().GetByID(gomock.Any(), "trip-1").Return(testTrip(), nil)
	f.jobs.EXPECT().
		MarkRunning(gomock.Any(), core.MarkRunningParams{JobID: "job-1", Total: 1}).
		Return(false, nil)

	err := f.engine.Start(context.Background(), "job-1")
	assert.True(t, apperrors.IsInvalidState(err))
	assert.Empty(t, processor.processedItems())
}

func TestEngine_Start_TripDeleted(t *testing.T) {
	f := newEngineFixture(t, &stubProcessor{})

	f.jobs.EXPECT().GetByID(gomock.Any(), "job-1").Return(pendingJob(), nil)
	f.trips.EXPECT().GetByID(gomock.Any(), "trip-1").Return(nil, data.ErrTripNotFound)
	f.jobs.EXPECT().Fail(gomock.Any(), "job-1", "trip no longer exists").Return(true, nil)

	err := f.engine.Start(context.Background(), "job-1")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestEngine_RunsBatchToCompletion(t *testing.T) {
	processor := &stubProcessor{items: []core.ProcessorItem{{ID: "a"}, {ID: "b"}}}
	f := newEngineFixture(t, processor)
	done := waitForTerminalPublish(f, hub.TypeJobCompleted)

	running := pendingJob()
	running.Status = model.JobStatusRunning

	f.jobs.EXPECT().GetByID(gomock.Any(), "job-1").Return(pendingJob(), nil)
	f.trips.EXPECT().GetByID(gomock.Any(), "trip-1").Return(testTrip(), nil)
	f.jobs.EXPECT().
		MarkRunning(gomock.Any(), core.MarkRunningParams{JobID: "job-1", Total: 2}).
		Return(true, nil)
	f.jobs.EXPECT().
		RecordItemResult(gomock.Any(), gomock.Any()).
		Return(true, nil).
		Times(2)
	f.jobs.EXPECT().Complete(gomock.Any(), "job-1", []byte(`{}`)).Return(true, nil)
	// Snapshot reads for event publishing.
	f.jobs.EXPECT().GetByID(gomock.Any(), "job-1").Return(running, nil).AnyTimes()

	require.NoError(t, f.engine.Start(context.Background(), "job-1"))

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("job did not complete in time")
	}
	assert.Equal(t, []string{"a", "b"}, processor.processedItems())
}

func TestEngine_PerItemFailureDoesNotStopBatch(t *testing.T) {
	processor := &stubProcessor{
		items:  []core.ProcessorItem{{ID: "a"}, {ID: "b"}, {ID: "c"}},
		failOn: map[string]error{"b": errors.New("estimator unavailable")},
	}
	f := newEngineFixture(t, processor)
	done := waitForTerminalPublish(f, hub.TypeJobCompleted)

	running := pendingJob()
	running.Status = model.JobStatusRunning

	f.jobs.EXPECT().GetByID(gomock.Any(), "job-1").Return(pendingJob(), nil)
	f.trips.EXPECT().GetByID(gomock.Any(), "trip-1").Return(testTrip(), nil)
	f.jobs.EXPECT().MarkRunning(gomock.Any(), gomock.Any()).Return(true, nil)
	f.jobs.EXPECT().RecordItemResult(gomock.Any(), gomock.Any()).Return(true, nil).Times(3)
	f.jobs.EXPECT().Complete(gomock.Any(), "job-1", gomock.Any()).Return(true, nil)
	f.jobs.EXPECT().GetByID(gomock.Any(), "job-1").Return(running, nil).AnyTimes()

	require.NoError(t, f.engine.Start(context.Background(), "job-1"))

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("job did not complete in time")
	}
	// Every item was attempted despite the failure in the middle.
	assert.Equal(t, []string{"a", "b", "c"}, processor.processedItems())
}

func TestEngine_PersistenceFailureIsFatal(t *testing.T) {
	processor := &stubProcessor{items: []core.ProcessorItem{{ID: "a"}, {ID: "b"}}}
	f := newEngineFixture(t, processor)
	done := waitForTerminalPublish(f, hub.TypeJobFailed)

	failed := pendingJob()
	failed.Status = model.JobStatusFailed

	f.jobs.EXPECT().GetByID(gomock.Any(), "job-1").Return(pendingJob(), nil)
	f.trips.EXPECT().GetByID(gomock.Any(), "trip-1").Return(testTrip(), nil)
	f.jobs.EXPECT().MarkRunning(gomock.Any(), gomock.Any()).Return(true, nil)
	f.jobs.EXPECT().
		RecordItemResult(gomock.Any(), gomock.Any()).
		Return(false, errors.New("connection reset"))
	f.jobs.EXPECT().Fail(gomock.Any(), "job-1", gomock.Any()).Return(true, nil)
	f.jobs.EXPECT().GetByID(gomock.Any(), "job-1").Return(failed, nil).AnyTimes()

	require.NoError(t, f.engine.Start(context.Background(), "job-1"))

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("job did not fail in time")
	}
	// The batch stopped at the first persistence failure.
	assert.Equal(t, []string{"a"}, processor.processedItems())
}

func TestEngine_FailureNotifiesSink(t *testing.T) {
	processor := &stubProcessor{items: []core.ProcessorItem{{ID: "a"}}}
	f := newEngineFixture(t, processor)

	notified := make(chan notify.JobFailurePayload, 1)
	f.engine.notifier = notify.SinkFunc(func(_ context.Context, p notify.JobFailurePayload) error {
		notified <- p
		return nil
	})

	done := waitForTerminalPublish(f, hub.TypeJobFailed)

	failed := pendingJob()
	failed.Status = model.JobStatusFailed

	f.jobs.EXPECT().GetByID(gomock.Any(), "job-1").Return(pendingJob(), nil)
	f.trips.EXPECT().GetByID(gomock.Any(), "trip-1").Return(testTrip(), nil)
	f.jobs.EXPECT().MarkRunning(gomock.Any(), gomock.Any()).Return(true, nil)
	f.jobs.EXPECT().
		RecordItemResult(gomock.Any(), gomock.Any()).
		Return(false, errors.New("connection reset"))
	f.jobs.EXPECT().Fail(gomock.Any(), "job-1", gomock.Any()).Return(true, nil)
	f.jobs.EXPECT().GetByID(gomock.Any(), "job-1").Return(failed, nil).AnyTimes()

	require.NoError(t, f.engine.Start(context.Background(), "job-1"))

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("job did not fail in time")
	}

	select {
	case payload := <-notified:
		assert.Equal(t, "job-1", payload.JobID)
		assert.Equal(t, "trip-1", payload.TripID)
		assert.Equal(t, string(model.JobKindTravelTime), payload.JobKind)
		assert.Contains(t, payload.Error, "persist progress")
	case <-time.After(5 * time.Second):
		t.Fatal("failure notification never arrived")
	}
}

func TestNewEngine_RequiresDependencies(t *testing.T) {
	_, err := NewEngine(EngineOptions{})
	require.Error(t, err)

	_, err = NewEngine(EngineOptions{
		Jobs: mocks.NewMockJobRepository(gomock.NewController(t)),
	})
	require.Error(t, err)
}
