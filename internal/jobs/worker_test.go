package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cloo-solutions/nutrikb/internal/domain"
	"github.com/cloo-solutions/nutrikb/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockJobProcessor is a mock implementation of JobProcessor
type MockJobProcessor struct {
	mock.Mock
}

func (m *MockJobProcessor) ProcessJobs(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockIndexBuilder is a mock implementation of IndexBuilder
type MockIndexBuilder struct {
	mock.Mock
}

func (m *MockIndexBuilder) BuildIndex(ctx context.Context, batchSize int) (*service.IndexResult, error) {
	args := m.Called(ctx, batchSize)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.IndexResult), args.Error(1)
}

func TestWorker_StartStop(t *testing.T) {
	mockProcessor := new(MockJobProcessor)
	mockProcessor.On("ProcessJobs", mock.Anything).Return(nil)

	worker := NewWorker("test", mockProcessor, 100*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Start(ctx)
	}()

	time.Sleep(250 * time.Millisecond)

	worker.Stop()
	wg.Wait()

	mockProcessor.AssertCalled(t, "ProcessJobs", mock.Anything)
}

func TestWorker_ContextCancellation(t *testing.T) {
	mockProcessor := new(MockJobProcessor)
	mockProcessor.On("ProcessJobs", mock.Anything).Return(nil)

	worker := NewWorker("test", mockProcessor, 100*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Start(ctx)
	}()

	time.Sleep(150 * time.Millisecond)

	cancel()
	wg.Wait()

	mockProcessor.AssertCalled(t, "ProcessJobs", mock.Anything)
}

func TestWorker_KeepsRunningAfterError(t *testing.T) {
	mockProcessor := new(MockJobProcessor)
	mockProcessor.On("ProcessJobs", mock.Anything).Return(errors.New("embedding service down"))

	worker := NewWorker("test", mockProcessor, 50*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Start(ctx)
	}()

	time.Sleep(180 * time.Millisecond)
	worker.Stop()
	wg.Wait()

	assert.GreaterOrEqual(t, len(mockProcessor.Calls), 2)
}

func TestIndexProcessor_ProcessJobs_NothingPending(t *testing.T) {
	builder := new(MockIndexBuilder)
	builder.On("BuildIndex", mock.Anything, 64).Return(&service.IndexResult{Total: 10}, nil)

	err := NewIndexProcessor(builder, 64).ProcessJobs(context.Background())

	assert.NoError(t, err)
	builder.AssertExpectations(t)
}

func TestIndexProcessor_ProcessJobs_Embeds(t *testing.T) {
	builder := new(MockIndexBuilder)
	builder.On("BuildIndex", mock.Anything, 32).Return(&service.IndexResult{Embedded: 4, Total: 14}, nil)

	err := NewIndexProcessor(builder, 32).ProcessJobs(context.Background())

	assert.NoError(t, err)
}

func TestIndexProcessor_ProcessJobs_Incomplete(t *testing.T) {
	builder := new(MockIndexBuilder)
	cause := domain.NewIndexIncompleteError(64, 36, errors.New("rate limited"))
	builder.On("BuildIndex", mock.Anything, 64).Return(&service.IndexResult{Embedded: 64, Remaining: 36, Total: 100}, cause)

	err := NewIndexProcessor(builder, 64).ProcessJobs(context.Background())

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "64 chunks, 36 remaining")
	assert.True(t, domain.IsIndexIncomplete(err))
}

func TestIndexProcessor_ProcessJobs_Failure(t *testing.T) {
	builder := new(MockIndexBuilder)
	builder.On("BuildIndex", mock.Anything, 64).Return(nil, errors.New("connection refused"))

	err := NewIndexProcessor(builder, 64).ProcessJobs(context.Background())

	assert.EqualError(t, err, "connection refused")
}

// batchedIndex embeds one chunk per batch and checks for cancellation
// between batches, like service.Indexer.
type batchedIndex struct {
	batches    int
	delay      time.Duration
	firstBatch chan struct{}
	mu         sync.Mutex
	embedded   int
	signalOnce sync.Once
}

func (b *batchedIndex) BuildIndex(ctx context.Context, batchSize int) (*service.IndexResult, error) {
	result := &service.IndexResult{Total: b.batches, Remaining: b.batches}
	for i := 0; i < b.batches; i++ {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		time.Sleep(b.delay)
		b.mu.Lock()
		b.embedded++
		b.mu.Unlock()
		result.Embedded++
		result.Remaining--
		b.signalOnce.Do(func() { close(b.firstBatch) })
	}
	return result, nil
}

func (b *batchedIndex) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.embedded
}

func TestWorker_StopInterruptsIndexRun(t *testing.T) {
	index := &batchedIndex{batches: 5, delay: 50 * time.Millisecond, firstBatch: make(chan struct{})}
	worker := NewWorker("index", NewIndexProcessor(index, 1), 10*time.Millisecond)

	go worker.Start(context.Background())

	select {
	case <-index.firstBatch:
	case <-time.After(2 * time.Second):
		t.Fatal("index run did not start")
	}

	start := time.Now()
	worker.Stop()

	assert.Less(t, index.count(), 5)
	assert.Less(t, time.Since(start), 150*time.Millisecond)
}

func TestIndexProcessor_ProcessJobs_Cancelled(t *testing.T) {
	builder := new(MockIndexBuilder)
	builder.On("BuildIndex", mock.Anything, 8).Return(&service.IndexResult{Embedded: 8, Remaining: 8, Total: 16}, context.Canceled)

	err := NewIndexProcessor(builder, 8).ProcessJobs(context.Background())

	assert.NoError(t, err)
}
