package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/custodia-labs/compliance-sync/internal/core/domain"
)

// slowProcessor tracks how many documents are in flight at once
type slowProcessor struct {
	delay    time.Duration
	inFlight atomic.Int32
	peak     atomic.Int32

	mu       sync.Mutex
	started  map[string]time.Time
	finished map[string]time.Time

	outcome func(doc *domain.DocumentReference) (*domain.AnalysisResult, error)
}

func newSlowProcessor(delay time.Duration) *slowProcessor {
	return &slowProcessor{
		delay:    delay,
		started:  make(map[string]time.Time),
		finished: make(map[string]time.Time),
	}
}

func (p *slowProcessor) Process(ctx context.Context, doc *domain.DocumentReference) (*domain.AnalysisResult, error) {
	n := p.inFlight.Add(1)
	for {
		peak := p.peak.Load()
		if n <= peak || p.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	p.mu.Lock()
	p.started[doc.ID] = time.Now()
	p.mu.Unlock()

	time.Sleep(p.delay)

	p.mu.Lock()
	p.finished[doc.ID] = time.Now()
	p.mu.Unlock()
	p.inFlight.Add(-1)

	if p.outcome != nil {
		return p.outcome(doc)
	}
	return &domain.AnalysisResult{DocumentID: doc.ID, ValidityStatus: domain.ValidityValid}, nil
}

func makeDocs(n int) []*domain.DocumentReference {
	docs := make([]*domain.DocumentReference, n)
	for i := range docs {
		docs[i] = &domain.DocumentReference{ID: string(rune('A' + i))}
	}
	return docs
}

func TestBatchRunner_ConcurrencyBound(t *testing.T) {
	const delay = 20 * time.Millisecond
	proc := newSlowProcessor(delay)
	runner := NewBatchRunner(BatchRunnerConfig{Processor: proc})

	start := time.Now()
	result := runner.RunBatch(context.Background(), makeDocs(10))
	elapsed := time.Since(start)

	if result.Processed != 10 || result.Failed != 0 {
		t.Errorf("expected 10 processed, got %+v", result)
	}
	if peak := proc.peak.Load(); peak > 3 {
		t.Errorf("expected at most 3 in flight, saw %d", peak)
	}
	// ceil(10/3) windows
	if elapsed < 4*delay {
		t.Errorf("expected at least %v, took %v", 4*delay, elapsed)
	}
}

func TestBatchRunner_WindowsRunInOrder(t *testing.T) {
	proc := newSlowProcessor(10 * time.Millisecond)
	runner := NewBatchRunner(BatchRunnerConfig{Processor: proc, Concurrency: 2})
	docs := makeDocs(4)

	runner.RunBatch(context.Background(), docs)

	proc.mu.Lock()
	defer proc.mu.Unlock()
	for _, second := range docs[2:] {
		for _, first := range docs[:2] {
			if proc.started[second.ID].Before(proc.finished[first.ID]) {
				t.Errorf("%s started before %s finished", second.ID, first.ID)
			}
		}
	}
}

func TestBatchRunner_CountsFailuresAndPanics(t *testing.T) {
	proc := newSlowProcessor(0)
	proc.outcome = func(doc *domain.DocumentReference) (*domain.AnalysisResult, error) {
		switch doc.ID {
		case "A":
			return nil, errors.New("store unavailable")
		case "B":
			panic("boom")
		case "C":
			return &domain.AnalysisResult{DocumentID: doc.ID, ValidityStatus: domain.ValidityProcessingFailed}, nil
		}
		return &domain.AnalysisResult{DocumentID: doc.ID, ValidityStatus: domain.ValidityValid}, nil
	}
	runner := NewBatchRunner(BatchRunnerConfig{Processor: proc})

	result := runner.RunBatch(context.Background(), makeDocs(5))

	if result.Processed != 3 {
		t.Errorf("expected 3 processed, got %d", result.Processed)
	}
	if result.Failed != 2 {
		t.Errorf("expected 2 failed, got %d", result.Failed)
	}
	if result.Degraded != 1 {
		t.Errorf("expected 1 degraded, got %d", result.Degraded)
	}
	if result.Total() != 5 {
		t.Errorf("processed + failed should cover every document, got %d", result.Total())
	}
}

func TestBatchRunner_Empty(t *testing.T) {
	runner := NewBatchRunner(BatchRunnerConfig{Processor: newSlowProcessor(0)})
	result := runner.RunBatch(context.Background(), nil)
	if result != (domain.BatchResult{}) {
		t.Errorf("expected empty result, got %+v", result)
	}
}

func TestBatchRunner_StopsOnCancelledContext(t *testing.T) {
	proc := newSlowProcessor(0)
	runner := NewBatchRunner(BatchRunnerConfig{Processor: proc})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := runner.RunBatch(ctx, makeDocs(6))
	if result.Total() != 0 {
		t.Errorf("expected no documents processed after cancellation, got %+v", result)
	}
}
