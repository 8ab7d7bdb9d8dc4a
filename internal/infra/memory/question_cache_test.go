package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"crisis-quiz-service/internal/domain"
)

func TestQuestionCacheCaches(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	cache := NewQuestionCacheWithClock(10*time.Minute, func() time.Time { return now })
	loader := &countingLoader{set: sampleSet()}

	if _, err := cache.GetOrLoad(context.Background(), "questions:multiplayer:random", loader.load); err != nil {
		t.Fatalf("get: %v", err)
	}
	if _, err := cache.GetOrLoad(context.Background(), "questions:multiplayer:random", loader.load); err != nil {
		t.Fatalf("get 2: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls %d", loader.calls)
	}

	// A different key is a different entry.
	_, _ = cache.GetOrLoad(context.Background(), "questions:singleplayer:random", loader.load)
	if loader.calls != 2 {
		t.Fatalf("expected separate key to load, calls %d", loader.calls)
	}

	// Past TTL plus maximum jitter the entry is gone.
	now = now.Add(12 * time.Minute)
	_, _ = cache.GetOrLoad(context.Background(), "questions:multiplayer:random", loader.load)
	if loader.calls != 3 {
		t.Fatalf("expected reload after expiry, calls %d", loader.calls)
	}
}

func TestQuestionCacheSkipsFailuresAndPartials(t *testing.T) {
	cache := NewQuestionCache(time.Minute)
	partial := &domain.PartialResultError{Requested: 5, Recovered: 2}
	loader := &countingLoader{set: sampleSet(), err: partial}

	set, err := cache.GetOrLoad(context.Background(), "k", loader.load)
	if !errors.Is(err, partial) {
		t.Fatalf("expected partial error passed through, got %v", err)
	}
	if len(set.Questions) != 1 {
		t.Fatalf("expected partial set returned with its error, got %+v", set)
	}
	_, _ = cache.GetOrLoad(context.Background(), "k", loader.load)
	if loader.calls != 2 {
		t.Fatalf("partial results must not be cached, calls %d", loader.calls)
	}
}

func TestQuestionCacheCollapsesConcurrentLoads(t *testing.T) {
	cache := NewQuestionCache(time.Minute)
	release := make(chan struct{})
	var mu sync.Mutex
	calls := 0
	load := func(context.Context) (domain.QuestionSet, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		<-release
		return sampleSet(), nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = cache.GetOrLoad(context.Background(), "k", load)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if calls != 1 {
		t.Fatalf("expected a single load, got %d", calls)
	}
}

func TestQuestionCacheLoadOutlivesCanceledCaller(t *testing.T) {
	cache := NewQuestionCache(time.Minute)
	started := make(chan struct{})
	release := make(chan struct{})
	var loadErr error
	load := func(ctx context.Context) (domain.QuestionSet, error) {
		close(started)
		<-release
		loadErr = ctx.Err()
		return sampleSet(), nil
	}

	first, cancel := context.WithCancel(context.Background())
	firstDone := make(chan error, 1)
	go func() {
		_, err := cache.GetOrLoad(first, "k", load)
		firstDone <- err
	}()
	<-started

	secondDone := make(chan error, 1)
	go func() {
		set, err := cache.GetOrLoad(context.Background(), "k", load)
		if err == nil && len(set.Questions) != 1 {
			err = errors.New("unexpected set")
		}
		secondDone <- err
	}()

	cancel()
	if err := <-firstDone; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected canceled caller to stop waiting, got %v", err)
	}
	close(release)
	if err := <-secondDone; err != nil {
		t.Fatalf("other caller must not inherit the cancellation, got %v", err)
	}
	if loadErr != nil {
		t.Fatalf("load context must be detached from the first caller, got %v", loadErr)
	}
	if _, ok := cache.Lookup(context.Background(), "k"); !ok {
		t.Fatalf("expected loaded set cached")
	}
}

type countingLoader struct {
	set   domain.QuestionSet
	err   error
	calls int
}

func (l *countingLoader) load(context.Context) (domain.QuestionSet, error) {
	l.calls++
	return l.set, l.err
}

func sampleSet() domain.QuestionSet {
	return domain.QuestionSet{
		Label: "earthquake Challenge",
		Questions: []domain.QuestionRecord{
			{
				Prompt: "What should you do first?",
				Options: []domain.OptionRecord{
					{Text: "Drop, cover and hold on", Points: 10},
					{Text: "Stand in a doorway", Points: 5},
					{Text: "Run outside", Points: 0},
					{Text: "Take the elevator", Points: -5},
				},
			},
		},
	}
}
