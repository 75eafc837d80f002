package session

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/xilidan/roboscribe/pkg/logger"
	"github.com/xilidan/roboscribe/services/scribe/entity"
)

func TestBeginTwiceKeepsOriginal(t *testing.T) {
	r := New(logger.Discard())
	first := &entity.SessionRecord{SessionID: "g1", Filename: "first.wav"}
	second := &entity.SessionRecord{SessionID: "g1", Filename: "second.wav"}

	if err := r.Begin("g1", first); err != nil {
		t.Fatalf("first Begin: %v", err)
	}
	if err := r.Begin("g1", second); !errors.Is(err, ErrAlreadyActive) {
		t.Fatalf("second Begin err = %v, want ErrAlreadyActive", err)
	}

	got, err := r.End("g1")
	if err != nil {
		t.Fatalf("End: %v", err)
	}
	if got != first {
		t.Fatalf("End returned %+v, want the original record", got)
	}
}

func TestEndWithoutBegin(t *testing.T) {
	r := New(logger.Discard())
	if _, err := r.End("missing"); !errors.Is(err, ErrNotActive) {
		t.Fatalf("End err = %v, want ErrNotActive", err)
	}
}

func TestEndRemovesRecord(t *testing.T) {
	r := New(logger.Discard())
	if err := r.Begin("g1", &entity.SessionRecord{}); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if !r.Active("g1") {
		t.Fatalf("expected g1 active")
	}
	if _, err := r.End("g1"); err != nil {
		t.Fatalf("End: %v", err)
	}
	if r.Active("g1") || r.Len() != 0 {
		t.Fatalf("expected registry to be empty after End")
	}
	if _, err := r.End("g1"); !errors.Is(err, ErrNotActive) {
		t.Fatalf("second End err = %v, want ErrNotActive", err)
	}
	if err := r.Begin("g1", &entity.SessionRecord{}); err != nil {
		t.Fatalf("Begin after End: %v", err)
	}
}

func TestSessionsAreIndependent(t *testing.T) {
	r := New(logger.Discard())
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := r.Begin(fmt.Sprintf("g%d", i), &entity.SessionRecord{}); err != nil {
				t.Errorf("Begin g%d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()
	if r.Len() != 32 {
		t.Fatalf("Len = %d, want 32", r.Len())
	}
}

func TestConcurrentBeginSameSession(t *testing.T) {
	r := New(logger.Discard())
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := r.Begin("g1", &entity.SessionRecord{}); err == nil {
				mu.Lock()
				success++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if success != 1 {
		t.Fatalf("%d concurrent Begin calls succeeded, want exactly 1", success)
	}
}

func TestDrain(t *testing.T) {
	r := New(logger.Discard())
	for _, id := range []string{"a", "b", "c"} {
		if err := r.Begin(id, &entity.SessionRecord{SessionID: id}); err != nil {
			t.Fatalf("Begin(%s): %v", id, err)
		}
	}

	drained := r.Drain()
	if len(drained) != 3 {
		t.Fatalf("Drain returned %d records, want 3", len(drained))
	}
	if r.Len() != 0 || r.Active("a") {
		t.Fatalf("expected registry to be empty after Drain")
	}
	if len(r.Drain()) != 0 {
		t.Fatalf("second Drain must return nothing")
	}
}
