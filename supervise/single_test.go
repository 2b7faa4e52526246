package supervise

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestSingleCloseCancelsTask(t *testing.T) {
	t.Parallel()
	s := Supervise(context.Background(), WaitUntilCancelled)
	if s.Finished() {
		t.Fatal("task should still be running")
	}
	if err := s.Close(context.Background()); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}
	if !s.Finished() {
		t.Fatal("task not terminal after Close")
	}
	if o, _ := s.Handle().Outcome(); o != Cancelled {
		t.Fatalf("expected Cancelled, got %v", o)
	}
}

func TestSingleCloseSurfacesFailure(t *testing.T) {
	t.Parallel()
	boom := errors.New("boom")
	s := Supervise(context.Background(), func(context.Context) error { return boom })
	<-s.Handle().Done()
	if err := s.Close(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected the task failure from Close, got %v", err)
	}
	// Repeated closes return the recorded result.
	if err := s.Close(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected the recorded result, got %v", err)
	}
}

func TestSingleFollowThrough(t *testing.T) {
	t.Parallel()
	ran := make(chan struct{})
	s := Supervise(context.Background(), func(context.Context) error {
		time.Sleep(20 * time.Millisecond)
		close(ran)
		return nil
	}, WithFollowThrough())
	if err := s.Close(context.Background()); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}
	select {
	case <-ran:
	default:
		t.Fatal("follow-through close must let the task finish")
	}
	if o, _ := s.Handle().Outcome(); o != Completed {
		t.Fatalf("expected Completed, got %v", o)
	}
}

func TestAdopt(t *testing.T) {
	t.Parallel()
	h := Spawn(context.Background(), WaitUntilCancelled)
	s := Adopt(h)
	if s.Handle() != h {
		t.Fatal("adopted handle mismatch")
	}
	if err := s.Close(context.Background()); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}
	if !h.Finished() {
		t.Fatal("adopted task not terminal after Close")
	}
}
