package logging

import (
	"testing"
	"time"
)

func TestGetReturnsNoopBeforeInitialize(t *testing.T) {
	l := Get(CategorySolver)
	if l == nil {
		t.Fatal("expected non-nil logger")
	}
	l.Debugw("probe") // must not panic without Initialize
}

func TestInitializeSwitchesBackingLogger(t *testing.T) {
	if err := Initialize(true, true); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	defer Sync()

	l := Get(CategoryTraversal)
	if l == nil {
		t.Fatal("expected non-nil logger")
	}
	l.Infow("traversal started", "campaign", "demo")
}

func TestTimerStopWithThreshold(t *testing.T) {
	timer := StartTimer(CategoryAdapt, "epoch")
	time.Sleep(time.Millisecond)
	elapsed := timer.StopWithThreshold(time.Nanosecond)
	if elapsed <= 0 {
		t.Fatal("expected positive elapsed duration")
	}
}
