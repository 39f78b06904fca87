package remote

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/ericsun2/hark-lang/value"
)

func TestCheckpointRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := New()
	seedSimple(t, c)

	threadID, futureID, err := c.NewThread(ctx, "main", []value.Value{})
	if err != nil {
		t.Fatalf("NewThread: %v", err)
	}
	if _, err := c.Resolve(ctx, futureID, value.NewList([]value.Value{value.NewInt(1), value.NewString("x")})); err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	path := filepath.Join(t.TempDir(), "hark.ckpt")
	cm := NewCheckpointManager(path, c, 0)
	if err := cm.Checkpoint(DumpShutdown); err != nil {
		t.Fatalf("Checkpoint: %v", err)
	}

	restored := New()
	if err := Restore(path, restored); err != nil {
		t.Fatalf("Restore: %v", err)
	}

	f, err := restored.ReadFuture(ctx, futureID)
	if err != nil {
		t.Fatalf("ReadFuture after restore: %v", err)
	}
	want := value.NewList([]value.Value{value.NewInt(1), value.NewString("x")})
	if !f.Resolved || !f.Value.Equal(want) {
		t.Fatalf("restored future mismatch: %+v", f)
	}

	th, err := restored.ReadThread(ctx, threadID)
	if err != nil {
		t.Fatalf("ReadThread after restore: %v", err)
	}
	if th.FunctionName != "main" {
		t.Fatalf("restored thread function name mismatch: %q", th.FunctionName)
	}

	model, err := restored.GetCode(ctx)
	if err != nil {
		t.Fatalf("GetCode after restore: %v", err)
	}
	if _, ok := model.EntryPoint("main"); !ok {
		t.Fatal("restored code model lost the main function entry")
	}
}

func TestCheckpointManagerRunsPeriodically(t *testing.T) {
	ctx := context.Background()
	c := New()
	seedSimple(t, c)
	if _, _, err := c.NewThread(ctx, "main", nil); err != nil {
		t.Fatalf("NewThread: %v", err)
	}

	path := filepath.Join(t.TempDir(), "hark.ckpt")
	cm := NewCheckpointManager(path, c, 5*time.Millisecond)
	cm.Start()
	defer cm.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for cm.LastSave().IsZero() {
		if time.Now().After(deadline) {
			t.Fatal("checkpoint manager never produced a save")
		}
		time.Sleep(5 * time.Millisecond)
	}

	restored := New()
	if err := Restore(path, restored); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if _, err := restored.GetCode(ctx); err != nil {
		t.Fatalf("GetCode after periodic restore: %v", err)
	}
}
