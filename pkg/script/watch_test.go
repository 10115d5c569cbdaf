package script

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestWatcher_RerunsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scene.star")
	if err := os.WriteFile(path, []byte(`a = node("first")`), 0o644); err != nil {
		t.Fatal(err)
	}

	w := NewWatcher(NewEvaluator(), zerolog.Nop())
	w.SetDebounce(20 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	results := make(chan string, 16)
	done := make(chan error, 1)
	go func() {
		done <- w.Watch(ctx, path, func(scene *Scene, err error) {
			if err != nil {
				results <- "error: " + err.Error()
				return
			}
			results <- scene.Graph.Label(scene.Exports["a"].Root)
		})
	}()

	select {
	case got := <-results:
		if got != "first" {
			t.Fatalf("Expected first run to see %q, got %q", "first", got)
		}
	case <-ctx.Done():
		t.Fatal("Timed out waiting for the initial run")
	}

	if err := os.WriteFile(path, []byte(`a = node("second")`), 0o644); err != nil {
		t.Fatal(err)
	}

	// A write can surface as several events; wait for the run that sees the
	// complete file.
	for seen := ""; seen != "second"; {
		select {
		case seen = <-results:
		case <-ctx.Done():
			t.Fatalf("Timed out waiting for the rerun, last result %q", seen)
		}
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Expected Watch to return nil on cancel, got: %v", err)
	}
}

func TestWatcher_MissingDirectory(t *testing.T) {
	w := NewWatcher(NewEvaluator(), zerolog.Nop())
	err := w.Watch(context.Background(), filepath.Join(t.TempDir(), "missing", "scene.star"), func(*Scene, error) {})
	if err == nil {
		t.Error("Expected an error for a missing directory")
	}
}
