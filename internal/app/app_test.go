package app

import (
	"context"
	"testing"
)

func TestShutdownBeforeRunIsNoop(t *testing.T) {
	a := &App{}
	if err := a.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown before run: %v", err)
	}
}

func TestRunRequiresInitializedApp(t *testing.T) {
	a := &App{}
	if err := a.Run(":0"); err == nil {
		t.Fatalf("expected error running uninitialized app")
	}
}
