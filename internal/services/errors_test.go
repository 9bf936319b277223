package services_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"panelcast/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalTool, "narrate", "launch", "failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"narrate", "launch", "failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsToStageFailure(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrStageFailure) {
		t.Fatalf("expected stage failure marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected placeholder detail, got %q", err.Error())
	}
}

func TestKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{services.Wrap(services.ErrWorkspace, "workspace", "prepare", "", nil), "workspace"},
		{services.Wrap(services.ErrPostCondition, "assemble", "verify", "", nil), "post_condition"},
		{fmt.Errorf("outer: %w", services.ErrStageFailure), "stage"},
		{services.ErrServiceUnavailable, "unavailable"},
		{errors.New("plain"), "internal"},
	}
	for _, tc := range tests {
		if got := services.Kind(tc.err); got != tc.want {
			t.Fatalf("Kind(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}
