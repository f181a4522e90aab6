package errs

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestKindOfSurvivesWrapping(t *testing.T) {
	base := Conflict("swipe already recorded")
	wrapped := fmt.Errorf("record swipe: %w", base)

	if got := KindOf(wrapped); got != KindConflict {
		t.Fatalf("expected conflict kind, got %q", got)
	}
	if !errors.Is(wrapped, base) {
		t.Fatalf("expected errors.Is to match sentinel")
	}
}

func TestSentinelMatchesAfterWithField(t *testing.T) {
	sentinel := Validation("", "coordinates out of range")
	err := fmt.Errorf("nearby: %w", sentinel.WithField("lat"))

	if !errors.Is(err, sentinel) {
		t.Fatalf("expected field copy to match sentinel")
	}
	if FieldOf(err) != "lat" {
		t.Fatalf("expected field lat, got %q", FieldOf(err))
	}
	if sentinel.Field != "" {
		t.Fatalf("sentinel must not be mutated")
	}
}

func TestTransientUnwrapsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Transient("storage unavailable", cause)

	if !errors.Is(err, cause) {
		t.Fatalf("expected cause to be reachable")
	}
	if err.Error() != "storage unavailable: connection reset" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestKindOfPlainError(t *testing.T) {
	if got := KindOf(errors.New("boom")); got != KindUnknown {
		t.Fatalf("expected unknown kind, got %q", got)
	}
	if KindOf(nil) != KindUnknown {
		t.Fatalf("expected unknown kind for nil")
	}
}

func TestDifferentSentinelsDoNotMatch(t *testing.T) {
	a := NotFound("vessel not found")
	b := NotFound("match not found")
	if errors.Is(a, b) {
		t.Fatalf("distinct sentinels must not match")
	}
}

func TestRetryAfterSurvivesWrapping(t *testing.T) {
	sentinel := RateLimited("too many likes")
	err := fmt.Errorf("swipe: %w", sentinel.WithRetryAfter(30*time.Second))

	if !errors.Is(err, sentinel) {
		t.Fatalf("expected sentinel match")
	}
	if RetryAfterOf(err) != 30*time.Second {
		t.Fatalf("unexpected retry after %s", RetryAfterOf(err))
	}
}
