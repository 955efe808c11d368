package actions

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/ivankudzin/modactions/internal/domain/model"
)

func TestBackoffDelayDoublesAndCaps(t *testing.T) {
	base := time.Second
	max := 60 * time.Second

	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 0},
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{6, 32 * time.Second},
		{7, 60 * time.Second},
		{20, 60 * time.Second},
	}

	for _, tc := range cases {
		if got := BackoffDelay(tc.attempt, base, max); got != tc.want {
			t.Fatalf("attempt %d: expected %v, got %v", tc.attempt, tc.want, got)
		}
	}
}

func TestBackoffDelayNeverDecreases(t *testing.T) {
	base := 250 * time.Millisecond
	max := 10 * time.Second

	prev := time.Duration(0)
	for attempt := 1; attempt <= 12; attempt++ {
		got := BackoffDelay(attempt, base, max)
		if got < prev {
			t.Fatalf("attempt %d: delay decreased from %v to %v", attempt, prev, got)
		}
		if got > max {
			t.Fatalf("attempt %d: delay %v exceeds cap %v", attempt, got, max)
		}
		prev = got
	}
}

func TestBackoffDelayZeroBase(t *testing.T) {
	if got := BackoffDelay(3, 0, time.Minute); got != 0 {
		t.Fatalf("expected zero delay for zero base, got %v", got)
	}
}

func TestRetryable(t *testing.T) {
	transient := &model.PlatformError{Op: "ban", Code: 429, Transient: true, Err: errors.New("too many requests")}
	permanent := &model.PlatformError{Op: "ban", Code: 400, Transient: false, Err: errors.New("user not found")}

	if !Retryable(transient) {
		t.Fatalf("transient platform error must be retryable")
	}
	if Retryable(permanent) {
		t.Fatalf("permanent platform error must not be retryable")
	}
	if !Retryable(errors.New("plain failure")) {
		t.Fatalf("unclassified errors default to retryable")
	}
	if !Retryable(fmt.Errorf("wrapped: %w", transient)) {
		t.Fatalf("wrapped transient error must stay retryable")
	}
}
