package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestErrorClass_String(t *testing.T) {
	tests := []struct {
		class    ErrorClass
		expected string
	}{
		{ErrorTransient, "transient"},
		{ErrorInvalid, "invalid"},
		{ErrorFatal, "fatal"},
		{ErrorClass(999), "unknown"},
	}

	for _, test := range tests {
		t.Run(test.expected, func(t *testing.T) {
			if result := test.class.String(); result != test.expected {
				t.Errorf("expected %s, got %s", test.expected, result)
			}
		})
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"connection timeout", ErrConnectionTimeout, true},
		{"connection lost", ErrConnectionLost, true},
		{"no connection", ErrNoConnection, true},
		{"context deadline exceeded", context.DeadlineExceeded, true},
		{"invalid data", ErrInvalidData, false},
		{"timeout in message", fmt.Errorf("dial tcp: i/o timeout"), true},
		{"classified transient", &ClassifiedError{Class: ErrorTransient, Err: fmt.Errorf("test")}, true},
		{"classified fatal", &ClassifiedError{Class: ErrorFatal, Err: fmt.Errorf("test")}, false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if result := IsTransient(test.err); result != test.expected {
				t.Errorf("expected %v, got %v for error: %v", test.expected, result, test.err)
			}
		})
	}
}

func TestIsFatalAndInvalid(t *testing.T) {
	if !IsFatal(ErrSetupFailed) {
		t.Error("setup failure should be fatal")
	}
	if !IsFatal(WrapFatal(errors.New("boom"), "Routine", "run", "main logic")) {
		t.Error("WrapFatal should classify as fatal")
	}
	if IsFatal(ErrQueueEmpty) {
		t.Error("empty queue is not fatal")
	}
	if !IsInvalid(ErrDuplicateName) || !IsInvalid(ErrUnknownExecutionMode) {
		t.Error("topology errors should be invalid")
	}
	if !IsInvalid(fmt.Errorf("context: %w", ErrUnknownType)) {
		t.Error("wrapped unknown type should stay invalid")
	}
}

func TestClassify(t *testing.T) {
	if Classify(ErrNotFound) != ErrorInvalid {
		t.Error("not found should classify as invalid")
	}
	if Classify(ErrRoutinePanic) != ErrorFatal {
		t.Error("panic should classify as fatal")
	}
	if Classify(errors.New("something odd")) != ErrorTransient {
		t.Error("unknown errors default to transient")
	}
}

func TestWrap(t *testing.T) {
	err := Wrap(ErrQueueInUse, "Component", "RemoveQueue", "usage check")
	if err.Error() != "Component.RemoveQueue: usage check failed: queue is used by a routine" {
		t.Errorf("unexpected message: %s", err.Error())
	}
	if !errors.Is(err, ErrQueueInUse) {
		t.Error("wrapped error should match sentinel")
	}
	if Wrap(nil, "a", "b", "c") != nil {
		t.Error("wrapping nil should return nil")
	}

	classified := WrapInvalid(ErrDuplicateName, "Component", "CreateQueue", "name check")
	var ce *ClassifiedError
	if !errors.As(classified, &ce) {
		t.Fatal("expected ClassifiedError")
	}
	if ce.Component != "Component" || ce.Operation != "CreateQueue" {
		t.Errorf("unexpected context: %s.%s", ce.Component, ce.Operation)
	}
	if !errors.Is(classified, ErrDuplicateName) {
		t.Error("classified error should unwrap to sentinel")
	}
}

func TestRetryConfig(t *testing.T) {
	rc := DefaultRetryConfig()
	if !rc.ShouldRetry(ErrConnectionTimeout, 0) {
		t.Error("transient error should be retried")
	}
	if rc.ShouldRetry(ErrConnectionTimeout, rc.MaxRetries) {
		t.Error("should not retry past max")
	}
	if rc.ShouldRetry(ErrInvalidConfig, 0) {
		t.Error("invalid error should not be retried")
	}

	cfg := rc.ToRetryConfig()
	if cfg.MaxAttempts != rc.MaxRetries+1 {
		t.Errorf("expected %d attempts, got %d", rc.MaxRetries+1, cfg.MaxAttempts)
	}
	if cfg.InitialDelay != 100*time.Millisecond {
		t.Errorf("unexpected initial delay %v", cfg.InitialDelay)
	}
}
