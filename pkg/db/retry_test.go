package db

import (
	"context"
	"errors"
	"io"
	"testing"

	"go.uber.org/zap"
)

func TestWithRetryStopsOnNonTransient(t *testing.T) {
	calls := 0
	wantErr := errors.New("duplicate key value")

	err := WithRetry(context.Background(), zap.NewNop(), 3, func(ctx context.Context) error {
		calls++
		return wantErr
	})

	if !errors.Is(err, wantErr) {
		t.Fatalf("expected original error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected a single attempt, got %d", calls)
	}
}

func TestWithRetryRecoversTransient(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), zap.NewNop(), 3, func(ctx context.Context) error {
		calls++
		if calls < 2 {
			return io.EOF
		}
		return nil
	})

	if err != nil {
		t.Fatalf("expected recovery, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls)
	}
}

func TestWithRetryExhaustsBudget(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), zap.NewNop(), 3, func(ctx context.Context) error {
		calls++
		return io.ErrUnexpectedEOF
	})

	if !errors.Is(err, ErrRetryExhausted) {
		t.Fatalf("expected ErrRetryExhausted, got %v", err)
	}
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("expected wrapped cause, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

func TestTransientClassification(t *testing.T) {
	if Transient(nil) {
		t.Fatal("nil must not be transient")
	}
	if Transient(errors.New("record not found")) {
		t.Fatal("not-found must not be transient")
	}
	if !Transient(errors.New("dial tcp 127.0.0.1:5432: connection refused")) {
		t.Fatal("connection refused must be transient")
	}
}
