package resilience

import (
	"context"
	"errors"
	"testing"

	"github.com/voxlead/voxlead/pkg/provider/stt"
	sttmock "github.com/voxlead/voxlead/pkg/provider/stt/mock"
)

func TestSTTFallback_Start_PrimarySuccess(t *testing.T) {
	sess := &sttmock.Session{ResultsCh: make(chan stt.Result, 1)}
	primary := &sttmock.Transcriber{Session: sess}
	secondary := &sttmock.Transcriber{}

	fb := NewSTTFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("secondary", secondary)

	handle, err := fb.Start(context.Background(), stt.StreamConfig{
		SampleRate: 16000,
		Channels:   1,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if handle == nil {
		t.Fatal("session is nil")
	}
	if primary.StartCallCount() != 1 {
		t.Fatalf("primary called %d times, want 1", primary.StartCallCount())
	}
	if secondary.StartCallCount() != 0 {
		t.Fatalf("secondary called %d times, want 0", secondary.StartCallCount())
	}
	_ = handle.Close()
}

func TestSTTFallback_Start_Failover(t *testing.T) {
	primary := &sttmock.Transcriber{StartErr: errors.New("primary down")}
	secondarySess := &sttmock.Session{ResultsCh: make(chan stt.Result, 1)}
	secondary := &sttmock.Transcriber{Session: secondarySess}

	fb := NewSTTFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("secondary", secondary)

	handle, err := fb.Start(context.Background(), stt.StreamConfig{
		SampleRate: 16000,
		Channels:   1,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if secondary.StartCallCount() != 1 {
		t.Fatalf("secondary called %d times, want 1", secondary.StartCallCount())
	}
	_ = handle.Close()
}

func TestSTTFallback_Start_AllFail(t *testing.T) {
	primary := &sttmock.Transcriber{StartErr: errors.New("primary down")}
	secondary := &sttmock.Transcriber{StartErr: errors.New("secondary down")}

	fb := NewSTTFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("secondary", secondary)

	if _, err := fb.Start(context.Background(), stt.StreamConfig{}); !errors.Is(err, ErrAllFailed) {
		t.Fatalf("error = %v, want ErrAllFailed", err)
	}
}
