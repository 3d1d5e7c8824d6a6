package support

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRunExclusiveWithoutRedisRunsDirectly(t *testing.T) {
	t.Setenv("REDIS_URL", "")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	ran := false
	err := RunExclusive(ctx, "honeypress:test", func(inner context.Context) {
		ran = true
		cancel()
		<-inner.Done()
	})
	if !ran {
		t.Fatal("run function was not invoked")
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestGetRedisClientRequiresURL(t *testing.T) {
	t.Setenv("REDIS_URL", "")
	if _, err := GetRedisClient(); !errors.Is(err, ErrRedisNotConfigured) {
		t.Fatalf("err = %v, want ErrRedisNotConfigured", err)
	}
}

func TestSleepCtx(t *testing.T) {
	if !sleepCtx(context.Background(), time.Millisecond) {
		t.Fatal("sleepCtx reported cancellation without one")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if sleepCtx(ctx, time.Minute) {
		t.Fatal("sleepCtx ignored a cancelled context")
	}
}
