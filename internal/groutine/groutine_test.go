package groutine

import (
	"context"
	"runtime/pprof"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGo(t *testing.T) {
	type seen struct {
		name  string
		label string
	}
	result := make(chan seen, 1)

	done := Go(context.Background(), "plug-link-monitor", func(ctx context.Context) {
		label, _ := pprof.Label(ctx, "goroutine_name")
		result <- seen{name: GetName(ctx), label: label}
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("goroutine MUST finish")
	}

	got := <-result
	assert.Equal(t, "plug-link-monitor", got.name, "name MUST be available through the context")
	assert.Equal(t, "plug-link-monitor", got.label, "name MUST be attached as pprof label")
}

func TestGo_NilParent(t *testing.T) {
	var ran bool
	//nolint:staticcheck // nil context is accepted on purpose
	done := Go(nil, "worker", func(ctx context.Context) {
		ran = ctx != nil
	})
	<-done
	require.True(t, ran)
}

func TestGo_ParentCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := Go(ctx, "waiter", func(ctx context.Context) {
		<-ctx.Done()
	})

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("goroutine MUST observe parent cancellation")
	}
}

func TestGetName(t *testing.T) {
	assert.Equal(t, "", GetName(context.Background()))
	//nolint:staticcheck // nil context is accepted on purpose
	assert.Equal(t, "", GetName(nil))
}
