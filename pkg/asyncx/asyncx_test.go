package asyncx

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunAwait(t *testing.T) {
	f := Run(context.Background(), func(context.Context) (int, error) {
		return 42, nil
	})
	v, err := f.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	// A second await returns the same result.
	v, err = f.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestRunRecoversPanic(t *testing.T) {
	f := Run(context.Background(), func(context.Context) (string, error) {
		panic("boom")
	})
	_, err := f.Await(context.Background())

	var pe *PanicError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "boom", pe.Value)
}

func TestAwaitHonoursContext(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	f := Run(context.Background(), func(context.Context) (int, error) {
		<-block
		return 1, nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := f.Await(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGoReportsPanic(t *testing.T) {
	var wg sync.WaitGroup
	wg.Add(1)
	var got *PanicError
	Go(func() { panic("x") }, func(pe *PanicError) {
		got = pe
		wg.Done()
	})
	wg.Wait()
	require.NotNil(t, got)
	assert.Equal(t, "x", got.Value)
}
