package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMap_PreservesOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// later paths answer first
		if r.URL.Path == "/0" {
			time.Sleep(20 * time.Millisecond)
		}
		_, _ = w.Write([]byte(r.URL.Path))
	}))
	defer server.Close()

	client := NewClient()
	paths := []string{"/0", "/1", "/2", "/3"}

	got, err := Map(context.Background(), paths, 0, func(ctx context.Context, p string) (string, error) {
		resp, err := client.Get(ctx, server.URL+p)
		if err != nil {
			return "", err
		}
		return resp.Text()
	})

	require.NoError(t, err)
	assert.Equal(t, paths, got)
}

func TestMap_Limit(t *testing.T) {
	var active, peak atomic.Int32

	_, err := Map(context.Background(), make([]int, 20), 3, func(context.Context, int) (int, error) {
		n := active.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		active.Add(-1)
		return 0, nil
	})

	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int32(3))
}

func TestMap_FirstErrorCancels(t *testing.T) {
	boom := errors.New("boom")

	_, err := Map(context.Background(), []int{0, 1, 2}, 0, func(ctx context.Context, i int) (int, error) {
		if i == 1 {
			return 0, boom
		}
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(time.Second):
			return i, nil
		}
	})

	assert.ErrorIs(t, err, boom)
}

func TestEach(t *testing.T) {
	var sum atomic.Int64

	err := Each(context.Background(), []int{1, 2, 3}, 2, func(_ context.Context, i int) error {
		sum.Add(int64(i))
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, int64(6), sum.Load())

	err = Each(context.Background(), []int{1}, 0, func(context.Context, int) error {
		return fmt.Errorf("step %d", 1)
	})
	assert.EqualError(t, err, "step 1")
}
