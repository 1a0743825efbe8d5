package passwordinfra

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/mojzu/mz/pkg/errx"
	"github.com/mojzu/mz/pkg/sso/password"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPClientRange(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/range/5BAA6", r.URL.Path)
		assert.Equal(t, "true", r.Header.Get("Add-Padding"))
		fmt.Fprint(w, "1E4C9B93F3F0682250B6CF8331B7EE68FD8:3861493\r\n")
	}))
	defer srv.Close()

	c := NewHTTPClient(Config{URL: srv.URL + "/range/"})
	e := password.NewEvaluator(password.WithPwned(c))

	for range 3 {
		found, err := e.Pwned(context.Background(), "password")
		require.NoError(t, err)
		assert.True(t, found)
	}
	assert.Equal(t, int32(1), calls.Load())
}

func TestHTTPClientStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewHTTPClient(Config{URL: srv.URL})
	_, err := c.Range(context.Background(), "ABCDE")
	require.Error(t, err)
	assert.True(t, errx.IsCode(err, CodeRangeFailed))

	meta := password.NewEvaluator(password.WithPwned(c)).Meta(context.Background(), new(string))
	assert.Nil(t, meta.Pwned)
}
