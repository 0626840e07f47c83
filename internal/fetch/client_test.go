package fetch

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/discourse-import/internal/config"
	derrors "git.home.luguber.info/inful/discourse-import/internal/errors"
)

func newTestClient() *Client {
	return NewClient(config.HTTPConfig{Timeout: 5 * time.Second, UserAgent: "test-agent"})
}

func TestFetchJSON_DecodesBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		require.Equal(t, "application/json", r.Header.Get("Accept"))
		_, _ = w.Write([]byte(`{"topic_list":{"topics":[{"id":7}]}}`))
	}))
	t.Cleanup(server.Close)

	var out struct {
		TopicList struct {
			Topics []struct {
				ID int `json:"id"`
			} `json:"topics"`
		} `json:"topic_list"`
	}
	require.NoError(t, newTestClient().FetchJSON(t.Context(), server.URL+"/latest.json", &out))
	require.Len(t, out.TopicList.Topics, 1)
	require.Equal(t, 7, out.TopicList.Topics[0].ID)
}

func TestFetchJSON_HTTPErrorIsFetchError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	t.Cleanup(server.Close)

	url := server.URL + "/posts/1.json"
	err := newTestClient().FetchJSON(t.Context(), url, &struct{}{})
	require.Error(t, err)
	require.True(t, derrors.IsCategory(err, derrors.CategoryNetwork))
	require.Equal(t, url, derrors.URL(err))
	require.Equal(t, http.StatusNotFound, derrors.Status(err))
}

func TestFetchJSON_InvalidJSONIsParseError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>maintenance</html>`))
	}))
	t.Cleanup(server.Close)

	err := newTestClient().FetchJSON(t.Context(), server.URL, &struct{}{})
	require.True(t, derrors.IsCategory(err, derrors.CategoryParse))
}

func TestFetchJSON_TransportErrorIsFetchError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	err := newTestClient().FetchJSON(t.Context(), url, &struct{}{})
	require.True(t, derrors.IsCategory(err, derrors.CategoryNetwork))
	require.Equal(t, 0, derrors.Status(err))
}

func TestFetchBytes_ReturnsBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("\x89PNG"))
	}))
	t.Cleanup(server.Close)

	body, err := newTestClient().FetchBytes(t.Context(), server.URL+"/a.png")
	require.NoError(t, err)
	t.Cleanup(func() { _ = body.Close() })

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	require.Equal(t, []byte("\x89PNG"), data)
}

func TestFetchBytes_FollowsCrossHostRedirect(t *testing.T) {
	cdn := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("img"))
	}))
	t.Cleanup(cdn.Close)
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, cdn.URL+"/a.png", http.StatusFound)
	}))
	t.Cleanup(origin.Close)

	body, err := newTestClient().FetchBytes(t.Context(), origin.URL+"/uploads/a.png")
	require.NoError(t, err)
	data, _ := io.ReadAll(body)
	_ = body.Close()
	require.Equal(t, "img", string(data))
}

func TestFetch_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("{}"))
	}))
	t.Cleanup(server.Close)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	err := newTestClient().FetchJSON(ctx, server.URL, &struct{}{})
	require.Error(t, err)
	require.ErrorIs(t, err, context.Canceled)
}

func TestHostRateLimiter_SpacesRequests(t *testing.T) {
	limiter := NewHostRateLimiter(50 * time.Millisecond)
	start := time.Now()
	for range 3 {
		require.NoError(t, limiter.WaitForHost(t.Context(), "http://forum.test/latest.json"))
	}
	require.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

func TestHostRateLimiter_RejectsHostlessURL(t *testing.T) {
	limiter := NewHostRateLimiter(time.Millisecond)
	require.Error(t, limiter.WaitForHost(t.Context(), "/relative/path"))
}

func TestFetchJSON_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	t.Cleanup(server.Close)

	client := NewClient(config.HTTPConfig{
		Timeout:           5 * time.Second,
		Retries:           2,
		RetryBackoff:      config.RetryBackoffFixed,
		RetryInitialDelay: time.Millisecond,
	})
	var out struct {
		OK bool `json:"ok"`
	}
	require.NoError(t, client.FetchJSON(t.Context(), server.URL, &out))
	require.True(t, out.OK)
	require.Equal(t, int32(3), calls.Load())
}

func TestFetchJSON_DoesNotRetryNotFound(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))
	t.Cleanup(server.Close)

	client := NewClient(config.HTTPConfig{Timeout: 5 * time.Second, Retries: 3, RetryInitialDelay: time.Millisecond})
	require.Error(t, client.FetchJSON(t.Context(), server.URL, &struct{}{}))
	require.Equal(t, int32(1), calls.Load())
}

func TestTransient(t *testing.T) {
	ctx := t.Context()
	require.True(t, Transient(ctx, derrors.FetchFailed("http://x", 0, errors.New("refused"))))
	require.True(t, Transient(ctx, derrors.FetchFailed("http://x", 0, context.DeadlineExceeded)))
	require.True(t, Transient(ctx, derrors.FetchFailed("http://x", http.StatusTooManyRequests, errors.New("slow down"))))
	require.True(t, Transient(ctx, derrors.FetchFailed("http://x", http.StatusBadGateway, errors.New("bad gateway"))))
	require.False(t, Transient(ctx, derrors.FetchFailed("http://x", http.StatusNotFound, errors.New("missing"))))
	require.False(t, Transient(ctx, derrors.ParseFailed("http://x", errors.New("bad json"))))
	require.False(t, Transient(ctx, nil))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	require.False(t, Transient(cancelled, derrors.FetchFailed("http://x", 0, context.Canceled)))
}

func TestFetchBytes_RetriesClientTimeout(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			time.Sleep(300 * time.Millisecond)
		}
		_, _ = w.Write([]byte("img"))
	}))
	t.Cleanup(server.Close)

	client := NewClient(config.HTTPConfig{
		Timeout:           100 * time.Millisecond,
		Retries:           1,
		RetryBackoff:      config.RetryBackoffFixed,
		RetryInitialDelay: time.Millisecond,
	})
	body, err := client.FetchBytes(t.Context(), server.URL+"/slow.png")
	require.NoError(t, err)
	data, _ := io.ReadAll(body)
	_ = body.Close()
	require.Equal(t, "img", string(data))
	require.Equal(t, int32(2), calls.Load())
}
