package clients

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(retries int) *http.Client {
	return NewHTTPClient(Options{
		Timeout:      2 * time.Second,
		RetryMax:     retries,
		RetryWaitMin: time.Millisecond,
		RetryWaitMax: 5 * time.Millisecond,
	}, zerolog.Nop())
}

func TestScorer_Score(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/score", r.URL.Path)
		file, _, err := r.FormFile("image")
		if assert.NoError(t, err) {
			data, _ := io.ReadAll(file)
			assert.Equal(t, "img", string(data))
		}
		_ = json.NewEncoder(w).Encode(map[string]float64{"score": 142.5})
	}))
	defer srv.Close()

	score, err := NewScorer(srv.URL+"/", testClient(0)).Score(context.Background(), []byte("img"))
	require.NoError(t, err)
	assert.Equal(t, 142.5, score)
}

func TestScorer_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]float64{"score": 10})
	}))
	defer srv.Close()

	score, err := NewScorer(srv.URL, testClient(2)).Score(context.Background(), []byte("img"))
	require.NoError(t, err)
	assert.Equal(t, 10.0, score)
	assert.Equal(t, int32(2), calls.Load())
}

func TestScorer_ClientErrorFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad image", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	_, err := NewScorer(srv.URL, testClient(2)).Score(context.Background(), []byte("img"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "422")
}

func TestNSFWClassifier_Check(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/check", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]bool{"nsfw": true})
	}))
	defer srv.Close()

	nsfw, err := NewNSFWClassifier(srv.URL, testClient(0)).Check(context.Background(), []byte("img"))
	require.NoError(t, err)
	assert.True(t, nsfw)
}

func TestRenderer_ComposeSkipsMissingSlots(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			return
		}
		assert.Equal(t, "87", r.FormValue("score"))
		assert.Equal(t, "3", r.FormValue("rank"))
		assert.Equal(t, "alice", r.FormValue("displayName"))
		assert.Contains(t, r.MultipartForm.File, "top0")
		assert.Contains(t, r.MultipartForm.File, "top2")
		assert.NotContains(t, r.MultipartForm.File, "top1")
		assert.NotContains(t, r.MultipartForm.File, "avatar")
		_, _ = w.Write([]byte("PNGDATA"))
	}))
	defer srv.Close()

	card := Card{Score: 87, Rank: 3, DisplayName: "alice"}
	card.Top[0] = []byte("a")
	card.Top[2] = []byte("c")

	out, err := NewRenderer(srv.URL, testClient(0)).Compose(context.Background(), card)
	require.NoError(t, err)
	assert.Equal(t, "PNGDATA", string(out))
}
