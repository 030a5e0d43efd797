package search

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgnsrekt/soundshelf/internal/library"
)

type listFunc func(ctx context.Context) ([]library.Sound, error)

func (f listFunc) List(ctx context.Context) ([]library.Sound, error) { return f(ctx) }

func catalog() listFunc {
	return func(context.Context) ([]library.Sound, error) {
		return []library.Sound{
			{ID: "1", Name: "Heavy Rain", Tags: []string{"nature", "water"}},
			{ID: "2", Name: "Kick Drum", Tags: []string{"drums"}},
			{ID: "3", Name: "Rain on Roof", Tags: []string{"nature"}},
			{ID: "4", Name: "Ambient Pad", Tags: []string{"synth"}},
		}, nil
	}
}

func names(sounds []library.Sound) []string {
	out := make([]string, len(sounds))
	for i, s := range sounds {
		out[i] = s.Name
	}
	return out
}

func TestLocal_FuzzyQuery(t *testing.T) {
	l := NewLocal(catalog())

	got, err := l.Search(context.Background(), library.SearchRequest{Query: "rain"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Heavy Rain", "Rain on Roof"}, names(got))
}

func TestLocal_QueryMatchesTags(t *testing.T) {
	l := NewLocal(catalog())

	got, err := l.Search(context.Background(), library.SearchRequest{Query: "drums"})
	require.NoError(t, err)
	require.NotEmpty(t, got)
	assert.Equal(t, "Kick Drum", got[0].Name)
}

func TestLocal_TagsOnly(t *testing.T) {
	l := NewLocal(catalog())

	got, err := l.Search(context.Background(), library.SearchRequest{Tags: []string{"Nature"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"Heavy Rain", "Rain on Roof"}, names(got))

	got, err = l.Search(context.Background(), library.SearchRequest{Tags: []string{"nature", "water"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"Heavy Rain"}, names(got), "every tag must be present")
}

func TestLocal_NoMatch(t *testing.T) {
	l := NewLocal(catalog())

	got, err := l.Search(context.Background(), library.SearchRequest{Query: "zzzz"})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestLocal_ListError(t *testing.T) {
	boom := errors.New("db down")
	l := NewLocal(listFunc(func(context.Context) ([]library.Sound, error) { return nil, boom }))

	_, err := l.Search(context.Background(), library.SearchRequest{Query: "x"})
	assert.ErrorIs(t, err, boom)
}

func TestRemote_Search(t *testing.T) {
	var got library.SearchRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"sounds":[{"id":"a","name":"Rain","audioUrl":"https://x.co/rain.mp3","bpm":90}],"logs":["ok"]}`))
	}))
	defer srv.Close()

	r := NewRemote(srv.URL, time.Second)
	sounds, err := r.Search(context.Background(), library.SearchRequest{Query: "rain", UserID: "u1"})
	require.NoError(t, err)

	assert.Equal(t, "rain", got.Query)
	assert.Equal(t, "u1", got.UserID)
	assert.NotNil(t, got.Tags, "tags are always sent as an array")

	require.Len(t, sounds, 1)
	assert.Equal(t, "Rain", sounds[0].Name)
	require.NotNil(t, sounds[0].BPM)
	assert.Equal(t, 90, *sounds[0].BPM)
}

func TestRemote_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"error body", http.StatusOK, `{"error":"quota exceeded"}`, "quota exceeded"},
		{"bad request", http.StatusBadRequest, `{"error":"No query or tags provided"}`, "No query or tags provided"},
		{"server error", http.StatusInternalServerError, `oops`, "status 500"},
		{"invalid json", http.StatusOK, `not json`, "invalid search response"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewRemote(srv.URL, time.Second).Search(context.Background(), library.SearchRequest{Query: "x"})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestRemote_NoEndpoint(t *testing.T) {
	_, err := NewRemote("", time.Second).Search(context.Background(), library.SearchRequest{Query: "x"})
	assert.ErrorIs(t, err, ErrNoEndpoint)
}

type fakeBackend struct {
	name  string
	err   error
	calls int
}

func (b *fakeBackend) Name() string { return b.name }

func (b *fakeBackend) Search(context.Context, library.SearchRequest) ([]library.Sound, error) {
	b.calls++
	if b.err != nil {
		return nil, b.err
	}
	return []library.Sound{{ID: b.name, Name: b.name}}, nil
}

func TestFallback_SwitchesAfterMaxFailures(t *testing.T) {
	primary := &fakeBackend{name: "remote", err: errors.New("timeout")}
	secondary := &fakeBackend{name: "local"}
	f := NewFallback(primary, secondary, 2, 0)
	ctx := context.Background()

	_, err := f.Search(ctx, library.SearchRequest{Query: "x"})
	require.Error(t, err, "first failure is reported")
	assert.Equal(t, "remote", f.Active())

	got, err := f.Search(ctx, library.SearchRequest{Query: "x"})
	require.NoError(t, err)
	assert.Equal(t, "local", got[0].ID)
	assert.Equal(t, "local", f.Active())

	// Stays on the fallback without touching the primary.
	_, _ = f.Search(ctx, library.SearchRequest{Query: "x"})
	assert.Equal(t, 2, primary.calls)
	assert.Equal(t, 2, secondary.calls)
}

func TestFallback_ReturnsToPrimary(t *testing.T) {
	primary := &fakeBackend{name: "remote", err: errors.New("down")}
	secondary := &fakeBackend{name: "local"}
	f := NewFallback(primary, secondary, 1, time.Minute)

	now := time.Unix(1700000000, 0)
	f.now = func() time.Time { return now }
	ctx := context.Background()

	got, err := f.Search(ctx, library.SearchRequest{Query: "x"})
	require.NoError(t, err)
	assert.Equal(t, "local", got[0].ID)

	now = now.Add(30 * time.Second)
	_, _ = f.Search(ctx, library.SearchRequest{Query: "x"})
	assert.Equal(t, 1, primary.calls, "primary is not retried before retryAfter")

	primary.err = nil
	now = now.Add(time.Minute)
	assert.Equal(t, "remote", f.Active())
	got, err = f.Search(ctx, library.SearchRequest{Query: "x"})
	require.NoError(t, err)
	assert.Equal(t, "remote", got[0].ID)
	assert.Equal(t, "remote", f.Active())
}

func TestFallback_BothFail(t *testing.T) {
	primary := &fakeBackend{name: "remote", err: errors.New("down")}
	secondary := &fakeBackend{name: "local", err: errors.New("no db")}
	f := NewFallback(primary, secondary, 1, 0)

	_, err := f.Search(context.Background(), library.SearchRequest{Query: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "both searches failed")
	assert.ErrorIs(t, err, secondary.err)
}

func TestFallback_PrimaryRecoveryResetsFailures(t *testing.T) {
	primary := &fakeBackend{name: "remote", err: errors.New("flaky")}
	secondary := &fakeBackend{name: "local"}
	f := NewFallback(primary, secondary, 2, 0)
	ctx := context.Background()

	_, _ = f.Search(ctx, library.SearchRequest{Query: "x"})
	primary.err = nil
	_, err := f.Search(ctx, library.SearchRequest{Query: "x"})
	require.NoError(t, err)

	primary.err = errors.New("flaky")
	_, err = f.Search(ctx, library.SearchRequest{Query: "x"})
	require.Error(t, err, "counter was reset, so one failure does not switch")
	assert.Equal(t, 0, secondary.calls)
}
