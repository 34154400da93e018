package spotify_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	logtest "github.com/sirupsen/logrus/hooks/test"

	"github.com/ewilliams-labs/cadence/internal/adapters/spotify"
	"github.com/ewilliams-labs/cadence/internal/core/domain"
	"github.com/ewilliams-labs/cadence/internal/core/ports"
)

// --- Helpers ---

func newTestClient(t *testing.T, ts *httptest.Server) *spotify.Client {
	t.Helper()

	tokens := spotify.NewTokenStore()
	tokens.SetAccessToken("test-token", time.Hour)
	logger, _ := logtest.NewNullLogger()
	return spotify.NewClient(tokens, spotify.Options{
		HTTPClient:  ts.Client(),
		BaseURL:     ts.URL,
		Logger:      logger,
		BaseBackoff: time.Millisecond,
		MaxBackoff:  2 * time.Millisecond,
	})
}

func compareTracks(t *testing.T, got, want domain.Track) {
	t.Helper()

	if got.ID != want.ID {
		t.Errorf("ID: got %v, want %v", got.ID, want.ID)
	}
	if got.Title != want.Title {
		t.Errorf("Title: got %v, want %v", got.Title, want.Title)
	}
	if len(got.Artists) != len(want.Artists) {
		t.Errorf("Artists: got %v, want %v", got.Artists, want.Artists)
	} else {
		for i := range want.Artists {
			if got.Artists[i] != want.Artists[i] {
				t.Errorf("Artists[%d]: got %v, want %v", i, got.Artists[i], want.Artists[i])
			}
		}
	}
	if got.Album != want.Album {
		t.Errorf("Album: got %v, want %v", got.Album, want.Album)
	}
	if got.URI != want.URI {
		t.Errorf("URI: got %v, want %v", got.URI, want.URI)
	}
	if got.DurationMs != want.DurationMs {
		t.Errorf("DurationMs: got %v, want %v", got.DurationMs, want.DurationMs)
	}
	if got.AlbumArtURL != want.AlbumArtURL {
		t.Errorf("AlbumArtURL: got %v, want %v", got.AlbumArtURL, want.AlbumArtURL)
	}
}

// --- Tests ---

func TestExpiredTokenFailsWithoutNetwork(t *testing.T) {
	var hits int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer ts.Close()

	tokens := spotify.NewTokenStore()
	tokens.SetAccessToken("short-lived", 0)
	client := spotify.NewClient(tokens, spotify.Options{HTTPClient: ts.Client(), BaseURL: ts.URL})

	if client.Authenticated() {
		t.Fatalf("token with zero lifetime must be invalid")
	}

	calls := map[string]func() error{
		"search": func() error {
			_, err := client.SearchTracks(context.Background(), "running", 20)
			return err
		},
		"features": func() error {
			_, err := client.AudioFeatures(context.Background(), []string{"a"})
			return err
		},
		"playback": func() error {
			_, err := client.CurrentPlayback(context.Background())
			return err
		},
		"play": func() error {
			return client.Play(context.Background(), "spotify:track:1", "")
		},
		"pause": func() error {
			return client.Pause(context.Background(), "")
		},
	}
	for name, call := range calls {
		t.Run(name, func(t *testing.T) {
			if err := call(); !errors.Is(err, ports.ErrAuthenticationRequired) {
				t.Fatalf("expected ErrAuthenticationRequired, got %v", err)
			}
		})
	}

	if n := atomic.LoadInt32(&hits); n != 0 {
		t.Fatalf("expected no requests, got %d", n)
	}
}

func TestTokenStore(t *testing.T) {
	tokens := spotify.NewTokenStore()
	if _, ok := tokens.Token(); ok {
		t.Fatalf("empty store must not yield a token")
	}

	tokens.SetAccessToken("", time.Hour)
	if tokens.Valid() {
		t.Fatalf("empty token must be invalid")
	}

	tokens.SetAccessToken("abc", time.Hour)
	token, ok := tokens.Token()
	if !ok || token != "abc" {
		t.Fatalf("expected abc, got %q (%v)", token, ok)
	}
	if until := time.Until(tokens.ExpiresAt()); until < 59*time.Minute || until > time.Hour {
		t.Fatalf("unexpected expiry in %v", until)
	}

	tokens.Clear()
	if tokens.Valid() {
		t.Fatalf("cleared store must be invalid")
	}
}

func TestSearchTracks(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" {
			t.Errorf("path: got %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("auth header: got %q", got)
		}
		q := r.URL.Query()
		if q.Get("q") != "genre:techno" || q.Get("type") != "track" || q.Get("limit") != "20" {
			t.Errorf("query: got %v", q)
		}
		_, _ = io.WriteString(w, `{
			"tracks": {"items": [
				{"id":"t1","name":"Pulse","artists":[{"name":"A"},{"name":"B"}],
				 "album":{"name":"Night","images":[{"url":"https://img/1","height":640}]},
				 "duration_ms":201000,"uri":"spotify:track:t1","preview_url":null,"popularity":55},
				null,
				{"id":"","name":"broken"},
				{"id":"t2","name":"Drive","artists":[{"name":"C"}],"album":{"name":"Road"}}
			]}
		}`)
	}))
	defer ts.Close()

	client := newTestClient(t, ts)
	tracks, err := client.SearchTracks(context.Background(), "genre:techno", 20)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tracks) != 2 {
		t.Fatalf("expected 2 tracks, got %d", len(tracks))
	}

	compareTracks(t, tracks[0], domain.Track{
		ID: "t1", Title: "Pulse", Artists: []string{"A", "B"}, Album: "Night",
		DurationMs: 201000, URI: "spotify:track:t1", AlbumArtURL: "https://img/1",
	})
	compareTracks(t, tracks[1], domain.Track{
		ID: "t2", Title: "Drive", Artists: []string{"C"}, Album: "Road", URI: "spotify:track:t2",
	})
}

func TestSearchTracksRejectsBadInput(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("no request expected")
	}))
	defer ts.Close()
	client := newTestClient(t, ts)

	tests := []struct {
		name  string
		query string
		limit int
	}{
		{name: "empty query", query: "  ", limit: 20},
		{name: "zero limit", query: "run", limit: 0},
		{name: "limit too large", query: "run", limit: 51},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := client.SearchTracks(context.Background(), tt.query, tt.limit)
			if !errors.Is(err, ports.ErrInvalidRequest) {
				t.Fatalf("expected ErrInvalidRequest, got %v", err)
			}
		})
	}
}

func TestAudioFeatures(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if got := r.URL.Query().Get("ids"); got != "a,b,c" {
			t.Errorf("ids: got %q", got)
		}
		_, _ = io.WriteString(w, `{"audio_features":[
			{"id":"a","tempo":160.2,"energy":0.9,"danceability":0.7,"valence":0.5,"key":5},
			null,
			{"id":"c","tempo":99.5,"energy":0.1}
		]}`)
	}))
	defer ts.Close()

	client := newTestClient(t, ts)
	features, err := client.AudioFeatures(context.Background(), []string{"a", "", "b", "c"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(features) != 2 {
		t.Fatalf("expected 2 features, got %d", len(features))
	}
	if features[0] != (domain.AudioFeatures{TrackID: "a", Tempo: 160.2, Energy: 0.9, Danceability: 0.7, Valence: 0.5}) {
		t.Errorf("unexpected first features: %+v", features[0])
	}
	if features[1].TrackID != "c" || features[1].Danceability != 0 {
		t.Errorf("unexpected second features: %+v", features[1])
	}

	empty, err := client.AudioFeatures(context.Background(), nil)
	if err != nil || empty != nil {
		t.Fatalf("expected nil result for empty ids, got %v, %v", empty, err)
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Fatalf("expected 1 request, got %d", n)
	}
}

func TestCurrentPlayback(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantNil   bool
		wantTrack string
		wantErr   error
	}{
		{name: "no content means nothing playing", status: http.StatusNoContent, wantNil: true},
		{
			name:      "active playback",
			status:    http.StatusOK,
			body:      `{"is_playing":true,"progress_ms":1200,"item":{"id":"t9","name":"Go"},"device":{"id":"d1","name":"Phone","type":"Smartphone","is_active":true,"volume_percent":80}}`,
			wantTrack: "t9",
		},
		{name: "empty 200 body", status: http.StatusOK, wantErr: ports.ErrNoData},
		{name: "malformed body", status: http.StatusOK, body: `{"is_playing":"yes"}`, wantErr: ports.ErrDecoding},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer ts.Close()

			pb, err := newTestClient(t, ts).CurrentPlayback(context.Background())
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantNil {
				if pb != nil {
					t.Fatalf("expected nil playback, got %+v", pb)
				}
				return
			}
			if pb == nil || pb.Track == nil || pb.Track.ID != tt.wantTrack {
				t.Fatalf("unexpected playback: %+v", pb)
			}
			if pb.Device == nil || pb.Device.Volume != 80 || !pb.IsPlaying || pb.ProgressMs != 1200 {
				t.Fatalf("unexpected device or progress: %+v", pb)
			}
		})
	}
}

func TestPlaybackCommands(t *testing.T) {
	type seen struct {
		method, path, device string
		uris                 []string
		hasBody              bool
	}
	var got []seen

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s := seen{method: r.Method, path: r.URL.Path, device: r.URL.Query().Get("device_id")}
		body, _ := io.ReadAll(r.Body)
		if len(body) > 0 {
			s.hasBody = true
			var pr struct {
				URIs []string `json:"uris"`
			}
			if err := json.Unmarshal(body, &pr); err != nil {
				t.Errorf("bad play body: %v", err)
			}
			s.uris = pr.URIs
		}
		got = append(got, s)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	client := newTestClient(t, ts)
	ctx := context.Background()
	if err := client.Play(ctx, "spotify:track:42", "dev-1"); err != nil {
		t.Fatalf("play: %v", err)
	}
	if err := client.Pause(ctx, ""); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if err := client.Resume(ctx, "dev-2"); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if err := client.Play(ctx, "not-a-uri", ""); !errors.Is(err, ports.ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}

	if len(got) != 3 {
		t.Fatalf("expected 3 requests, got %d", len(got))
	}
	if got[0].method != http.MethodPut || got[0].path != "/me/player/play" || got[0].device != "dev-1" ||
		len(got[0].uris) != 1 || got[0].uris[0] != "spotify:track:42" {
		t.Errorf("unexpected play request: %+v", got[0])
	}
	if got[1].path != "/me/player/pause" || got[1].device != "" || got[1].hasBody {
		t.Errorf("unexpected pause request: %+v", got[1])
	}
	if got[2].path != "/me/player/play" || got[2].device != "dev-2" || got[2].hasBody {
		t.Errorf("unexpected resume request: %+v", got[2])
	}
}

func TestCurrentUserAndDevices(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/me":
			_, _ = io.WriteString(w, `{"id":"runner","display_name":"Road Runner","email":"r@example.com","country":"NZ","product":"premium"}`)
		case "/me/player/devices":
			_, _ = io.WriteString(w, `{"devices":[{"id":"d1","name":"Phone","type":"Smartphone","is_active":true,"volume_percent":null}]}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer ts.Close()

	client := newTestClient(t, ts)
	user, err := client.CurrentUser(context.Background())
	if err != nil {
		t.Fatalf("user: %v", err)
	}
	if user != (domain.UserProfile{ID: "runner", DisplayName: "Road Runner", Email: "r@example.com", Country: "NZ", Product: "premium"}) {
		t.Fatalf("unexpected user: %+v", user)
	}

	devices, err := client.Devices(context.Background())
	if err != nil {
		t.Fatalf("devices: %v", err)
	}
	if len(devices) != 1 || devices[0].ID != "d1" || devices[0].Volume != 0 || !devices[0].IsActive {
		t.Fatalf("unexpected devices: %+v", devices)
	}
}

func TestPing(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Errorf("method: got %s", r.Method)
		}
		w.WriteHeader(http.StatusUnauthorized)
	}))
	client := newTestClient(t, ts)

	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("401 must count as reachable: %v", err)
	}

	ts.Close()
	if err := client.Ping(context.Background()); !errors.Is(err, ports.ErrNetwork) {
		t.Fatalf("expected ErrNetwork after close, got %v", err)
	}
}
