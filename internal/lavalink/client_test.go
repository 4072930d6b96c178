package lavalink

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hxnx/wormbot/internal/music"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	u, err := url.Parse(server.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)

	c := NewClient(Config{
		Host:     u.Hostname(),
		Port:     port,
		Password: "secret",
	})
	c.sessionID = "session-1"
	return c
}

func TestLoadTrack(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("Authorization"))
		assert.Equal(t, "/v4/loadtracks", r.URL.Path)
		assert.Equal(t, "https://youtu.be/abc", r.URL.Query().Get("identifier"))

		_, _ = w.Write([]byte(`{
			"loadType": "track",
			"data": {
				"encoded": "enc123",
				"info": {
					"identifier": "abc",
					"author": "Artist",
					"length": 185000,
					"title": "Song",
					"uri": "https://youtu.be/abc",
					"artworkUrl": "https://img/abc.jpg",
					"sourceName": "youtube"
				}
			}
		}`))
	})

	res, err := c.Load(context.Background(), "https://youtu.be/abc")
	require.NoError(t, err)

	assert.Equal(t, music.LoadTypeTrack, res.Type)
	require.Len(t, res.Tracks, 1)
	track := res.Tracks[0]
	assert.Equal(t, "enc123", track.Encoded)
	assert.Equal(t, "abc", track.ID)
	assert.Equal(t, "Song", track.Title)
	assert.Equal(t, "Artist", track.Author)
	assert.Equal(t, 185*time.Second, track.Duration)
	assert.Equal(t, music.TrackSourceYouTube, track.Source)
}

func TestLoadPlaylist(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"loadType": "playlist",
			"data": {
				"info": {"name": "My Mix"},
				"tracks": [
					{"encoded": "e1", "info": {"identifier": "a", "title": "A", "sourceName": "youtube"}},
					{"encoded": "e2", "info": {"identifier": "b", "title": "B", "sourceName": "youtube"}}
				]
			}
		}`))
	})

	res, err := c.Load(context.Background(), "playlist-url")
	require.NoError(t, err)

	assert.Equal(t, music.LoadTypePlaylist, res.Type)
	assert.Equal(t, "My Mix", res.PlaylistName)
	assert.Len(t, res.Tracks, 2)
}

func TestLoadEmpty(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"loadType": "empty", "data": {}}`))
	})

	res, err := c.Load(context.Background(), "nothing")
	require.NoError(t, err)
	assert.Equal(t, music.LoadTypeEmpty, res.Type)
	assert.Empty(t, res.Tracks)
}

func TestLoadError(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"loadType": "error", "data": {"message": "video unavailable", "severity": "common"}}`))
	})

	_, err := c.Load(context.Background(), "broken")
	require.Error(t, err)
	assert.ErrorIs(t, err, music.ErrPlayback)
	assert.Contains(t, err.Error(), "video unavailable")
}

func TestPlaySendsEncodedTrack(t *testing.T) {
	var body map[string]any
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/v4/sessions/session-1/players/guild-1", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, _ = w.Write([]byte(`{}`))
	})

	err := c.Play(context.Background(), "guild-1", music.Track{Encoded: "enc123"})
	require.NoError(t, err)

	track, ok := body["track"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "enc123", track["encoded"])
}

func TestStopSendsNullTrack(t *testing.T) {
	var raw string
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		raw = string(b)
		_, _ = w.Write([]byte(`{}`))
	})

	err := c.Stop(context.Background(), "guild-1")
	require.NoError(t, err)
	assert.Contains(t, raw, `"encoded":null`)
}

func TestDestroyDeletesPlayer(t *testing.T) {
	var method, path string
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		path = r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	})
	c.players["guild-1"] = &playerState{connected: true}

	err := c.Destroy(context.Background(), "guild-1")
	require.NoError(t, err)
	assert.Equal(t, http.MethodDelete, method)
	assert.Equal(t, "/v4/sessions/session-1/players/guild-1", path)
	assert.False(t, c.Connected("guild-1"))
}

func TestPlayerOpsRequireNodeSession(t *testing.T) {
	c := NewClient(Config{Host: "localhost", Port: 2333, Password: "secret"})

	err := c.Play(context.Background(), "guild-1", music.Track{Encoded: "x"})
	assert.ErrorIs(t, err, music.ErrConnection)
}

func TestConnectedTracksPlayerState(t *testing.T) {
	c := NewClient(Config{Host: "localhost", Port: 2333, Password: "secret"})
	assert.False(t, c.Connected("guild-1"))

	c.sessionID = "session-1"
	c.players["guild-1"] = &playerState{connected: true}
	assert.True(t, c.Connected("guild-1"))

	c.markAllDisconnected()
	assert.False(t, c.Connected("guild-1"))
}

func TestHandleMessageReadyStoresSession(t *testing.T) {
	c := NewClient(Config{})
	c.handleMessage(wsMessage{Op: "ready", SessionID: "abc"})
	assert.Equal(t, "abc", c.sessionID)
}

func TestHandleMessagePlayerUpdate(t *testing.T) {
	c := NewClient(Config{})
	c.players["guild-1"] = &playerState{}

	c.handleMessage(wsMessage{
		Op:      "playerUpdate",
		GuildID: "guild-1",
		State:   &playerWsState{Connected: true},
	})

	assert.True(t, c.players["guild-1"].connected)
}

func TestTrackEndEventDispatch(t *testing.T) {
	c := NewClient(Config{})

	type end struct {
		guildID string
		reason  music.EndReason
	}
	got := make(chan end, 1)
	c.OnTrackEnd(func(guildID string, reason music.EndReason) {
		got <- end{guildID, reason}
	})

	c.handleMessage(wsMessage{
		Op:      "event",
		Type:    "TrackEndEvent",
		GuildID: "guild-1",
		Reason:  "finished",
	})

	select {
	case e := <-got:
		assert.Equal(t, "guild-1", e.guildID)
		assert.Equal(t, music.EndReasonFinished, e.reason)
	case <-time.After(time.Second):
		t.Fatal("track end callback never fired")
	}
}

func TestEndReasonMapping(t *testing.T) {
	assert.Equal(t, music.EndReasonFinished, endReason("finished"))
	assert.Equal(t, music.EndReasonStopped, endReason("stopped"))
	assert.Equal(t, music.EndReasonReplaced, endReason("replaced"))
	assert.Equal(t, music.EndReasonLoadFailed, endReason("loadFailed"))
	assert.Equal(t, music.EndReasonCleanup, endReason("cleanup"))
	assert.Equal(t, music.EndReasonCleanup, endReason("anything else"))
}

func TestVoiceHandshakePairsBothHalves(t *testing.T) {
	patched := make(chan map[string]any, 1)
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		patched <- body
		_, _ = w.Write([]byte(`{}`))
	})

	// Only one half arrived: nothing goes out.
	c.HandleVoiceStateUpdate("guild-1", "channel-1", "voice-session")
	select {
	case <-patched:
		t.Fatal("voice update sent before both halves arrived")
	case <-time.After(50 * time.Millisecond):
	}

	c.HandleVoiceServerUpdate("guild-1", "token-1", "endpoint-1")

	select {
	case body := <-patched:
		voice, ok := body["voice"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "token-1", voice["token"])
		assert.Equal(t, "endpoint-1", voice["endpoint"])
		assert.Equal(t, "voice-session", voice["sessionId"])
	case <-time.After(time.Second):
		t.Fatal("voice update never sent")
	}

	assert.True(t, c.Connected("guild-1"))
}
