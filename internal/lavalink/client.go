package lavalink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/hxnx/wormbot/internal/music"
)

// Config holds the connection settings for a single audio node.
type Config struct {
	Host     string
	Port     int
	Password string
	Secure   bool
}

// Client talks to one Lavalink node: track loading and player control
// over REST, events over the websocket in ws.go. It implements
// music.AudioNode.
type Client struct {
	cfg        Config
	httpClient *http.Client

	mu        sync.RWMutex
	userID    string
	sessionID string
	players   map[string]*playerState

	trackEnd func(guildID string, reason music.EndReason)

	connMu sync.Mutex
	conn   wsConn
	closed chan struct{}
	once   sync.Once
}

type playerState struct {
	connected      bool
	voiceToken     string
	voiceEndpoint  string
	voiceSessionID string
}

func NewClient(cfg Config) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		players:    make(map[string]*playerState),
		closed:     make(chan struct{}),
	}
}

// SetUserID must be called with the bot's user ID before Open; the node
// rejects websocket handshakes without it.
func (c *Client) SetUserID(id string) {
	c.mu.Lock()
	c.userID = id
	c.mu.Unlock()
}

// OnTrackEnd registers the callback fired for every TrackEndEvent the
// node sends. It must be set before Open.
func (c *Client) OnTrackEnd(fn func(guildID string, reason music.EndReason)) {
	c.trackEnd = fn
}

func (c *Client) restBase() string {
	scheme := "http"
	if c.cfg.Secure {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, c.cfg.Host, c.cfg.Port)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.restBase()+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", c.cfg.Password)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", music.ErrConnection, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("%w: node returned %d: %s", music.ErrConnection, resp.StatusCode, raw)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) currentSessionID() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.sessionID == "" {
		return "", fmt.Errorf("%w: no node session", music.ErrConnection)
	}
	return c.sessionID, nil
}

func (c *Client) playerPath(guildID string) (string, error) {
	sessionID, err := c.currentSessionID()
	if err != nil {
		return "", err
	}
	return "/v4/sessions/" + sessionID + "/players/" + guildID, nil
}

// Connected reports whether the node holds an active voice connection
// for the guild.
func (c *Client) Connected(guildID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.sessionID == "" {
		return false
	}
	p, ok := c.players[guildID]
	return ok && p.connected
}

// Load resolves an identifier (URL or search prefix query) into tracks.
func (c *Client) Load(ctx context.Context, identifier string) (music.LoadResult, error) {
	var resp loadResponse
	path := "/v4/loadtracks?identifier=" + url.QueryEscape(identifier)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return music.LoadResult{}, err
	}

	switch resp.LoadType {
	case "track":
		var t trackPayload
		if err := json.Unmarshal(resp.Data, &t); err != nil {
			return music.LoadResult{}, fmt.Errorf("%w: bad track payload: %v", music.ErrConnection, err)
		}
		return music.LoadResult{Type: music.LoadTypeTrack, Tracks: []music.Track{t.toTrack()}}, nil
	case "playlist":
		var pl playlistData
		if err := json.Unmarshal(resp.Data, &pl); err != nil {
			return music.LoadResult{}, fmt.Errorf("%w: bad playlist payload: %v", music.ErrConnection, err)
		}
		tracks := make([]music.Track, 0, len(pl.Tracks))
		for _, t := range pl.Tracks {
			tracks = append(tracks, t.toTrack())
		}
		return music.LoadResult{Type: music.LoadTypePlaylist, Tracks: tracks, PlaylistName: pl.Info.Name}, nil
	case "search":
		var items []trackPayload
		if err := json.Unmarshal(resp.Data, &items); err != nil {
			return music.LoadResult{}, fmt.Errorf("%w: bad search payload: %v", music.ErrConnection, err)
		}
		tracks := make([]music.Track, 0, len(items))
		for _, t := range items {
			tracks = append(tracks, t.toTrack())
		}
		return music.LoadResult{Type: music.LoadTypeSearch, Tracks: tracks}, nil
	case "empty":
		return music.LoadResult{Type: music.LoadTypeEmpty}, nil
	case "error":
		var le loadError
		_ = json.Unmarshal(resp.Data, &le)
		return music.LoadResult{}, fmt.Errorf("%w: %s", music.ErrPlayback, le.Message)
	default:
		return music.LoadResult{}, fmt.Errorf("%w: unknown load type %q", music.ErrConnection, resp.LoadType)
	}
}

func (c *Client) updatePlayer(ctx context.Context, guildID string, update playerUpdateRequest) error {
	path, err := c.playerPath(guildID)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPatch, path, update, nil)
}

func (c *Client) Play(ctx context.Context, guildID string, track music.Track) error {
	return c.updatePlayer(ctx, guildID, playerUpdateRequest{Track: encodedRef(track.Encoded)})
}

func (c *Client) Stop(ctx context.Context, guildID string) error {
	return c.updatePlayer(ctx, guildID, playerUpdateRequest{Track: nullRef()})
}

func (c *Client) SetPaused(ctx context.Context, guildID string, paused bool) error {
	return c.updatePlayer(ctx, guildID, playerUpdateRequest{Paused: &paused})
}

func (c *Client) SetVolume(ctx context.Context, guildID string, volume int) error {
	return c.updatePlayer(ctx, guildID, playerUpdateRequest{Volume: &volume})
}

// Destroy removes the node-side player and all local voice state for
// the guild.
func (c *Client) Destroy(ctx context.Context, guildID string) error {
	path, err := c.playerPath(guildID)
	if err != nil {
		c.dropPlayer(guildID)
		return err
	}
	err = c.do(ctx, http.MethodDelete, path, nil, nil)
	c.dropPlayer(guildID)
	return err
}

func (c *Client) dropPlayer(guildID string) {
	c.mu.Lock()
	delete(c.players, guildID)
	c.mu.Unlock()
}

// HandleVoiceStateUpdate feeds the bot's own voice state into the
// pending voice handshake. An empty channelID means the bot left.
func (c *Client) HandleVoiceStateUpdate(guildID, channelID, sessionID string) {
	if channelID == "" {
		c.dropPlayer(guildID)
		return
	}

	c.mu.Lock()
	p := c.players[guildID]
	if p == nil {
		p = &playerState{}
		c.players[guildID] = p
	}
	p.voiceSessionID = sessionID
	c.mu.Unlock()

	c.tryVoiceConnect(guildID)
}

// HandleVoiceServerUpdate feeds Discord's voice server assignment into
// the pending voice handshake.
func (c *Client) HandleVoiceServerUpdate(guildID, token, endpoint string) {
	if endpoint == "" {
		// Discord sends a null endpoint while migrating voice servers;
		// the real assignment follows in a later dispatch.
		return
	}

	c.mu.Lock()
	p := c.players[guildID]
	if p == nil {
		p = &playerState{}
		c.players[guildID] = p
	}
	p.voiceToken = token
	p.voiceEndpoint = endpoint
	c.mu.Unlock()

	c.tryVoiceConnect(guildID)
}

// tryVoiceConnect pushes the voice credentials to the node once both
// halves of the handshake have arrived.
func (c *Client) tryVoiceConnect(guildID string) {
	c.mu.RLock()
	p := c.players[guildID]
	var voice voiceState
	ready := false
	if p != nil && p.voiceToken != "" && p.voiceEndpoint != "" && p.voiceSessionID != "" {
		voice = voiceState{
			Token:     p.voiceToken,
			Endpoint:  p.voiceEndpoint,
			SessionID: p.voiceSessionID,
		}
		ready = true
	}
	c.mu.RUnlock()
	if !ready {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := c.updatePlayer(ctx, guildID, playerUpdateRequest{Voice: &voice}); err != nil {
		logf("voice update for guild %s failed: %v", guildID, err)
		return
	}

	c.mu.Lock()
	if p := c.players[guildID]; p != nil {
		p.connected = true
	}
	c.mu.Unlock()
}
