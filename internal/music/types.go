package music

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotConnected    = errors.New("not connected to a voice session")
	ErrConnection      = errors.New("audio node connection failed")
	ErrNotFound        = errors.New("no tracks found")
	ErrPlayback        = errors.New("audio node rejected playback")
	ErrNotPlaying      = errors.New("nothing is playing")
	ErrInvalidPosition = errors.New("queue position out of range")
)

type TrackSource string

const (
	TrackSourceYouTube    TrackSource = "youtube"
	TrackSourceSpotify    TrackSource = "spotify"
	TrackSourceSoundCloud TrackSource = "soundcloud"
	TrackSourceHTTP       TrackSource = "http"
	TrackSourceUnknown    TrackSource = "unknown"
)

type LoopMode string

const (
	LoopOff   LoopMode = "off"
	LoopTrack LoopMode = "track"
	LoopQueue LoopMode = "queue"
)

// EndReason is the audio node's reason tag on every track-end event.
// Only EndReasonFinished may advance the queue: stopped/replaced are
// emitted when a play() supersedes a running track, and advancing on
// those would double-advance past an in-flight skip.
type EndReason string

const (
	EndReasonFinished   EndReason = "finished"
	EndReasonStopped    EndReason = "stopped"
	EndReasonReplaced   EndReason = "replaced"
	EndReasonLoadFailed EndReason = "loadFailed"
	EndReasonCleanup    EndReason = "cleanup"
)

// Track is an immutable description of one playable item as returned by
// the audio node. Encoded is the node's opaque playback handle.
type Track struct {
	Encoded  string        `json:"encoded"`
	ID       string        `json:"id"`
	Title    string        `json:"title"`
	Author   string        `json:"author"`
	URI      string        `json:"uri"`
	Duration time.Duration `json:"duration"`
	Artwork  string        `json:"artwork,omitempty"`
	Source   TrackSource   `json:"source"`
}

type Requester struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// QueuedTrack pairs a Track with whoever asked for it. It is created at
// enqueue time and never mutated afterwards.
type QueuedTrack struct {
	Track     Track     `json:"track"`
	Requester Requester `json:"requester"`
}

type LoadType string

const (
	LoadTypeTrack    LoadType = "track"
	LoadTypePlaylist LoadType = "playlist"
	LoadTypeSearch   LoadType = "search"
	LoadTypeEmpty    LoadType = "empty"
	LoadTypeError    LoadType = "error"
)

type LoadResult struct {
	Type         LoadType
	Tracks       []Track
	PlaylistName string
}

// AudioNode is the contract with the external audio-rendering node. All
// calls are network operations and must never run under the registry
// lock.
type AudioNode interface {
	Connected(guildID string) bool
	Load(ctx context.Context, identifier string) (LoadResult, error)
	Play(ctx context.Context, guildID string, track Track) error
	SetPaused(ctx context.Context, guildID string, paused bool) error
	SetVolume(ctx context.Context, guildID string, volume int) error
	Stop(ctx context.Context, guildID string) error
	Destroy(ctx context.Context, guildID string) error
}

// VoiceGateway asks the chat platform to move the bot in or out of a
// voice channel. The node learns the resulting voice credentials out of
// band, via gateway events.
type VoiceGateway interface {
	JoinChannel(guildID, channelID string) error
	LeaveChannel(guildID string) error
}

type Candidate struct {
	VideoID string `json:"video_id"`
	Title   string `json:"title"`
	Channel string `json:"channel"`
	URL     string `json:"url"`
}

// Searcher is the optional keyword-search provider used by the autoplay
// fallback. A nil Searcher disables that path.
type Searcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]Candidate, error)
}

// Notifier delivers user-visible playback notices. Implementations are
// fire-and-forget; failures are logged, never propagated.
type Notifier interface {
	NowPlaying(channelID string, item QueuedTrack, volume int, loop LoopMode)
	AutoplayStarted(channelID string, item QueuedTrack)
	InactivityDisconnect(channelID string)
}

// GuildDefaults supplies stored per-guild preferences applied when a
// session is first created.
type GuildDefaults interface {
	MusicDefaults(guildID string) (volume int, autoplay bool, ok bool)
}
