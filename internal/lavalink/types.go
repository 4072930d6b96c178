package lavalink

import (
	"encoding/json"
	"time"

	"github.com/hxnx/wormbot/internal/music"
)

type trackPayload struct {
	Encoded string    `json:"encoded"`
	Info    trackInfo `json:"info"`
}

type trackInfo struct {
	Identifier string  `json:"identifier"`
	Author     string  `json:"author"`
	Length     int64   `json:"length"`
	IsStream   bool    `json:"isStream"`
	Title      string  `json:"title"`
	URI        *string `json:"uri"`
	ArtworkURL *string `json:"artworkUrl"`
	SourceName string  `json:"sourceName"`
}

type playlistData struct {
	Info struct {
		Name string `json:"name"`
	} `json:"info"`
	Tracks []trackPayload `json:"tracks"`
}

type loadResponse struct {
	LoadType string          `json:"loadType"`
	Data     json.RawMessage `json:"data"`
}

type loadError struct {
	Message  string `json:"message"`
	Severity string `json:"severity"`
}

type voiceState struct {
	Token     string `json:"token"`
	Endpoint  string `json:"endpoint"`
	SessionID string `json:"sessionId"`
}

type playerUpdateRequest struct {
	Track  *trackRef   `json:"track,omitempty"`
	Paused *bool       `json:"paused,omitempty"`
	Volume *int        `json:"volume,omitempty"`
	Voice  *voiceState `json:"voice,omitempty"`
}

// trackRef carries the encoded track handle; a JSON null Encoded stops
// the player.
type trackRef struct {
	Encoded json.RawMessage `json:"encoded"`
}

func encodedRef(encoded string) *trackRef {
	raw, _ := json.Marshal(encoded)
	return &trackRef{Encoded: raw}
}

func nullRef() *trackRef {
	return &trackRef{Encoded: json.RawMessage("null")}
}

type wsMessage struct {
	Op        string          `json:"op"`
	SessionID string          `json:"sessionId,omitempty"`
	Resumed   bool            `json:"resumed,omitempty"`
	Type      string          `json:"type,omitempty"`
	GuildID   string          `json:"guildId,omitempty"`
	Reason    string          `json:"reason,omitempty"`
	State     *playerWsState  `json:"state,omitempty"`
	Track     json.RawMessage `json:"track,omitempty"`
}

type playerWsState struct {
	Time      int64 `json:"time"`
	Position  int64 `json:"position"`
	Connected bool  `json:"connected"`
	Ping      int   `json:"ping"`
}

func (t trackPayload) toTrack() music.Track {
	uri := ""
	if t.Info.URI != nil {
		uri = *t.Info.URI
	}
	artwork := ""
	if t.Info.ArtworkURL != nil {
		artwork = *t.Info.ArtworkURL
	}
	return music.Track{
		Encoded:  t.Encoded,
		ID:       t.Info.Identifier,
		Title:    t.Info.Title,
		Author:   t.Info.Author,
		URI:      uri,
		Duration: time.Duration(t.Info.Length) * time.Millisecond,
		Artwork:  artwork,
		Source:   sourceFromName(t.Info.SourceName),
	}
}

func sourceFromName(name string) music.TrackSource {
	switch name {
	case "youtube":
		return music.TrackSourceYouTube
	case "spotify":
		return music.TrackSourceSpotify
	case "soundcloud":
		return music.TrackSourceSoundCloud
	case "http":
		return music.TrackSourceHTTP
	default:
		return music.TrackSourceUnknown
	}
}

func endReason(wire string) music.EndReason {
	switch wire {
	case "finished":
		return music.EndReasonFinished
	case "stopped":
		return music.EndReasonStopped
	case "replaced":
		return music.EndReasonReplaced
	case "loadFailed":
		return music.EndReasonLoadFailed
	default:
		return music.EndReasonCleanup
	}
}
