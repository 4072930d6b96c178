package music

import (
	"math/rand"
	"strings"
	"time"
)

const autoplayHistoryCap = 20

// SessionQueue holds all playback state for one guild session. It is a
// plain data structure with no locking of its own: every access goes
// through the Registry, which runs callers under its lock.
type SessionQueue struct {
	Pending []QueuedTrack
	History []QueuedTrack
	Current *QueuedTrack

	Volume   int
	Loop     LoopMode
	Paused   bool
	Autoplay bool

	LastTrackTitle string
	LastVideoID    string
	TextChannelID  string
	LastActivity   time.Time

	recentAutoplayed []string
}

func NewSessionQueue() *SessionQueue {
	return &SessionQueue{
		Volume:       100,
		Loop:         LoopOff,
		LastActivity: time.Now(),
	}
}

func (q *SessionQueue) Enqueue(item QueuedTrack) {
	q.Pending = append(q.Pending, item)
}

// Advance is the core queue transition. The second return reports
// whether the yielded track is the one already playing (loop-track
// replay), so callers can suppress a redundant now-playing notice.
func (q *SessionQueue) Advance() (*QueuedTrack, bool) {
	if q.Loop == LoopTrack && q.Current != nil {
		cur := *q.Current
		return &cur, true
	}

	if q.Current != nil && q.Loop == LoopQueue {
		q.History = append(q.History, *q.Current)
	}

	if len(q.Pending) == 0 && q.Loop == LoopQueue && len(q.History) > 0 {
		q.Pending = q.History
		q.History = nil
	}

	if len(q.Pending) == 0 {
		q.Current = nil
		return nil, false
	}

	next := q.Pending[0]
	q.Pending = q.Pending[1:]
	q.Current = &next

	cur := next
	return &cur, false
}

func (q *SessionQueue) Clear() {
	q.Pending = nil
	q.History = nil
	q.Current = nil
}

// RemoveAt removes the pending entry at the given 0-based index. The
// 1-based adjustment happens at the command boundary.
func (q *SessionQueue) RemoveAt(index int) *QueuedTrack {
	if index < 0 || index >= len(q.Pending) {
		return nil
	}
	removed := q.Pending[index]
	q.Pending = append(q.Pending[:index], q.Pending[index+1:]...)
	return &removed
}

// Shuffle permutes the pending list in place. Current is untouched.
func (q *SessionQueue) Shuffle() {
	for i := len(q.Pending) - 1; i > 0; i-- {
		j := rand.Intn(i + 1)
		q.Pending[i], q.Pending[j] = q.Pending[j], q.Pending[i]
	}
}

func (q *SessionQueue) IsEmpty() bool {
	return q.Current == nil && len(q.Pending) == 0
}

func (q *SessionQueue) TouchActivity() {
	q.LastActivity = time.Now()
}

// IsIdleFor reports whether nothing is current and no activity has been
// recorded for at least d. Sessions with a current track are never idle
// no matter how old LastActivity is.
func (q *SessionQueue) IsIdleFor(d time.Duration) bool {
	if q.Current != nil {
		return false
	}
	return time.Since(q.LastActivity) >= d
}

// noteNowPlaying records autoplay seed data for the track that just
// became current.
func (q *SessionQueue) noteNowPlaying(t Track) {
	q.LastTrackTitle = t.Title
	if vid := extractVideoID(t.URI); vid != "" {
		q.LastVideoID = vid
	}
}

func (q *SessionQueue) NoteAutoplayed(videoID string) {
	if videoID == "" {
		return
	}
	q.recentAutoplayed = append(q.recentAutoplayed, videoID)
	if len(q.recentAutoplayed) > autoplayHistoryCap {
		q.recentAutoplayed = q.recentAutoplayed[len(q.recentAutoplayed)-autoplayHistoryCap:]
	}
}

func (q *SessionQueue) WasAutoplayed(videoID string) bool {
	for _, id := range q.recentAutoplayed {
		if id == videoID {
			return true
		}
	}
	return false
}

func (q *SessionQueue) ClearAutoplayHistory() {
	q.recentAutoplayed = nil
}

func (q *SessionQueue) RecentAutoplayed() []string {
	out := make([]string, len(q.recentAutoplayed))
	copy(out, q.recentAutoplayed)
	return out
}

// extractVideoID pulls a YouTube video id out of a track URI, handling
// both youtu.be/ID and youtube.com?v=ID forms.
func extractVideoID(uri string) string {
	if uri == "" {
		return ""
	}
	if _, rest, ok := strings.Cut(uri, "youtu.be/"); ok {
		id, _, _ := strings.Cut(rest, "?")
		return id
	}
	if strings.Contains(uri, "youtube.com") {
		if _, rest, ok := strings.Cut(uri, "v="); ok {
			id, _, _ := strings.Cut(rest, "&")
			return id
		}
	}
	return ""
}
