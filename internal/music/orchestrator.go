package music

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"
)

const (
	defaultLoadTimeout = 15 * time.Second
	defaultConnectWait = 5 * time.Second

	searchPrefixPrimary  = "spsearch:"
	searchPrefixFallback = "ytsearch:"
)

// Orchestrator is the facade command handlers and the async track-end
// callback talk to. It coordinates registry reads/writes with calls to
// the audio node, releasing the registry lock before every network
// call.
type Orchestrator struct {
	node     AudioNode
	voice    VoiceGateway
	registry *Registry

	searcher Searcher
	notifier Notifier
	defaults GuildDefaults

	loadTimeout time.Duration
	connectWait time.Duration
}

func NewOrchestrator(node AudioNode, voice VoiceGateway) *Orchestrator {
	return &Orchestrator{
		node:        node,
		voice:       voice,
		registry:    NewRegistry(),
		loadTimeout: defaultLoadTimeout,
		connectWait: defaultConnectWait,
	}
}

func (o *Orchestrator) WithSearcher(s Searcher) *Orchestrator {
	o.searcher = s
	return o
}

func (o *Orchestrator) WithNotifier(n Notifier) *Orchestrator {
	o.notifier = n
	return o
}

func (o *Orchestrator) WithDefaults(d GuildDefaults) *Orchestrator {
	o.defaults = d
	return o
}

// Registry exposes the session registry for the idle reaper and the
// queue-view command. Nothing outside this package mutates sessions
// except through the closure discipline it enforces.
func (o *Orchestrator) Registry() *Registry {
	return o.registry
}

func (o *Orchestrator) Connected(guildID string) bool {
	return o.node.Connected(guildID)
}

// Join connects the audio node for this guild, creating a session entry
// if absent. A partial gateway-side connection is rolled back when the
// node never reports ready.
func (o *Orchestrator) Join(ctx context.Context, guildID, voiceChannelID, textChannelID string) error {
	if err := o.voice.JoinChannel(guildID, voiceChannelID); err != nil {
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}

	if err := o.waitConnected(ctx, guildID); err != nil {
		_ = o.voice.LeaveChannel(guildID)
		return err
	}

	o.ensureSession(guildID, textChannelID)
	return nil
}

func (o *Orchestrator) waitConnected(ctx context.Context, guildID string) error {
	ctx, cancel := context.WithTimeout(ctx, o.connectWait)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		if o.node.Connected(guildID) {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: node did not become ready", ErrConnection)
		case <-ticker.C:
		}
	}
}

// ensureSession creates the session lazily, seeding stored guild
// preferences on first creation. Defaults are read outside the lock.
func (o *Orchestrator) ensureSession(guildID, textChannelID string) {
	if !o.registry.Exists(guildID) && o.defaults != nil {
		if volume, autoplay, ok := o.defaults.MusicDefaults(guildID); ok {
			o.registry.Update(guildID, func(q *SessionQueue) {
				q.Volume = clampVolume(volume)
				q.Autoplay = autoplay
			})
		}
	}
	o.registry.Update(guildID, func(q *SessionQueue) {
		if textChannelID != "" {
			q.TextChannelID = textChannelID
		}
	})
}

type PlayResult struct {
	// Started reports that this request began playback immediately.
	Started bool
	// Track is the track that started, or the first track enqueued.
	Track QueuedTrack
	// Position is the 1-based queue position when enqueued behind an
	// already-playing track.
	Position int
	// PlaylistCount is the number of tracks added when the input
	// resolved to a playlist.
	PlaylistCount int
}

// Play resolves a URL or free-text query into tracks, enqueues them and
// starts playback when the queue was empty.
func (o *Orchestrator) Play(ctx context.Context, guildID, query string, requester Requester, textChannelID string) (PlayResult, error) {
	if !o.node.Connected(guildID) {
		return PlayResult{}, ErrNotConnected
	}
	o.ensureSession(guildID, textChannelID)

	tracks, err := o.resolve(ctx, query)
	if err != nil {
		return PlayResult{}, err
	}
	if len(tracks) == 0 {
		return PlayResult{}, ErrNotFound
	}

	items := make([]QueuedTrack, 0, len(tracks))
	for _, t := range tracks {
		items = append(items, QueuedTrack{Track: t, Requester: requester})
	}

	var wasEmpty bool
	var position int
	o.registry.Update(guildID, func(q *SessionQueue) {
		wasEmpty = q.IsEmpty()
		for _, item := range items {
			q.Enqueue(item)
		}
		position = len(q.Pending)
	})

	result := PlayResult{Track: items[0], PlaylistCount: len(items), Position: position}
	if !wasEmpty {
		return result, nil
	}

	next, err := o.startNext(ctx, guildID)
	if err != nil {
		return PlayResult{}, err
	}
	result.Started = true
	result.Track = *next
	result.Position = 0
	return result, nil
}

// startNext advances the queue and plays the yielded track. The track
// stays current even when the node rejects play, so a later skip moves
// past it; the caller reports the failure visibly.
func (o *Orchestrator) startNext(ctx context.Context, guildID string) (*QueuedTrack, error) {
	var next *QueuedTrack
	o.registry.Update(guildID, func(q *SessionQueue) {
		next, _ = q.Advance()
		if next != nil {
			q.noteNowPlaying(next.Track)
		}
	})
	if next == nil {
		return nil, ErrNotFound
	}

	if err := o.node.Play(ctx, guildID, next.Track); err != nil {
		o.registry.With(guildID, func(q *SessionQueue) { q.Current = nil })
		return nil, fmt.Errorf("%w: %v", ErrPlayback, err)
	}

	o.registry.With(guildID, func(q *SessionQueue) { q.TouchActivity() })
	return next, nil
}

type SkipResult struct {
	Next       *QueuedTrack
	Autoplayed *QueuedTrack
	QueueEmpty bool
}

// Skip advances to the next queued track, falling back to the autoplay
// search when the queue is exhausted and autoplay is on.
func (o *Orchestrator) Skip(ctx context.Context, guildID string) (SkipResult, error) {
	if !o.node.Connected(guildID) {
		return SkipResult{}, ErrNotConnected
	}

	var next *QueuedTrack
	var autoplayOn bool
	var channel string
	ok := o.registry.With(guildID, func(q *SessionQueue) {
		next, _ = q.Advance()
		if next != nil {
			q.noteNowPlaying(next.Track)
		}
		autoplayOn = q.Autoplay
		channel = q.TextChannelID
	})
	if !ok {
		return SkipResult{}, ErrNotConnected
	}

	if next != nil {
		if err := o.node.Play(ctx, guildID, next.Track); err != nil {
			o.registry.With(guildID, func(q *SessionQueue) { q.Current = nil })
			return SkipResult{}, fmt.Errorf("%w: %v", ErrPlayback, err)
		}
		o.registry.With(guildID, func(q *SessionQueue) { q.TouchActivity() })
		return SkipResult{Next: next}, nil
	}

	if autoplayOn {
		if item := o.runAutoplay(ctx, guildID, channel); item != nil {
			return SkipResult{Autoplayed: item}, nil
		}
	}

	if err := o.node.Stop(ctx, guildID); err != nil {
		log.Printf("music: stop after empty skip failed: %v", err)
	}
	return SkipResult{QueueEmpty: true}, nil
}

func (o *Orchestrator) Pause(ctx context.Context, guildID string) error {
	return o.setPaused(ctx, guildID, true)
}

func (o *Orchestrator) Resume(ctx context.Context, guildID string) error {
	return o.setPaused(ctx, guildID, false)
}

func (o *Orchestrator) setPaused(ctx context.Context, guildID string, paused bool) error {
	var playing bool
	ok := o.registry.With(guildID, func(q *SessionQueue) {
		playing = q.Current != nil
		if playing {
			q.Paused = paused
			if !paused {
				q.TouchActivity()
			}
		}
	})
	if !ok || !playing {
		return ErrNotPlaying
	}
	return o.node.SetPaused(ctx, guildID, paused)
}

// SetVolume clamps to 0-150, stores and forwards to the node.
func (o *Orchestrator) SetVolume(ctx context.Context, guildID string, level int) (int, error) {
	level = clampVolume(level)
	ok := o.registry.With(guildID, func(q *SessionQueue) { q.Volume = level })
	if !ok {
		return 0, ErrNotConnected
	}
	if err := o.node.SetVolume(ctx, guildID, level); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrPlayback, err)
	}
	return level, nil
}

// SetLoopMode is purely local state; the node is not involved.
func (o *Orchestrator) SetLoopMode(guildID string, mode LoopMode) error {
	if !o.registry.With(guildID, func(q *SessionQueue) { q.Loop = mode }) {
		return ErrNotConnected
	}
	return nil
}

func (o *Orchestrator) ToggleAutoplay(guildID string) (bool, error) {
	var enabled bool
	ok := o.registry.With(guildID, func(q *SessionQueue) {
		q.Autoplay = !q.Autoplay
		enabled = q.Autoplay
	})
	if !ok {
		return false, ErrNotConnected
	}
	return enabled, nil
}

func (o *Orchestrator) Shuffle(guildID string) error {
	if !o.registry.With(guildID, func(q *SessionQueue) { q.Shuffle() }) {
		return ErrNotConnected
	}
	return nil
}

// RemoveAt removes the pending entry at a 0-based index.
func (o *Orchestrator) RemoveAt(guildID string, index int) (*QueuedTrack, error) {
	var removed *QueuedTrack
	ok := o.registry.With(guildID, func(q *SessionQueue) { removed = q.RemoveAt(index) })
	if !ok {
		return nil, ErrNotConnected
	}
	if removed == nil {
		return nil, ErrInvalidPosition
	}
	return removed, nil
}

// Stop halts the node and wipes the queue; the session entry survives
// for the idle reaper to collect later.
func (o *Orchestrator) Stop(ctx context.Context, guildID string) error {
	ok := o.registry.With(guildID, func(q *SessionQueue) { q.Clear() })
	if !ok {
		return ErrNotConnected
	}
	if err := o.node.Stop(ctx, guildID); err != nil {
		return fmt.Errorf("%w: %v", ErrPlayback, err)
	}
	return nil
}

// Leave tears the session down entirely: node player destroyed, voice
// channel left, registry entry removed. Node-side failures are logged
// but never block the cleanup.
func (o *Orchestrator) Leave(ctx context.Context, guildID string) error {
	if err := o.node.Destroy(ctx, guildID); err != nil {
		log.Printf("music: destroy player for guild %s failed: %v", guildID, err)
	}
	if err := o.voice.LeaveChannel(guildID); err != nil {
		log.Printf("music: leave voice channel for guild %s failed: %v", guildID, err)
	}
	o.registry.Remove(guildID)
	return nil
}

// QueueView is a point-in-time copy of a session for rendering replies.
type QueueView struct {
	Current  *QueuedTrack
	Pending  []QueuedTrack
	Volume   int
	Loop     LoopMode
	Paused   bool
	Autoplay bool
}

func (o *Orchestrator) View(guildID string) (QueueView, error) {
	var view QueueView
	ok := o.registry.With(guildID, func(q *SessionQueue) {
		if q.Current != nil {
			cur := *q.Current
			view.Current = &cur
		}
		view.Pending = make([]QueuedTrack, len(q.Pending))
		copy(view.Pending, q.Pending)
		view.Volume = q.Volume
		view.Loop = q.Loop
		view.Paused = q.Paused
		view.Autoplay = q.Autoplay
	})
	if !ok {
		return QueueView{}, ErrNotConnected
	}
	return view, nil
}

// OnTrackEnd is the audio node's asynchronous track-end callback. Only
// a naturally finished track advances the queue.
func (o *Orchestrator) OnTrackEnd(guildID string, reason EndReason) {
	if reason != EndReasonFinished {
		log.Printf("music: track ended in guild %s with reason %q, not advancing", guildID, reason)
		return
	}

	// The session may have been torn down while this event was in
	// flight (voice auto-disconnect racing the node). Trust the node's
	// live state over our cached belief.
	if !o.node.Connected(guildID) {
		o.registry.With(guildID, func(q *SessionQueue) { q.Current = nil })
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), o.loadTimeout)
	defer cancel()

	var next *QueuedTrack
	var repeat, autoplayOn bool
	var channel string
	var volume int
	var loop LoopMode
	ok := o.registry.With(guildID, func(q *SessionQueue) {
		next, repeat = q.Advance()
		if next != nil {
			q.noteNowPlaying(next.Track)
		}
		autoplayOn = q.Autoplay
		channel = q.TextChannelID
		volume = q.Volume
		loop = q.Loop
	})
	if !ok {
		return
	}

	if next != nil {
		if err := o.node.Play(ctx, guildID, next.Track); err != nil {
			log.Printf("music: play next in guild %s failed: %v", guildID, err)
			o.registry.With(guildID, func(q *SessionQueue) { q.Current = nil })
			return
		}
		o.registry.With(guildID, func(q *SessionQueue) { q.TouchActivity() })
		if !repeat && o.notifier != nil && channel != "" {
			o.notifier.NowPlaying(channel, *next, volume, loop)
		}
		return
	}

	if autoplayOn {
		o.runAutoplay(ctx, guildID, channel)
	}
}

// resolve turns a URL or free-text query into tracks via the node's
// load operation. Free text goes through the primary search prefix with
// a fallback on empty results; only the first search hit is used.
func (o *Orchestrator) resolve(ctx context.Context, query string) ([]Track, error) {
	ctx, cancel := context.WithTimeout(ctx, o.loadTimeout)
	defer cancel()

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrNotFound
	}

	if isURL(query) {
		res, err := o.node.Load(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
		}
		return tracksFromLoad(res), nil
	}

	res, err := o.node.Load(ctx, searchPrefixPrimary+query)
	if err != nil || len(tracksFromLoad(res)) == 0 {
		if err != nil {
			log.Printf("music: primary search failed: %v", err)
		}
		res, err = o.node.Load(ctx, searchPrefixFallback+query)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
		}
	}

	tracks := tracksFromLoad(res)
	if len(tracks) == 0 {
		return nil, ErrNotFound
	}
	if res.Type == LoadTypeSearch {
		tracks = tracks[:1]
	}
	return tracks, nil
}

func tracksFromLoad(res LoadResult) []Track {
	switch res.Type {
	case LoadTypeTrack:
		if len(res.Tracks) > 0 {
			return res.Tracks[:1]
		}
	case LoadTypePlaylist, LoadTypeSearch:
		return res.Tracks
	}
	return nil
}

func clampVolume(level int) int {
	if level < 0 {
		return 0
	}
	if level > 150 {
		return 150
	}
	return level
}

func isURL(value string) bool {
	return strings.HasPrefix(value, "http://") || strings.HasPrefix(value, "https://")
}
