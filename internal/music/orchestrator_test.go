package music

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNode struct {
	mu sync.Mutex

	connected map[string]bool
	loads     map[string]LoadResult
	loadErrs  map[string]error

	played     []Track
	playErr    error
	pauses     []bool
	volumes    []int
	stops      int
	destroys   []string
	destroyErr error
}

func newFakeNode() *fakeNode {
	return &fakeNode{
		connected: make(map[string]bool),
		loads:     make(map[string]LoadResult),
		loadErrs:  make(map[string]error),
	}
}

func (f *fakeNode) Connected(guildID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected[guildID]
}

func (f *fakeNode) Load(_ context.Context, identifier string) (LoadResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.loadErrs[identifier]; ok {
		return LoadResult{}, err
	}
	if res, ok := f.loads[identifier]; ok {
		return res, nil
	}
	return LoadResult{Type: LoadTypeEmpty}, nil
}

func (f *fakeNode) Play(_ context.Context, guildID string, track Track) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.playErr != nil {
		return f.playErr
	}
	f.played = append(f.played, track)
	return nil
}

func (f *fakeNode) SetPaused(_ context.Context, guildID string, paused bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pauses = append(f.pauses, paused)
	return nil
}

func (f *fakeNode) SetVolume(_ context.Context, guildID string, volume int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.volumes = append(f.volumes, volume)
	return nil
}

func (f *fakeNode) Stop(_ context.Context, guildID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	return nil
}

func (f *fakeNode) Destroy(_ context.Context, guildID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.destroys = append(f.destroys, guildID)
	return f.destroyErr
}

func (f *fakeNode) playedTitles() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var titles []string
	for _, t := range f.played {
		titles = append(titles, t.Title)
	}
	return titles
}

type fakeVoice struct {
	mu     sync.Mutex
	joins  []string
	leaves []string
}

func (f *fakeVoice) JoinChannel(guildID, channelID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.joins = append(f.joins, channelID)
	return nil
}

func (f *fakeVoice) LeaveChannel(guildID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.leaves = append(f.leaves, guildID)
	return nil
}

type fakeNotifier struct {
	mu         sync.Mutex
	nowPlaying []QueuedTrack
	autoplayed []QueuedTrack
	inactivity []string
}

func (f *fakeNotifier) NowPlaying(channelID string, item QueuedTrack, volume int, loop LoopMode) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nowPlaying = append(f.nowPlaying, item)
}

func (f *fakeNotifier) AutoplayStarted(channelID string, item QueuedTrack) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.autoplayed = append(f.autoplayed, item)
}

func (f *fakeNotifier) InactivityDisconnect(channelID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inactivity = append(f.inactivity, channelID)
}

type fakeSearcher struct {
	results []Candidate
	err     error
	queries []string
}

func (f *fakeSearcher) Search(_ context.Context, query string, maxResults int) ([]Candidate, error) {
	f.queries = append(f.queries, query)
	return f.results, f.err
}

const testGuild = "guild-1"

func trackNamed(title string) Track {
	return Track{
		Encoded: "enc-" + title,
		ID:      "id-" + title,
		Title:   title,
		URI:     "https://www.youtube.com/watch?v=id-" + title,
		Source:  TrackSourceYouTube,
	}
}

func singleTrackLoad(title string) LoadResult {
	return LoadResult{Type: LoadTypeTrack, Tracks: []Track{trackNamed(title)}}
}

func connectedOrchestrator(node *fakeNode) (*Orchestrator, *fakeNotifier) {
	node.connected[testGuild] = true
	notifier := &fakeNotifier{}
	o := NewOrchestrator(node, &fakeVoice{}).WithNotifier(notifier)
	o.Registry().Update(testGuild, func(q *SessionQueue) {
		q.TextChannelID = "text-1"
	})
	return o, notifier
}

func TestPlayStartsImmediatelyWhenIdle(t *testing.T) {
	node := newFakeNode()
	url := "https://www.youtube.com/watch?v=id-a"
	node.loads[url] = singleTrackLoad("a")

	o, _ := connectedOrchestrator(node)
	result, err := o.Play(context.Background(), testGuild, url, Requester{ID: "u1", DisplayName: "User"}, "text-1")

	require.NoError(t, err)
	assert.True(t, result.Started)
	assert.Equal(t, "a", result.Track.Track.Title)
	assert.Equal(t, []string{"a"}, node.playedTitles())

	view, err := o.View(testGuild)
	require.NoError(t, err)
	require.NotNil(t, view.Current)
	assert.Equal(t, "a", view.Current.Track.Title)
	assert.Empty(t, view.Pending)
}

func TestPlayEnqueuesBehindCurrent(t *testing.T) {
	node := newFakeNode()
	urlA := "https://www.youtube.com/watch?v=id-a"
	urlB := "https://www.youtube.com/watch?v=id-b"
	node.loads[urlA] = singleTrackLoad("a")
	node.loads[urlB] = singleTrackLoad("b")

	o, _ := connectedOrchestrator(node)
	_, err := o.Play(context.Background(), testGuild, urlA, Requester{}, "text-1")
	require.NoError(t, err)

	result, err := o.Play(context.Background(), testGuild, urlB, Requester{}, "text-1")
	require.NoError(t, err)

	assert.False(t, result.Started)
	assert.Equal(t, 1, result.Position)
	assert.Equal(t, "b", result.Track.Track.Title)
	assert.Equal(t, []string{"a"}, node.playedTitles(), "the queued track must not start")
}

func TestPlayPlaylistEnqueuesAll(t *testing.T) {
	node := newFakeNode()
	url := "https://www.youtube.com/playlist?list=PL123"
	node.loads[url] = LoadResult{
		Type:         LoadTypePlaylist,
		PlaylistName: "My Mix",
		Tracks:       []Track{trackNamed("a"), trackNamed("b"), trackNamed("c")},
	}

	o, _ := connectedOrchestrator(node)
	result, err := o.Play(context.Background(), testGuild, url, Requester{}, "text-1")

	require.NoError(t, err)
	assert.True(t, result.Started)
	assert.Equal(t, 3, result.PlaylistCount)

	view, _ := o.View(testGuild)
	assert.Len(t, view.Pending, 2)
}

func TestPlaySearchFallsBackToSecondaryPrefix(t *testing.T) {
	node := newFakeNode()
	node.loads["spsearch:never gonna"] = LoadResult{Type: LoadTypeEmpty}
	node.loads["ytsearch:never gonna"] = LoadResult{
		Type:   LoadTypeSearch,
		Tracks: []Track{trackNamed("a"), trackNamed("b")},
	}

	o, _ := connectedOrchestrator(node)
	result, err := o.Play(context.Background(), testGuild, "never gonna", Requester{}, "text-1")

	require.NoError(t, err)
	assert.True(t, result.Started)
	assert.Equal(t, "a", result.Track.Track.Title, "only the first search hit is used")

	view, _ := o.View(testGuild)
	assert.Empty(t, view.Pending)
}

func TestPlayNotConnected(t *testing.T) {
	node := newFakeNode()
	o := NewOrchestrator(node, &fakeVoice{})

	_, err := o.Play(context.Background(), testGuild, "whatever", Requester{}, "text-1")
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestPlayNoResults(t *testing.T) {
	node := newFakeNode()
	o, _ := connectedOrchestrator(node)

	_, err := o.Play(context.Background(), testGuild, "https://example.com/nothing", Requester{}, "text-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPlayFailureClearsCurrent(t *testing.T) {
	node := newFakeNode()
	url := "https://www.youtube.com/watch?v=id-a"
	node.loads[url] = singleTrackLoad("a")
	node.playErr = errors.New("boom")

	o, _ := connectedOrchestrator(node)
	_, err := o.Play(context.Background(), testGuild, url, Requester{}, "text-1")

	assert.ErrorIs(t, err, ErrPlayback)
	view, _ := o.View(testGuild)
	assert.Nil(t, view.Current, "a track that never started must not stay current")
}

func TestSkipAdvancesToNext(t *testing.T) {
	node := newFakeNode()
	urlA := "https://www.youtube.com/watch?v=id-a"
	urlB := "https://www.youtube.com/watch?v=id-b"
	node.loads[urlA] = singleTrackLoad("a")
	node.loads[urlB] = singleTrackLoad("b")

	o, _ := connectedOrchestrator(node)
	_, _ = o.Play(context.Background(), testGuild, urlA, Requester{}, "text-1")
	_, _ = o.Play(context.Background(), testGuild, urlB, Requester{}, "text-1")

	result, err := o.Skip(context.Background(), testGuild)
	require.NoError(t, err)
	require.NotNil(t, result.Next)
	assert.Equal(t, "b", result.Next.Track.Title)
	assert.Equal(t, []string{"a", "b"}, node.playedTitles())
}

func TestSkipEmptyQueueStopsPlayback(t *testing.T) {
	node := newFakeNode()
	url := "https://www.youtube.com/watch?v=id-a"
	node.loads[url] = singleTrackLoad("a")

	o, _ := connectedOrchestrator(node)
	_, _ = o.Play(context.Background(), testGuild, url, Requester{}, "text-1")

	result, err := o.Skip(context.Background(), testGuild)
	require.NoError(t, err)
	assert.True(t, result.QueueEmpty)
	assert.Nil(t, result.Next)
	assert.Equal(t, 1, node.stops)

	view, _ := o.View(testGuild)
	assert.Nil(t, view.Current)
}

func TestSkipNotConnected(t *testing.T) {
	node := newFakeNode()
	o := NewOrchestrator(node, &fakeVoice{})

	_, err := o.Skip(context.Background(), testGuild)
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestPauseResumeRequireCurrent(t *testing.T) {
	node := newFakeNode()
	o, _ := connectedOrchestrator(node)

	assert.ErrorIs(t, o.Pause(context.Background(), testGuild), ErrNotPlaying)
	assert.ErrorIs(t, o.Resume(context.Background(), testGuild), ErrNotPlaying)

	url := "https://www.youtube.com/watch?v=id-a"
	node.loads[url] = singleTrackLoad("a")
	_, _ = o.Play(context.Background(), testGuild, url, Requester{}, "text-1")

	require.NoError(t, o.Pause(context.Background(), testGuild))
	view, _ := o.View(testGuild)
	assert.True(t, view.Paused)

	require.NoError(t, o.Resume(context.Background(), testGuild))
	view, _ = o.View(testGuild)
	assert.False(t, view.Paused)
	assert.Equal(t, []bool{true, false}, node.pauses)
}

func TestSetVolumeClamps(t *testing.T) {
	node := newFakeNode()
	o, _ := connectedOrchestrator(node)

	applied, err := o.SetVolume(context.Background(), testGuild, 999)
	require.NoError(t, err)
	assert.Equal(t, 150, applied)

	applied, err = o.SetVolume(context.Background(), testGuild, -5)
	require.NoError(t, err)
	assert.Equal(t, 0, applied)

	assert.Equal(t, []int{150, 0}, node.volumes)
}

func TestRemoveAtInvalidPosition(t *testing.T) {
	node := newFakeNode()
	o, _ := connectedOrchestrator(node)

	_, err := o.RemoveAt(testGuild, 3)
	assert.ErrorIs(t, err, ErrInvalidPosition)
}

func TestStopClearsQueueKeepsSession(t *testing.T) {
	node := newFakeNode()
	url := "https://www.youtube.com/watch?v=id-a"
	node.loads[url] = singleTrackLoad("a")

	o, _ := connectedOrchestrator(node)
	_, _ = o.Play(context.Background(), testGuild, url, Requester{}, "text-1")

	require.NoError(t, o.Stop(context.Background(), testGuild))
	assert.Equal(t, 1, node.stops)
	assert.True(t, o.Registry().Exists(testGuild), "stop keeps the session for the reaper")

	view, _ := o.View(testGuild)
	assert.Nil(t, view.Current)
	assert.Empty(t, view.Pending)
}

func TestLeaveRemovesSession(t *testing.T) {
	node := newFakeNode()
	voice := &fakeVoice{}
	node.connected[testGuild] = true
	o := NewOrchestrator(node, voice)
	o.Registry().Update(testGuild, func(q *SessionQueue) {})

	require.NoError(t, o.Leave(context.Background(), testGuild))
	assert.False(t, o.Registry().Exists(testGuild))
	assert.Equal(t, []string{testGuild}, node.destroys)
	assert.Equal(t, []string{testGuild}, voice.leaves)
}

func TestOnTrackEndFinishedAdvances(t *testing.T) {
	node := newFakeNode()
	urlA := "https://www.youtube.com/watch?v=id-a"
	urlB := "https://www.youtube.com/watch?v=id-b"
	node.loads[urlA] = singleTrackLoad("a")
	node.loads[urlB] = singleTrackLoad("b")

	o, notifier := connectedOrchestrator(node)
	_, _ = o.Play(context.Background(), testGuild, urlA, Requester{}, "text-1")
	_, _ = o.Play(context.Background(), testGuild, urlB, Requester{}, "text-1")

	o.OnTrackEnd(testGuild, EndReasonFinished)

	assert.Equal(t, []string{"a", "b"}, node.playedTitles())
	require.Len(t, notifier.nowPlaying, 1)
	assert.Equal(t, "b", notifier.nowPlaying[0].Track.Title)
}

func TestOnTrackEndIgnoresNonFinished(t *testing.T) {
	node := newFakeNode()
	urlA := "https://www.youtube.com/watch?v=id-a"
	urlB := "https://www.youtube.com/watch?v=id-b"
	node.loads[urlA] = singleTrackLoad("a")
	node.loads[urlB] = singleTrackLoad("b")

	o, _ := connectedOrchestrator(node)
	_, _ = o.Play(context.Background(), testGuild, urlA, Requester{}, "text-1")
	_, _ = o.Play(context.Background(), testGuild, urlB, Requester{}, "text-1")

	for _, reason := range []EndReason{EndReasonStopped, EndReasonReplaced, EndReasonLoadFailed, EndReasonCleanup} {
		o.OnTrackEnd(testGuild, reason)
	}

	assert.Equal(t, []string{"a"}, node.playedTitles())
	view, _ := o.View(testGuild)
	require.NotNil(t, view.Current)
	assert.Equal(t, "a", view.Current.Track.Title)
	assert.Len(t, view.Pending, 1)
}

func TestOnTrackEndLoopTrackSuppressesNotice(t *testing.T) {
	node := newFakeNode()
	url := "https://www.youtube.com/watch?v=id-a"
	node.loads[url] = singleTrackLoad("a")

	o, notifier := connectedOrchestrator(node)
	_, _ = o.Play(context.Background(), testGuild, url, Requester{}, "text-1")
	require.NoError(t, o.SetLoopMode(testGuild, LoopTrack))

	o.OnTrackEnd(testGuild, EndReasonFinished)

	assert.Equal(t, []string{"a", "a"}, node.playedTitles())
	assert.Empty(t, notifier.nowPlaying, "a repeated track is not re-announced")
}

func TestOnTrackEndWhileDisconnectedClearsCurrent(t *testing.T) {
	node := newFakeNode()
	url := "https://www.youtube.com/watch?v=id-a"
	node.loads[url] = singleTrackLoad("a")

	o, _ := connectedOrchestrator(node)
	_, _ = o.Play(context.Background(), testGuild, url, Requester{}, "text-1")

	node.mu.Lock()
	node.connected[testGuild] = false
	node.mu.Unlock()

	o.OnTrackEnd(testGuild, EndReasonFinished)

	assert.Equal(t, []string{"a"}, node.playedTitles())
	view, _ := o.View(testGuild)
	assert.Nil(t, view.Current)
}

func TestViewUnknownGuild(t *testing.T) {
	node := newFakeNode()
	o := NewOrchestrator(node, &fakeVoice{})

	_, err := o.View("missing")
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestJoinSeedsStoredDefaults(t *testing.T) {
	node := newFakeNode()
	node.connected[testGuild] = true

	defaults := staticDefaults{volume: 42, autoplay: true}
	o := NewOrchestrator(node, &fakeVoice{}).WithDefaults(defaults)

	require.NoError(t, o.Join(context.Background(), testGuild, "voice-1", "text-1"))

	view, err := o.View(testGuild)
	require.NoError(t, err)
	assert.Equal(t, 42, view.Volume)
	assert.True(t, view.Autoplay)
}

type staticDefaults struct {
	volume   int
	autoplay bool
}

func (d staticDefaults) MusicDefaults(string) (int, bool, bool) {
	return d.volume, d.autoplay, true
}
