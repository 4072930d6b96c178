package music

import (
	"context"
	"fmt"
	"log"
	"strings"
)

const autoplaySearchResults = 5

// runAutoplay finds and starts a related track once the pending queue
// is exhausted. It never surfaces an error: every failure is logged and
// degrades to going idle.
func (o *Orchestrator) runAutoplay(ctx context.Context, guildID, channel string) *QueuedTrack {
	var lastTitle, lastVideoID string
	var recent []string
	ok := o.registry.With(guildID, func(q *SessionQueue) {
		lastTitle = q.LastTrackTitle
		lastVideoID = q.LastVideoID
		recent = q.RecentAutoplayed()
	})
	if !ok {
		return nil
	}
	if lastTitle == "" {
		o.registry.With(guildID, func(q *SessionQueue) { q.Current = nil })
		return nil
	}

	candidates := o.relatedTracks(ctx, lastVideoID, lastTitle, recent)
	if len(candidates) == 0 {
		candidates = o.keywordFallback(ctx, lastTitle)
	}
	if len(candidates) == 0 {
		log.Printf("music: autoplay found nothing for guild %s, going idle", guildID)
		o.registry.With(guildID, func(q *SessionQueue) {
			q.Current = nil
			q.ClearAutoplayHistory()
		})
		return nil
	}

	track := candidates[0]
	item := QueuedTrack{Track: track, Requester: Requester{DisplayName: "Autoplay"}}

	o.registry.With(guildID, func(q *SessionQueue) {
		if vid := extractVideoID(track.URI); vid != "" {
			q.NoteAutoplayed(vid)
			q.LastVideoID = vid
		}
		q.LastTrackTitle = track.Title
		q.Current = &item
	})

	if err := o.node.Play(ctx, guildID, track); err != nil {
		log.Printf("music: autoplay play failed in guild %s: %v", guildID, err)
		o.registry.With(guildID, func(q *SessionQueue) { q.Current = nil })
		return nil
	}

	o.registry.With(guildID, func(q *SessionQueue) { q.TouchActivity() })
	if o.notifier != nil && channel != "" {
		o.notifier.AutoplayStarted(channel, item)
	}
	return &item
}

// relatedTracks loads the node's mix playlist for the last played
// video, filtering out anything already suggested and anything that is
// just the same song again.
func (o *Orchestrator) relatedTracks(ctx context.Context, lastVideoID, lastTitle string, recent []string) []Track {
	if lastVideoID == "" {
		return nil
	}

	mixURL := fmt.Sprintf("https://www.youtube.com/watch?v=%s&list=RD%s", lastVideoID, lastVideoID)
	res, err := o.node.Load(ctx, mixURL)
	if err != nil {
		log.Printf("music: autoplay mix load failed: %v", err)
		return nil
	}
	if res.Type != LoadTypePlaylist || len(res.Tracks) < 2 {
		return nil
	}

	var out []Track
	// The first mix entry is the track that just played.
	for _, t := range res.Tracks[1:] {
		if vid := extractVideoID(t.URI); vid != "" && containsID(recent, vid) {
			continue
		}
		if similarTitles(t.Title, lastTitle) {
			continue
		}
		out = append(out, t)
	}
	return out
}

// keywordFallback searches with the first two words of the last title
// plus "mix", preferring the first result that is not the song that
// just played.
func (o *Orchestrator) keywordFallback(ctx context.Context, lastTitle string) []Track {
	if o.searcher == nil {
		return nil
	}

	words := strings.Fields(lastTitle)
	if len(words) > 2 {
		words = words[:2]
	}
	query := strings.Join(words, " ") + " mix"

	candidates, err := o.searcher.Search(ctx, query, autoplaySearchResults)
	if err != nil {
		log.Printf("music: autoplay search %q failed: %v", query, err)
		return nil
	}
	if len(candidates) == 0 {
		return nil
	}

	var pick *Candidate
	for i := range candidates {
		if !similarTitles(candidates[i].Title, lastTitle) {
			pick = &candidates[i]
			break
		}
	}
	if pick == nil {
		if len(candidates) < 2 {
			return nil
		}
		pick = &candidates[1]
	}

	res, err := o.node.Load(ctx, pick.URL)
	if err != nil {
		log.Printf("music: autoplay load %q failed: %v", pick.URL, err)
		return nil
	}
	tracks := tracksFromLoad(res)
	if len(tracks) == 0 {
		return nil
	}
	return tracks[:1]
}

// similarTitles reports whether two titles are close enough that
// suggesting one after the other would echo the same song back.
func similarTitles(a, b string) bool {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
