package music

import (
	"context"
	"log"
	"time"
)

// Reaper periodically tears down sessions that have had nothing current
// for longer than the timeout. Sessions with a playing track are never
// touched regardless of age.
type Reaper struct {
	registry *Registry
	node     AudioNode
	voice    VoiceGateway
	notifier Notifier
	timeout  time.Duration
	interval time.Duration
}

func NewReaper(o *Orchestrator, timeout, interval time.Duration) *Reaper {
	return &Reaper{
		registry: o.registry,
		node:     o.node,
		voice:    o.voice,
		notifier: o.notifier,
		timeout:  timeout,
		interval: interval,
	}
}

func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep disconnects and removes every idle session. Node disconnects
// are best-effort: a misbehaving node must not block state cleanup.
func (r *Reaper) Sweep(ctx context.Context) {
	for _, guildID := range r.registry.GuildIDs() {
		var idle bool
		var channel string
		if !r.registry.With(guildID, func(q *SessionQueue) {
			idle = q.IsIdleFor(r.timeout)
			channel = q.TextChannelID
		}) {
			continue
		}
		if !idle {
			continue
		}

		if err := r.node.Destroy(ctx, guildID); err != nil {
			log.Printf("music: reaper destroy for guild %s failed: %v", guildID, err)
		}
		if r.voice != nil {
			if err := r.voice.LeaveChannel(guildID); err != nil {
				log.Printf("music: reaper leave for guild %s failed: %v", guildID, err)
			}
		}
		if r.notifier != nil && channel != "" {
			r.notifier.InactivityDisconnect(channel)
		}
		r.registry.Remove(guildID)
		log.Printf("music: reaped idle session for guild %s", guildID)
	}
}
