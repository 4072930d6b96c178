package bot

import (
	"fmt"
	"log"
	"time"
)

const presenceUpdateInterval = 60 * time.Second

func (b *Bot) startPresenceUpdater() {
	if b.presenceStop != nil {
		return
	}
	b.presenceStop = make(chan struct{})
	go func() {
		ticker := time.NewTicker(presenceUpdateInterval)
		defer ticker.Stop()

		b.updatePresence()
		for {
			select {
			case <-b.presenceStop:
				return
			case <-ticker.C:
				b.updatePresence()
			}
		}
	}()
}

func (b *Bot) stopPresenceUpdater() {
	if b.presenceStop == nil {
		return
	}
	close(b.presenceStop)
	b.presenceStop = nil
}

func (b *Bot) updatePresence() {
	playing := 0
	if b.orchestrator != nil {
		playing = b.orchestrator.Registry().Len()
	}

	for _, s := range b.sessions {
		guildCount := 0
		if s.State != nil {
			guildCount = len(s.State.Guilds)
		}

		status := fmt.Sprintf("music in %d servers", guildCount)
		if playing > 0 {
			status = fmt.Sprintf("music in %d/%d servers", playing, guildCount)
		}
		if err := s.UpdateGameStatus(0, status); err != nil {
			log.Printf("failed to update presence: %v", err)
		}
	}
}
