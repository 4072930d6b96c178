package commands

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
	shared "github.com/hxnx/wormbot/internal/features/shared"
)

func Ping(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}

	latency := s.HeartbeatLatency()
	shared.RespondEphemeral(s, i, fmt.Sprintf("Pong! Gateway latency: %dms", latency.Milliseconds()))
}
