package commands

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/hxnx/wormbot/internal/features/music/notify"
	shared "github.com/hxnx/wormbot/internal/features/shared"
	"github.com/hxnx/wormbot/internal/music"
)

func (h *Handler) Volume(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !h.requireGuild(s, i) {
		return
	}

	data := i.ApplicationCommandData()
	level := shared.GetOptionInt(data.Options, "level")

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	applied, err := h.orchestrator.SetVolume(ctx, i.GuildID, level)
	if err != nil {
		respondError(s, i, err)
		return
	}

	h.persistSettings(i.GuildID)
	shared.RespondMessage(s, i, fmt.Sprintf("Volume set to **%d%%**. 🔊", applied))
}

func (h *Handler) Repeat(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !h.requireGuild(s, i) {
		return
	}

	data := i.ApplicationCommandData()
	mode := shared.GetOptionString(data.Options, "mode")

	var loop music.LoopMode
	switch mode {
	case "off":
		loop = music.LoopOff
	case "track":
		loop = music.LoopTrack
	case "queue":
		loop = music.LoopQueue
	default:
		shared.RespondEphemeral(s, i, "Pick a repeat mode: off, track or queue.")
		return
	}

	if err := h.orchestrator.SetLoopMode(i.GuildID, loop); err != nil {
		respondError(s, i, err)
		return
	}

	shared.RespondMessage(s, i, fmt.Sprintf("Repeat mode set to **%s**. 🔁", notify.LoopLabel(loop)))
}

func (h *Handler) Autoplay(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !h.requireGuild(s, i) {
		return
	}

	enabled, err := h.orchestrator.ToggleAutoplay(i.GuildID)
	if err != nil {
		respondError(s, i, err)
		return
	}

	h.persistSettings(i.GuildID)
	if enabled {
		shared.RespondMessage(s, i, "Autoplay is now **on**: related tracks keep playing when the queue runs out.")
	} else {
		shared.RespondMessage(s, i, "Autoplay is now **off**.")
	}
}
