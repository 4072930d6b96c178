package commands

import (
	"context"

	"github.com/bwmarrin/discordgo"
	"github.com/hxnx/wormbot/internal/features/music/notify"
	shared "github.com/hxnx/wormbot/internal/features/shared"
)

func (h *Handler) Pause(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !h.requireGuild(s, i) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	if err := h.orchestrator.Pause(ctx, i.GuildID); err != nil {
		respondError(s, i, err)
		return
	}
	shared.RespondMessage(s, i, "Paused. ⏸️")
}

func (h *Handler) Resume(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !h.requireGuild(s, i) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	if err := h.orchestrator.Resume(ctx, i.GuildID); err != nil {
		respondError(s, i, err)
		return
	}
	shared.RespondMessage(s, i, "Resumed. ▶️")
}

func (h *Handler) Skip(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !h.requireGuild(s, i) {
		return
	}

	if err := shared.DeferResponse(s, i); err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	result, err := h.orchestrator.Skip(ctx, i.GuildID)
	if err != nil {
		shared.FollowupMessage(s, i, errorMessage(err))
		return
	}

	switch {
	case result.Next != nil:
		view, _ := h.orchestrator.View(i.GuildID)
		shared.FollowupEmbed(s, i, notify.NowPlayingEmbed(*result.Next, view.Volume, view.Loop))
	case result.Autoplayed != nil:
		shared.FollowupEmbed(s, i, notify.TrackEmbed("Autoplay", *result.Autoplayed))
	default:
		shared.FollowupMessage(s, i, "Skipped. The queue is now empty.")
	}
}

func (h *Handler) Stop(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !h.requireGuild(s, i) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	if err := h.orchestrator.Stop(ctx, i.GuildID); err != nil {
		respondError(s, i, err)
		return
	}
	shared.RespondMessage(s, i, "Stopped playback and cleared the queue. ⏹️")
}
