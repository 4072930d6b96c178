package commands

import (
	"context"

	"github.com/bwmarrin/discordgo"
	shared "github.com/hxnx/wormbot/internal/features/shared"
)

func (h *Handler) Join(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !h.requireGuild(s, i) {
		return
	}

	userID := shared.GetInteractionUserID(i)
	voiceChannel := shared.FindVoiceChannel(s, i.GuildID, userID)
	if voiceChannel == "" {
		shared.RespondEphemeral(s, i, "Join a voice channel first.")
		return
	}

	if err := shared.DeferResponse(s, i); err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	if err := h.orchestrator.Join(ctx, i.GuildID, voiceChannel, i.ChannelID); err != nil {
		shared.FollowupMessage(s, i, errorMessage(err))
		return
	}

	shared.FollowupMessage(s, i, "Joined your voice channel. 🎶")
}

func (h *Handler) Leave(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !h.requireGuild(s, i) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	if err := h.orchestrator.Leave(ctx, i.GuildID); err != nil {
		respondError(s, i, err)
		return
	}

	shared.RespondMessage(s, i, "Left the voice channel. 👋")
}
