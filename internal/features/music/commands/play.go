package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/hxnx/wormbot/internal/features/music/notify"
	shared "github.com/hxnx/wormbot/internal/features/shared"
	"github.com/hxnx/wormbot/internal/music"
)

func (h *Handler) Play(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !h.requireGuild(s, i) {
		return
	}

	data := i.ApplicationCommandData()
	query := strings.TrimSpace(shared.GetOptionString(data.Options, "query"))
	if query == "" {
		shared.RespondEphemeral(s, i, "Give me a song name or a URL to play.")
		return
	}

	userID := shared.GetInteractionUserID(i)

	if err := shared.DeferResponse(s, i); err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	// Connect on demand so /play works without an explicit /join.
	if !h.orchestrator.Connected(i.GuildID) {
		voiceChannel := shared.FindVoiceChannel(s, i.GuildID, userID)
		if voiceChannel == "" {
			shared.FollowupMessage(s, i, "Join a voice channel first.")
			return
		}
		if err := h.orchestrator.Join(ctx, i.GuildID, voiceChannel, i.ChannelID); err != nil {
			shared.FollowupMessage(s, i, errorMessage(err))
			return
		}
	}

	requester := music.Requester{
		ID:          userID,
		DisplayName: shared.GetInteractionUserName(i),
	}

	result, err := h.orchestrator.Play(ctx, i.GuildID, query, requester, i.ChannelID)
	if err != nil {
		shared.FollowupMessage(s, i, errorMessage(err))
		return
	}

	switch {
	case result.Started:
		view, _ := h.orchestrator.View(i.GuildID)
		shared.FollowupEmbed(s, i, notify.NowPlayingEmbed(result.Track, view.Volume, view.Loop))
	case result.PlaylistCount > 1:
		shared.FollowupMessage(s, i, fmt.Sprintf("Added **%d** tracks to the queue.", result.PlaylistCount))
	default:
		embed := notify.TrackEmbed("Added to Queue", result.Track)
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   "Position",
			Value:  fmt.Sprintf("#%d", result.Position),
			Inline: true,
		})
		shared.FollowupEmbed(s, i, embed)
	}
}
