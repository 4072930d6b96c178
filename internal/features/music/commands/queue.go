package commands

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/hxnx/wormbot/internal/features/music/notify"
	shared "github.com/hxnx/wormbot/internal/features/shared"
)

const queueDefaultLimit = 10

func (h *Handler) Queue(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !h.requireGuild(s, i) {
		return
	}

	data := i.ApplicationCommandData()
	limit := shared.GetOptionInt(data.Options, "limit")
	if limit <= 0 {
		limit = queueDefaultLimit
	}

	view, err := h.orchestrator.View(i.GuildID)
	if err != nil {
		respondError(s, i, err)
		return
	}

	if view.Current == nil && len(view.Pending) == 0 {
		shared.RespondEphemeral(s, i, "The queue is empty.")
		return
	}

	var sb strings.Builder
	if view.Current != nil {
		state := "▶️"
		if view.Paused {
			state = "⏸️"
		}
		fmt.Fprintf(&sb, "%s **%s** (%s)\n\n", state, view.Current.Track.Title, notify.FormatDuration(view.Current.Track.Duration))
	}

	shown := view.Pending
	if len(shown) > limit {
		shown = shown[:limit]
	}
	for idx, item := range shown {
		fmt.Fprintf(&sb, "`%d.` %s (%s) - %s\n", idx+1, item.Track.Title, notify.FormatDuration(item.Track.Duration), item.Requester.DisplayName)
	}
	if remaining := len(view.Pending) - len(shown); remaining > 0 {
		fmt.Fprintf(&sb, "\n...and %d more", remaining)
	}

	embed := &discordgo.MessageEmbed{
		Title:       "Queue",
		Description: sb.String(),
		Color:       0x3C6AA1,
		Footer: &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("Volume %d%% | Repeat: %s | Autoplay: %s", view.Volume, notify.LoopLabel(view.Loop), onOff(view.Autoplay)),
		},
	}
	shared.RespondEmbed(s, i, embed)
}

func (h *Handler) NowPlaying(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !h.requireGuild(s, i) {
		return
	}

	view, err := h.orchestrator.View(i.GuildID)
	if err != nil {
		respondError(s, i, err)
		return
	}
	if view.Current == nil {
		shared.RespondEphemeral(s, i, "Nothing is playing right now.")
		return
	}

	shared.RespondEmbed(s, i, notify.NowPlayingEmbed(*view.Current, view.Volume, view.Loop))
}

func (h *Handler) Remove(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !h.requireGuild(s, i) {
		return
	}

	data := i.ApplicationCommandData()
	position := shared.GetOptionInt(data.Options, "position")

	removed, err := h.orchestrator.RemoveAt(i.GuildID, position-1)
	if err != nil {
		respondError(s, i, err)
		return
	}

	shared.RespondMessage(s, i, fmt.Sprintf("Removed **%s** from the queue.", removed.Track.Title))
}

func (h *Handler) Shuffle(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !h.requireGuild(s, i) {
		return
	}

	if err := h.orchestrator.Shuffle(i.GuildID); err != nil {
		respondError(s, i, err)
		return
	}
	shared.RespondMessage(s, i, "Shuffled the queue. 🔀")
}

func onOff(enabled bool) string {
	if enabled {
		return "on"
	}
	return "off"
}
