package listeners

import (
	"context"
	"log"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/hxnx/wormbot/internal/lavalink"
	"github.com/hxnx/wormbot/internal/music"
)

// VoiceHandler forwards Discord's voice dispatches to the audio node
// and stops playback when the bot ends up alone in a channel.
type VoiceHandler struct {
	node         *lavalink.Client
	orchestrator *music.Orchestrator
}

func NewVoiceHandler(node *lavalink.Client, orchestrator *music.Orchestrator) *VoiceHandler {
	return &VoiceHandler{node: node, orchestrator: orchestrator}
}

func (v *VoiceHandler) HandleVoiceServerUpdate(s *discordgo.Session, e *discordgo.VoiceServerUpdate) {
	if e == nil || e.GuildID == "" {
		return
	}
	v.node.HandleVoiceServerUpdate(e.GuildID, e.Token, e.Endpoint)
}

func (v *VoiceHandler) HandleVoiceStateUpdate(s *discordgo.Session, vs *discordgo.VoiceStateUpdate) {
	if s == nil || vs == nil || vs.GuildID == "" {
		return
	}

	botID := ""
	if s.State != nil && s.State.User != nil {
		botID = s.State.User.ID
	}
	if botID == "" {
		return
	}

	if vs.UserID == botID {
		v.node.HandleVoiceStateUpdate(vs.GuildID, vs.ChannelID, vs.SessionID)
		return
	}

	v.stopIfAlone(s, vs.GuildID, botID)
}

// stopIfAlone clears playback when every human has left the bot's
// channel. The session entry stays around for the idle reaper.
func (v *VoiceHandler) stopIfAlone(s *discordgo.Session, guildID, botID string) {
	guild := getGuildWithVoiceStates(s, guildID)
	if guild == nil {
		return
	}

	botChannelID := ""
	for _, state := range guild.VoiceStates {
		if state.UserID == botID && state.ChannelID != "" {
			botChannelID = state.ChannelID
			break
		}
	}
	if botChannelID == "" {
		return
	}

	for _, state := range guild.VoiceStates {
		if state.ChannelID == botChannelID && state.UserID != botID {
			return
		}
	}

	view, err := v.orchestrator.View(guildID)
	if err != nil || (view.Current == nil && len(view.Pending) == 0) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := v.orchestrator.Stop(ctx, guildID); err != nil {
		log.Printf("auto-stop for guild %s failed: %v", guildID, err)
		return
	}

	if channelID := sessionTextChannel(v.orchestrator, guildID); channelID != "" {
		embed := &discordgo.MessageEmbed{
			Description: "🔇 Stopped playback because the voice channel is empty.",
			Color:       0x3C6AA1,
		}
		if _, err := s.ChannelMessageSendEmbed(channelID, embed); err != nil {
			log.Printf("failed to send voice-empty notice: %v", err)
		}
	}
}

func sessionTextChannel(o *music.Orchestrator, guildID string) string {
	channelID := ""
	o.Registry().With(guildID, func(q *music.SessionQueue) {
		channelID = q.TextChannelID
	})
	return channelID
}

func getGuildWithVoiceStates(s *discordgo.Session, guildID string) *discordgo.Guild {
	if s.State != nil {
		if g, err := s.State.Guild(guildID); err == nil {
			return g
		}
	}
	g, err := s.Guild(guildID)
	if err != nil {
		return nil
	}
	return g
}
