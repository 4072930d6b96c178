package notify

import (
	"fmt"
	"log"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/hxnx/wormbot/internal/music"
)

const embedColor = 0x3C6AA1

// Notifier posts playback announcements to a guild's text channel. It
// backs the asynchronous paths (track-end advance, autoplay, idle
// disconnect) where no interaction is available to reply to.
type Notifier struct {
	session *discordgo.Session
}

func New(session *discordgo.Session) *Notifier {
	return &Notifier{session: session}
}

func (n *Notifier) NowPlaying(channelID string, item music.QueuedTrack, volume int, loop music.LoopMode) {
	embed := NowPlayingEmbed(item, volume, loop)
	n.send(channelID, embed)
}

func (n *Notifier) AutoplayStarted(channelID string, item music.QueuedTrack) {
	embed := TrackEmbed("Autoplay", item)
	n.send(channelID, embed)
}

func (n *Notifier) InactivityDisconnect(channelID string) {
	embed := &discordgo.MessageEmbed{
		Description: "🔇 Left the voice channel after a period of inactivity.",
		Color:       embedColor,
	}
	n.send(channelID, embed)
}

func (n *Notifier) send(channelID string, embed *discordgo.MessageEmbed) {
	if n == nil || n.session == nil || channelID == "" {
		return
	}
	if _, err := n.session.ChannelMessageSendEmbed(channelID, embed); err != nil {
		log.Printf("failed to send music notice: %v", err)
	}
}

// NowPlayingEmbed renders the standard now-playing card used both for
// interaction replies and channel announcements.
func NowPlayingEmbed(item music.QueuedTrack, volume int, loop music.LoopMode) *discordgo.MessageEmbed {
	embed := TrackEmbed("Now Playing", item)
	embed.Fields = append(embed.Fields,
		&discordgo.MessageEmbedField{Name: "Volume", Value: fmt.Sprintf("%d%%", volume), Inline: true},
		&discordgo.MessageEmbedField{Name: "Repeat", Value: LoopLabel(loop), Inline: true},
	)
	return embed
}

func TrackEmbed(title string, item music.QueuedTrack) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       title,
		Description: fmt.Sprintf("[%s](%s)", item.Track.Title, item.Track.URI),
		Color:       embedColor,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Artist", Value: orDash(item.Track.Author), Inline: true},
			{Name: "Duration", Value: FormatDuration(item.Track.Duration), Inline: true},
		},
	}
	if item.Track.Artwork != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: item.Track.Artwork}
	}
	if item.Requester.DisplayName != "" {
		embed.Footer = &discordgo.MessageEmbedFooter{
			Text: "Requested by " + item.Requester.DisplayName,
		}
	}
	return embed
}

func LoopLabel(loop music.LoopMode) string {
	switch loop {
	case music.LoopTrack:
		return "Track"
	case music.LoopQueue:
		return "Queue"
	default:
		return "Off"
	}
}

func FormatDuration(d time.Duration) string {
	if d <= 0 {
		return "--:--"
	}
	total := int(d.Seconds())
	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60
	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%d:%02d", minutes, seconds)
}

func orDash(value string) string {
	if value == "" {
		return "-"
	}
	return value
}
