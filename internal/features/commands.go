package commands

import (
	"fmt"
	"log"

	"github.com/bwmarrin/discordgo"
	"github.com/hxnx/wormbot/internal/database"
	musiccmd "github.com/hxnx/wormbot/internal/features/music/commands"
	musiclisteners "github.com/hxnx/wormbot/internal/features/music/listeners"
	pingcmd "github.com/hxnx/wormbot/internal/features/ping/commands"
	"github.com/hxnx/wormbot/internal/lavalink"
	"github.com/hxnx/wormbot/internal/music"
)

var CommandList = []*discordgo.ApplicationCommand{
	{
		Name:        "ping",
		Description: "Check that the bot is alive",
	},
	{
		Name:        "join",
		Description: "Join your voice channel",
	},
	{
		Name:        "leave",
		Description: "Leave the voice channel and forget the queue",
	},
	{
		Name:        "play",
		Description: "Play a song or add it to the queue",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "query",
				Description: "Song name or URL",
				Required:    true,
			},
		},
	},
	{
		Name:        "pause",
		Description: "Pause the current track",
	},
	{
		Name:        "resume",
		Description: "Resume playback",
	},
	{
		Name:        "skip",
		Description: "Skip the current track",
	},
	{
		Name:        "stop",
		Description: "Stop playback and clear the queue",
	},
	{
		Name:        "queue",
		Description: "Show the current queue",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionInteger,
				Name:        "limit",
				Description: "Number of tracks to show",
				Required:    false,
			},
		},
	},
	{
		Name:        "nowplaying",
		Description: "Show the currently playing track",
	},
	{
		Name:        "volume",
		Description: "Set the playback volume",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionInteger,
				Name:        "level",
				Description: "Volume level (0-150)",
				Required:    true,
			},
		},
	},
	{
		Name:        "repeat",
		Description: "Set the repeat mode",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "mode",
				Description: "off / track / queue",
				Required:    true,
				Choices: []*discordgo.ApplicationCommandOptionChoice{
					{Name: "Off", Value: "off"},
					{Name: "Repeat track", Value: "track"},
					{Name: "Repeat queue", Value: "queue"},
				},
			},
		},
	},
	{
		Name:        "shuffle",
		Description: "Shuffle the pending queue",
	},
	{
		Name:        "remove",
		Description: "Remove a track from the queue",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionInteger,
				Name:        "position",
				Description: "Queue position to remove (1-based)",
				Required:    true,
			},
		},
	},
	{
		Name:        "autoplay",
		Description: "Toggle autoplay of related tracks",
	},
}

// Feature wires the command handlers with their dependencies. One
// instance serves every shard.
type Feature struct {
	music *musiccmd.Handler
	voice *musiclisteners.VoiceHandler

	handlers map[string]func(s *discordgo.Session, i *discordgo.InteractionCreate)
}

func New(orchestrator *music.Orchestrator, node *lavalink.Client, repo *database.GuildRepository) *Feature {
	f := &Feature{
		music: musiccmd.New(orchestrator, repo),
		voice: musiclisteners.NewVoiceHandler(node, orchestrator),
	}

	f.handlers = map[string]func(s *discordgo.Session, i *discordgo.InteractionCreate){
		"ping":       pingcmd.Ping,
		"join":       f.music.Join,
		"leave":      f.music.Leave,
		"play":       f.music.Play,
		"pause":      f.music.Pause,
		"resume":     f.music.Resume,
		"skip":       f.music.Skip,
		"stop":       f.music.Stop,
		"queue":      f.music.Queue,
		"nowplaying": f.music.NowPlaying,
		"volume":     f.music.Volume,
		"repeat":     f.music.Repeat,
		"shuffle":    f.music.Shuffle,
		"remove":     f.music.Remove,
		"autoplay":   f.music.Autoplay,
	}
	return f
}

func (f *Feature) AddHandlers(s *discordgo.Session) {
	s.AddHandler(func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		if i.Type != discordgo.InteractionApplicationCommand {
			return
		}
		data := i.ApplicationCommandData()
		if handler, ok := f.handlers[data.Name]; ok {
			handler(s, i)
		}
	})

	s.AddHandler(f.voice.HandleVoiceServerUpdate)
	s.AddHandler(f.voice.HandleVoiceStateUpdate)
}

func RegisterCommands(s *discordgo.Session, appID string, guildID string) ([]*discordgo.ApplicationCommand, error) {
	scope := "global"
	if guildID != "" {
		scope = fmt.Sprintf("guild:%s", guildID)
	}

	log.Printf("Registering %d commands (%s)", len(CommandList), scope)

	cmds, err := s.ApplicationCommandBulkOverwrite(appID, guildID, CommandList)
	if err != nil {
		return nil, fmt.Errorf("cannot bulk overwrite commands: %w", err)
	}
	return cmds, nil
}
