package bot

import (
	"context"
	"log"
	"strconv"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/hxnx/wormbot/config"
	"github.com/hxnx/wormbot/internal/database"
	commands "github.com/hxnx/wormbot/internal/features"
	"github.com/hxnx/wormbot/internal/features/music/notify"
	"github.com/hxnx/wormbot/internal/lavalink"
	"github.com/hxnx/wormbot/internal/music"
	"github.com/hxnx/wormbot/internal/redis"
)

const reaperInterval = 30 * time.Second

type Bot struct {
	config       *config.Config
	sessions     []*discordgo.Session
	node         *lavalink.Client
	orchestrator *music.Orchestrator
	feature      *commands.Feature
	reaper       *music.Reaper
	reaperCancel context.CancelFunc
	started      bool
	presenceStop chan struct{}
}

func New(cfg *config.Config) (*Bot, error) {

	dbConfig := &database.Config{
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		DBName:   cfg.DBName,
		SSLMode:  cfg.DBSSLMode,
	}

	if err := database.Initalize(dbConfig); err != nil {
		log.Printf("Warning: Database initialization failed: %v", err)
	}

	redisConfig := redis.Config{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}

	if _, err := redis.Init(redisConfig); err != nil {
		log.Printf("Warning: Redis initialization failed: %v", err)
	}

	shardCount := cfg.ShardCount
	if shardCount < 1 {
		s, err := discordgo.New("Bot " + cfg.DiscordToken)
		if err != nil {
			return nil, err
		}

		if gw, err := s.GatewayBot(); err == nil && gw.Shards > 0 {
			shardCount = gw.Shards
		} else {
			log.Printf("Warning: failed to auto-detect shard count, defaulting to 1: %v", err)
			shardCount = 1
		}
	}

	if shardCount < 1 {
		shardCount = 1
	}

	sessions := make([]*discordgo.Session, 0, shardCount)
	for shard := 0; shard < shardCount; shard++ {
		s, err := discordgo.New("Bot " + cfg.DiscordToken)
		if err != nil {
			return nil, err
		}

		s.Identify.Intents = discordgo.IntentsGuilds |
			discordgo.IntentsGuildVoiceStates

		if shardCount > 1 {
			s.Identify.Shard = &[2]int{shard, shardCount}
			s.ShardCount = shardCount
		}

		sessions = append(sessions, s)
	}

	node := lavalink.NewClient(lavalink.Config{
		Host:     cfg.LavalinkHost,
		Port:     cfg.LavalinkPort,
		Password: cfg.LavalinkPassword,
		Secure:   cfg.LavalinkSecure,
	})

	b := &Bot{
		config:   cfg,
		sessions: sessions,
		node:     node,
	}

	repo := database.NewGuildRepository()

	orchestrator := music.NewOrchestrator(node, &voiceGateway{bot: b}).
		WithNotifier(notify.New(sessions[0])).
		WithDefaults(&guildDefaults{repo: repo, fallbackVolume: cfg.DefaultVolume})

	if yt := music.NewYouTubeSearcher(cfg.YouTubeAPIKey); yt != nil {
		var searcher music.Searcher = yt
		if client := redis.Client(); client != nil {
			searcher = music.NewCachedSearcher(searcher, client)
		}
		orchestrator.WithSearcher(searcher)
	}

	node.OnTrackEnd(orchestrator.OnTrackEnd)

	b.orchestrator = orchestrator
	b.feature = commands.New(orchestrator, node, repo)

	if cfg.AutoLeaveTimeout > 0 {
		timeout := time.Duration(cfg.AutoLeaveTimeout) * time.Second
		b.reaper = music.NewReaper(orchestrator, timeout, reaperInterval)
	}

	return b, nil
}

func (b *Bot) Start() error {
	if b.started {
		return nil
	}

	if len(b.sessions) == 0 {
		return nil
	}

	for _, s := range b.sessions {
		b.registerHandlers(s)
		b.feature.AddHandlers(s)
	}

	if _, err := commands.RegisterCommands(b.sessions[0], b.config.ApplicationID, b.config.GuildID); err != nil {
		log.Printf("Warning: failed to register slash commands: %v", err)
	}

	for _, s := range b.sessions {
		if err := s.Open(); err != nil {
			return err
		}
	}

	if s := b.sessions[0]; s.State != nil && s.State.User != nil {
		b.node.SetUserID(s.State.User.ID)
	}
	if err := b.node.Open(); err != nil {
		log.Printf("Warning: audio node connection failed: %v", err)
	}

	if b.reaper != nil {
		ctx, cancel := context.WithCancel(context.Background())
		b.reaperCancel = cancel
		go b.reaper.Run(ctx)
	}

	b.startPresenceUpdater()
	b.started = true
	log.Printf("Bot session opened (%d shard(s))", len(b.sessions))
	return nil
}

func (b *Bot) registerHandlers(s *discordgo.Session) {
	s.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		if s.State != nil && s.State.User != nil {
			log.Printf("Bot ready as %s#%s", s.State.User.Username, s.State.User.Discriminator)
		} else {
			log.Printf("Bot ready")
		}
		b.updatePresence()
	})
}

func (b *Bot) Stop() error {
	if !b.started {
		return nil
	}

	b.started = false
	b.stopPresenceUpdater()

	if b.reaperCancel != nil {
		b.reaperCancel()
		b.reaperCancel = nil
	}

	b.node.Close()

	for _, s := range b.sessions {
		if err := s.Close(); err != nil {
			return err
		}
	}

	if err := database.Close(); err != nil {
		log.Printf("Warning: failed to close database: %v", err)
	}

	if err := redis.Close(); err != nil {
		log.Printf("Warning: failed to close redis: %v", err)
	}

	log.Printf("Bot session closed (%d shard(s))", len(b.sessions))
	return nil
}

// sessionFor routes a guild to its shard's session so voice operations
// go out on the gateway connection that owns the guild.
func (b *Bot) sessionFor(guildID string) *discordgo.Session {
	if len(b.sessions) == 1 {
		return b.sessions[0]
	}
	id, err := strconv.ParseUint(guildID, 10, 64)
	if err != nil {
		return b.sessions[0]
	}
	return b.sessions[(id>>22)%uint64(len(b.sessions))]
}

// voiceGateway moves the bot between voice channels over the Discord
// gateway. The audio node learns about the move through the voice
// dispatches the listeners forward.
type voiceGateway struct {
	bot *Bot
}

func (g *voiceGateway) JoinChannel(guildID, channelID string) error {
	return g.bot.sessionFor(guildID).ChannelVoiceJoinManual(guildID, channelID, false, true)
}

func (g *voiceGateway) LeaveChannel(guildID string) error {
	return g.bot.sessionFor(guildID).ChannelVoiceJoinManual(guildID, "", false, true)
}

// guildDefaults serves stored per-guild settings, falling back to the
// configured default volume for guilds that never saved anything.
type guildDefaults struct {
	repo           *database.GuildRepository
	fallbackVolume int
}

func (d *guildDefaults) MusicDefaults(guildID string) (int, bool, bool) {
	if volume, autoplay, ok := d.repo.MusicDefaults(guildID); ok {
		return volume, autoplay, true
	}
	if d.fallbackVolume > 0 && d.fallbackVolume != 100 {
		return d.fallbackVolume, false, true
	}
	return 0, false, false
}
