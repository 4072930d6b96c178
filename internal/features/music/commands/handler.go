package commands

import (
	"errors"
	"log"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/hxnx/wormbot/internal/database"
	shared "github.com/hxnx/wormbot/internal/features/shared"
	"github.com/hxnx/wormbot/internal/music"
)

const commandTimeout = 20 * time.Second

// Handler carries the dependencies every music command needs. One
// instance is built at startup and shared across shards.
type Handler struct {
	orchestrator *music.Orchestrator
	repo         *database.GuildRepository
}

func New(orchestrator *music.Orchestrator, repo *database.GuildRepository) *Handler {
	return &Handler{orchestrator: orchestrator, repo: repo}
}

func (h *Handler) requireGuild(s *discordgo.Session, i *discordgo.InteractionCreate) bool {
	if i.GuildID == "" {
		shared.RespondEphemeral(s, i, "This command can only be used in a server.")
		return false
	}
	return true
}

func respondError(s *discordgo.Session, i *discordgo.InteractionCreate, err error) {
	shared.RespondEphemeral(s, i, errorMessage(err))
}

func errorMessage(err error) string {
	switch {
	case errors.Is(err, music.ErrNotConnected):
		return "I'm not connected to a voice channel. Use /join first."
	case errors.Is(err, music.ErrNotFound):
		return "No tracks found for that query."
	case errors.Is(err, music.ErrNotPlaying):
		return "Nothing is playing right now."
	case errors.Is(err, music.ErrInvalidPosition):
		return "That queue position does not exist."
	case errors.Is(err, music.ErrConnection):
		return "Could not reach the audio node. Try again in a moment."
	default:
		log.Printf("music command failed: %v", err)
		return "Playback failed."
	}
}

// persistSettings stores the guild's current volume and autoplay flag
// so they survive restarts. Best-effort: a missing database only logs.
func (h *Handler) persistSettings(guildID string) {
	if h.repo == nil {
		return
	}
	view, err := h.orchestrator.View(guildID)
	if err != nil {
		return
	}
	if err := h.repo.UpsertMusicSettings(guildID, view.Volume, view.Autoplay); err != nil {
		log.Printf("failed to persist music settings for guild %s: %v", guildID, err)
	}
}
