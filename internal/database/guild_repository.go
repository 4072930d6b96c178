package database

import (
	"context"
	"database/sql"
	"time"
)

const guildRepoTimeout = 2 * time.Second

// GuildRepository persists per-guild music settings so volume and
// autoplay preferences survive restarts. All methods tolerate a nil
// receiver or an uninitialized pool: the bot works without postgres.
type GuildRepository struct {
	db *sql.DB
}

func NewGuildRepository() *GuildRepository {
	return &GuildRepository{db: GetDB()}
}

func (r *GuildRepository) UpsertMusicSettings(guildID string, volume int, autoplay bool) error {
	if r == nil || r.db == nil {
		return nil
	}
	if guildID == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), guildRepoTimeout)
	defer cancel()

	const query = `
		INSERT INTO guild_music_settings (guild_id, volume, autoplay, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (guild_id)
		DO UPDATE SET
			volume = EXCLUDED.volume,
			autoplay = EXCLUDED.autoplay,
			updated_at = NOW();
	`

	_, err := r.db.ExecContext(ctx, query, guildID, volume, autoplay)
	return err
}

// MusicDefaults returns the stored settings for a guild. ok is false
// when nothing is stored or the lookup fails; callers fall back to the
// built-in defaults.
func (r *GuildRepository) MusicDefaults(guildID string) (volume int, autoplay bool, ok bool) {
	if r == nil || r.db == nil {
		return 0, false, false
	}
	if guildID == "" {
		return 0, false, false
	}

	ctx, cancel := context.WithTimeout(context.Background(), guildRepoTimeout)
	defer cancel()

	const query = `
		SELECT volume, autoplay
		FROM guild_music_settings
		WHERE guild_id = $1
	`

	err := r.db.QueryRowContext(ctx, query, guildID).Scan(&volume, &autoplay)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, false, false
		}
		return 0, false, false
	}

	return volume, autoplay, true
}

func (r *GuildRepository) DeleteMusicSettings(guildID string) error {
	if r == nil || r.db == nil {
		return nil
	}
	if guildID == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), guildRepoTimeout)
	defer cancel()

	const query = `
		DELETE FROM guild_music_settings
		WHERE guild_id = $1
	`

	_, err := r.db.ExecContext(ctx, query, guildID)
	return err
}
