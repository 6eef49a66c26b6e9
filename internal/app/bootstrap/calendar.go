package bootstrap

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/edgareichner01-sys/bot-rdv/internal/calendar"
	appconfig "github.com/edgareichner01-sys/bot-rdv/internal/config"
	"github.com/edgareichner01-sys/bot-rdv/pkg/logging"
)

// BuildCalendar wires Google Calendar. Tokens live in Postgres and the OAuth
// state in Redis, so both are required alongside the OAuth client settings.
// It returns nils when the integration is disabled.
func BuildCalendar(cfg *appconfig.Config, pool *pgxpool.Pool, redisClient *redis.Client, logger *logging.Logger) (*calendar.Service, *calendar.OAuthHandler) {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg == nil || !cfg.GoogleCalendarEnabled() {
		logger.Info("google calendar disabled: oauth client not configured")
		return nil, nil
	}
	if pool == nil || redisClient == nil {
		logger.Warn("google calendar disabled: postgres and redis are required")
		return nil, nil
	}

	oauthCfg := calendar.NewOAuthConfig(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL)
	tokens := calendar.NewCredentialStore(pool)
	return calendar.NewService(oauthCfg, tokens, logger),
		calendar.NewOAuthHandler(oauthCfg, tokens, redisClient, logger)
}
