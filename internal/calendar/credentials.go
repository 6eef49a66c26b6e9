package calendar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/edgareichner01-sys/bot-rdv/pkg/logging"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/oauth2"
)

// TokenStore persists each tenant's Google OAuth token.
type TokenStore interface {
	Load(ctx context.Context, tenantID string) (*oauth2.Token, error)
	Save(ctx context.Context, tenantID string, tok *oauth2.Token) error
	Delete(ctx context.Context, tenantID string) error
}

type rowQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// CredentialStore keeps tokens in the tenant_calendar_credentials table.
type CredentialStore struct {
	pool rowQuerier
}

func NewCredentialStore(pool *pgxpool.Pool) *CredentialStore {
	if pool == nil {
		panic("calendar: pgx pool required")
	}
	return &CredentialStore{pool: pool}
}

func newCredentialStoreWithExec(exec rowQuerier) *CredentialStore {
	if exec == nil {
		panic("calendar: exec required")
	}
	return &CredentialStore{pool: exec}
}

// Load returns ErrNotConnected when the tenant has no stored token.
func (s *CredentialStore) Load(ctx context.Context, tenantID string) (*oauth2.Token, error) {
	query := `SELECT token_json FROM tenant_calendar_credentials WHERE tenant_id = $1`
	var raw []byte
	if err := s.pool.QueryRow(ctx, query, tenantID).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotConnected
		}
		return nil, fmt.Errorf("calendar: load credentials: %w", err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(raw, &tok); err != nil {
		return nil, fmt.Errorf("calendar: decode credentials: %w", err)
	}
	return &tok, nil
}

func (s *CredentialStore) Save(ctx context.Context, tenantID string, tok *oauth2.Token) error {
	raw, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("calendar: encode credentials: %w", err)
	}
	query := `
		INSERT INTO tenant_calendar_credentials (tenant_id, token_json, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (tenant_id) DO UPDATE SET token_json = EXCLUDED.token_json, updated_at = now()
	`
	if _, err := s.pool.Exec(ctx, query, tenantID, raw); err != nil {
		return fmt.Errorf("calendar: save credentials: %w", err)
	}
	return nil
}

func (s *CredentialStore) Delete(ctx context.Context, tenantID string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM tenant_calendar_credentials WHERE tenant_id = $1`, tenantID); err != nil {
		return fmt.Errorf("calendar: delete credentials: %w", err)
	}
	return nil
}

// persistingTokenSource writes refreshed tokens back to the store so the next
// request starts from the fresh access token.
type persistingTokenSource struct {
	base     oauth2.TokenSource
	store    TokenStore
	tenantID string
	logger   *logging.Logger

	mu   sync.Mutex
	last string
	// refresh responses may omit the refresh token; the last known one is reused.
	refresh string
}

func newPersistingTokenSource(base oauth2.TokenSource, store TokenStore, tenantID string, initial *oauth2.Token, logger *logging.Logger) *persistingTokenSource {
	if logger == nil {
		logger = logging.Default()
	}
	ts := &persistingTokenSource{base: base, store: store, tenantID: tenantID, logger: logger}
	if initial != nil {
		ts.last = initial.AccessToken
		ts.refresh = initial.RefreshToken
	}
	return ts
}

func (p *persistingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := p.base.Token()
	if err != nil {
		return nil, fmt.Errorf("calendar: refresh token: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if tok.AccessToken == p.last {
		return tok, nil
	}
	if tok.RefreshToken == "" {
		tok.RefreshToken = p.refresh
	}
	p.last = tok.AccessToken
	p.refresh = tok.RefreshToken
	if err := p.store.Save(context.Background(), p.tenantID, tok); err != nil {
		p.logger.Warn("failed to persist refreshed google token", "tenant_id", p.tenantID, "error", err)
	} else {
		p.logger.Info("google token refreshed", "tenant_id", p.tenantID)
	}
	return tok, nil
}
