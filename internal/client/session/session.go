// Package session exposes the authentication state the sync engine reads:
// the bearer token and whether the user chose local-only mode.
//
// The session is persisted in the metadata table. The engine only reads it,
// apart from ReportUnauthorized which flags the token for re-authentication
// after the server rejected it.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"

	"github.com/dmitrijs2005/fridgekeeper/internal/client/client"
	"github.com/dmitrijs2005/fridgekeeper/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/fridgekeeper/internal/common"
)

// ErrNoSession is returned by the token source when there is nothing to
// authenticate with.
var ErrNoSession = fmt.Errorf("%w: no usable session token", client.ErrUnauthorized)

type Mode string

const (
	ModeNone          Mode = ""
	ModeAuthenticated Mode = "authenticated"
	ModeLocal         Mode = "local"
)

type Session struct {
	Mode  Mode
	Token string
	// NeedsReauth is set once the server answered 401 to the token.
	NeedsReauth bool
}

// CanSync reports whether a sync pass may talk to the server at now.
func (s Session) CanSync(now time.Time) bool {
	return s.Mode == ModeAuthenticated && s.Token != "" && !s.NeedsReauth && TokenUsable(s.Token, now)
}

// TokenUsable reports whether token has not expired at now. Only the exp
// claim of a JWT is inspected; the signature is the server's business.
// Opaque tokens are always considered usable.
func TokenUsable(token string, now time.Time) bool {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return true
	}
	if claims.ExpiresAt == nil {
		return true
	}
	return now.Before(claims.ExpiresAt.Time)
}

// Provider is what the sync engine needs from the session subsystem.
type Provider interface {
	Current(ctx context.Context) (Session, error)
	ReportUnauthorized(ctx context.Context) error
}

// Store is a Provider persisted in the metadata repository.
type Store struct {
	meta metadata.Repository
	now  func() time.Time
}

var _ Provider = (*Store)(nil)

func NewStore(meta metadata.Repository) *Store {
	return &Store{meta: meta, now: time.Now}
}

func (s *Store) Current(ctx context.Context) (Session, error) {
	mode, err := s.meta.Get(ctx, common.MetaSessionMode)
	if err != nil {
		return Session{}, err
	}
	token, err := s.meta.Get(ctx, common.MetaSessionToken)
	if err != nil {
		return Session{}, err
	}
	reauth, err := s.meta.Get(ctx, common.MetaSessionReauth)
	if err != nil {
		return Session{}, err
	}
	return Session{Mode: Mode(mode), Token: token, NeedsReauth: reauth == "1"}, nil
}

func (s *Store) ReportUnauthorized(ctx context.Context) error {
	return s.meta.Set(ctx, common.MetaSessionReauth, "1")
}

// Login stores token and switches to authenticated mode.
func (s *Store) Login(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("%w: empty token", common.ErrorValidation)
	}
	if !TokenUsable(token, s.now()) {
		return fmt.Errorf("%w: token already expired", common.ErrorValidation)
	}
	if err := s.meta.Set(ctx, common.MetaSessionToken, token); err != nil {
		return err
	}
	if err := s.meta.Delete(ctx, common.MetaSessionReauth); err != nil {
		return err
	}
	return s.meta.Set(ctx, common.MetaSessionMode, string(ModeAuthenticated))
}

// UseLocal switches to local-only mode. The token is dropped.
func (s *Store) UseLocal(ctx context.Context) error {
	if err := s.meta.Delete(ctx, common.MetaSessionToken); err != nil {
		return err
	}
	return s.meta.Set(ctx, common.MetaSessionMode, string(ModeLocal))
}

func (s *Store) Logout(ctx context.Context) error {
	for _, key := range []string{common.MetaSessionToken, common.MetaSessionMode, common.MetaSessionReauth} {
		if err := s.meta.Delete(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

// TokenSource adapts the store to oauth2 for the HTTP client. ctx bounds
// the metadata reads.
func (s *Store) TokenSource(ctx context.Context) oauth2.TokenSource {
	return tokenSource{ctx: ctx, store: s}
}

type tokenSource struct {
	ctx   context.Context
	store *Store
}

func (t tokenSource) Token() (*oauth2.Token, error) {
	cur, err := t.store.Current(t.ctx)
	if err != nil {
		return nil, err
	}
	if !cur.CanSync(t.store.now()) {
		return nil, ErrNoSession
	}
	return &oauth2.Token{AccessToken: cur.Token, TokenType: "Bearer"}, nil
}

// IsNoSession reports whether err came from a missing or unusable session.
func IsNoSession(err error) bool {
	return errors.Is(err, ErrNoSession)
}
