package session

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/iliyamo/myblog/internal/adminsession"
	"github.com/iliyamo/myblog/internal/apperr"
	"github.com/iliyamo/myblog/internal/provider"
)

// Identity sources.
const (
	SourceAdminSession = "admin_session"
	SourceUnsignedDev  = "unsigned_dev"
	SourceHelperCookie = "helper_cookie"
	SourceTokenPair    = "token_pair"
)

// Role given to provider users that are not admins.
const RoleAuthenticated = "authenticated"

// ErrNoSession means no cookie yielded a usable identity.
var ErrNoSession = apperr.Unauthorized("no session")

// Identity is the authenticated principal of one request.
type Identity struct {
	UserID    string    `json:"id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Source    string    `json:"-"`
	ExpiresAt time.Time `json:"-"`
	// AccessToken is set for provider-backed identities.
	AccessToken string `json:"-"`
}

func (i *Identity) IsAdmin() bool { return i != nil && i.Role == adminsession.RoleAdmin }

// Authenticator is the part of provider.Gateway the resolver needs.
type Authenticator interface {
	FetchUserFromAccess(ctx context.Context, accessToken string) (*provider.User, error)
	RefreshAuthTokens(ctx context.Context, refreshToken string) (*provider.TokenPair, error)
}

// Options configures a Resolver.
type Options struct {
	Cookies     CookieOptions
	AdminEmails []string
	// RefreshGrace is how close to expiry an access token may be before it is
	// refreshed without trying it first.
	RefreshGrace time.Duration
	// AllowUnsigned accepts undecodable admin-session tokens by reading
	// their payload unverified. Callers must only set it outside
	// production; it has no effect unless built with -tags devsession.
	AllowUnsigned bool
	// Sources are tried in order after the admin-session cookie. Defaults
	// to the helper cookie, then the standard token pair.
	Sources []TokenSource
}

// Resolver turns a cookie jar into an Identity. It is safe for concurrent
// use; it keeps no per-request state.
type Resolver struct {
	auth    Authenticator
	signer  *adminsession.Signer
	opts    Options
	sources []TokenSource
	now     func() time.Time
}

func NewResolver(auth Authenticator, signer *adminsession.Signer, opts Options) *Resolver {
	if opts.RefreshGrace <= 0 {
		opts.RefreshGrace = 60 * time.Second
	}
	sources := opts.Sources
	if len(sources) == 0 {
		sources = []TokenSource{HelperCookieSource{}, PairSource{}}
	}
	return &Resolver{auth: auth, signer: signer, opts: opts, sources: sources, now: time.Now}
}

// WithClock overrides the clock used for expiry hints.
func (r *Resolver) WithClock(now func() time.Time) *Resolver {
	r.now = now
	return r
}

// Cookies exposes the cookie attributes the resolver writes with.
func (r *Resolver) Cookies() CookieOptions { return r.opts.Cookies }

// Resolve checks, in order, the admin-session cookie, then each token source.
// A refreshed pair is written back through store. Every failure ends in
// ErrNoSession.
func (r *Resolver) Resolve(ctx context.Context, store CookieStore) (*Identity, error) {
	if raw, ok := store.Get(AdminCookieName); ok {
		if id := r.fromAdminCookie(raw); id != nil {
			return id, nil
		}
	}

	for _, src := range r.sources {
		cand, ok := src.Candidate(store)
		if !ok {
			continue
		}
		id, err := r.fromCandidate(ctx, store, cand)
		if err == nil {
			return id, nil
		}
		log.Ctx(ctx).Debug().Err(err).Str("source", src.Name()).Msg("session: source did not resolve")
	}
	return nil, ErrNoSession
}

func (r *Resolver) fromAdminCookie(raw string) *Identity {
	if r.signer != nil {
		claims, err := r.signer.Verify(raw)
		if err == nil {
			return claimsIdentity(claims, SourceAdminSession)
		}
		if !errors.Is(err, adminsession.ErrNoSecret) {
			log.Debug().Err(err).Msg("session: admin-session cookie rejected")
		}
	}
	if !r.opts.AllowUnsigned || !adminsession.UnsignedCompiled {
		return nil
	}
	signer := r.signer
	if signer == nil {
		signer = adminsession.NewSigner("")
	}
	claims, err := signer.DecodeUnverified(raw)
	if err != nil {
		return nil
	}
	log.Warn().Str("email", claims.Email).Msg("session: accepted UNVERIFIED admin-session token (devsession build)")
	return claimsIdentity(claims, SourceUnsignedDev)
}

func claimsIdentity(c *adminsession.Claims, source string) *Identity {
	id := &Identity{UserID: c.UserID, Email: c.Email, Role: c.Role, Source: source}
	if c.ExpiresAt != nil {
		id.ExpiresAt = c.ExpiresAt.Time
	}
	return id
}

// fromCandidate validates a pair: fetch the user with the access token,
// refresh once when that is pointless or fails, then fetch again. A token
// inside the grace window is refreshed first, but it is still tried when
// the refresh cannot happen and it has not actually expired.
func (r *Resolver) fromCandidate(ctx context.Context, store CookieStore, c Candidate) (*Identity, error) {
	hinted := !c.ExpiresAt.IsZero()
	stale := hinted && !r.now().Before(c.ExpiresAt.Add(-r.opts.RefreshGrace))

	if c.Access != "" && !stale {
		u, err := r.auth.FetchUserFromAccess(ctx, c.Access)
		if err == nil {
			return r.userIdentity(u, c.Access, c.ExpiresAt, c.Source), nil
		}
		if hinted {
			// the hint says the token is fresh, so a refresh would not help
			return nil, err
		}
	}

	id, err := r.refresh(ctx, store, c)
	if err == nil {
		return id, nil
	}
	if stale && c.Access != "" && r.now().Before(c.ExpiresAt) {
		u, ferr := r.auth.FetchUserFromAccess(ctx, c.Access)
		if ferr == nil {
			log.Ctx(ctx).Debug().Err(err).Msg("session: refresh failed, access token still valid")
			return r.userIdentity(u, c.Access, c.ExpiresAt, c.Source), nil
		}
	}
	return nil, err
}

// refresh exchanges the candidate's refresh token, writes the new pair and
// fetches its user.
func (r *Resolver) refresh(ctx context.Context, store CookieStore, c Candidate) (*Identity, error) {
	if c.Refresh == "" {
		return nil, ErrNoSession
	}
	pair, err := r.auth.RefreshAuthTokens(ctx, c.Refresh)
	if err != nil {
		return nil, err
	}
	writes := r.opts.Cookies.PairCookies(*pair)
	if len(c.Superseded) > 0 {
		writes = append(writes, r.opts.Cookies.Expire(c.Superseded...)...)
	}
	store.SetAll(writes)

	u, err := r.auth.FetchUserFromAccess(ctx, pair.AccessToken)
	if err != nil {
		return nil, err
	}
	return r.userIdentity(u, pair.AccessToken, pair.ExpiresAt, c.Source), nil
}

func (r *Resolver) userIdentity(u *provider.User, access string, exp time.Time, source string) *Identity {
	role := RoleAuthenticated
	if u.IsAdmin(r.opts.AdminEmails) {
		role = adminsession.RoleAdmin
	}
	return &Identity{
		UserID:      u.ID,
		Email:       u.Email,
		Role:        role,
		Source:      source,
		ExpiresAt:   exp,
		AccessToken: access,
	}
}
