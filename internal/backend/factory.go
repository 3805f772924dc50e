// Package backend hands out data clients bound to a principal. A client
// applies the row rules the hosted database used to enforce: post writes
// and inquiry management are privileged, drafts are hidden from the public,
// and comments can be removed with their password.
package backend

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/iliyamo/myblog/internal/adminsession"
	"github.com/iliyamo/myblog/internal/apperr"
	"github.com/iliyamo/myblog/internal/provider"
	"github.com/iliyamo/myblog/internal/repository"
	"github.com/iliyamo/myblog/internal/session"
)

// ServiceRoleID is the principal id recorded for writes made with the
// service-role client.
const ServiceRoleID = "service_role"

// Principal is who a Client acts for.
type Principal struct {
	UserID  string
	Email   string
	Role    string
	Service bool
}

// Privileged reports whether p bypasses the row rules.
func (p Principal) Privileged() bool { return p.Service || p.Role == adminsession.RoleAdmin }

// Anonymous reports whether p carries no identity at all.
func (p Principal) Anonymous() bool { return !p.Service && p.UserID == "" }

// UserFetcher resolves access tokens.
type UserFetcher interface {
	FetchUserFromAccess(ctx context.Context, accessToken string) (*provider.User, error)
}

// Repos groups the stores a Client reads and writes.
type Repos struct {
	Posts     *repository.PostRepo
	Comments  *repository.CommentRepo
	Inquiries *repository.InquiryRepo
}

// Factory builds Clients.
type Factory struct {
	users       UserFetcher
	repos       Repos
	serviceKey  bool
	adminEmails []string
	bcryptCost  int
}

// NewFactory wires a Factory. hasServiceKey tells whether a service-role
// credential is configured; without it ServiceRole always fails.
func NewFactory(users UserFetcher, repos Repos, hasServiceKey bool, adminEmails []string, bcryptCost int) *Factory {
	return &Factory{users: users, repos: repos, serviceKey: hasServiceKey, adminEmails: adminEmails, bcryptCost: bcryptCost}
}

// WithAccess returns a client acting as the owner of accessToken. The token
// is checked with the provider on every call.
func (f *Factory) WithAccess(ctx context.Context, accessToken string) (*Client, error) {
	if f.users == nil || accessToken == "" {
		return nil, apperr.Unauthorized("access token cannot be verified")
	}
	u, err := f.users.FetchUserFromAccess(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	role := session.RoleAuthenticated
	if u.IsAdmin(f.adminEmails) {
		role = adminsession.RoleAdmin
	}
	return f.client(Principal{UserID: u.ID, Email: u.Email, Role: role}), nil
}

// ServiceRole returns the privileged client.
func (f *Factory) ServiceRole() (*Client, error) {
	if !f.serviceKey {
		return nil, apperr.Configuration("service-role key is not configured")
	}
	log.Debug().Msg("backend: service-role client issued")
	return f.client(Principal{UserID: ServiceRoleID, Role: ServiceRoleID, Service: true}), nil
}

// ForIdentity returns a client for an already resolved identity.
func (f *Factory) ForIdentity(id *session.Identity) *Client {
	if id == nil {
		return f.Anonymous()
	}
	return f.client(Principal{UserID: id.UserID, Email: id.Email, Role: id.Role})
}

func (f *Factory) Anonymous() *Client { return f.client(Principal{Role: "anon"}) }

func (f *Factory) client(p Principal) *Client {
	return &Client{principal: p, repos: f.repos, bcryptCost: f.bcryptCost}
}
