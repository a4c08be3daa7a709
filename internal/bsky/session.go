package bsky

import (
	"context"
	"errors"

	"github.com/bluesky-social/indigo/api/atproto"
	"github.com/bluesky-social/indigo/xrpc"
)

const (
	nsidCreateSession  = "com.atproto.server.createSession"
	nsidRefreshSession = "com.atproto.server.refreshSession"
)

// Session is the token pair returned by createSession/refreshSession.
type Session struct {
	AccessJwt  string
	RefreshJwt string
	Handle     string
	DID        string
}

// CreateSession signs in with an identifier and app password.
func (c *HTTPClient) CreateSession(ctx context.Context, identifier, password string) (Session, error) {
	if identifier == "" || password == "" {
		return Session{}, errors.New("createSession: missing identifier or password")
	}
	out, err := atproto.ServerCreateSession(ctx, c.xrpcClient(nil), &atproto.ServerCreateSession_Input{
		Identifier: identifier,
		Password:   password,
	})
	if err != nil {
		return Session{}, wrapErr(nsidCreateSession, err)
	}
	if out.AccessJwt == "" || out.RefreshJwt == "" {
		return Session{}, errors.New("createSession: response without tokens")
	}
	return Session{AccessJwt: out.AccessJwt, RefreshJwt: out.RefreshJwt, Handle: out.Handle, DID: out.Did}, nil
}

// RefreshSession exchanges a refresh token for a new pair. The refresh
// token is presented as the bearer.
func (c *HTTPClient) RefreshSession(ctx context.Context, refreshToken string) (Session, error) {
	if refreshToken == "" {
		return Session{}, errors.New("refreshSession: empty refresh token")
	}
	auth := &xrpc.AuthInfo{AccessJwt: refreshToken, RefreshJwt: refreshToken}
	out, err := atproto.ServerRefreshSession(ctx, c.xrpcClient(auth))
	if err != nil {
		return Session{}, wrapErr(nsidRefreshSession, err)
	}
	if out.AccessJwt == "" || out.RefreshJwt == "" {
		return Session{}, errors.New("refreshSession: response without tokens")
	}
	return Session{AccessJwt: out.AccessJwt, RefreshJwt: out.RefreshJwt, Handle: out.Handle, DID: out.Did}, nil
}
