package api

import (
	"context"

	"golang.org/x/oauth2"

	"github.com/custodia-labs/viewshot-cli/internal/core/ports/driven"
)

// TokenSourceAdapter adapts driven.TokenProvider to oauth2.TokenSource so
// requests are authorised with oauth2's header handling.
type TokenSourceAdapter struct {
	provider driven.TokenProvider
	ctx      context.Context
}

// NewTokenSource creates an oauth2.TokenSource bound to ctx.
func NewTokenSource(ctx context.Context, provider driven.TokenProvider) oauth2.TokenSource {
	return &TokenSourceAdapter{
		provider: provider,
		ctx:      ctx,
	}
}

// Token implements oauth2.TokenSource. Freshness is the provider's job.
func (a *TokenSourceAdapter) Token() (*oauth2.Token, error) {
	token, err := a.provider.GetToken(a.ctx)
	if err != nil {
		return nil, err
	}
	return &oauth2.Token{
		AccessToken: token,
		TokenType:   "Bearer",
	}, nil
}
