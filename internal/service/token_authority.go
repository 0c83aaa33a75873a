package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/ci-results-api/internal/models"
	appErrors "github.com/noah-isme/ci-results-api/pkg/errors"
)

// TokenLookup finds tokens by their opaque value.
type TokenLookup interface {
	FindByValue(ctx context.Context, value string) (*models.Token, error)
}

// AuthRequest is what a request presents for authorization.
type AuthRequest struct {
	Token    string
	Method   string
	RemoteIP string
	// TokenManagement marks the token administration endpoints, which only
	// admin tokens may use.
	TokenManagement bool
}

// TokenAuthority checks capability tokens against the method of a request.
type TokenAuthority struct {
	tokens  TokenLookup
	now     func() time.Time
	logger  *zap.Logger
	metrics *MetricsService
}

// NewTokenAuthority builds an authority over tokens. A nil clock uses time.Now.
func NewTokenAuthority(tokens TokenLookup, now func() time.Time, logger *zap.Logger, metrics *MetricsService) *TokenAuthority {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TokenAuthority{tokens: tokens, now: now, logger: logger, metrics: metrics}
}

// Validate reports whether req may proceed and returns the matching token
// when it may. It never fails: lookup errors make the token invalid.
func (a *TokenAuthority) Validate(ctx context.Context, req AuthRequest) (bool, *models.Token) {
	token, err := a.Authorize(ctx, req)
	if err != nil {
		return false, nil
	}
	return true, token
}

// Authorize is Validate with the 403 reason attached: ErrNoToken when no
// usable token was presented, ErrAuth when the token lacks the capability.
func (a *TokenAuthority) Authorize(ctx context.Context, req AuthRequest) (*models.Token, error) {
	token, err := a.authorize(ctx, req)
	if err != nil {
		a.metrics.IncAuthDenied(req.Method)
		return nil, err
	}
	return token, nil
}

func (a *TokenAuthority) authorize(ctx context.Context, req AuthRequest) (*models.Token, error) {
	if req.Token == "" {
		return nil, appErrors.ErrNoToken
	}

	token, err := a.tokens.FindByValue(ctx, req.Token)
	if err != nil {
		if !errors.Is(err, appErrors.ErrDocumentNotFound) {
			a.logger.Error("token lookup failed", zap.Error(err))
		}
		return nil, appErrors.ErrNoToken
	}
	if token == nil {
		return nil, appErrors.ErrNoToken
	}

	checked := *token
	checked.Normalize()

	if checked.IsExpired(a.now()) {
		return nil, appErrors.ErrNoToken
	}
	if !checked.AllowsIP(req.RemoteIP) {
		return nil, appErrors.ErrAuth
	}

	if req.TokenManagement {
		if checked.IsAdmin() {
			return token, nil
		}
		return nil, appErrors.ErrAuth
	}
	if checked.IsAdmin() || checked.IsSuperuser() {
		return token, nil
	}
	if !checked.AllowsMethod(req.Method) {
		return nil, appErrors.ErrAuth
	}
	return token, nil
}
