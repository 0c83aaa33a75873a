package service

import (
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/noah-isme/ci-results-api/internal/models"
	"github.com/noah-isme/ci-results-api/internal/query"
	appErrors "github.com/noah-isme/ci-results-api/pkg/errors"
)

// TokenRepository persists tokens. Both the Mongo and Postgres stores
// implement it.
type TokenRepository interface {
	TokenLookup
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Token, error)
	List(ctx context.Context, filter models.TokenFilter) ([]models.Token, error)
	Create(ctx context.Context, token *models.Token) error
	Update(ctx context.Context, token *models.Token) error
	Delete(ctx context.Context, id primitive.ObjectID) error
}

// TokenService manages API tokens.
type TokenService struct {
	repo      TokenRepository
	validator *validator.Validate
	now       func() time.Time
	newValue  func() string
	logger    *zap.Logger
}

// NewTokenService builds a token service.
func NewTokenService(repo TokenRepository, v *validator.Validate, logger *zap.Logger) *TokenService {
	if v == nil {
		v = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TokenService{repo: repo, validator: v, now: time.Now, newValue: uuid.NewString, logger: logger}
}

// List returns the tokens matching params.
func (s *TokenService) List(ctx context.Context, params url.Values) ([]bson.M, error) {
	if unknown := query.UnknownKeys(models.ResourceToken, params); len(unknown) > 0 {
		return nil, appErrors.Validationf("Invalid query key: %s", unknown[0])
	}
	var filter models.TokenFilter
	if raw := params.Get("_id"); raw != "" {
		id, err := parseID(raw)
		if err != nil {
			return nil, err
		}
		filter.ID = id
	}
	filter.Email = params.Get("email")
	filter.Username = params.Get("username")

	tokens, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	out := make([]bson.M, 0, len(tokens))
	for i := range tokens {
		out = append(out, tokens[i].ToWire())
	}
	return out, nil
}

// Get returns the token with the given id.
func (s *TokenService) Get(ctx context.Context, rawID string) (bson.M, error) {
	id, err := parseID(rawID)
	if err != nil {
		return nil, err
	}
	token, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "Token not found")
	}
	return token.ToWire(), nil
}

// Create validates the payload and stores a new token with a fresh value.
func (s *TokenService) Create(ctx context.Context, raw []byte) (*models.Token, error) {
	var token models.Token
	if err := decodePayload(s.validator, raw, &token); err != nil {
		return nil, err
	}
	token.Normalize()
	token.Token = s.newValue()
	token.CreatedOn = s.now().UTC()
	if token.Capabilities.IPRestricted == 1 && len(token.IPAddresses) == 0 {
		return nil, appErrors.Clone(appErrors.ErrUnprocessable, "IP restricted tokens need at least one IP address")
	}

	if err := s.repo.Create(ctx, &token); err != nil {
		return nil, err
	}
	s.logger.Info("token created", zap.String("token_id", token.ID.Hex()), zap.String("email", token.Email))
	return &token, nil
}

// Update replaces the editable fields of a token.
func (s *TokenService) Update(ctx context.Context, rawID string, raw []byte) error {
	id, err := parseID(rawID)
	if err != nil {
		return err
	}
	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return notFound(err, "Token not found")
	}

	var token models.Token
	if err := decodePayload(s.validator, raw, &token); err != nil {
		return err
	}
	token.Normalize()
	token.ID = existing.ID
	token.Token = existing.Token
	token.CreatedOn = existing.CreatedOn
	if token.Capabilities.IPRestricted == 1 && len(token.IPAddresses) == 0 {
		return appErrors.Clone(appErrors.ErrUnprocessable, "IP restricted tokens need at least one IP address")
	}
	if err := s.repo.Update(ctx, &token); err != nil {
		return notFound(err, "Token not found")
	}
	return nil
}

// Delete removes a token.
func (s *TokenService) Delete(ctx context.Context, rawID string) error {
	id, err := parseID(rawID)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return notFound(err, "Token not found")
	}
	s.logger.Info("token deleted", zap.String("token_id", id.Hex()))
	return nil
}

// notFound turns a store miss into a 404 carrying message.
func notFound(err error, message string) error {
	if errors.Is(err, appErrors.ErrDocumentNotFound) {
		return appErrors.Clone(appErrors.ErrNotFound, message)
	}
	return err
}
