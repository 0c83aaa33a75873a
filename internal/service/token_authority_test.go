package service

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/ci-results-api/internal/models"
	appErrors "github.com/noah-isme/ci-results-api/pkg/errors"
)

type tokenLookupStub struct {
	tokens map[string]*models.Token
	err    error
	calls  int
}

func (s *tokenLookupStub) FindByValue(ctx context.Context, value string) (*models.Token, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	tok, ok := s.tokens[value]
	if !ok {
		return nil, appErrors.ErrDocumentNotFound
	}
	return tok, nil
}

var fixedNow = time.Date(2014, 1, 1, 12, 0, 0, 0, time.UTC)

func newAuthority(tokens map[string]*models.Token) (*TokenAuthority, *tokenLookupStub) {
	stub := &tokenLookupStub{tokens: tokens}
	return NewTokenAuthority(stub, func() time.Time { return fixedNow }, nil, nil), stub
}

func bit(v bool) int {
	if v {
		return 1
	}
	return 0
}

func TestValidateMatchesCapabilityBitAndExpiry(t *testing.T) {
	methods := []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete}
	past := fixedNow.Add(-time.Hour)

	for mask := 0; mask < 1<<7; mask++ {
		for _, expired := range []bool{false, true} {
			tok := &models.Token{
				Token: "t",
				Capabilities: models.Capabilities{
					Read:        bit(mask&1 != 0),
					Create:      bit(mask&2 != 0),
					Delete:      bit(mask&4 != 0),
					Update:      bit(mask&8 != 0),
					Admin:       bit(mask&16 != 0),
					Superuser:   bit(mask&32 != 0),
					CreateToken: bit(mask&64 != 0),
				},
			}
			tok.Normalize()
			if expired {
				tok.ExpiresOn = &past
			}
			auth, _ := newAuthority(map[string]*models.Token{"t": tok})

			for _, m := range methods {
				valid, got := auth.Validate(context.Background(), AuthRequest{Token: "t", Method: m})
				want := tok.AllowsMethod(m) && !tok.IsExpired(fixedNow)
				assert.Equal(t, want, valid, "mask=%07b expired=%v method=%s", mask, expired, m)
				if valid {
					assert.Same(t, tok, got)
				} else {
					assert.Nil(t, got)
				}
			}
		}
	}
}

func TestValidateAbsentTokenSkipsLookup(t *testing.T) {
	auth, stub := newAuthority(nil)
	valid, tok := auth.Validate(context.Background(), AuthRequest{Method: http.MethodGet})
	assert.False(t, valid)
	assert.Nil(t, tok)
	assert.Zero(t, stub.calls)

	_, err := auth.Authorize(context.Background(), AuthRequest{Method: http.MethodGet})
	assert.ErrorIs(t, err, appErrors.ErrNoToken)
}

func TestValidateUnknownTokenAndLookupFailure(t *testing.T) {
	auth, stub := newAuthority(map[string]*models.Token{})
	_, err := auth.Authorize(context.Background(), AuthRequest{Token: "nope", Method: http.MethodGet})
	assert.ErrorIs(t, err, appErrors.ErrNoToken)

	stub.err = errors.New("connection refused")
	valid, _ := auth.Validate(context.Background(), AuthRequest{Token: "nope", Method: http.MethodGet})
	assert.False(t, valid)
}

func TestValidateMissingBitIsOperationNotPermitted(t *testing.T) {
	readOnly := &models.Token{Token: "r", Capabilities: models.Capabilities{Read: 1}}
	auth, _ := newAuthority(map[string]*models.Token{"r": readOnly})

	_, err := auth.Authorize(context.Background(), AuthRequest{Token: "r", Method: http.MethodPost})
	require.Error(t, err)
	assert.Equal(t, "Operation not permitted", err.Error())
}

func TestTokenManagementRequiresAdmin(t *testing.T) {
	admin := &models.Token{Token: "a", Capabilities: models.Capabilities{Admin: 1}}
	super := &models.Token{Token: "s", Capabilities: models.Capabilities{Superuser: 1}}
	creator := &models.Token{Token: "c", Capabilities: models.Capabilities{Read: 1, Create: 1, CreateToken: 1}}
	auth, _ := newAuthority(map[string]*models.Token{"a": admin, "s": super, "c": creator})

	for _, m := range []string{http.MethodGet, http.MethodPost, http.MethodDelete} {
		valid, _ := auth.Validate(context.Background(), AuthRequest{Token: "a", Method: m, TokenManagement: true})
		assert.True(t, valid, m)
		valid, _ = auth.Validate(context.Background(), AuthRequest{Token: "s", Method: m, TokenManagement: true})
		assert.False(t, valid, m)
		valid, _ = auth.Validate(context.Background(), AuthRequest{Token: "c", Method: m, TokenManagement: true})
		assert.False(t, valid, m)
	}

	valid, _ := auth.Validate(context.Background(), AuthRequest{Token: "s", Method: http.MethodDelete})
	assert.True(t, valid)
}

func TestValidateIPRestriction(t *testing.T) {
	tok := &models.Token{
		Token:        "ip",
		Capabilities: models.Capabilities{Read: 1, IPRestricted: 1},
		IPAddresses:  []string{"10.0.0.1"},
	}
	auth, _ := newAuthority(map[string]*models.Token{"ip": tok})

	valid, _ := auth.Validate(context.Background(), AuthRequest{Token: "ip", Method: http.MethodGet, RemoteIP: "10.0.0.1"})
	assert.True(t, valid)
	valid, _ = auth.Validate(context.Background(), AuthRequest{Token: "ip", Method: http.MethodGet, RemoteIP: "10.0.0.2"})
	assert.False(t, valid)
}

func TestValidateDoesNotMutateStoredToken(t *testing.T) {
	tok := &models.Token{Token: "a", Capabilities: models.Capabilities{Admin: 1}}
	auth, _ := newAuthority(map[string]*models.Token{"a": tok})

	valid, _ := auth.Validate(context.Background(), AuthRequest{Token: "a", Method: http.MethodGet})
	assert.True(t, valid)
	assert.Zero(t, tok.Capabilities.Read)
}
