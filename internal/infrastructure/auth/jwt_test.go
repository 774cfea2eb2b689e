package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wholesale/backend/internal/domain/shared"
	"github.com/wholesale/backend/internal/infrastructure/config"
)

func newTestJWTService() *JWTService {
	return NewJWTService(config.JWTConfig{
		Secret:                "test-secret-key-at-least-32-chars",
		Issuer:                "test-issuer",
		AccessTokenExpiration: 15 * time.Minute,
	})
}

func TestIssueAndValidate(t *testing.T) {
	svc := newTestJWTService()
	actor := shared.NewAdmin(uuid.New(), shared.AdminFinance)

	token, err := svc.Issue(actor)
	require.NoError(t, err)

	claims, err := svc.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, actor.ID.String(), claims.Subject)
	assert.NotEmpty(t, claims.ID)
	assert.Greater(t, claims.GetRemainingTTL(), 14*time.Minute)

	got, err := claims.Actor()
	require.NoError(t, err)
	assert.Equal(t, actor, got)
	assert.True(t, got.Can(shared.CapForceEscrowRelease))
}

func TestClaims_Actor(t *testing.T) {
	id := uuid.New()

	tests := []struct {
		name    string
		claims  Claims
		want    shared.Actor
		wantErr error
	}{
		{
			name:   "seller defaults to active",
			claims: Claims{ActorID: id.String(), Role: "SELLER"},
			want:   shared.Actor{ID: id, Role: shared.RoleSeller, AccountStatus: shared.AccountActive},
		},
		{
			name:   "sub-role ignored for non-admins",
			claims: Claims{ActorID: id.String(), Role: "CUSTOMER", SubRole: "SUPER", AccountStatus: "SUSPENDED"},
			want:   shared.Actor{ID: id, Role: shared.RoleCustomer, AccountStatus: shared.AccountSuspended},
		},
		{
			name:    "bad actor id",
			claims:  Claims{ActorID: "nope", Role: "SELLER"},
			wantErr: ErrMissingActorID,
		},
		{
			name:    "unknown role",
			claims:  Claims{ActorID: id.String(), Role: "WAREHOUSE"},
			wantErr: ErrUnknownRole,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.claims.Actor()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidate_ExpiredToken(t *testing.T) {
	svc := NewJWTService(config.JWTConfig{
		Secret:                "test-secret-key-at-least-32-chars",
		Issuer:                "test-issuer",
		AccessTokenExpiration: -time.Minute,
	})
	token, err := svc.Issue(shared.NewActor(uuid.New(), shared.RoleSeller))
	require.NoError(t, err)

	_, err = svc.Validate(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestValidate_Rejections(t *testing.T) {
	svc := newTestJWTService()

	_, err := svc.Validate("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	other := NewJWTService(config.JWTConfig{
		Secret:                "another-secret-key-of-32-chars!!",
		Issuer:                "test-issuer",
		AccessTokenExpiration: time.Minute,
	})
	token, err := other.Issue(shared.NewActor(uuid.New(), shared.RoleSeller))
	require.NoError(t, err)
	_, err = svc.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	foreign := NewJWTService(config.JWTConfig{
		Secret:                "test-secret-key-at-least-32-chars",
		Issuer:                "someone-else",
		AccessTokenExpiration: time.Minute,
	})
	token, err = foreign.Issue(shared.NewActor(uuid.New(), shared.RoleSeller))
	require.NoError(t, err)
	_, err = svc.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	noActor, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "test-issuer",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
		Role: "SELLER",
	}).SignedString([]byte("test-secret-key-at-least-32-chars"))
	require.NoError(t, err)
	_, err = svc.Validate(noActor)
	assert.ErrorIs(t, err, ErrMissingActorID)
}
