package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/wholesale/backend/internal/domain/shared"
	"github.com/wholesale/backend/internal/infrastructure/config"
)

// Common errors
var (
	ErrInvalidToken     = errors.New("invalid token")
	ErrExpiredToken     = errors.New("token has expired")
	ErrInvalidClaims    = errors.New("invalid token claims")
	ErrTokenNotYetValid = errors.New("token is not yet valid")
	ErrMissingActorID   = errors.New("missing actor_id in claims")
	ErrUnknownRole      = errors.New("unknown role in claims")
	ErrTokenBlacklisted = errors.New("token has been revoked")
)

// Claims carries the actor the marketplace acts on behalf of. Tokens are
// minted by the identity service; this service only verifies them.
type Claims struct {
	jwt.RegisteredClaims
	ActorID       string `json:"actor_id"`
	Role          string `json:"role"`
	SubRole       string `json:"sub_role,omitempty"`
	AccountStatus string `json:"account_status"`
}

// Actor converts verified claims into the domain actor
func (c *Claims) Actor() (shared.Actor, error) {
	id, err := uuid.Parse(c.ActorID)
	if err != nil {
		return shared.Actor{}, ErrMissingActorID
	}
	role := shared.Role(c.Role)
	if !role.IsValid() {
		return shared.Actor{}, ErrUnknownRole
	}
	status := shared.AccountStatus(c.AccountStatus)
	if status == "" {
		status = shared.AccountActive
	}
	actor := shared.Actor{ID: id, Role: role, AccountStatus: status}
	if role == shared.RoleAdmin {
		actor.SubRole = shared.AdminSubRole(c.SubRole)
	}
	return actor, nil
}

// GetIssuedAtTime returns the token's issued-at time
func (c *Claims) GetIssuedAtTime() time.Time {
	if c.IssuedAt != nil {
		return c.IssuedAt.Time
	}
	return time.Time{}
}

// GetRemainingTTL returns the remaining time until the token expires
func (c *Claims) GetRemainingTTL() time.Duration {
	if c.ExpiresAt == nil {
		return 0
	}
	remaining := time.Until(c.ExpiresAt.Time)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// JWTService signs and verifies actor tokens with a shared HMAC secret
type JWTService struct {
	secret     []byte
	expiration time.Duration
	issuer     string
}

// NewJWTService creates a new JWT service
func NewJWTService(cfg config.JWTConfig) *JWTService {
	return &JWTService{
		secret:     []byte(cfg.Secret),
		expiration: cfg.AccessTokenExpiration,
		issuer:     cfg.Issuer,
	}
}

// Issue signs a token for actor. Used by development tooling and tests.
func (s *JWTService) Issue(actor shared.Actor) (string, error) {
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Issuer:    s.issuer,
			Subject:   actor.ID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expiration)),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		ActorID:       actor.ID.String(),
		Role:          string(actor.Role),
		SubRole:       string(actor.SubRole),
		AccountStatus: string(actor.AccountStatus),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Validate verifies signature, issuer and lifetime and returns the claims
func (s *JWTService) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	}, jwt.WithIssuer(s.issuer))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		if errors.Is(err, jwt.ErrTokenNotValidYet) {
			return nil, ErrTokenNotYetValid
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidClaims
	}
	if claims.ActorID == "" {
		return nil, ErrMissingActorID
	}
	return claims, nil
}
