// Package auth validates dashboard session tokens and exposes the acting
// moderator's identity and community scope to handlers. Token issuance happens
// upstream in the identity service; this side only verifies and trusts the
// scope claims it finds.
package auth

import (
	"errors"
	"net/http"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/RoModerate/romoderate/internal/domain"
	"github.com/RoModerate/romoderate/internal/httphelper"
)

var (
	ErrNoToken      = errors.New("no authentication token provided")
	ErrTokenParse   = errors.New("failed to parse token")
	ErrTokenInvalid = errors.New("token invalid or expired")
	ErrSigningKey   = errors.New("invalid signing key")
)

// Profile identifies the authenticated staff member for the duration of one
// request. Communities is the full set of community ids the member may act on;
// every read and write is filtered by it.
type Profile struct {
	ModeratorID string   `json:"moderator_id"`
	Name        string   `json:"name"`
	Communities []string `json:"communities"`
}

// HasCommunity reports whether the community is inside the profile scope.
func (p Profile) HasCommunity(communityID string) bool {
	return slices.Contains(p.Communities, communityID)
}

// Scope returns the raw scope set for repository-side filtering.
func (p Profile) Scope() []string {
	return p.Communities
}

type sessionClaims struct {
	Name        string   `json:"name"`
	Communities []string `json:"communities"`
	jwt.RegisteredClaims
}

type Authentication struct {
	signingKey []byte
}

func New(signingKey string) *Authentication {
	return &Authentication{signingKey: []byte(signingKey)}
}

func (a *Authentication) profileFromToken(tokenString string) (Profile, error) {
	claims := &sessionClaims{}

	token, errParse := jwt.ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (any, error) {
		return a.signingKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if errParse != nil {
		return Profile{}, errors.Join(errParse, ErrTokenParse)
	}

	if !token.Valid || claims.Subject == "" {
		return Profile{}, ErrTokenInvalid
	}

	return Profile{
		ModeratorID: claims.Subject,
		Name:        claims.Name,
		Communities: claims.Communities,
	}, nil
}

// Middleware authenticates the request and stores the profile on the gin
// context for session.CurrentProfile.
func (a *Authentication) Middleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		tokenString := strings.TrimPrefix(ctx.GetHeader("Authorization"), "Bearer ")
		if tokenString == "" {
			httphelper.SetError(ctx, httphelper.NewAPIError(http.StatusUnauthorized, ErrNoToken))
			ctx.Abort()

			return
		}

		profile, errProfile := a.profileFromToken(tokenString)
		if errProfile != nil {
			httphelper.SetError(ctx, httphelper.NewAPIError(http.StatusUnauthorized, ErrTokenInvalid))
			ctx.Abort()

			return
		}

		SetProfile(ctx, profile)
		ctx.Next()
	}
}

// MiddlewareWS performs the same check but accepts the token from the
// query string, since browser websocket clients cannot set headers.
func (a *Authentication) MiddlewareWS() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		tokenString := ctx.Query("token")
		if tokenString == "" {
			httphelper.SetError(ctx, httphelper.NewAPIError(http.StatusUnauthorized, ErrNoToken))
			ctx.Abort()

			return
		}

		profile, errProfile := a.profileFromToken(tokenString)
		if errProfile != nil {
			httphelper.SetError(ctx, httphelper.NewAPIError(http.StatusUnauthorized, ErrTokenInvalid))
			ctx.Abort()

			return
		}

		SetProfile(ctx, profile)
		ctx.Next()
	}
}

// CheckScope is the shared guard applied by usecases before touching a
// community-scoped entity.
func CheckScope(profile Profile, communityID string) error {
	if !profile.HasCommunity(communityID) {
		return domain.ErrScopeDenied
	}

	return nil
}
