package auth

import (
	"errors"

	"github.com/gin-gonic/gin"
)

const ctxKeyProfile = "session_profile"

var ErrNotLoggedIn = errors.New("not logged in")

func SetProfile(ctx *gin.Context, profile Profile) {
	ctx.Set(ctxKeyProfile, profile)
}

func CurrentProfile(ctx *gin.Context) (Profile, error) {
	maybeProfile, found := ctx.Get(ctxKeyProfile)
	if !found {
		return Profile{}, ErrNotLoggedIn
	}

	profile, ok := maybeProfile.(Profile)
	if !ok {
		return Profile{}, ErrNotLoggedIn
	}

	return profile, nil
}
