package player

import (
	"net/http"

	"github.com/RoModerate/romoderate/internal/auth"
	"github.com/RoModerate/romoderate/internal/httphelper"
	"github.com/gin-gonic/gin"
)

type playerHandler struct {
	standings Standings
}

func NewHandlerPlayer(engine *gin.Engine, standings Standings, authenticator httphelper.Authenticator) {
	handler := playerHandler{standings: standings}

	grp := engine.Group("/")
	{
		authed := grp.Use(authenticator.Middleware())
		authed.GET("/api/player/:player_id/standing", handler.onStanding())
	}
}

func (h playerHandler) onStanding() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		playerID, found := httphelper.GetInt64Param(ctx, "player_id")
		if !found {
			return
		}

		profile, _ := auth.CurrentProfile(ctx)

		standing, errStanding := h.standings.ByPlayer(ctx, profile, playerID)
		if errStanding != nil {
			httphelper.SetError(ctx, httphelper.ErrorFromDomain(errStanding))

			return
		}

		ctx.JSON(http.StatusOK, standing)
	}
}
