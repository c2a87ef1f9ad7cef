package config

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/RoModerate/romoderate/internal/auth"
	"github.com/RoModerate/romoderate/internal/httphelper"
)

type settingsHandler struct {
	config *Configuration
}

func NewHandlerSettings(engine *gin.Engine, config *Configuration, authenticator httphelper.Authenticator) {
	handler := settingsHandler{config: config}

	grp := engine.Group("/")
	{
		authed := grp.Use(authenticator.Middleware())
		authed.GET("/api/community/:community_id/settings", handler.onGet())
		authed.PUT("/api/community/:community_id/settings", handler.onPut())
	}
}

func (h settingsHandler) onGet() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		communityID, found := httphelper.GetStringParam(ctx, "community_id")
		if !found {
			return
		}

		profile, _ := auth.CurrentProfile(ctx)
		if errScope := auth.CheckScope(profile, communityID); errScope != nil {
			httphelper.SetError(ctx, httphelper.ErrorFromDomain(errScope))

			return
		}

		settings, errSettings := h.config.Community(ctx, communityID)
		if errSettings != nil {
			httphelper.SetError(ctx, httphelper.ErrorFromDomain(errSettings))

			return
		}

		// The key never leaves the server.
		settings.RobloxAPIKey = ""

		ctx.JSON(http.StatusOK, settings)
	}
}

func (h settingsHandler) onPut() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		communityID, found := httphelper.GetStringParam(ctx, "community_id")
		if !found {
			return
		}

		profile, _ := auth.CurrentProfile(ctx)
		if errScope := auth.CheckScope(profile, communityID); errScope != nil {
			httphelper.SetError(ctx, httphelper.ErrorFromDomain(errScope))

			return
		}

		var req Settings
		if !httphelper.Bind(ctx, &req) {
			return
		}

		req.CommunityID = communityID

		saved, errSave := h.config.Write(ctx, req)
		if errSave != nil {
			httphelper.SetError(ctx, httphelper.ErrorFromDomain(errSave))

			return
		}

		saved.RobloxAPIKey = ""

		ctx.JSON(http.StatusOK, saved)
		slog.Info("Community settings updated", slog.String("community_id", communityID),
			slog.String("moderator_id", profile.ModeratorID))
	}
}
