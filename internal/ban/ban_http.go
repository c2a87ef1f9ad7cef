package ban

import (
	"net/http"

	"github.com/RoModerate/romoderate/internal/auth"
	"github.com/RoModerate/romoderate/internal/httphelper"
	"github.com/gin-gonic/gin"
)

type banHandler struct {
	bans Bans
}

func NewHandlerBans(engine *gin.Engine, bans Bans, authenticator httphelper.Authenticator) {
	handler := banHandler{bans: bans}

	grp := engine.Group("/")
	{
		authed := grp.Use(authenticator.Middleware())
		authed.POST("/api/bans", handler.onIssue())
		authed.GET("/api/bans", handler.onQuery())
		authed.GET("/api/ban/:ban_id", handler.onGet())
		authed.DELETE("/api/ban/:ban_id", handler.onUnban())
		authed.POST("/api/ban/:ban_id/evidence", handler.onEvidence())
	}
}

func (h banHandler) onIssue() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		var opts Opts
		if !httphelper.Bind(ctx, &opts) {
			return
		}

		profile, _ := auth.CurrentProfile(ctx)

		issued, errIssue := h.bans.Issue(ctx, profile, opts)
		if errIssue != nil {
			httphelper.SetError(ctx, httphelper.ErrorFromDomain(errIssue))

			return
		}

		ctx.JSON(http.StatusCreated, issued)
	}
}

type unbanReq struct {
	Reason string `json:"reason"`
}

func (h banHandler) onUnban() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		banID, found := httphelper.GetInt64Param(ctx, "ban_id")
		if !found {
			return
		}

		// The note is optional, a bodyless DELETE lifts the ban without one.
		var req unbanReq
		if ctx.Request.ContentLength > 0 {
			if !httphelper.Bind(ctx, &req) {
				return
			}
		}

		profile, _ := auth.CurrentProfile(ctx)

		lifted, errUnban := h.bans.Unban(ctx, profile, banID, req.Reason)
		if errUnban != nil {
			httphelper.SetError(ctx, httphelper.ErrorFromDomain(errUnban))

			return
		}

		ctx.JSON(http.StatusOK, lifted)
	}
}

func (h banHandler) onGet() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		banID, found := httphelper.GetInt64Param(ctx, "ban_id")
		if !found {
			return
		}

		profile, _ := auth.CurrentProfile(ctx)

		ban, errBan := h.bans.ByID(ctx, profile, banID)
		if errBan != nil {
			httphelper.SetError(ctx, httphelper.ErrorFromDomain(errBan))

			return
		}

		ctx.JSON(http.StatusOK, ban)
	}
}

func (h banHandler) onQuery() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		var opts QueryOpts
		if !httphelper.BindQuery(ctx, &opts) {
			return
		}

		profile, _ := auth.CurrentProfile(ctx)

		bans, errBans := h.bans.Query(ctx, profile, opts)
		if errBans != nil {
			httphelper.SetError(ctx, httphelper.ErrorFromDomain(errBans))

			return
		}

		ctx.JSON(http.StatusOK, bans)
	}
}

type evidenceReq struct {
	URI string `json:"uri" binding:"required"`
}

func (h banHandler) onEvidence() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		banID, found := httphelper.GetInt64Param(ctx, "ban_id")
		if !found {
			return
		}

		var req evidenceReq
		if !httphelper.Bind(ctx, &req) {
			return
		}

		profile, _ := auth.CurrentProfile(ctx)

		updated, errUpdate := h.bans.AddEvidence(ctx, profile, banID, req.URI)
		if errUpdate != nil {
			httphelper.SetError(ctx, httphelper.ErrorFromDomain(errUpdate))

			return
		}

		ctx.JSON(http.StatusOK, updated)
	}
}
