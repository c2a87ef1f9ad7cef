package ban

import (
	"net/http"

	"github.com/RoModerate/romoderate/internal/auth"
	"github.com/RoModerate/romoderate/internal/httphelper"
	"github.com/gin-gonic/gin"
)

type appealHandler struct {
	appeals Appeals
}

func NewHandlerAppeals(engine *gin.Engine, appeals Appeals, authenticator httphelper.Authenticator) {
	handler := appealHandler{appeals: appeals}

	grp := engine.Group("/")
	{
		authed := grp.Use(authenticator.Middleware())
		authed.POST("/api/appeals", handler.onSubmit())
		authed.GET("/api/appeals", handler.onQuery())
		authed.GET("/api/appeal/:appeal_id", handler.onGet())
		authed.POST("/api/appeal/:appeal_id/review", handler.onReview())
	}
}

type submitAppealReq struct {
	BanID int64  `json:"ban_id" binding:"required"`
	Body  string `json:"body" binding:"required"`
}

func (h appealHandler) onSubmit() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		var req submitAppealReq
		if !httphelper.Bind(ctx, &req) {
			return
		}

		profile, _ := auth.CurrentProfile(ctx)

		appeal, errSubmit := h.appeals.Submit(ctx, profile.ModeratorID, req.BanID, req.Body)
		if errSubmit != nil {
			httphelper.SetError(ctx, httphelper.ErrorFromDomain(errSubmit))

			return
		}

		ctx.JSON(http.StatusCreated, appeal)
	}
}

type reviewAppealReq struct {
	Approve bool   `json:"approve"`
	Note    string `json:"note"`
}

func (h appealHandler) onReview() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		appealID, found := httphelper.GetInt64Param(ctx, "appeal_id")
		if !found {
			return
		}

		var req reviewAppealReq
		if !httphelper.Bind(ctx, &req) {
			return
		}

		decision := AppealDenied
		if req.Approve {
			decision = AppealApproved
		}

		profile, _ := auth.CurrentProfile(ctx)

		reviewed, errReview := h.appeals.Review(ctx, profile, appealID, decision, req.Note)
		if errReview != nil {
			httphelper.SetError(ctx, httphelper.ErrorFromDomain(errReview))

			return
		}

		ctx.JSON(http.StatusOK, reviewed)
	}
}

func (h appealHandler) onGet() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		appealID, found := httphelper.GetInt64Param(ctx, "appeal_id")
		if !found {
			return
		}

		profile, _ := auth.CurrentProfile(ctx)

		appeal, errAppeal := h.appeals.ByID(ctx, profile, appealID)
		if errAppeal != nil {
			httphelper.SetError(ctx, httphelper.ErrorFromDomain(errAppeal))

			return
		}

		ctx.JSON(http.StatusOK, appeal)
	}
}

func (h appealHandler) onQuery() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		var opts AppealQueryOpts
		if !httphelper.BindQuery(ctx, &opts) {
			return
		}

		profile, _ := auth.CurrentProfile(ctx)

		appeals, errAppeals := h.appeals.Query(ctx, profile, opts)
		if errAppeals != nil {
			httphelper.SetError(ctx, httphelper.ErrorFromDomain(errAppeals))

			return
		}

		ctx.JSON(http.StatusOK, appeals)
	}
}
