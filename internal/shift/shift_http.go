package shift

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/RoModerate/romoderate/internal/auth"
	"github.com/RoModerate/romoderate/internal/httphelper"
)

type shiftHandler struct {
	shifts Shifts
}

func NewHandlerShifts(engine *gin.Engine, shifts Shifts, authenticator httphelper.Authenticator) {
	handler := shiftHandler{shifts: shifts}

	grp := engine.Group("/")
	{
		authed := grp.Use(authenticator.Middleware())
		authed.POST("/api/shifts", handler.onStart())
		authed.GET("/api/shifts", handler.onQuery())
		authed.GET("/api/shift/:shift_id", handler.onGet())
		authed.POST("/api/shift/:shift_id/end", handler.onEnd())
	}
}

type startShiftReq struct {
	CommunityID string `json:"community_id" binding:"required"`
}

func (h shiftHandler) onStart() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		var req startShiftReq
		if !httphelper.Bind(ctx, &req) {
			return
		}

		profile, _ := auth.CurrentProfile(ctx)

		started, errStart := h.shifts.Start(ctx, profile, req.CommunityID)
		if errStart != nil {
			httphelper.SetError(ctx, httphelper.ErrorFromDomain(errStart))

			return
		}

		ctx.JSON(http.StatusCreated, started)
	}
}

func (h shiftHandler) onEnd() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		shiftID, found := httphelper.GetInt64Param(ctx, "shift_id")
		if !found {
			return
		}

		profile, _ := auth.CurrentProfile(ctx)

		existing, errExisting := h.shifts.ByID(ctx, profile, shiftID)
		if errExisting != nil {
			httphelper.SetError(ctx, httphelper.ErrorFromDomain(errExisting))

			return
		}

		if existing.ModeratorID != profile.ModeratorID {
			httphelper.SetError(ctx, httphelper.NewAPIError(http.StatusForbidden, httphelper.ErrPermissionDenied))

			return
		}

		ended, errEnd := h.shifts.End(ctx, profile, existing.CommunityID)
		if errEnd != nil {
			httphelper.SetError(ctx, httphelper.ErrorFromDomain(errEnd))

			return
		}

		ctx.JSON(http.StatusOK, ended)
	}
}

func (h shiftHandler) onGet() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		shiftID, found := httphelper.GetInt64Param(ctx, "shift_id")
		if !found {
			return
		}

		profile, _ := auth.CurrentProfile(ctx)

		shift, errShift := h.shifts.ByID(ctx, profile, shiftID)
		if errShift != nil {
			httphelper.SetError(ctx, httphelper.ErrorFromDomain(errShift))

			return
		}

		ctx.JSON(http.StatusOK, shift)
	}
}

func (h shiftHandler) onQuery() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		var opts QueryOpts
		if !httphelper.BindQuery(ctx, &opts) {
			return
		}

		profile, _ := auth.CurrentProfile(ctx)

		shifts, errShifts := h.shifts.Query(ctx, profile, opts)
		if errShifts != nil {
			httphelper.SetError(ctx, httphelper.ErrorFromDomain(errShifts))

			return
		}

		ctx.JSON(http.StatusOK, shifts)
	}
}
