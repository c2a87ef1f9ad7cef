package ticket

import (
	"net/http"

	"github.com/RoModerate/romoderate/internal/auth"
	"github.com/RoModerate/romoderate/internal/httphelper"
	"github.com/gin-gonic/gin"
)

type ticketHandler struct {
	tickets Tickets
}

func NewHandlerTickets(engine *gin.Engine, tickets Tickets, authenticator httphelper.Authenticator) {
	handler := ticketHandler{tickets: tickets}

	grp := engine.Group("/")
	{
		authed := grp.Use(authenticator.Middleware())
		authed.POST("/api/tickets", handler.onCreate())
		authed.GET("/api/tickets", handler.onQuery())
		authed.GET("/api/ticket/:ticket_id", handler.onGet())
		authed.POST("/api/ticket/:ticket_id/claim", handler.onClaim())
		authed.POST("/api/ticket/:ticket_id/priority", handler.onSetPriority())
		authed.POST("/api/ticket/:ticket_id/close", handler.onClose())
		authed.POST("/api/ticket/:ticket_id/reopen", handler.onReopen())
	}
}

func (h ticketHandler) onCreate() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		var opts Opts
		if !httphelper.Bind(ctx, &opts) {
			return
		}

		profile, _ := auth.CurrentProfile(ctx)

		created, errCreate := h.tickets.Create(ctx, profile, opts)
		if errCreate != nil {
			httphelper.SetError(ctx, httphelper.ErrorFromDomain(errCreate))

			return
		}

		ctx.JSON(http.StatusCreated, created)
	}
}

func (h ticketHandler) onClaim() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		ticketID, found := httphelper.GetInt64Param(ctx, "ticket_id")
		if !found {
			return
		}

		profile, _ := auth.CurrentProfile(ctx)

		claimed, errClaim := h.tickets.Claim(ctx, profile, ticketID)
		if errClaim != nil {
			httphelper.SetError(ctx, httphelper.ErrorFromDomain(errClaim))

			return
		}

		ctx.JSON(http.StatusOK, claimed)
	}
}

type setPriorityReq struct {
	Priority Priority `json:"priority"`
}

func (h ticketHandler) onSetPriority() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		ticketID, found := httphelper.GetInt64Param(ctx, "ticket_id")
		if !found {
			return
		}

		var req setPriorityReq
		if !httphelper.Bind(ctx, &req) {
			return
		}

		profile, _ := auth.CurrentProfile(ctx)

		updated, errUpdate := h.tickets.SetPriority(ctx, profile, ticketID, req.Priority)
		if errUpdate != nil {
			httphelper.SetError(ctx, httphelper.ErrorFromDomain(errUpdate))

			return
		}

		ctx.JSON(http.StatusOK, updated)
	}
}

func (h ticketHandler) onClose() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		ticketID, found := httphelper.GetInt64Param(ctx, "ticket_id")
		if !found {
			return
		}

		profile, _ := auth.CurrentProfile(ctx)

		closed, errClose := h.tickets.Close(ctx, profile, ticketID)
		if errClose != nil {
			httphelper.SetError(ctx, httphelper.ErrorFromDomain(errClose))

			return
		}

		ctx.JSON(http.StatusOK, closed)
	}
}

func (h ticketHandler) onReopen() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		ticketID, found := httphelper.GetInt64Param(ctx, "ticket_id")
		if !found {
			return
		}

		profile, _ := auth.CurrentProfile(ctx)

		reopened, errReopen := h.tickets.Reopen(ctx, profile, ticketID)
		if errReopen != nil {
			httphelper.SetError(ctx, httphelper.ErrorFromDomain(errReopen))

			return
		}

		ctx.JSON(http.StatusOK, reopened)
	}
}

func (h ticketHandler) onGet() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		ticketID, found := httphelper.GetInt64Param(ctx, "ticket_id")
		if !found {
			return
		}

		profile, _ := auth.CurrentProfile(ctx)

		ticket, errTicket := h.tickets.ByID(ctx, profile, ticketID)
		if errTicket != nil {
			httphelper.SetError(ctx, httphelper.ErrorFromDomain(errTicket))

			return
		}

		ctx.JSON(http.StatusOK, ticket)
	}
}

func (h ticketHandler) onQuery() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		var opts QueryOpts
		if !httphelper.BindQuery(ctx, &opts) {
			return
		}

		profile, _ := auth.CurrentProfile(ctx)

		tickets, errTickets := h.tickets.Query(ctx, profile, opts)
		if errTickets != nil {
			httphelper.SetError(ctx, httphelper.ErrorFromDomain(errTickets))

			return
		}

		ctx.JSON(http.StatusOK, tickets)
	}
}
