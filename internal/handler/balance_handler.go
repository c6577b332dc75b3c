package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/hrcore/leave-api/internal/middleware"
	"github.com/hrcore/leave-api/internal/service"
	appErrors "github.com/hrcore/leave-api/pkg/errors"
	"github.com/hrcore/leave-api/pkg/response"
)

// BalanceHandler exposes ledger view and correction endpoints.
type BalanceHandler struct {
	balances *service.BalanceService
	requests *service.RequestService
}

// NewBalanceHandler constructs handler.
func NewBalanceHandler(balances *service.BalanceService, requests *service.RequestService) *BalanceHandler {
	return &BalanceHandler{balances: balances, requests: requests}
}

// My godoc
// @Summary Own balances over the configured year window
// @Tags Balances
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /balances [get]
func (h *BalanceHandler) My(c *gin.Context) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	entries, err := h.balances.ListForEmployee(c.Request.Context(), actor.EmployeeID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, entries)
}

// ByEmployee godoc
// @Summary Balances of one employee
// @Tags Balances
// @Produce json
// @Param id path string true "Employee id"
// @Success 200 {object} response.Envelope
// @Router /employees/{id}/balances [get]
func (h *BalanceHandler) ByEmployee(c *gin.Context) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	employeeID := c.Param("id")
	if employeeID != actor.EmployeeID && !actor.ScopeOverride {
		// heads may inspect balances of employees in their scope; the
		// employee-history authorization applies the same rule.
		if _, err := h.requests.EmployeeHistory(c.Request.Context(), actor, employeeID, 1); err != nil {
			response.Error(c, err)
			return
		}
	}
	entries, err := h.balances.ListForEmployee(c.Request.Context(), employeeID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, entries)
}

// Reset godoc
// @Summary Zero the used counter on a ledger entry
// @Tags Balances
// @Produce json
// @Param id path string true "Balance entry id"
// @Success 200 {object} response.Envelope
// @Router /balances/{id}/reset [post]
func (h *BalanceHandler) Reset(c *gin.Context) {
	entry, err := h.balances.ResetUsed(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, entry)
}

// Export godoc
// @Summary Export a year's ledger as CSV
// @Tags Balances
// @Produce text/csv
// @Param year query int false "Ledger year (defaults to current)"
// @Success 200 {string} string
// @Router /balances/export [get]
func (h *BalanceHandler) Export(c *gin.Context) {
	year, _ := strconv.Atoi(c.Query("year"))
	payload, err := h.balances.ExportYearCSV(c.Request.Context(), year)
	if err != nil {
		response.Error(c, err)
		return
	}
	filename := fmt.Sprintf("balances-%d.csv", year)
	if year == 0 {
		filename = "balances.csv"
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "text/csv", payload)
}

// EmployeeHistory godoc
// @Summary Audit trail across an employee's requests
// @Tags Requests
// @Produce json
// @Param id path string true "Employee id"
// @Param limit query int false "Maximum entries"
// @Success 200 {object} response.Envelope
// @Router /employees/{id}/history [get]
func (h *BalanceHandler) EmployeeHistory(c *gin.Context) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	entries, err := h.requests.EmployeeHistory(c.Request.Context(), actor, c.Param("id"), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, entries)
}
