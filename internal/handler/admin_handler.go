package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hrcore/leave-api/internal/service"
	appErrors "github.com/hrcore/leave-api/pkg/errors"
	"github.com/hrcore/leave-api/pkg/response"
)

// AdminHandler exposes the balance batch endpoints.
type AdminHandler struct {
	rollover *service.RolloverService
}

// NewAdminHandler constructs handler.
func NewAdminHandler(rollover *service.RolloverService) *AdminHandler {
	return &AdminHandler{rollover: rollover}
}

// RolloverRequest configures a rollover run.
type RolloverRequest struct {
	FromYear int  `json:"from_year"`
	ToYear   int  `json:"to_year"`
	DryRun   bool `json:"dry_run"`
}

// Rollover godoc
// @Summary Carry balances into a new ledger year
// @Tags Admin
// @Accept json
// @Produce json
// @Param payload body RolloverRequest true "Rollover parameters"
// @Success 200 {object} response.Envelope
// @Router /admin/rollover [post]
func (h *AdminHandler) Rollover(c *gin.Context) {
	var req RolloverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	totals, err := h.rollover.Rollover(c.Request.Context(), req.FromYear, req.ToYear, req.DryRun)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, totals)
}

// InitializeYearRequest configures a year initialization run.
type InitializeYearRequest struct {
	Year int `json:"year"`
}

// InitializeYear godoc
// @Summary Seed ledger entries for a year
// @Tags Admin
// @Accept json
// @Produce json
// @Param payload body InitializeYearRequest true "Initialization parameters"
// @Success 200 {object} response.Envelope
// @Router /admin/initialize-year [post]
func (h *AdminHandler) InitializeYear(c *gin.Context) {
	var req InitializeYearRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	totals, err := h.rollover.InitializeYear(c.Request.Context(), req.Year)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, totals)
}

// RecalculateRequest configures an accrual recalculation run.
type RecalculateRequest struct {
	Year       int    `json:"year"`
	EmployeeID string `json:"employee_id"`
}

// Recalculate godoc
// @Summary Reapply accrual computation to a year's entries
// @Tags Admin
// @Accept json
// @Produce json
// @Param payload body RecalculateRequest true "Recalculation parameters"
// @Success 200 {object} response.Envelope
// @Router /admin/recalculate [post]
func (h *AdminHandler) Recalculate(c *gin.Context) {
	var req RecalculateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	totals, err := h.rollover.Recalculate(c.Request.Context(), req.Year, req.EmployeeID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, totals)
}

// InitEmployeeRequest configures a new-hire initialization.
type InitEmployeeRequest struct {
	Year int `json:"year"`
}

// InitEmployeeBalances godoc
// @Summary Seed current-year entries for one employee
// @Tags Admin
// @Accept json
// @Produce json
// @Param id path string true "Employee id"
// @Param payload body InitEmployeeRequest false "Initialization parameters"
// @Success 200 {object} response.Envelope
// @Router /admin/employees/{id}/init-balances [post]
func (h *AdminHandler) InitEmployeeBalances(c *gin.Context) {
	var req InitEmployeeRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
			return
		}
	}
	totals, err := h.rollover.InitEmployeeBalances(c.Request.Context(), c.Param("id"), req.Year)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, totals)
}
