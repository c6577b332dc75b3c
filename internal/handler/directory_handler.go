package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/hrcore/leave-api/internal/service"
	"github.com/hrcore/leave-api/pkg/response"
)

// DirectoryHandler exposes the read-only organizational catalog.
type DirectoryHandler struct {
	directory *service.DirectoryService
}

// NewDirectoryHandler constructs handler.
func NewDirectoryHandler(directory *service.DirectoryService) *DirectoryHandler {
	return &DirectoryHandler{directory: directory}
}

// Units godoc
// @Summary List active organizational units
// @Tags Directory
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /org/units [get]
func (h *DirectoryHandler) Units(c *gin.Context) {
	units, err := h.directory.Units(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, units)
}

// Unit godoc
// @Summary Get one organizational unit
// @Tags Directory
// @Produce json
// @Param id path string true "Unit id"
// @Success 200 {object} response.Envelope
// @Router /org/units/{id} [get]
func (h *DirectoryHandler) Unit(c *gin.Context) {
	unit, err := h.directory.Unit(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, unit)
}

// UnitChildren godoc
// @Summary List the units directly under a parent
// @Tags Directory
// @Produce json
// @Param id path string true "Parent unit id"
// @Success 200 {object} response.Envelope
// @Router /org/units/{id}/children [get]
func (h *DirectoryHandler) UnitChildren(c *gin.Context) {
	children, err := h.directory.UnitChildren(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, children)
}

// Employees godoc
// @Summary List active employees
// @Tags Directory
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /employees [get]
func (h *DirectoryHandler) Employees(c *gin.Context) {
	employees, err := h.directory.Employees(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, employees)
}

// Employee godoc
// @Summary Get one employee
// @Tags Directory
// @Produce json
// @Param id path string true "Employee id"
// @Success 200 {object} response.Envelope
// @Router /employees/{id} [get]
func (h *DirectoryHandler) Employee(c *gin.Context) {
	employee, err := h.directory.Employee(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, employee)
}

// Approvers godoc
// @Summary List the approvers an employee's requests route to
// @Tags Directory
// @Produce json
// @Param id path string true "Employee id"
// @Success 200 {object} response.Envelope
// @Router /employees/{id}/approvers [get]
func (h *DirectoryHandler) Approvers(c *gin.Context) {
	approvers, err := h.directory.Approvers(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, approvers)
}
