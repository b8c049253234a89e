package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h *Handler) GetDashboard(c *gin.Context) {
	c.JSON(http.StatusOK, h.dashboard.Summary())
}

func (h *Handler) ListMonths(c *gin.Context) {
	c.JSON(http.StatusOK, h.dashboard.Months())
}

func (h *Handler) GetMonth(c *gin.Context) {
	report, err := h.dashboard.Month(c.Param("month"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *Handler) GetMachineMonth(c *gin.Context) {
	report, err := h.dashboard.MachineDetail(c.Param("month"), c.Param("machine"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}
