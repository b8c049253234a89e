package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"perfdash-backend/internal/model"
	"perfdash-backend/internal/store"
)

type machineRequest struct {
	Name          string              `json:"name"`
	StandardCycle int                 `json:"standardCycle"`
	Observations  string              `json:"observations"`
	Status        model.MachineStatus `json:"status"`
}

func (r machineRequest) fields() store.MachineFields {
	return store.MachineFields{
		Name:          r.Name,
		StandardCycle: r.StandardCycle,
		Observations:  r.Observations,
		Status:        r.Status,
	}
}

// ListMachines returns the registry in insertion order.
func (h *Handler) ListMachines(c *gin.Context) {
	machines, err := h.store.ListMachines(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, machines)
}

func (h *Handler) GetMachine(c *gin.Context) {
	machine, err := h.store.GetMachine(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, machine)
}

// CreateMachine registers a machine.
func (h *Handler) CreateMachine(c *gin.Context) {
	var req machineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	machine, err := h.store.CreateMachine(c.Request.Context(), req.fields())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Header("Location", "/api/machines/"+machine.ID)
	c.JSON(http.StatusCreated, machine)
}

// UpdateMachine replaces the editable fields of a machine.
func (h *Handler) UpdateMachine(c *gin.Context) {
	var req machineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	machine, err := h.store.UpdateMachine(c.Request.Context(), c.Param("id"), req.fields())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, machine)
}

// DeleteMachine removes a machine. Unknown ids succeed too.
func (h *Handler) DeleteMachine(c *gin.Context) {
	if err := h.store.DeleteMachine(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
