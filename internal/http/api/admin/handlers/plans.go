package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/nyanpass/panel/internal/billing"
	"github.com/nyanpass/panel/internal/http/response"
	"github.com/nyanpass/panel/internal/models"
)

// PlanHandler manages admin CRUD endpoints for plans.
type PlanHandler struct {
	billing *billing.Service
}

// NewPlanHandler constructs a plan handler.
func NewPlanHandler(svc *billing.Service) *PlanHandler {
	return &PlanHandler{billing: svc}
}

// planRequest captures the payload for creating or replacing a plan.
type planRequest struct {
	Name         string       `json:"name"`          // Plan name.
	Description  string       `json:"description"`   // Plan description.
	Price        models.Money `json:"price"`         // Decimal price.
	DurationDays int          `json:"duration_days"` // Entitlement days.
	TransferGB   int64        `json:"transfer_gb"`   // Traffic allowance.
	SpeedLimit   int          `json:"speed_limit"`   // Mbps, 0 unlimited.
	DeviceLimit  int          `json:"device_limit"`  // Devices, 0 unlimited.
	GroupID      int          `json:"group_id"`      // Node group.
	Hidden       bool         `json:"hidden"`        // Hide from the storefront.
	IsEnabled    *bool        `json:"is_enabled"`    // Defaults to true.
	SortOrder    int          `json:"sort_order"`    // Display order.
}

func (r planRequest) input() billing.PlanInput {
	enabled := true
	if r.IsEnabled != nil {
		enabled = *r.IsEnabled
	}
	return billing.PlanInput{
		Name:         strings.TrimSpace(r.Name),
		Description:  r.Description,
		Price:        r.Price,
		DurationDays: r.DurationDays,
		TransferGB:   r.TransferGB,
		SpeedLimit:   r.SpeedLimit,
		DeviceLimit:  r.DeviceLimit,
		GroupID:      r.GroupID,
		Hidden:       r.Hidden,
		IsEnabled:    enabled,
		SortOrder:    r.SortOrder,
	}
}

// Create validates input and inserts a new plan.
func (h *PlanHandler) Create(c *gin.Context) {
	var body planRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		response.BadRequest(c, "invalid json")
		return
	}
	plan, errCreate := h.billing.CreatePlan(c.Request.Context(), body.input())
	if errCreate != nil {
		response.Error(c, errCreate)
		return
	}
	response.Created(c, formatPlan(plan))
}

// List returns all plans, hidden and disabled included.
func (h *PlanHandler) List(c *gin.Context) {
	rows, errList := h.billing.ListPlans(c.Request.Context(), false)
	if errList != nil {
		response.Error(c, errList)
		return
	}
	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, formatPlan(&rows[i]))
	}
	response.OK(c, gin.H{"plans": out})
}

// Get fetches a plan by ID.
func (h *PlanHandler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	plan, errGet := h.billing.Plans().Get(c.Request.Context(), id)
	if errGet != nil {
		response.Error(c, errGet)
		return
	}
	response.OK(c, formatPlan(&plan))
}

// Update replaces a plan definition. Existing orders keep their amounts.
func (h *PlanHandler) Update(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var body planRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		response.BadRequest(c, "invalid json")
		return
	}
	plan, errUpdate := h.billing.UpdatePlan(c.Request.Context(), id, body.input())
	if errUpdate != nil {
		response.Error(c, errUpdate)
		return
	}
	response.OK(c, formatPlan(plan))
}

// Delete removes a plan without pending orders.
func (h *PlanHandler) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if errDelete := h.billing.DeletePlan(c.Request.Context(), id); errDelete != nil {
		response.Error(c, errDelete)
		return
	}
	response.OK(c, gin.H{"ok": true})
}
