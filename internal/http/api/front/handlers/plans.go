package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/nyanpass/panel/internal/billing"
	"github.com/nyanpass/panel/internal/http/response"
)

// PlanHandler lists orderable plans.
type PlanHandler struct {
	billing *billing.Service
}

// NewPlanHandler constructs a PlanHandler.
func NewPlanHandler(svc *billing.Service) *PlanHandler {
	return &PlanHandler{billing: svc}
}

// List returns enabled, visible plans.
func (h *PlanHandler) List(c *gin.Context) {
	rows, errList := h.billing.ListPlans(c.Request.Context(), true)
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
