package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/nyanpass/panel/internal/billing"
	"github.com/nyanpass/panel/internal/http/response"
	"github.com/nyanpass/panel/internal/models"
)

// RechargeCodeHandler issues and revokes recharge codes.
type RechargeCodeHandler struct {
	billing *billing.Service
}

// NewRechargeCodeHandler constructs a RechargeCodeHandler.
func NewRechargeCodeHandler(svc *billing.Service) *RechargeCodeHandler {
	return &RechargeCodeHandler{billing: svc}
}

// generateCodesRequest asks for a batch of codes.
type generateCodesRequest struct {
	Amount models.Money `json:"amount"` // Face value.
	Count  int          `json:"count"`  // Number of codes.
	Remark string       `json:"remark"` // Optional note.
}

// Generate creates unused codes.
func (h *RechargeCodeHandler) Generate(c *gin.Context) {
	var body generateCodesRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		response.BadRequest(c, "invalid json")
		return
	}
	codes, errGenerate := h.billing.GenerateCodes(c.Request.Context(), billing.GenerateCodesInput{
		Amount:    body.Amount,
		Count:     body.Count,
		Remark:    strings.TrimSpace(body.Remark),
		CreatedBy: c.GetUint64("adminID"),
	})
	if errGenerate != nil {
		response.Error(c, errGenerate)
		return
	}
	out := make([]gin.H, 0, len(codes))
	for i := range codes {
		out = append(out, formatRechargeCode(&codes[i]))
	}
	response.Created(c, gin.H{"codes": out})
}

// codeListQuery filters the code list.
type codeListQuery struct {
	pageQuery
	Used string `form:"used"` // "true" or "false".
}

// List returns codes, optionally filtered by used flag.
func (h *RechargeCodeHandler) List(c *gin.Context) {
	var q codeListQuery
	if errBind := c.ShouldBindQuery(&q); errBind != nil {
		response.BadRequest(c, "invalid query")
		return
	}
	filter := billing.CodeFilter{Page: q.page()}
	switch strings.TrimSpace(q.Used) {
	case "true", "1":
		used := true
		filter.Used = &used
	case "false", "0":
		used := false
		filter.Used = &used
	}
	rows, total, errList := h.billing.ListCodes(c.Request.Context(), filter)
	if errList != nil {
		response.Error(c, errList)
		return
	}
	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, formatRechargeCode(&rows[i]))
	}
	response.OK(c, response.Page{Items: out, Total: total, Page: q.Page, PageSize: q.PageSize})
}

// Revoke deletes an unused code.
func (h *RechargeCodeHandler) Revoke(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if errRevoke := h.billing.RevokeCode(c.Request.Context(), id); errRevoke != nil {
		response.Error(c, errRevoke)
		return
	}
	response.OK(c, gin.H{"ok": true})
}
