// Package response writes the uniform {"code","msg","data"} JSON envelope.
package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nyanpass/panel/internal/billing"
	log "github.com/sirupsen/logrus"
)

// Envelope is the body of every API response.
type Envelope struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data any    `json:"data"`
}

// Business codes. CodeOK marks success; the rest mirror billing error kinds.
const (
	CodeOK                = 0
	CodeUnauthorized      = 401
	CodeInternal          = 500
	CodeValidation        = 1001
	CodeNotFound          = 1002
	CodeForbidden         = 1003
	CodeStateConflict     = 1004
	CodeInsufficientFunds = 1005
	CodeCouponIneligible  = 1006
	CodeExternal          = 1007
	CodeRateLimited       = 1008
)

type kindMapping struct {
	status int
	code   int
}

var kindMappings = map[billing.Kind]kindMapping{
	billing.KindValidation:        {http.StatusBadRequest, CodeValidation},
	billing.KindNotFound:          {http.StatusNotFound, CodeNotFound},
	billing.KindForbidden:         {http.StatusForbidden, CodeForbidden},
	billing.KindStateConflict:     {http.StatusConflict, CodeStateConflict},
	billing.KindInsufficientFunds: {http.StatusPaymentRequired, CodeInsufficientFunds},
	billing.KindCouponIneligible:  {http.StatusUnprocessableEntity, CodeCouponIneligible},
	billing.KindExternal:          {http.StatusBadGateway, CodeExternal},
}

// Result writes an envelope with the given HTTP status.
func Result(c *gin.Context, status, code int, msg string, data any) {
	c.JSON(status, Envelope{Code: code, Msg: msg, Data: data})
}

// OK writes a success envelope.
func OK(c *gin.Context, data any) {
	Result(c, http.StatusOK, CodeOK, "success", data)
}

// Created writes a success envelope with 201.
func Created(c *gin.Context, data any) {
	Result(c, http.StatusCreated, CodeOK, "success", data)
}

// BadRequest rejects malformed input.
func BadRequest(c *gin.Context, msg string) {
	Result(c, http.StatusBadRequest, CodeValidation, msg, nil)
}

// NotFound reports a missing entity.
func NotFound(c *gin.Context, msg string) {
	Result(c, http.StatusNotFound, CodeNotFound, msg, nil)
}

// Conflict reports a state conflict.
func Conflict(c *gin.Context, msg string) {
	Result(c, http.StatusConflict, CodeStateConflict, msg, nil)
}

// Unauthorized aborts with 401; clients drop their session on it.
func Unauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, Envelope{Code: CodeUnauthorized, Msg: msg})
}

// Forbidden aborts with 403.
func Forbidden(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusForbidden, Envelope{Code: CodeForbidden, Msg: msg})
}

// TooManyRequests aborts with 429.
func TooManyRequests(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusTooManyRequests, Envelope{Code: CodeRateLimited, Msg: "rate limit exceeded"})
}

// Internal hides the cause from the client and logs it.
func Internal(c *gin.Context, msg string, err error) {
	entry := log.WithField("path", c.FullPath())
	if err != nil {
		entry = entry.WithError(err)
	}
	entry.Error(msg)
	Result(c, http.StatusInternalServerError, CodeInternal, msg, nil)
}

// Error maps err to its envelope. Coupon failures carry data.reason.
func Error(c *gin.Context, err error) {
	var be *billing.Error
	if !errors.As(err, &be) {
		Internal(c, "internal error", err)
		return
	}
	m, ok := kindMappings[be.Kind]
	if !ok {
		Internal(c, "internal error", err)
		return
	}
	var data any
	if be.Reason != "" {
		data = gin.H{"reason": be.Reason}
	}
	if be.Kind == billing.KindExternal {
		log.WithError(err).WithField("path", c.FullPath()).Warn("payment provider failure")
		data = gin.H{"retryable": true}
	}
	msg := be.Msg
	if msg == "" {
		msg = string(be.Kind)
	}
	Result(c, m.status, m.code, msg, data)
}

// Page is a paginated list payload.
type Page struct {
	Items    any   `json:"items"`
	Total    int64 `json:"total"`
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
}
