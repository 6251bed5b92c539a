// Package response writes the {success, data, error} envelope used by every endpoint.
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Body is the standard API response envelope. Code and Remediation are set
// for classified remote-store failures only.
type Body struct {
	Success     bool   `json:"success"`
	Data        any    `json:"data,omitempty"`
	Error       string `json:"error,omitempty"`
	Code        string `json:"code,omitempty"`
	Remediation string `json:"remediation,omitempty"`
}

func ok(c *gin.Context, status int, data any) {
	c.JSON(status, Body{Success: true, Data: data})
}

func fail(c *gin.Context, status int, msg string) {
	c.JSON(status, Body{Error: msg})
}

// OK sends 200 with data.
func OK(c *gin.Context, data any) { ok(c, http.StatusOK, data) }

// Created sends 201 for writes the remote store accepted.
func Created(c *gin.Context, data any) { ok(c, http.StatusCreated, data) }

// Accepted sends 202 for writes stored locally and queued for the remote store.
func Accepted(c *gin.Context, data any) { ok(c, http.StatusAccepted, data) }

// NoContent sends 204.
func NoContent(c *gin.Context) { c.Status(http.StatusNoContent) }

func BadRequest(c *gin.Context, msg string)         { fail(c, http.StatusBadRequest, msg) }
func Unauthorized(c *gin.Context, msg string)       { fail(c, http.StatusUnauthorized, msg) }
func Forbidden(c *gin.Context, msg string)          { fail(c, http.StatusForbidden, msg) }
func NotFound(c *gin.Context, msg string)           { fail(c, http.StatusNotFound, msg) }
func Conflict(c *gin.Context, msg string)           { fail(c, http.StatusConflict, msg) }
func TooManyRequests(c *gin.Context, msg string)    { fail(c, http.StatusTooManyRequests, msg) }
func ServiceUnavailable(c *gin.Context, msg string) { fail(c, http.StatusServiceUnavailable, msg) }
func Internal(c *gin.Context, msg string)           { fail(c, http.StatusInternalServerError, msg) }
