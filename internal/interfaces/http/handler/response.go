// Package handler implements the gateway's own HTTP surface: the
// authentication endpoints, the account opening operation, and the
// health probe. Everything else is proxied by the router package.
package handler

import "github.com/gin-gonic/gin"

// errorBody is the uniform error envelope.
type errorBody struct {
	Error string `json:"error"`
}

func respondError(c *gin.Context, status int, msg string) {
	c.JSON(status, errorBody{Error: msg})
}
