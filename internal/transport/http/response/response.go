package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Resp is the body of every error response.
type Resp struct {
	Code    int    `json:"code"`
	Msg     string `json:"msg"`
	Details any    `json:"details,omitempty"`
}

// Error builds an error body; an empty customMsg falls back to CodeMsgMap.
func Error(code int, customMsg string) Resp {
	msg := customMsg
	if msg == "" {
		msg = CodeMsgMap[code]
	}
	if msg == "" {
		msg = http.StatusText(code)
	}
	return Resp{Code: code, Msg: msg}
}

func ErrorWithDetails(code int, msg string, details any) Resp {
	r := Error(code, msg)
	r.Details = details
	return r
}

// Abort stops the chain and writes an error with code as the HTTP status.
func Abort(c *gin.Context, code int, msg string) {
	c.AbortWithStatusJSON(code, Error(code, msg))
}
