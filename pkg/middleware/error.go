package middleware

import (
	"context"
	"errors"

	"studentslife/pkg/errutil"
	"studentslife/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Error renders the last error a handler attached with c.Error.
func Error() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		last := c.Errors.Last()
		if last == nil || c.Writer.Written() {
			return
		}

		base := toBaseError(last.Err)
		if base.Code.HTTPStatus() >= 500 {
			logger.FromContext(c.Request.Context()).Error("request failed",
				zap.String("method", c.Request.Method),
				zap.String("path", c.FullPath()),
				zap.Error(last.Err),
			)
		}

		c.AbortWithStatusJSON(base.Code.HTTPStatus(), base.JSON())
	}
}

func toBaseError(err error) errutil.BaseError {
	var base errutil.BaseError
	switch {
	case errors.As(err, &base):
		return base
	case errors.Is(err, context.Canceled):
		return errutil.BaseError{Code: errutil.StatusClientClosedRequest, Message: "request canceled"}
	case errors.Is(err, context.DeadlineExceeded):
		return errutil.BaseError{Code: errutil.StatusTimeout, Message: "request timed out"}
	default:
		return errutil.BaseError{Code: errutil.StatusInternal, Message: "internal error"}
	}
}
