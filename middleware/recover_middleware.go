package middleware

import (
	"context"
	"fmt"
	"rigelnet/handler"
)

// RecoverMiddleware turns a handler panic into an error so one bad call
// does not take down the tick loop.
func RecoverMiddleware() handler.Middleware {
	return func(next handler.Func) handler.Func {
		return func(ctx context.Context, req *handler.Request) (err error) {
			defer func() {
				if p := recover(); p != nil {
					err = fmt.Errorf("handler %s panicked: %v", req.Entry, p)
				}
			}()
			return next(ctx, req)
		}
	}
}
