// Package middleware provides handler middlewares for a handler.Registry.
//
// Handlers run inside a node's tick, on the tick's goroutine, so none of
// these spawn goroutines or block.
package middleware

import (
	"context"
	"rigelnet/handler"
	"time"

	"go.uber.org/zap"
)

// LoggingMiddleware logs every dispatched call with its duration.
func LoggingMiddleware(log *zap.Logger) handler.Middleware {
	return func(next handler.Func) handler.Func {
		return func(ctx context.Context, req *handler.Request) error {
			start := time.Now()
			err := next(ctx, req)
			fields := []zap.Field{
				zap.Uint32("index", req.Entry.Index),
				zap.String("name", req.Entry.Name),
				zap.Int("args", req.Call.Args.Len()),
				zap.Duration("duration", time.Since(start)),
			}
			if req.Sender != nil {
				fields = append(fields, zap.String("sender", req.Sender.Address()))
			}
			if err != nil {
				log.Warn("handler failed", append(fields, zap.Error(err))...)
				return err
			}
			log.Debug("handler done", fields...)
			return err
		}
	}
}
