package statebag

import (
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// LoggingMiddleware creates a middleware that logs item execution steps
func LoggingMiddleware() Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx *ItemContext) ([]Record, error) {
			ctx.Logger.Info("Middleware: executing item %d (%s)", ctx.Index, ctx.Item.Action)

			start := time.Now()
			records, err := next(ctx)
			duration := time.Since(start)

			if err != nil {
				ctx.Logger.Error("Middleware: item %d (%s) failed after %v: %v",
					ctx.Index, ctx.Item.Action, duration.Round(time.Millisecond), err)
			} else {
				ctx.Logger.Info("Middleware: item %d (%s) produced %d records in %v",
					ctx.Index, ctx.Item.Action, len(records), duration.Round(time.Millisecond))
			}

			return records, err
		}
	}
}

// NewSpanMiddleware returns a middleware that creates a span per item. The
// span is named after the item's action and carries the item index and key
// as attributes, in addition to any attributes supplied here. The span's
// context replaces the item's GoContext for downstream middleware and the
// handler.
func NewSpanMiddleware(tracer trace.Tracer, attributes ...attribute.KeyValue) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx *ItemContext) ([]Record, error) {
			if tracer == nil {
				panic("NewSpanMiddleware called without a Tracer")
			}

			attrs := append([]attribute.KeyValue{
				attribute.String("statebag.action", string(ctx.Item.Action)),
				attribute.Int("statebag.item_index", ctx.Index),
				attribute.String("statebag.key", ctx.Item.Key),
			}, attributes...)

			spanCtx, span := tracer.Start(ctx.GoContext, string(ctx.Item.Action), trace.WithAttributes(attrs...))
			defer span.End()

			ctx.GoContext = spanCtx
			records, err := next(ctx)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			}

			return records, err
		}
	}
}

// NewMeasurer returns a middleware that measures the duration of each item
// and hands the measurement to saveMetric along with the item and its error,
// if any.
func NewMeasurer(saveMetric func(item Item, err error, duration time.Duration)) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx *ItemContext) ([]Record, error) {
			start := time.Now()
			records, err := next(ctx)
			duration := time.Since(start)

			saveMetric(ctx.Item, err, duration)

			return records, err
		}
	}
}
