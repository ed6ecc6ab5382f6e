/*
Package tracing provides lightweight request tracing.

Every HTTP request gets a span. The trace continues from the X-Trace-ID and
X-Span-ID request headers when a caller sends them, and both IDs are echoed
back on the response so a browser session can be correlated with server logs.

Finished spans are queued on a buffered channel and written to the log by a
single collector goroutine. The output poll fires ten times per second per
open page, so its spans can be marked quiet and logged at debug level.

# Usage

	tracer := tracing.New("webterm", logger, "/read")
	defer tracer.Close()

	router.Use(tracing.HTTPMiddleware(tracer))

	span, ctx := tracer.StartSpan(ctx, "terminal.restart")
	defer func() {
		span.Finish()
		tracer.Submit(span)
	}()
*/
package tracing
