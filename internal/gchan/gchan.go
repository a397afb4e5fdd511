// Package gchan contains small helpers for channel operations
// that must also respect context cancellation.
//
// Each helper accepts a name used only for logging,
// so that a blocked or canceled operation can be identified in logs.
package gchan

import (
	"context"
	"log/slog"
)

// SendC attempts to send val on ch,
// returning true if the send succeeded
// or false if ctx was canceled first.
func SendC[T any](
	ctx context.Context, log *slog.Logger,
	ch chan<- T, val T,
	name string,
) bool {
	select {
	case <-ctx.Done():
		log.Info(
			"Context canceled while sending",
			"op", name,
			"cause", context.Cause(ctx),
		)
		return false
	case ch <- val:
		return true
	}
}

// RecvC attempts to receive a value from ch,
// returning the value and true on success,
// or the zero value and false if ctx was canceled first.
func RecvC[T any](
	ctx context.Context, log *slog.Logger,
	ch <-chan T,
	name string,
) (T, bool) {
	select {
	case <-ctx.Done():
		log.Info(
			"Context canceled while receiving",
			"op", name,
			"cause", context.Cause(ctx),
		)
		var zero T
		return zero, false
	case v := <-ch:
		return v, true
	}
}

// ReqResp sends req on reqCh and then waits for a value on respCh.
//
// The response channel should be 1-buffered,
// so that the responder never blocks
// if the requester gives up after a context cancellation.
func ReqResp[Req, Resp any](
	ctx context.Context, log *slog.Logger,
	reqCh chan<- Req, req Req,
	respCh <-chan Resp,
	name string,
) (Resp, bool) {
	if !SendC(ctx, log, reqCh, req, name+":request") {
		var zero Resp
		return zero, false
	}

	return RecvC(ctx, log, respCh, name+":response")
}
