package server

import (
	"context"
	"encoding/json"
	"net/http"

	"mt5-adapter-go/internal/stream"

	"go.uber.org/zap"
)

// StreamHandler serves the closed-trade transaction stream as newline
// delimited JSON. The connection stays open until the client disconnects
// or the session hits a terminal error; a failing poll is reported as an
// ERROR frame and the stream ends, it never stalls silently.
func (h *Handler) StreamHandler(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.accountID(w, r)
	if !ok {
		return
	}
	if !h.requireSession(w, accountID, http.StatusConflict) {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.writeFailure(w, http.StatusInternalServerError, "Streaming unsupported by transport")
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	h.logger.Info("New client connected to transaction stream", zap.Int64("login", accountID))

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sess := stream.NewSession(
		accountID,
		h.agg,
		h.registry,
		h.sessions,
		h.streamInterval,
		h.windowStart,
		h.streamBuffer,
		h.logger,
	)

	go func() {
		// Run's error is already delivered to the client as an ERROR
		// frame before the channel closes.
		_ = sess.Run(ctx)
	}()

	enc := json.NewEncoder(w)
	for msg := range sess.Messages() {
		if err := enc.Encode(msg); err != nil {
			// Client went away; stop the session and drain.
			cancel()
			for range sess.Messages() {
			}
			break
		}
		flusher.Flush()
	}

	h.logger.Info("Transaction stream finished",
		zap.Int64("login", accountID),
		zap.String("state", sess.State().String()),
	)
}
