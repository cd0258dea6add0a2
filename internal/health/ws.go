package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"nhooyr.io/websocket"

	"github.com/marsounjan/icmp4a/internal/ping"
)

// pingInit is the first message a /ping client sends.
type pingInit struct {
	Type       string `json:"type"`
	Target     string `json:"target"`
	Count      int    `json:"count"`
	IntervalMS int    `json:"interval_ms"`
	TimeoutMS  int    `json:"timeout_ms"`
	Size       int    `json:"size"`
	Family     string `json:"family"`
}

// pingSnapshot is one per-attempt stats message.
type pingSnapshot struct {
	Type        string  `json:"type"`
	Seq         uint16  `json:"seq"`
	Outcome     string  `json:"outcome"`
	ElapsedMS   int64   `json:"elapsed_ms"`
	Message     string  `json:"message,omitempty"`
	Transmitted uint64  `json:"transmitted"`
	Received    uint64  `json:"received"`
	Loss        float64 `json:"loss"`
	AvgMS       int64   `json:"avg_ms,omitempty"`
}

// handlePingWebSocket runs a live measurement stream over a WebSocket.
// The client opens with an init message naming the target; every attempt
// produces one stats message until the count is reached or either side
// closes.
func (s *Server) handlePingWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.pinger == nil {
		http.Error(w, "ping not available", http.StatusServiceUnavailable)
		return
	}

	// Disable write deadline for long-lived WebSocket connections
	rc := http.NewResponseController(w)
	_ = rc.SetWriteDeadline(time.Time{})

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols: []string{"icmp4a-ping"},
	})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	ctx := r.Context()

	_, initData, err := conn.Read(ctx)
	if err != nil {
		conn.Close(websocket.StatusProtocolError, "failed to read init message")
		return
	}

	var init pingInit
	if err := json.Unmarshal(initData, &init); err != nil || init.Type != "init" {
		conn.Close(websocket.StatusProtocolError, "expected init message")
		return
	}
	if init.Target == "" {
		sendInitError(ctx, conn, "target is required")
		conn.Close(websocket.StatusProtocolError, "target is required")
		return
	}

	opts := ping.DefaultOptions()
	if init.Count > 0 {
		opts.Count = init.Count
	}
	if init.IntervalMS > 0 {
		opts.Interval = time.Duration(init.IntervalMS) * time.Millisecond
	}
	if init.TimeoutMS > 0 {
		opts.Timeout = time.Duration(init.TimeoutMS) * time.Millisecond
	}
	if init.Size > 0 {
		opts.Size = init.Size
	}

	// Reads after init only serve to notice the client going away.
	ctx = conn.CloseRead(ctx)

	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	stream, err := s.pinger.Interval(streamCtx, init.Target, opts)
	if err != nil {
		sendInitError(ctx, conn, err.Error())
		conn.Close(websocket.StatusInternalError, "failed to start stream")
		return
	}

	ack := map[string]interface{}{
		"type":    "init_ack",
		"success": true,
		"address": stream.Addr().String(),
	}
	ackData, _ := json.Marshal(ack)
	if err := conn.Write(ctx, websocket.MessageText, ackData); err != nil {
		cancel()
		for range stream.C {
		}
		return
	}

	for stats := range stream.C {
		snap := pingSnapshot{
			Type:        "stats",
			Seq:         stats.Latest.Seq,
			Outcome:     stats.Latest.Kind.String(),
			ElapsedMS:   stats.Latest.Elapsed.Milliseconds(),
			Message:     stats.Latest.Message,
			Transmitted: stats.Transmitted,
			Received:    stats.Received,
			Loss:        stats.Loss,
		}
		if stats.Latency != nil {
			snap.AvgMS = stats.Latency.Avg.Milliseconds()
		}

		data, _ := json.Marshal(snap)
		if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
			cancel()
			for range stream.C {
			}
			return
		}
	}

	if err := stream.Err(); err != nil && ctx.Err() == nil {
		resp := map[string]interface{}{
			"type":  "error",
			"error": err.Error(),
		}
		data, _ := json.Marshal(resp)
		conn.Write(ctx, websocket.MessageText, data)
		return
	}

	done, _ := json.Marshal(map[string]interface{}{"type": "done"})
	conn.Write(ctx, websocket.MessageText, done)
}

// sendInitError sends a failed init_ack on the WebSocket.
func sendInitError(ctx context.Context, conn *websocket.Conn, msg string) {
	resp := map[string]interface{}{
		"type":    "init_ack",
		"success": false,
		"error":   msg,
	}
	data, _ := json.Marshal(resp)
	conn.Write(ctx, websocket.MessageText, data)
}
