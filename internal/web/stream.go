package web

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"net/http"
	"time"

	"chatfunnel/internal/html"
)

const streamKeepAlive = 15 * time.Second

// GET /chat/stream pushes a freshly rendered chat fragment as a server-sent
// "chat" event after every engine or visit change.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	v, _ := s.getOrCreateVisit(r.Context(), w, r)
	rc := http.NewResponseController(w)

	engineCh, stopEngine := v.Engine.Subscribe()
	defer stopEngine()
	visitCh, stopVisit := v.Subscribe()
	defer stopVisit()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	send := func() bool {
		if err := s.writeChatEvent(w, v); err != nil {
			s.logger().Debug("stream write failed", "error", err)
			return false
		}
		return rc.Flush() == nil
	}
	if !send() {
		return
	}

	stopped := s.streamsStopped()
	keepAlive := time.NewTicker(streamKeepAlive)
	defer keepAlive.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-stopped:
			return
		case _, ok := <-engineCh:
			if !ok || !send() {
				return
			}
		case _, ok := <-visitCh:
			if !ok || !send() {
				return
			}
		case <-keepAlive.C:
			if _, err := io.WriteString(w, ": ping\n\n"); err != nil || rc.Flush() != nil {
				return
			}
		}
	}
}

func (s *Server) writeChatEvent(w io.Writer, v *Visit) error {
	var buf bytes.Buffer
	if err := html.ChatFragment(s.chatView(v)).Render(&buf); err != nil {
		return err
	}
	return writeEvent(w, "chat", buf.Bytes())
}

// writeEvent frames data as one SSE event, one data field per line.
func writeEvent(w io.Writer, event string, data []byte) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "event: %s\n", event)
	for _, line := range bytes.Split(data, []byte("\n")) {
		bw.WriteString("data: ")
		bw.Write(line)
		bw.WriteByte('\n')
	}
	bw.WriteByte('\n')
	return bw.Flush()
}
