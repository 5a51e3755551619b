package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/gluk-w/sshdeck/internal/sshmanager"
	"github.com/gluk-w/sshdeck/internal/sshterminal"
	"github.com/go-chi/chi/v5"
)

// outputPollInterval drains output that arrived without a notification,
// such as a UTF-8 sequence held back until its last byte came in.
const outputPollInterval = 50 * time.Millisecond

type termMsg struct {
	Type string `json:"type"`
	Data string `json:"data,omitempty"`
	Cols int    `json:"cols,omitempty"`
	Rows int    `json:"rows,omitempty"`
}

// TerminalWS streams an established connection over a WebSocket.
//
// Output is sent as text frames. Binary frames from the client are written
// to the shell as input; text frames are JSON control messages:
//
//	{"type":"input","data":"ls\n"}
//	{"type":"resize","cols":120,"rows":40}
//
// Closing the socket does not disconnect the session.
func (a *API) TerminalWS(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ready, err := a.Registry.OutputReady(id)
	if err != nil {
		writeErr(w, err)
		return
	}

	clientConn, err := websocket.Accept(w, r, nil)
	if err != nil {
		log.Printf("[api] failed to accept terminal websocket: %v", err)
		return
	}
	defer clientConn.CloseNow()
	clientConn.SetReadLimit(sshterminal.MaxInputMessageSize + 1024)

	relayCtx, relayCancel := context.WithCancel(r.Context())
	defer relayCancel()

	// Shell output -> browser. When the session ends first, the close frame
	// carries the reason and also ends the read loop below.
	go func() {
		if reason := a.relayOutput(relayCtx, clientConn, id, ready); reason != "" {
			clientConn.Close(websocket.StatusNormalClosure, reason)
		}
	}()

	// Browser -> shell input
	limiter := sshterminal.NewMessageLimiter(sshterminal.MessageRateLimit, sshterminal.MessageRateBurst)
	for {
		msgType, data, err := clientConn.Read(relayCtx)
		if err != nil {
			return
		}
		if !limiter.Allow() {
			continue
		}
		if err := a.handleTermMessage(id, msgType, data); err != nil {
			if sshmanager.IsKind(err, sshmanager.KindNotFound) {
				clientConn.Close(websocket.StatusNormalClosure, "Session closed")
				return
			}
			log.Printf("[api] terminal session %s: %v", id, err)
		}
	}
}

func (a *API) handleTermMessage(id string, msgType websocket.MessageType, data []byte) error {
	if msgType == websocket.MessageBinary {
		if len(data) > sshterminal.MaxInputMessageSize {
			return nil
		}
		return a.Registry.SendCommand(id, data)
	}

	var msg termMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil
	}
	switch msg.Type {
	case "input":
		if len(msg.Data) > sshterminal.MaxInputMessageSize {
			return nil
		}
		return a.Registry.SendCommand(id, []byte(msg.Data))
	case "resize":
		cols, rows := clampSize(msg.Cols, msg.Rows)
		if cols < 1 || rows < 1 {
			return nil
		}
		return a.Registry.ResizeTerminal(id, cols, rows)
	}
	return nil
}

func clampSize(cols, rows int) (int, int) {
	if cols > sshterminal.MaxTermCols {
		cols = sshterminal.MaxTermCols
	}
	if rows > sshterminal.MaxTermRows {
		rows = sshterminal.MaxTermRows
	}
	return cols, rows
}

// relayOutput drains the session until ctx ends or the session does. It
// returns a close reason when the session ended on its own.
func (a *API) relayOutput(ctx context.Context, conn *websocket.Conn, id string, ready <-chan struct{}) string {
	ticker := time.NewTicker(outputPollInterval)
	defer ticker.Stop()

	for {
		for {
			out, err := a.Registry.ReadOutput(id)
			if err != nil {
				if sshmanager.IsKind(err, sshmanager.KindNotFound) {
					return "Session closed"
				}
				return "Shell exited"
			}
			if out == "" {
				break
			}
			if err := conn.Write(ctx, websocket.MessageText, []byte(out)); err != nil {
				return ""
			}
		}

		select {
		case <-ctx.Done():
			return ""
		case <-ready:
		case <-ticker.C:
		}
	}
}
