package streamer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cyclopcam/implant/pkg/accel"
	"github.com/cyclopcam/implant/pkg/logx"
	"github.com/cyclopcam/implant/server/monitor"
	"github.com/cyclopcam/logs"
	"github.com/gorilla/websocket"
)

type webSocketMsg int

const (
	webSocketMsgPause  webSocketMsg = iota // pause stream (eg app in background)
	webSocketMsgResume                     // resume stream
)

// Sent by client over websocket
// SYNC-WEBSOCKET-JSON-MSG
type webSocketJSON struct {
	Command string `json:"command"`
}

// Every TEXT message that we send is one of these.
// BINARY messages from the client are NV21 camera frames.
// SYNC-FRAME-WEBSOCKET-STRING-MESSAGE
type webSocketSendStringMessage struct {
	Type   string               `json:"type"` // "frame" or "error"
	Frame  *monitor.FrameResult `json:"frame,omitempty"`
	Error  string               `json:"error,omitempty"`
	Frames int64                `json:"frames,omitempty"` // Frames received from the client so far
}

// Number of messages that we buffer on the send side, before dropping results
const WebSocketSendBufferSize = 20

// Allowance on top of one NV21 frame for the largest message that we accept
const webSocketReadSlack = 4096

var nextWebSocketStreamerID int64

type FrameWebSocketStreamer struct {
	log             logs.Log
	streamerID      int64
	monitor         *monitor.Monitor
	closed          atomic.Bool
	paused          atomic.Bool
	fromWebSocket   chan webSocketMsg
	done            chan bool // Closed when run() exits
	sendQueue       chan *webSocketSendStringMessage
	results         chan *monitor.FrameResult
	nFramesIn       atomic.Int64
	nResultsSent    int64
	nResultsDropped int64
	lastDropMsg     time.Time
	rejectThrottle  *logx.Throttle
}

// RunFrameWebSocketStreamer sends every result of mon to the websocket, and submits every
// binary message that arrives on the websocket to mon as an NV21 frame.
// Returns when the websocket is closed, mon is closed, or ctx is done.
// Messages larger than one frame close the websocket.
func RunFrameWebSocketStreamer(ctx context.Context, sessionName string, logger logs.Log, conn *websocket.Conn, mon *monitor.Monitor) {
	streamerID := atomic.AddInt64(&nextWebSocketStreamerID, 1)
	s := &FrameWebSocketStreamer{
		log:            logx.NewPrefixLogger(logger, fmt.Sprintf("Session %v WebSocket %v", sessionName, streamerID)),
		streamerID:     streamerID,
		monitor:        mon,
		sendQueue:      make(chan *webSocketSendStringMessage, WebSocketSendBufferSize),
		results:        mon.Watch(),
		done:           make(chan bool),
		rejectThrottle: logx.NewThrottle(15 * time.Second),
	}
	defer mon.Unwatch(s.results)
	conn.SetReadLimit(int64(accel.NV21FrameSize(mon.FrameSize())) + webSocketReadSlack)
	s.run(ctx, conn)
}

func (s *FrameWebSocketStreamer) run(ctx context.Context, conn *websocket.Conn) {
	defer conn.Close()
	defer close(s.done)

	s.fromWebSocket = make(chan webSocketMsg, 1)
	go s.webSocketReader(conn)
	writerDone := make(chan bool)
	go func() {
		s.webSocketWriter(conn)
		close(writerDone)
	}()

	for !s.closed.Load() {
		select {
		case <-ctx.Done():
			s.closed.Store(true)
		case <-s.monitor.Done():
			s.closed.Store(true)
		case wsMsg, ok := <-s.fromWebSocket:
			if !ok {
				s.closed.Store(true)
				break
			}
			switch wsMsg {
			case webSocketMsgPause:
				s.paused.Store(true)
			case webSocketMsgResume:
				s.paused.Store(false)
			}
		case result := <-s.results:
			if !s.paused.Load() {
				s.queue(&webSocketSendStringMessage{Type: "frame", Frame: result, Frames: s.nFramesIn.Load()})
			}
		}
	}
	close(s.sendQueue)
	<-writerDone
	s.log.Infof("Closed after %v frames in, %v results out, %v results dropped", s.nFramesIn.Load(), s.nResultsSent, s.nResultsDropped)
}

// queue never blocks, so that a slow client cannot stall the monitor
func (s *FrameWebSocketStreamer) queue(msg *webSocketSendStringMessage) {
	if len(s.sendQueue) >= WebSocketSendBufferSize {
		s.nResultsDropped++
		if now := time.Now(); now.Sub(s.lastDropMsg) > 5*time.Second {
			s.log.Infof("Dropped %v/%v results", s.nResultsDropped, s.nResultsDropped+s.nResultsSent)
			s.lastDropMsg = now
		}
		return
	}
	s.nResultsSent++
	s.sendQueue <- msg
}

// Read from the websocket and post to our own channel, so that a single loop
// handles both websocket commands and monitor results.
func (s *FrameWebSocketStreamer) webSocketReader(conn *websocket.Conn) {
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if errors.Is(err, websocket.ErrReadLimit) {
				s.log.Warnf("Closing: client sent a message larger than one frame")
			}
			break
		}
		switch msgType {
		case websocket.BinaryMessage:
			s.nFramesIn.Add(1)
			if err := s.monitor.SubmitFrame(data); err != nil {
				s.rejectThrottle.Errorf(s.log, "Rejected frame: %v", err)
			}
		case websocket.TextMessage:
			msg := webSocketJSON{}
			if err := json.Unmarshal(data, &msg); err != nil {
				s.log.Infof("webSocketReader failed to decode JSON: %v", err)
				continue
			}
			// SYNC-WEBSOCKET-COMMANDS
			switch msg.Command {
			case "pause":
				s.post(webSocketMsgPause)
			case "resume":
				s.post(webSocketMsgResume)
			default:
				s.log.Infof("Unknown websocket message from client: '%v'", msg.Command)
			}
		}
	}
	close(s.fromWebSocket)
}

func (s *FrameWebSocketStreamer) post(msg webSocketMsg) {
	select {
	case s.fromWebSocket <- msg:
	case <-s.done:
	}
}

// Writing happens on its own goroutine, so that a slow client doesn't block the main loop
func (s *FrameWebSocketStreamer) webSocketWriter(conn *websocket.Conn) {
	for msg := range s.sendQueue {
		if s.closed.Load() {
			continue
		}
		j, err := json.Marshal(msg)
		if err != nil {
			s.log.Errorf("Failed to marshal websocket message: %v", err)
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, j); err != nil {
			s.log.Infof("Error writing to websocket: %v", err)
		}
	}
}
