package api

import (
	"YoloDetServer/engine"
	iface "YoloDetServer/interface"
	"YoloDetServer/logger"
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const defaultIdleTimeout = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// StreamMessage is written back for every frame received on a stream.
type StreamMessage struct {
	Type   string          `json:"type"` // result, dropped or error
	Frame  uint64          `json:"frame"`
	Data   *detectResponse `json:"data,omitempty"`
	Reason string          `json:"reason,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// session serialises writes to one websocket connection.
type session struct {
	conn *websocket.Conn
	mu   sync.Mutex
	wg   sync.WaitGroup
}

func (s *session) write(msg StreamMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	_ = s.conn.WriteJSON(msg)
}

// stream runs a live feed: every binary message is an encoded image, every
// text message a base64 image. Frames are handed to the detector without
// waiting, so a frame arriving while the previous one is still in flight is
// dropped instead of queued.
func (s *Server) stream(c *gin.Context) {
	s.count("stream")
	id := c.Param("id")
	detector, ok := s.Registry.Get(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Detector not found"})
		return
	}
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	conn.SetReadLimit(maxFrameBytes)
	idle := s.IdleTimeout
	if idle <= 0 {
		idle = defaultIdleTimeout
	}

	log := logger.Named("ws").With(zap.String("id", id))
	sess := &session{conn: conn}
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer func() {
		cancel()
		sess.wg.Wait()
		_ = conn.Close()
	}()

	var frame uint64
	for {
		_ = conn.SetReadDeadline(time.Now().Add(idle))
		mt, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Info("stream closed", zap.Error(err))
			}
			sess.mu.Lock()
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "not active, released"))
			sess.mu.Unlock()
			return
		}
		frame++

		var img iface.ImageData
		switch mt {
		case websocket.BinaryMessage:
			img = iface.ImageData{Data: msg, Format: iface.Encoded}
		case websocket.TextMessage:
			data, err := decodeBase64Image(string(msg))
			if err != nil {
				sess.write(StreamMessage{Type: "error", Frame: frame, Error: "invalid base64 image"})
				continue
			}
			img = iface.ImageData{Data: data, Format: iface.Encoded}
		default:
			continue
		}

		sess.wg.Add(1)
		go s.process(ctx, sess, detector, frame, img)
	}
}

func (s *Server) process(ctx context.Context, sess *session, detector *engine.Detector, frame uint64, img iface.ImageData) {
	defer sess.wg.Done()
	res, err := detector.Detect(ctx, img)
	switch {
	case err != nil:
		sess.write(StreamMessage{Type: "error", Frame: frame, Error: err.Error()})
	case res == nil:
		reason := engine.DropBusy
		if !detector.Ready() {
			reason = engine.DropNotReady
		}
		sess.write(StreamMessage{Type: "dropped", Frame: frame, Reason: reason})
	default:
		out := newDetectResponse(res)
		sess.write(StreamMessage{Type: "result", Frame: frame, Data: &out})
	}
}
