// Package ws streams frames to clients and accepts ACT commands over a
// websocket.
package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"pixelcircuits.dev/internal/protocol"
	"pixelcircuits.dev/internal/sim/circuit"
)

const (
	handshakeTimeout = 5 * time.Second
	writeTimeout     = 5 * time.Second
	readTimeout      = 60 * time.Second
)

type Server struct {
	circuit  *circuit.Circuit
	log      *log.Logger
	maxQueue int

	upgrader websocket.Upgrader
}

// NewServer serves c. maxQueue caps the per-client outbound frame buffer a
// HELLO may ask for.
func NewServer(c *circuit.Circuit, logger *log.Logger, maxQueue int) *Server {
	if maxQueue <= 0 {
		maxQueue = 16
	}
	return &Server{
		circuit:  c,
		log:      logger,
		maxQueue: maxQueue,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

type session struct {
	id      string
	msgpack bool
	frames  chan []byte
	acks    chan protocol.AckMsg
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		sess := s.handshake(conn)
		if sess == nil {
			return
		}
		if s.log != nil {
			s.log.Printf("session %s joined (msgpack=%v)", sess.id, sess.msgpack)
		}

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b := <-sess.frames:
					mt := websocket.TextMessage
					if sess.msgpack {
						mt = websocket.BinaryMessage
					}
					_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
					if err := conn.WriteMessage(mt, b); err != nil {
						cancel()
						return
					}
				case ack := <-sess.acks:
					if err := writeJSON(conn, ack); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				break
			}
			s.handleMessage(sess, msg)
		}

		s.circuit.Leave() <- sess.id
		if s.log != nil {
			s.log.Printf("session %s left", sess.id)
		}
	}
}

func (s *Server) handleMessage(sess *session, msg []byte) {
	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeAct {
		reject(sess, "", protocol.ErrProtoBadRequest, "expected ACT")
		return
	}
	var act protocol.ActMsg
	if err := json.Unmarshal(msg, &act); err != nil {
		reject(sess, "", protocol.ErrProtoBadRequest, err.Error())
		return
	}
	if act.ProtocolVersion != protocol.Version {
		reject(sess, act.ID, protocol.ErrProtoBadRequest, "bad protocol_version")
		return
	}
	select {
	case s.circuit.Inbox() <- circuit.Request{ClientID: sess.id, Act: act, Resp: sess.acks}:
	default:
		reject(sess, act.ID, protocol.ErrBusy, "circuit inbox full")
	}
}

func reject(sess *session, actID, code, message string) {
	ack := protocol.AckMsg{
		Type:            protocol.TypeAck,
		ProtocolVersion: protocol.Version,
		AckFor:          actID,
		Code:            code,
		Message:         message,
	}
	select {
	case sess.acks <- ack:
	default:
	}
}

func (s *Server) handshake(conn *websocket.Conn) *session {
	_ = conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return nil
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		closeWith(conn, "expected HELLO")
		return nil
	}
	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		closeWith(conn, "malformed HELLO")
		return nil
	}
	if hello.ProtocolVersion != protocol.Version {
		closeWith(conn, "bad protocol_version")
		return nil
	}

	maxQ := hello.Capabilities.MaxQueue
	if maxQ <= 0 {
		maxQ = 8
	}
	if maxQ > s.maxQueue {
		maxQ = s.maxQueue
	}
	sess := &session{
		id:      "s_" + uuid.NewString(),
		msgpack: hello.Capabilities.Msgpack,
		frames:  make(chan []byte, maxQ),
		acks:    make(chan protocol.AckMsg, maxQ),
	}

	respCh := make(chan protocol.WelcomeMsg, 1)
	s.circuit.Join() <- circuit.JoinRequest{
		SessionID: sess.id,
		Msgpack:   sess.msgpack,
		Out:       sess.frames,
		Resp:      respCh,
	}
	var welcome protocol.WelcomeMsg
	select {
	case welcome = <-respCh:
	case <-time.After(handshakeTimeout):
		s.circuit.Leave() <- sess.id
		return nil
	}
	if err := writeJSON(conn, welcome); err != nil {
		s.circuit.Leave() <- sess.id
		return nil
	}
	return sess
}

func closeWith(conn *websocket.Conn, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason), time.Now().Add(time.Second))
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteMessage(websocket.TextMessage, b)
}
