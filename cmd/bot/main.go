package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"

	"pixelcircuits.dev/internal/protocol"
)

// bot builds a switch -> wire -> LED lamp on the live circuit, runs it and
// flips the switch on a fixed period, logging what the LED shows.
func main() {
	var (
		url     = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		name    = flag.String("name", "bot", "client name")
		x       = flag.Int("x", 2, "lamp origin x")
		y       = flag.Int("y", 2, "lamp origin y")
		every   = flag.Uint64("every", 20, "click the switch every N frames")
		usePack = flag.Bool("msgpack", false, "request binary msgpack frames")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		ClientName:      *name,
		Capabilities: protocol.HelloCapabilities{
			Msgpack:  *usePack,
			MaxQueue: 8,
		},
	}
	if err := conn.WriteJSON(hello); err != nil {
		logger.Fatalf("send HELLO: %v", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	b := &bot{conn: conn, logger: logger, x: *x, y: *y, every: *every}
	for {
		select {
		case <-stop:
			return
		default:
		}

		mt, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if mt == websocket.BinaryMessage {
			var f protocol.FrameMsg
			if err := msgpack.Unmarshal(msg, &f); err != nil {
				continue
			}
			b.onFrame(&f)
			continue
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			continue
		}
		switch base.Type {
		case protocol.TypeWelcome:
			var w protocol.WelcomeMsg
			if err := json.Unmarshal(msg, &w); err != nil {
				continue
			}
			logger.Printf("WELCOME session=%s circuit=%s frame_rate=%d mode=%s", w.SessionID, w.CircuitID, w.Params.FrameRateHz, w.Params.Mode)
			b.build(w.Params.Mode)

		case protocol.TypeFrame:
			var f protocol.FrameMsg
			if err := json.Unmarshal(msg, &f); err != nil {
				continue
			}
			b.onFrame(&f)

		case protocol.TypeAck:
			var ack protocol.AckMsg
			if err := json.Unmarshal(msg, &ack); err != nil {
				continue
			}
			b.onAck(&ack)
		}
	}
}

type bot struct {
	conn   *websocket.Conn
	logger *log.Logger
	x, y   int
	every  uint64

	seq      int
	switchID uint64
	ledID    uint64
	lastLED  bool
}

func (b *bot) send(act protocol.ActMsg) {
	b.seq++
	act.Type = protocol.TypeAct
	act.ProtocolVersion = protocol.Version
	act.ID = fmt.Sprintf("bot_%d", b.seq)
	_ = b.conn.WriteJSON(act)
}

func (b *bot) build(mode string) {
	if mode == protocol.ModeRun {
		b.send(protocol.ActMsg{Op: protocol.OpMode, Mode: protocol.ModeEdit})
	}
	b.send(protocol.ActMsg{Op: protocol.OpPlace, Kind: "switch", Pos: [2]int{b.x, b.y}})
	b.send(protocol.ActMsg{Op: protocol.OpPlace, Kind: "led", Pos: [2]int{b.x + 4, b.y}})
	b.send(protocol.ActMsg{Op: protocol.OpWire, Cells: [][2]int{{b.x + 2, b.y}}})
	b.send(protocol.ActMsg{Op: protocol.OpMode, Mode: protocol.ModeRun})
}

func (b *bot) onAck(ack *protocol.AckMsg) {
	if !ack.Accepted {
		b.logger.Printf("ACK %s rejected code=%s: %s", ack.AckFor, ack.Code, ack.Message)
		return
	}
	if ack.ObjectID == 0 {
		return
	}
	switch {
	case b.switchID == 0:
		b.switchID = ack.ObjectID
	case b.ledID == 0:
		b.ledID = ack.ObjectID
		b.logger.Printf("lamp built switch=#%d led=#%d", b.switchID, b.ledID)
	}
}

func (b *bot) onFrame(f *protocol.FrameMsg) {
	if f.Mode != protocol.ModeRun || b.switchID == 0 || b.ledID == 0 {
		return
	}
	if b.every > 0 && f.Frame%b.every == 0 {
		b.send(protocol.ActMsg{Op: protocol.OpInteract, Object: b.switchID, Event: protocol.EventClick})
	}
	for _, o := range f.Objects {
		if o.ID != b.ledID {
			continue
		}
		if o.Active != b.lastLED {
			b.logger.Printf("frame=%d led=%v pending=%d", f.Frame, o.Active, f.Pending)
			b.lastLED = o.Active
		}
	}
}
