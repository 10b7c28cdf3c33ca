package circuit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"pixelcircuits.dev/internal/persistence/document"
	"pixelcircuits.dev/internal/persistence/snapshot"
	"pixelcircuits.dev/internal/protocol"
	"pixelcircuits.dev/internal/sim/grid"
	"pixelcircuits.dev/internal/sim/ids"
	"pixelcircuits.dev/internal/sim/palette"
	"pixelcircuits.dev/internal/sim/propagate"
)

type Config struct {
	ID                  string
	FrameRateHz         int
	Palette             palette.Palette
	SnapshotEveryFrames int
	SettleMaxPasses     int
	ClockPeriodTicks    int
	Info                document.InfoV1
}

type Mode uint8

const (
	ModeEdit Mode = iota
	ModeRun
)

func (m Mode) String() string {
	if m == ModeRun {
		return protocol.ModeRun
	}
	return protocol.ModeEdit
}

func ParseMode(s string) (Mode, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case protocol.ModeEdit:
		return ModeEdit, true
	case protocol.ModeRun:
		return ModeRun, true
	default:
		return 0, false
	}
}

var (
	ErrMode     = errors.New("operation not allowed in this mode")
	ErrNotFound = errors.New("object not found")
	ErrInvalid  = errors.New("invalid request")
	ErrOccupied = errors.New("cell holds non-wire content")
)

// Request carries one ACT into the simulation goroutine. Resp, when set,
// must be buffered; the loop never blocks on it.
type Request struct {
	ClientID string
	Act      protocol.ActMsg
	Resp     chan protocol.AckMsg
}

type JoinRequest struct {
	SessionID string
	Msgpack   bool
	Out       chan []byte
	Resp      chan protocol.WelcomeMsg
}

type execReq struct {
	fn   func(*Circuit)
	done chan struct{}
}

type clientState struct {
	Out     chan []byte
	Msgpack bool
}

// Circuit is a single-owner simulation. All state must be accessed only from
// the goroutine running Run, or, when Run is not used, from the caller's
// goroutine.
type Circuit struct {
	cfg  Config
	info document.InfoV1

	store  *grid.Store
	engine *propagate.Engine
	queue  *propagate.Queue
	ids    *ids.Allocator
	mode   Mode

	frame atomic.Uint64

	inbox chan Request
	join  chan JoinRequest
	leave chan string
	exec  chan execReq
	stop  chan struct{}

	clients  map[string]*clientState
	recorded []RecordedAct

	// Optional (may be nil). Implemented in internal/persistence/*.
	frameLogger FrameLogger
	// Snapshot writing happens off the sim goroutine.
	snapshotSink chan<- snapshot.SnapshotV1

	lastDrain propagate.DrainStats
	metrics   atomic.Value
}

func New(cfg Config) (*Circuit, error) {
	if cfg.FrameRateHz <= 0 {
		return nil, fmt.Errorf("frame rate must be positive, got %d", cfg.FrameRateHz)
	}
	if len(cfg.Palette) == 0 {
		cfg.Palette = palette.Default()
	}
	if cfg.SettleMaxPasses <= 0 {
		cfg.SettleMaxPasses = 256
	}
	if cfg.Info.Kind == "" {
		cfg.Info.Kind = ids.KindCircuit.String()
	}
	store := grid.NewStore(cfg.Palette)
	c := &Circuit{
		cfg:     cfg,
		info:    cfg.Info,
		store:   store,
		engine:  propagate.NewEngine(store),
		queue:   propagate.NewQueue(),
		ids:     ids.NewAllocator(),
		inbox:   make(chan Request, 256),
		join:    make(chan JoinRequest, 16),
		leave:   make(chan string, 16),
		exec:    make(chan execReq, 16),
		stop:    make(chan struct{}),
		clients: map[string]*clientState{},
	}
	return c, nil
}

func (c *Circuit) SetFrameLogger(l FrameLogger)                  { c.frameLogger = l }
func (c *Circuit) SetSnapshotSink(ch chan<- snapshot.SnapshotV1) { c.snapshotSink = ch }

func (c *Circuit) Inbox() chan<- Request    { return c.inbox }
func (c *Circuit) Join() chan<- JoinRequest { return c.join }
func (c *Circuit) Leave() chan<- string     { return c.leave }

func (c *Circuit) ID() string            { return c.cfg.ID }
func (c *Circuit) CurrentFrame() uint64  { return c.frame.Load() }
func (c *Circuit) Mode() Mode            { return c.mode }
func (c *Circuit) Info() document.InfoV1 { return c.info }
func (c *Circuit) FrameRateHz() int      { return c.cfg.FrameRateHz }

// Store exposes the grid for read-only inspection from the owning goroutine.
func (c *Circuit) Store() *grid.Store { return c.store }

func (c *Circuit) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(c.cfg.FrameRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.stop:
			return nil
		case req := <-c.join:
			c.handleJoin(req)
		case id := <-c.leave:
			delete(c.clients, id)
		case req := <-c.inbox:
			c.handleRequest(req)
		case req := <-c.exec:
			req.fn(c)
			close(req.done)
		case <-ticker.C:
			c.StepOnce()
		}
	}
}

func (c *Circuit) Stop() { close(c.stop) }

// Do runs fn on the simulation goroutine and waits for it to finish. It is
// safe to call from other goroutines (e.g. HTTP handlers) while Run is active.
func (c *Circuit) Do(ctx context.Context, fn func(*Circuit)) error {
	req := execReq{fn: fn, done: make(chan struct{})}
	select {
	case c.exec <- req:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-req.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Circuit) handleJoin(req JoinRequest) {
	c.clients[req.SessionID] = &clientState{Out: req.Out, Msgpack: req.Msgpack}
	if req.Resp != nil {
		select {
		case req.Resp <- c.Welcome(req.SessionID):
		default:
		}
	}
}

func (c *Circuit) handleRequest(req Request) {
	ack := c.ApplyRecorded(req.ClientID, req.Act)
	if req.Resp != nil {
		select {
		case req.Resp <- ack:
		default:
			// Client gave up; don't block the sim loop.
		}
	}
}

// StepOnce runs one frame and fans the result out to clients, the frame
// logger and the snapshot sink. Run calls it on every tick.
func (c *Circuit) StepOnce() (frame uint64, digest string) {
	start := time.Now()
	res := c.Frame()
	msg := c.FrameMsg()

	if len(c.clients) > 0 {
		jsonB, packB, err := encodeFrame(msg, c.wantsMsgpack())
		if err == nil {
			for _, cl := range c.clients {
				if cl.Msgpack {
					sendLatest(cl.Out, packB)
				} else {
					sendLatest(cl.Out, jsonB)
				}
			}
		}
	}

	if c.frameLogger != nil {
		_ = c.frameLogger.WriteFrame(FrameLogEntry{
			Frame:    res.Frame,
			Mode:     c.mode.String(),
			Acts:     c.recorded,
			Advanced: res.Drain.Advanced,
			Emitted:  res.Drain.Emitted,
			Dropped:  res.Drain.Dropped,
			Pending:  res.Pending,
			Digest:   msg.Digest,
		})
	}
	c.recorded = nil

	if every := uint64(c.cfg.SnapshotEveryFrames); every > 0 && c.snapshotSink != nil && res.Frame%every == 0 {
		select {
		case c.snapshotSink <- c.ExportSnapshot():
		default:
		}
	}

	c.publishMetrics(time.Since(start))
	return res.Frame, msg.Digest
}

func (c *Circuit) wantsMsgpack() bool {
	for _, cl := range c.clients {
		if cl.Msgpack {
			return true
		}
	}
	return false
}

func sendLatest(ch chan []byte, b []byte) {
	select {
	case ch <- b:
		return
	default:
	}
	// Drop one.
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- b:
	default:
	}
}
