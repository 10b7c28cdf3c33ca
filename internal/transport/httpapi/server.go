// Package httpapi is the REST surface: owner accounts, stored documents and
// the live circuit.
package httpapi

import (
	"context"
	"io"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"pixelcircuits.dev/internal/persistence/document"
	persistlog "pixelcircuits.dev/internal/persistence/log"
	"pixelcircuits.dev/internal/persistence/snapshot"
	"pixelcircuits.dev/internal/persistence/store"
	"pixelcircuits.dev/internal/protocol"
	"pixelcircuits.dev/internal/sim/circuit"
)

// Store is the document store the API serves from.
type Store interface {
	Ping() error
	Register(ctx context.Context, name, password string) error
	Authenticate(ctx context.Context, name, password string) (string, error)
	CreateDocument(ctx context.Context, owner string, body document.CircuitV1) (store.Document, error)
	GetDocument(ctx context.Context, viewer, id string) (store.Document, error)
	UpdateDocument(ctx context.Context, owner, id string, body document.CircuitV1) (store.Document, error)
	DeleteDocument(ctx context.Context, owner, id string) error
	ForkDocument(ctx context.Context, owner, id string) (store.Document, error)
	ListDocuments(ctx context.Context, viewer, owner string) ([]store.Summary, error)
	Frames(ctx context.Context, circuitID string, from uint64, limit int) ([]store.FrameRow, error)
	Stats() store.Stats
}

type AuditLogger interface {
	WriteAudit(persistlog.AuditEntry) error
}

type Deps struct {
	Circuit *circuit.Circuit
	Store   Store
	// Optional.
	Audit AuditLogger
	// SaveSnapshot writes a snapshot and returns its path. Optional.
	SaveSnapshot func(snapshot.SnapshotV1) (string, error)
	// WS serves the live websocket at /v1/ws. Optional.
	WS     http.Handler
	Logger *log.Logger

	Version        string
	EnableAdmin    bool
	RequestLogging bool
	BodyLimit      string
	Timeout        time.Duration
}

type Handler struct {
	d Deps
}

const ownerKey = "owner"

// New builds the echo instance with middleware and every route.
func New(d Deps) *echo.Echo {
	if d.BodyLimit == "" {
		d.BodyLimit = "4M"
	}
	if d.Timeout <= 0 {
		d.Timeout = 10 * time.Second
	}
	h := &Handler{d: d}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = ErrorHandler

	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Skipper: func(c echo.Context) bool {
			if !d.RequestLogging {
				return true
			}
			path := c.Request().URL.Path
			return path == "/healthz" || path == "/metrics"
		},
	}))
	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{StackSize: 4 * 1024}))
	e.Use(middleware.BodyLimit(d.BodyLimit))
	e.Use(middleware.TimeoutWithConfig(middleware.TimeoutConfig{
		Timeout: d.Timeout,
		Skipper: func(c echo.Context) bool {
			return c.Request().URL.Path == "/v1/ws"
		},
		ErrorMessage: "request timeout",
	}))

	e.GET("/healthz", h.HandleHealth)
	e.GET("/metrics", h.HandleMetrics)
	if d.WS != nil {
		e.GET("/v1/ws", echo.WrapHandler(d.WS))
	}

	auth := middleware.BasicAuthWithConfig(middleware.BasicAuthConfig{
		Realm:     "pixelcircuits",
		Validator: h.validate,
	})

	api := e.Group("/api/v1", h.optionalOwner)
	api.POST("/owners", h.HandleRegister)
	api.GET("/session", h.HandleSession, auth)
	api.GET("/owners/:owner/documents", h.HandleListDocuments)

	api.POST("/documents", h.HandleCreateDocument, auth)
	api.GET("/documents/:id", h.HandleGetDocument)
	api.PUT("/documents/:id", h.HandleUpdateDocument, auth)
	api.DELETE("/documents/:id", h.HandleDeleteDocument, auth)
	api.POST("/documents/:id/fork", h.HandleForkDocument, auth)
	api.POST("/documents/:id/load", h.HandleLoadDocument, auth)

	api.GET("/circuit", h.HandleExportCircuit)
	api.POST("/circuit/save", h.HandleSaveCircuit, auth)
	api.GET("/circuit/frame", h.HandleCurrentFrame)
	api.GET("/circuit/frames", h.HandleFrames)
	api.POST("/circuit/acts", h.HandleAct, auth)

	if d.EnableAdmin {
		admin := e.Group("/admin/v1", loopbackOnly)
		admin.GET("/state", h.HandleAdminState)
		admin.POST("/snapshot", h.HandleAdminSnapshot)
	} else if d.Logger != nil {
		d.Logger.Printf("admin endpoints disabled")
	}
	return e
}

func (h *Handler) validate(name, password string, c echo.Context) (bool, error) {
	owner, err := h.d.Store.Authenticate(c.Request().Context(), name, password)
	if err != nil {
		return false, nil
	}
	c.Set(ownerKey, owner)
	return true, nil
}

// optionalOwner resolves credentials when present so public reads can still
// see the caller's private documents. Bad credentials are rejected.
func (h *Handler) optionalOwner(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		name, password, ok := c.Request().BasicAuth()
		if !ok {
			return next(c)
		}
		owner, err := h.d.Store.Authenticate(c.Request().Context(), name, password)
		if err != nil {
			return fromErr(err)
		}
		c.Set(ownerKey, owner)
		return next(c)
	}
}

func owner(c echo.Context) string {
	s, _ := c.Get(ownerKey).(string)
	return s
}

func loopbackOnly(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !isLoopbackRemote(c.Request().RemoteAddr) {
			return newError(http.StatusForbidden, protocol.ErrForbidden, "admin endpoints are local only", nil)
		}
		return next(c)
	}
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func (h *Handler) audit(c echo.Context, action, docID string, rev int) {
	if h.d.Audit == nil {
		return
	}
	_ = h.d.Audit.WriteAudit(persistlog.AuditEntry{
		Actor:      owner(c),
		Action:     action,
		DocumentID: docID,
		Revision:   rev,
	})
}

// readDocument decodes and schema-checks the request body, then makes sure
// it loads into a circuit.
func readDocument(c echo.Context) (document.CircuitV1, error) {
	b, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return document.CircuitV1{}, badRequest("read body", err)
	}
	doc, err := document.Decode(b)
	if err != nil {
		return document.CircuitV1{}, fromErr(err)
	}
	scratch, err := circuit.New(circuit.Config{FrameRateHz: 1})
	if err != nil {
		return document.CircuitV1{}, err
	}
	if err := scratch.Import(doc); err != nil {
		return document.CircuitV1{}, fromErr(err)
	}
	return doc, nil
}

// onCircuit runs fn on the simulation goroutine.
func (h *Handler) onCircuit(c echo.Context, fn func(*circuit.Circuit)) error {
	if h.d.Circuit == nil {
		return newError(http.StatusServiceUnavailable, protocol.ErrBusy, "no live circuit", nil)
	}
	if err := h.d.Circuit.Do(c.Request().Context(), fn); err != nil {
		return newError(http.StatusServiceUnavailable, protocol.ErrBusy, "circuit did not respond", err)
	}
	return nil
}

func queryUint(c echo.Context, name string, def uint64) (uint64, error) {
	v := c.QueryParam(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, badRequest("invalid "+name, err)
	}
	return n, nil
}
