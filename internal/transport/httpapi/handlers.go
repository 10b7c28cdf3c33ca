package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"pixelcircuits.dev/internal/persistence/document"
	"pixelcircuits.dev/internal/persistence/snapshot"
	"pixelcircuits.dev/internal/persistence/store"
	"pixelcircuits.dev/internal/protocol"
	"pixelcircuits.dev/internal/sim/circuit"
)

func (h *Handler) HandleHealth(c echo.Context) error {
	if h.d.Store != nil {
		if err := h.d.Store.Ping(); err != nil {
			return newError(http.StatusServiceUnavailable, protocol.ErrInternal, "store unavailable", err)
		}
	}
	return c.String(http.StatusOK, "ok")
}

type registerRequest struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

func (h *Handler) HandleRegister(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid body", err)
	}
	ctx := c.Request().Context()
	if err := h.d.Store.Register(ctx, req.Name, req.Password); err != nil {
		if apiErr := fromErr(err); apiErr.Status != http.StatusInternalServerError {
			return apiErr
		}
		return badRequest("cannot register owner", err)
	}
	name, err := h.d.Store.Authenticate(ctx, req.Name, req.Password)
	if err != nil {
		return fromErr(err)
	}
	c.Set(ownerKey, name)
	h.audit(c, "owner.register", "", 0)
	return c.JSON(http.StatusCreated, map[string]string{"owner": name})
}

func (h *Handler) HandleSession(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"owner": owner(c)})
}

func (h *Handler) HandleListDocuments(c echo.Context) error {
	docs, err := h.d.Store.ListDocuments(c.Request().Context(), owner(c), c.Param("owner"))
	if err != nil {
		return fromErr(err)
	}
	return c.JSON(http.StatusOK, docs)
}

func (h *Handler) HandleCreateDocument(c echo.Context) error {
	doc, err := readDocument(c)
	if err != nil {
		return err
	}
	d, err := h.d.Store.CreateDocument(c.Request().Context(), owner(c), doc)
	if err != nil {
		return fromErr(err)
	}
	h.audit(c, "document.create", d.ID, d.Info.Revision)
	return c.JSON(http.StatusCreated, d)
}

func (h *Handler) HandleGetDocument(c echo.Context) error {
	d, err := h.d.Store.GetDocument(c.Request().Context(), owner(c), c.Param("id"))
	if err != nil {
		return fromErr(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) HandleUpdateDocument(c echo.Context) error {
	doc, err := readDocument(c)
	if err != nil {
		return err
	}
	d, err := h.d.Store.UpdateDocument(c.Request().Context(), owner(c), c.Param("id"), doc)
	if err != nil {
		return fromErr(err)
	}
	h.audit(c, "document.update", d.ID, d.Info.Revision)
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) HandleDeleteDocument(c echo.Context) error {
	id := c.Param("id")
	if err := h.d.Store.DeleteDocument(c.Request().Context(), owner(c), id); err != nil {
		return fromErr(err)
	}
	h.audit(c, "document.delete", id, 0)
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) HandleForkDocument(c echo.Context) error {
	d, err := h.d.Store.ForkDocument(c.Request().Context(), owner(c), c.Param("id"))
	if err != nil {
		return fromErr(err)
	}
	h.audit(c, "document.fork", d.ID, d.Info.Revision)
	return c.JSON(http.StatusCreated, d)
}

// HandleLoadDocument replaces the live circuit with a stored document.
func (h *Handler) HandleLoadDocument(c echo.Context) error {
	d, err := h.d.Store.GetDocument(c.Request().Context(), owner(c), c.Param("id"))
	if err != nil {
		return fromErr(err)
	}
	var (
		importErr error
		frame     protocol.FrameMsg
	)
	if err := h.onCircuit(c, func(cc *circuit.Circuit) {
		if importErr = cc.ImportRecorded(restClient(c), d.Body); importErr == nil {
			frame = cc.FrameMsg()
		}
	}); err != nil {
		return err
	}
	if importErr != nil {
		return fromErr(importErr)
	}
	h.audit(c, "circuit.load", d.ID, d.Info.Revision)
	return c.JSON(http.StatusOK, frame)
}

func (h *Handler) HandleExportCircuit(c echo.Context) error {
	var doc document.CircuitV1
	if err := h.onCircuit(c, func(cc *circuit.Circuit) { doc = cc.Export() }); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, doc)
}

// HandleSaveCircuit stores the live circuit as a new document.
func (h *Handler) HandleSaveCircuit(c echo.Context) error {
	var doc document.CircuitV1
	if err := h.onCircuit(c, func(cc *circuit.Circuit) { doc = cc.Export() }); err != nil {
		return err
	}
	if title := c.QueryParam("title"); title != "" {
		doc.Info.Title = title
	}
	d, err := h.d.Store.CreateDocument(c.Request().Context(), owner(c), doc)
	if err != nil {
		return fromErr(err)
	}
	h.audit(c, "circuit.save", d.ID, d.Info.Revision)
	return c.JSON(http.StatusCreated, d)
}

func (h *Handler) HandleCurrentFrame(c echo.Context) error {
	var frame protocol.FrameMsg
	if err := h.onCircuit(c, func(cc *circuit.Circuit) { frame = cc.FrameMsg() }); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, frame)
}

func (h *Handler) HandleFrames(c echo.Context) error {
	from, err := queryUint(c, "from", 0)
	if err != nil {
		return err
	}
	limit, err := queryUint(c, "limit", 100)
	if err != nil {
		return err
	}
	id := ""
	if h.d.Circuit != nil {
		id = h.d.Circuit.ID()
	}
	rows, err := h.d.Store.Frames(c.Request().Context(), id, from, int(limit))
	if err != nil {
		return fromErr(err)
	}
	return c.JSON(http.StatusOK, rows)
}

// HandleAct applies one ACT synchronously and answers with its ACK.
func (h *Handler) HandleAct(c echo.Context) error {
	var act protocol.ActMsg
	if err := c.Bind(&act); err != nil {
		return badRequest("invalid ACT", err)
	}
	if act.Op == "" {
		return badRequest("missing op", nil)
	}
	var ack protocol.AckMsg
	if err := h.onCircuit(c, func(cc *circuit.Circuit) { ack = cc.ApplyRecorded(restClient(c), act) }); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ack)
}

// restClient names REST callers in the frame log.
func restClient(c echo.Context) string {
	if o := owner(c); o != "" {
		return "rest:" + o
	}
	return "rest"
}

type adminState struct {
	CircuitID string                 `json:"circuit_id"`
	Frame     uint64                 `json:"frame"`
	Metrics   circuit.CircuitMetrics `json:"metrics"`
	Index     *store.Stats           `json:"index,omitempty"`
}

func (h *Handler) HandleAdminState(c echo.Context) error {
	st := adminState{}
	if h.d.Circuit != nil {
		st.CircuitID = h.d.Circuit.ID()
		st.Frame = h.d.Circuit.CurrentFrame()
		st.Metrics = h.d.Circuit.Metrics()
	}
	if h.d.Store != nil {
		idx := h.d.Store.Stats()
		st.Index = &idx
	}
	return c.JSON(http.StatusOK, st)
}

func (h *Handler) HandleAdminSnapshot(c echo.Context) error {
	if h.d.SaveSnapshot == nil {
		return newError(http.StatusServiceUnavailable, protocol.ErrBusy, "snapshots disabled", nil)
	}
	var snap snapshot.SnapshotV1
	if err := h.onCircuit(c, func(cc *circuit.Circuit) { snap = cc.ExportSnapshot() }); err != nil {
		return err
	}
	path, err := h.d.SaveSnapshot(snap)
	if err != nil {
		return fromErr(err)
	}
	return c.JSON(http.StatusOK, map[string]any{"ok": true, "frame": snap.Header.Frame, "path": path})
}
