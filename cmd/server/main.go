package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"pixelcircuits.dev/internal/persistence/document"
	persistlog "pixelcircuits.dev/internal/persistence/log"
	"pixelcircuits.dev/internal/persistence/snapshot"
	"pixelcircuits.dev/internal/persistence/store"
	"pixelcircuits.dev/internal/sim/circuit"
	"pixelcircuits.dev/internal/sim/tuning"
	"pixelcircuits.dev/internal/transport/httpapi"
	"pixelcircuits.dev/internal/transport/ws"
)

var version = "dev"

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		circuitID  = flag.String("circuit", "circuit_1", "live circuit id")
		configDir  = flag.String("configs", "./configs", "config directory")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		dbPath     = flag.String("db", "", "sqlite path (default: <data>/pixelcircuits.sqlite)")
		disableDB  = flag.Bool("disable_db", false, "disable frame/snapshot indexing (documents are always stored)")

		snapPath   = flag.String("snapshot", "", "path to snapshot to load (optional)")
		loadLatest = flag.Bool("load_latest_snapshot", true, "load latest snapshot from data dir if present (when -snapshot is empty)")
		docPath    = flag.String("doc", "", "circuit document to load when no snapshot is resumed (optional)")

		enableAdmin = flag.Bool("enable_admin", envBool("PC_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP()), "serve local-only /admin/v1 endpoints")
		enablePprof = flag.Bool("enable_pprof", envBool("PC_ENABLE_PPROF_HTTP", false), "serve /debug/pprof")
		requestLog  = flag.Bool("request_log", false, "log every http request")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	circuitDir := filepath.Join(*dataDir, "circuits", *circuitID)
	_ = os.MkdirAll(circuitDir, 0o755)

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}

	snapshotToLoad := strings.TrimSpace(*snapPath)
	if snapshotToLoad == "" && *loadLatest {
		snapshotToLoad = latestSnapshot(circuitDir)
	}

	tune, tuneErr := tuning.Load(tp)
	if tuneErr != nil {
		if !os.IsNotExist(tuneErr) {
			logger.Fatalf("load tuning: %v", tuneErr)
		}
		logger.Printf("tuning not found (%s); using defaults", tp)
		tune = tuning.Defaults()
	}
	pal, err := tune.WirePalette()
	if err != nil {
		logger.Fatalf("tuning palette: %v", err)
	}

	dbp := strings.TrimSpace(*dbPath)
	if dbp == "" {
		dbp = filepath.Join(*dataDir, "pixelcircuits.sqlite")
	}
	st, err := store.Open(dbp)
	if err != nil {
		logger.Fatalf("open store: %v", err)
	}
	defer st.Close()

	c, err := circuit.New(circuit.Config{
		ID:                  *circuitID,
		FrameRateHz:         tune.FrameRateHz,
		Palette:             pal,
		SnapshotEveryFrames: tune.SnapshotEveryFrames,
		SettleMaxPasses:     tune.SettleMaxPasses,
		ClockPeriodTicks:    tune.ClockPeriodTicks,
	})
	if err != nil {
		logger.Fatalf("circuit: %v", err)
	}

	switch {
	case snapshotToLoad != "":
		snap, err := snapshot.ReadSnapshot(snapshotToLoad)
		if err != nil {
			logger.Fatalf("read snapshot: %v", err)
		}
		if snap.Header.CircuitID != "" && snap.Header.CircuitID != *circuitID {
			logger.Fatalf("snapshot circuit id mismatch: flag=%s snap=%s", *circuitID, snap.Header.CircuitID)
		}
		if err := c.ImportSnapshot(snap); err != nil {
			logger.Fatalf("import snapshot: %v", err)
		}
		logger.Printf("resumed from snapshot=%s frame=%d", filepath.Base(snapshotToLoad), c.CurrentFrame())
	case strings.TrimSpace(*docPath) != "":
		raw, err := os.ReadFile(*docPath)
		if err != nil {
			logger.Fatalf("read document: %v", err)
		}
		doc, err := document.Decode(raw)
		if err != nil {
			logger.Fatalf("decode document: %v", err)
		}
		if err := c.Import(doc); err != nil {
			logger.Fatalf("import document: %v", err)
		}
		logger.Printf("loaded document=%s objects=%d", filepath.Base(*docPath), len(doc.Objects))
	}

	ctx, cancel := signalContext()
	defer cancel()

	frameLog := persistlog.NewFrameLogger(circuitDir)
	auditLog := persistlog.NewAuditLogger(*dataDir)
	defer frameLog.Close()
	defer auditLog.Close()

	var idx *store.FrameIndex
	if !*disableDB {
		idx = st.FrameIndex(*circuitID)
	}
	c.SetFrameLogger(multiFrameLogger{a: frameLog, b: idx})

	writeSnapshot := func(snap snapshot.SnapshotV1) (string, error) {
		path := filepath.Join(circuitDir, "snapshots", fmt.Sprintf("%d.snap.zst", snap.Header.Frame))
		if err := snapshot.WriteSnapshot(path, snap); err != nil {
			return "", err
		}
		if !*disableDB {
			st.RecordSnapshot(path, snap)
		}
		return path, nil
	}

	// Snapshot writer.
	snapCh := make(chan snapshot.SnapshotV1, 2)
	c.SetSnapshotSink(snapCh)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case snap := <-snapCh:
				if _, err := writeSnapshot(snap); err != nil {
					logger.Printf("snapshot write: %v", err)
				}
			}
		}
	}()

	go func() {
		if err := c.Run(ctx); err != nil && err != context.Canceled {
			logger.Printf("circuit stopped: %v", err)
		}
	}()

	if !*enableAdmin {
		logger.Printf("admin endpoints disabled (PC_ENABLE_ADMIN_HTTP=false)")
	}
	e := httpapi.New(httpapi.Deps{
		Circuit:        c,
		Store:          st,
		Audit:          auditLog,
		SaveSnapshot:   writeSnapshot,
		WS:             ws.NewServer(c, logger, tune.MaxClientQueue).Handler(),
		Logger:         logger,
		Version:        version,
		EnableAdmin:    *enableAdmin,
		RequestLogging: *requestLog,
	})

	var handler http.Handler = e
	if *enablePprof {
		mux := http.NewServeMux()
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
		mux.Handle("/", e)
		handler = mux
	} else {
		logger.Printf("pprof endpoints disabled (PC_ENABLE_PPROF_HTTP=false)")
	}

	srv := &http.Server{
		Addr:              *addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s circuit=%s frame_rate=%dHz", *addr, *circuitID, tune.FrameRateHz)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func latestSnapshot(circuitDir string) string {
	dir := filepath.Join(circuitDir, "snapshots")
	ents, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	var best string
	var bestFrame uint64
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, ".snap.zst") {
			continue
		}
		frame, err := strconv.ParseUint(strings.TrimSuffix(name, ".snap.zst"), 10, 64)
		if err != nil {
			continue
		}
		if best == "" || frame > bestFrame {
			bestFrame = frame
			best = filepath.Join(dir, name)
		}
	}
	return best
}

func defaultEnableAdminHTTP() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DEPLOY_ENV"))) {
	case "staging", "production":
		return false
	default:
		return true
	}
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

type multiFrameLogger struct {
	a circuit.FrameLogger
	b *store.FrameIndex
}

func (m multiFrameLogger) WriteFrame(entry circuit.FrameLogEntry) error {
	if m.a != nil {
		_ = m.a.WriteFrame(entry)
	}
	if m.b != nil {
		_ = m.b.WriteFrame(entry)
	}
	return nil
}
