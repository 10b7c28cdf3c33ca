package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"pixelcircuits.dev/internal/persistence/snapshot"
	"pixelcircuits.dev/internal/sim/circuit"
)

type reqKind int

const (
	reqFrame reqKind = iota + 1
	reqSnapshot
)

type req struct {
	kind reqKind

	circuitID string
	frame     circuit.FrameLogEntry
	snapshot  snapshotRow
}

type snapshotRow struct {
	Frame   uint64
	Path    string
	Objects int
	Wires   int
}

// FrameRow is one indexed frame.
type FrameRow struct {
	Frame    uint64 `json:"frame"`
	Mode     string `json:"mode"`
	Digest   string `json:"digest"`
	Advanced int    `json:"advanced"`
	Emitted  int    `json:"emitted"`
	Dropped  int    `json:"dropped"`
	Pending  int    `json:"pending"`
	Acts     int    `json:"acts"`
}

type Stats struct {
	QueueDepth        int    `json:"queue_depth"`
	QueueCapacity     int    `json:"queue_capacity"`
	DropFrameTotal    uint64 `json:"drop_frame_total"`
	DropSnapshotTotal uint64 `json:"drop_snapshot_total"`
}

func (s *SQLite) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:        len(s.ch),
		QueueCapacity:     cap(s.ch),
		DropFrameTotal:    s.dropFrames.Load(),
		DropSnapshotTotal: s.dropSnapshots.Load(),
	}
}

// FrameIndex binds the indexer to one circuit so it can be installed as the
// circuit's frame logger.
type FrameIndex struct {
	s         *SQLite
	circuitID string
}

func (s *SQLite) FrameIndex(circuitID string) *FrameIndex {
	return &FrameIndex{s: s, circuitID: circuitID}
}

// WriteFrame queues entry for indexing. It never blocks; entries are
// dropped when the indexer falls behind.
func (f *FrameIndex) WriteFrame(entry circuit.FrameLogEntry) error {
	s := f.s
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqFrame, circuitID: f.circuitID, frame: entry}:
	default:
		s.dropFrames.Add(1)
	}
	return nil
}

func (s *SQLite) RecordSnapshot(path string, snap snapshot.SnapshotV1) {
	if s == nil || s.closed.Load() {
		return
	}
	wires := 0
	for _, cells := range snap.Document.Wires {
		wires += len(cells)
	}
	r := snapshotRow{
		Frame:   snap.Header.Frame,
		Path:    path,
		Objects: len(snap.Document.Objects),
		Wires:   wires,
	}
	select {
	case s.ch <- req{kind: reqSnapshot, circuitID: snap.Header.CircuitID, snapshot: r}:
	default:
		s.dropSnapshots.Add(1)
	}
}

// Frames returns up to limit indexed frames of circuitID starting at from.
func (s *SQLite) Frames(ctx context.Context, circuitID string, from uint64, limit int) ([]FrameRow, error) {
	if limit <= 0 || limit > 1000 {
		limit = 1000
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT frame, mode, digest, advanced, emitted, dropped, pending, acts
		 FROM frames WHERE circuit_id=? AND frame>=? ORDER BY frame LIMIT ?`,
		circuitID, int64(from), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []FrameRow{}
	for rows.Next() {
		var r FrameRow
		var frame int64
		if err := rows.Scan(&frame, &r.Mode, &r.Digest, &r.Advanced, &r.Emitted, &r.Dropped, &r.Pending, &r.Acts); err != nil {
			return nil, err
		}
		r.Frame = uint64(frame)
		out = append(out, r)
	}
	return out, rows.Err()
}

// LatestSnapshot returns the path of the newest indexed snapshot.
func (s *SQLite) LatestSnapshot(ctx context.Context, circuitID string) (string, uint64, error) {
	var (
		path  string
		frame int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT path, frame FROM snapshots WHERE circuit_id=? ORDER BY frame DESC LIMIT 1`, circuitID).
		Scan(&path, &frame)
	if errors.Is(err, sql.ErrNoRows) {
		return "", 0, ErrNotFound
	}
	if err != nil {
		return "", 0, err
	}
	return path, uint64(frame), nil
}

func (s *SQLite) loop() {
	ctx := context.Background()

	insertFrame, _ := s.db.Prepare(`INSERT OR REPLACE INTO frames(circuit_id,frame,mode,digest,advanced,emitted,dropped,pending,acts) VALUES(?,?,?,?,?,?,?,?,?)`)
	insertAct, _ := s.db.Prepare(`INSERT OR REPLACE INTO acts(circuit_id,frame,seq,client_id,op,accepted,code,act_json) VALUES(?,?,?,?,?,?,?,?)`)
	insertSnapshot, _ := s.db.Prepare(`INSERT OR REPLACE INTO snapshots(circuit_id,frame,path,objects,wires) VALUES(?,?,?,?,?)`)
	defer func() {
		for _, st := range []*sql.Stmt{insertFrame, insertAct, insertSnapshot} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 2000
		commitMaxWait = 2 * time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}

	// The connection is shared with document queries, so the batch is
	// committed as soon as the queue runs dry.
	flushIfNeeded := func() {
		if tx == nil {
			return
		}
		if len(s.ch) == 0 || opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}

	for r := range s.ch {
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqFrame:
			f := r.frame
			if insertFrame != nil {
				if _, err := tx.Stmt(insertFrame).Exec(
					r.circuitID,
					int64(f.Frame),
					f.Mode,
					f.Digest,
					f.Advanced,
					f.Emitted,
					f.Dropped,
					f.Pending,
					len(f.Acts),
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}
			for i, a := range f.Acts {
				if insertAct == nil {
					break
				}
				actJSON, _ := json.Marshal(a.Act)
				if _, err := tx.Stmt(insertAct).Exec(r.circuitID, int64(f.Frame), i, a.ClientID, a.Act.Op, boolInt(a.Accepted), a.Code, string(actJSON)); err != nil {
					rollback()
					break
				}
				opCount++
			}

		case reqSnapshot:
			sn := r.snapshot
			if insertSnapshot != nil {
				if _, err := tx.Stmt(insertSnapshot).Exec(r.circuitID, int64(sn.Frame), sn.Path, sn.Objects, sn.Wires); err != nil {
					rollback()
					continue
				}
				opCount++
			}
		}
		flushIfNeeded()
	}

	commit()
}
