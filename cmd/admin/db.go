package main

import (
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// dbCmd runs read-only queries against the server's sqlite file.
func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	dbPath := fs.String("db", "", "sqlite db path (default: <data>/pixelcircuits.sqlite)")
	circuitID := fs.String("circuit", "", "circuit id (required for snapshots/frames/acts)")
	owner := fs.String("owner", "", "owner filter (documents)")
	frame := fs.Uint64("frame", 0, "frame (acts; defaults to latest logged frame)")
	limit := fs.Int("limit", 20, "result limit")
	_ = fs.Parse(args)

	q := "snapshots"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		path = filepath.Join(*dataDir, "pixelcircuits.sqlite")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer db.Close()

	if *limit <= 0 {
		*limit = 20
	}
	needCircuit := q == "snapshots" || q == "frames" || q == "acts"
	if needCircuit && strings.TrimSpace(*circuitID) == "" {
		fmt.Fprintln(os.Stderr, "missing -circuit")
		os.Exit(2)
	}

	switch q {
	case "snapshots":
		rows, err := db.Query(`SELECT frame,path,objects,wires FROM snapshots WHERE circuit_id=? ORDER BY frame DESC LIMIT ?`, *circuitID, *limit)
		if err != nil {
			fatal("query", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Frame   uint64 `json:"frame"`
				Path    string `json:"path"`
				Objects int    `json:"objects"`
				Wires   int    `json:"wires"`
			}
			if err := rows.Scan(&r.Frame, &r.Path, &r.Objects, &r.Wires); err != nil {
				fatal("scan", err)
			}
			printJSON(r)
		}
		if err := rows.Err(); err != nil {
			fatal("rows", err)
		}

	case "frames":
		rows, err := db.Query(`SELECT frame,mode,digest,advanced,emitted,dropped,pending,acts FROM frames WHERE circuit_id=? ORDER BY frame DESC LIMIT ?`, *circuitID, *limit)
		if err != nil {
			fatal("query", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Frame    uint64 `json:"frame"`
				Mode     string `json:"mode"`
				Digest   string `json:"digest"`
				Advanced int    `json:"advanced"`
				Emitted  int    `json:"emitted"`
				Dropped  int    `json:"dropped"`
				Pending  int    `json:"pending"`
				Acts     int    `json:"acts"`
			}
			if err := rows.Scan(&r.Frame, &r.Mode, &r.Digest, &r.Advanced, &r.Emitted, &r.Dropped, &r.Pending, &r.Acts); err != nil {
				fatal("scan", err)
			}
			printJSON(r)
		}
		if err := rows.Err(); err != nil {
			fatal("rows", err)
		}

	case "acts":
		if *frame == 0 {
			lf, err := latestActFrame(db, *circuitID)
			if err != nil {
				fatal("latest frame", err)
			}
			if lf == 0 {
				fmt.Fprintln(os.Stderr, "no acts found")
				os.Exit(2)
			}
			*frame = lf
		}
		rows, err := db.Query(`SELECT seq,client_id,op,accepted,code,act_json FROM acts WHERE circuit_id=? AND frame=? ORDER BY seq LIMIT ?`, *circuitID, *frame, *limit)
		if err != nil {
			fatal("query", err)
		}
		defer rows.Close()
		for rows.Next() {
			var (
				r struct {
					Frame    uint64          `json:"frame"`
					Seq      int             `json:"seq"`
					ClientID string          `json:"client_id"`
					Op       string          `json:"op"`
					Accepted bool            `json:"accepted"`
					Code     string          `json:"code,omitempty"`
					Act      json.RawMessage `json:"act"`
				}
				accepted int
				actJSON  string
			)
			if err := rows.Scan(&r.Seq, &r.ClientID, &r.Op, &accepted, &r.Code, &actJSON); err != nil {
				fatal("scan", err)
			}
			r.Frame = *frame
			r.Accepted = accepted != 0
			r.Act = json.RawMessage(actJSON)
			printJSON(r)
		}
		if err := rows.Err(); err != nil {
			fatal("rows", err)
		}

	case "documents":
		query := `SELECT id,owner,kind,title,private,revision,forked_from,updated_at FROM documents ORDER BY updated_at DESC LIMIT ?`
		qargs := []any{*limit}
		if o := strings.ToLower(strings.TrimSpace(*owner)); o != "" {
			query = `SELECT id,owner,kind,title,private,revision,forked_from,updated_at FROM documents WHERE owner=? ORDER BY updated_at DESC LIMIT ?`
			qargs = []any{o, *limit}
		}
		rows, err := db.Query(query, qargs...)
		if err != nil {
			fatal("query", err)
		}
		defer rows.Close()
		for rows.Next() {
			var (
				r struct {
					ID         string `json:"id"`
					Owner      string `json:"owner"`
					Kind       string `json:"kind"`
					Title      string `json:"title"`
					Private    bool   `json:"private"`
					Revision   int    `json:"revision"`
					ForkedFrom string `json:"forked_from,omitempty"`
					UpdatedAt  string `json:"updated_at"`
				}
				private int
			)
			if err := rows.Scan(&r.ID, &r.Owner, &r.Kind, &r.Title, &private, &r.Revision, &r.ForkedFrom, &r.UpdatedAt); err != nil {
				fatal("scan", err)
			}
			r.Private = private != 0
			printJSON(r)
		}
		if err := rows.Err(); err != nil {
			fatal("rows", err)
		}

	default:
		fmt.Fprintln(os.Stderr, "unknown query:", q, "(want snapshots|frames|acts|documents)")
		os.Exit(2)
	}
}

func latestActFrame(db *sql.DB, circuitID string) (uint64, error) {
	var f int64
	if err := db.QueryRow(`SELECT COALESCE(MAX(frame),0) FROM acts WHERE circuit_id=?`, circuitID).Scan(&f); err != nil {
		return 0, err
	}
	if f < 0 {
		return 0, nil
	}
	return uint64(f), nil
}

func fatal(what string, err error) {
	fmt.Fprintf(os.Stderr, "%s: %v\n", what, err)
	os.Exit(1)
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
