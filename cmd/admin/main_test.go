package main

import (
	"path/filepath"
	"testing"

	persistlog "pixelcircuits.dev/internal/persistence/log"
)

func TestReadAuditFilters(t *testing.T) {
	dataDir := t.TempDir()
	al := persistlog.NewAuditLogger(dataDir)
	entries := []persistlog.AuditEntry{
		{Actor: "ada", Action: "owner.register"},
		{Actor: "ada", Action: "document.create", DocumentID: "c_1", Revision: 1},
		{Actor: "bob", Action: "document.fork", DocumentID: "c_2", Revision: 1},
		{Actor: "ada", Action: "document.update", DocumentID: "c_1", Revision: 2},
		{Actor: "ada", Action: "circuit.load", DocumentID: "c_1", Revision: 2},
	}
	for _, e := range entries {
		if err := al.WriteAudit(e); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := al.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	dir := filepath.Join(dataDir, "audit")

	all, err := readAudit(dir, auditFilter{})
	if err != nil || len(all) != 5 {
		t.Fatalf("all: n=%d err=%v", len(all), err)
	}
	if all[0].Time.IsZero() {
		t.Fatalf("time not stamped")
	}

	docs, _ := readAudit(dir, auditFilter{Action: "document."})
	if len(docs) != 3 {
		t.Fatalf("document.* n=%d", len(docs))
	}
	c1, _ := readAudit(dir, auditFilter{Actor: "ada", Document: "c_1"})
	if len(c1) != 3 || c1[2].Action != "circuit.load" {
		t.Fatalf("c_1 entries=%+v", c1)
	}
	bob, _ := readAudit(dir, auditFilter{Actor: "bob", Action: "document.update"})
	if len(bob) != 0 {
		t.Fatalf("bob updates=%+v", bob)
	}
}
