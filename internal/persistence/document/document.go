// Package document is the on-disk and over-the-wire circuit format.
package document

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const Version = 1

var (
	ErrVersion   = errors.New("unsupported document version")
	ErrMalformed = errors.New("malformed document")
)

//go:embed schema.json
var schemaJSON string

type CircuitV1 struct {
	Version int        `json:"version"`
	Info    InfoV1     `json:"info"`
	Objects []ObjectV1 `json:"objects"`
	Palette []PairV1   `json:"palette"`
	// Wire cells keyed by palette index.
	Wires map[int][][2]int `json:"wires"`
}

type InfoV1 struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Kind        string `json:"kind"`
	Private     bool   `json:"private,omitempty"`
	Revision    int    `json:"revision,omitempty"`
	ForkedFrom  string `json:"forked_from,omitempty"`
}

type ObjectV1 struct {
	ID       uint64      `json:"id"`
	Kind     string      `json:"kind"`
	Pos      [2]int      `json:"pos"`
	Dim      [2]int      `json:"dim"`
	Rot      int         `json:"rot,omitempty"`
	Settings *SettingsV1 `json:"settings,omitempty"`
	Nodes    []NodeV1    `json:"nodes,omitempty"`
}

type SettingsV1 struct {
	DefaultOn   *bool `json:"default_on,omitempty"`
	PeriodTicks int   `json:"period_ticks,omitempty"`
}

// NodeV1 is informational: nodes are rebuilt from the kind on load and the
// stored entries are only checked for consistency.
type NodeV1 struct {
	Pos       [2]int `json:"pos"`
	Side      string `json:"side"`
	Slot      int    `json:"slot"`
	Direction string `json:"direction"`
	Accepts   string `json:"accepts"`
	Disabled  bool   `json:"disabled,omitempty"`
	Label     string `json:"label,omitempty"`
}

type PairV1 struct {
	Inactive string `json:"inactive"`
	Active   string `json:"active"`
}

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiled() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = jsonschema.CompileString("circuit.schema.json", schemaJSON)
	})
	return schema, schemaErr
}

// Encode writes doc as indented JSON.
func Encode(doc CircuitV1) ([]byte, error) {
	if doc.Version == 0 {
		doc.Version = Version
	}
	if doc.Wires == nil {
		doc.Wires = map[int][][2]int{}
	}
	if doc.Objects == nil {
		doc.Objects = []ObjectV1{}
	}
	return json.MarshalIndent(doc, "", "  ")
}

// Decode parses and validates a document. Errors wrap ErrVersion or
// ErrMalformed.
func Decode(b []byte) (CircuitV1, error) {
	var doc CircuitV1

	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return doc, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	top, ok := raw.(map[string]any)
	if !ok {
		return doc, fmt.Errorf("%w: top level is not an object", ErrMalformed)
	}
	if v, ok := top["version"].(float64); ok && int(v) != Version {
		return doc, fmt.Errorf("%w: %v", ErrVersion, v)
	}

	s, err := compiled()
	if err != nil {
		return doc, fmt.Errorf("compile schema: %w", err)
	}
	if err := s.Validate(raw); err != nil {
		return doc, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	dec := json.NewDecoder(bytes.NewReader(b))
	if err := dec.Decode(&doc); err != nil {
		return doc, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return doc, nil
}
