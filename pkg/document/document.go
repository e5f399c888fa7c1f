// Package document handles stored assumption documents: the envelope that
// carries a model's edited state (options) next to the payload compiled from it
// (econ_function).
package document

import (
	"bytes"
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/Masterminds/semver/v3"
	"github.com/gowebpki/jcs"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/dlovans/econsheet/pkg/econsheet"
)

var (
	// ErrEnvelope is returned when a document does not match the envelope shape.
	ErrEnvelope = errors.New("document: malformed envelope")
	// ErrIncompatible is returned when a document was saved under a schema
	// version the loaded schema cannot read.
	ErrIncompatible = errors.New("document: incompatible schema version")
	// ErrKind is returned when a document is prepared against another kind's schema.
	ErrKind = errors.New("document: kind mismatch")
)

// Document is a stored assumption.
type Document struct {
	ID            string         `json:"id,omitempty"`
	Kind          string         `json:"kind"`
	Name          string         `json:"name,omitempty"`
	SchemaVersion string         `json:"schemaVersion,omitempty"`
	Options       map[string]any `json:"options"`
	EconFunction  map[string]any `json:"econ_function,omitempty"`
	Fingerprint   string         `json:"fingerprint,omitempty"`
}

// InvalidError reports the validation issues that stopped Prepare.
type InvalidError struct {
	Issues []econsheet.Issue
}

func (e *InvalidError) Error() string {
	msgs := make([]string, 0, len(e.Issues))
	for _, is := range e.Issues {
		msgs = append(msgs, is.String())
	}
	return fmt.Sprintf("document: %d invalid field(s): %s", len(e.Issues), strings.Join(msgs, "; "))
}

//go:embed envelope.json
var envelopeJSON string

const envelopeURL = "https://econsheet.schemas.local/document.json"

var envelope = sync.OnceValues(func() (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource(envelopeURL, strings.NewReader(envelopeJSON)); err != nil {
		return nil, fmt.Errorf("envelope schema load failed: %w", err)
	}
	return c.Compile(envelopeURL)
})

// Decode parses a stored document and checks its envelope.
func Decode(data []byte) (*Document, error) {
	var raw any
	if err := json.NewDecoder(bytes.NewReader(data)).Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEnvelope, err)
	}
	schema, err := envelope()
	if err != nil {
		return nil, err
	}
	if err := schema.Validate(raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEnvelope, err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEnvelope, err)
	}
	return &doc, nil
}

// Encode writes the document as indented JSON.
func (d *Document) Encode() ([]byte, error) {
	return json.MarshalIndent(d, "", "  ")
}

// Compatible reports whether a document saved under version saved can be read
// with a schema at version current. Both must share a major version and the
// schema must not be older than the document. An unversioned side is always
// compatible.
func Compatible(saved, current string) (bool, error) {
	if saved == "" || current == "" {
		return true, nil
	}
	c, err := semver.NewConstraint("^" + saved)
	if err != nil {
		return false, fmt.Errorf("document version %q: %w", saved, err)
	}
	v, err := semver.NewVersion(current)
	if err != nil {
		return false, fmt.Errorf("schema version %q: %w", current, err)
	}
	return c.Check(v), nil
}

// PrepareOptions configures Prepare.
type PrepareOptions struct {
	Ignore econsheet.IgnoreList
	Engine []econsheet.Option
}

// Prepare gates a document for saving: it checks the kind and schema version,
// validates the options state and recompiles econ_function from it. On success
// the document carries the schema version, the derived state and a fresh
// fingerprint. A validation failure returns an *InvalidError.
func Prepare(doc *Document, schema *econsheet.Schema, opts PrepareOptions) error {
	if doc.Kind == "" {
		doc.Kind = schema.Kind
	}
	if schema.Kind != "" && doc.Kind != schema.Kind {
		return fmt.Errorf("%w: document %q, schema %q", ErrKind, doc.Kind, schema.Kind)
	}
	ok, err := Compatible(doc.SchemaVersion, schema.Version)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: saved with %s, schema is %s", ErrIncompatible, doc.SchemaVersion, schema.Version)
	}

	state := doc.Options
	if state == nil {
		state = econsheet.GenerateDefaults(schema.Fields, opts.Engine...)
	}
	state = econsheet.ApplyDerived(schema.Fields, state)
	if issues := econsheet.Validate(schema.Fields, state, opts.Engine...); len(issues) > 0 {
		return &InvalidError{Issues: issues}
	}

	econ := econsheet.Compile(schema.Fields, state, econsheet.CompileOptions{Ignore: opts.Ignore})
	fp, err := Fingerprint(econ)
	if err != nil {
		return err
	}
	doc.Options = state
	doc.EconFunction = econ
	doc.Fingerprint = fp
	if schema.Version != "" {
		doc.SchemaVersion = schema.Version
	}
	return nil
}

// Fingerprint returns the hex SHA-256 of the canonical (RFC 8785) JSON form of v.
// Two payloads that differ only in key order or number spelling share a
// fingerprint.
func Fingerprint(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("fingerprint: %w", err)
	}
	canon, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("fingerprint: %w", err)
	}
	sum := sha256.Sum256(canon)
	return hex.EncodeToString(sum[:]), nil
}

// Stale reports whether the stored econ_function no longer matches its fingerprint.
func (d *Document) Stale() bool {
	if d.Fingerprint == "" {
		return true
	}
	fp, err := Fingerprint(d.EconFunction)
	return err != nil || fp != d.Fingerprint
}
