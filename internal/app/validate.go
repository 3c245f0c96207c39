package app

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/hapjinhope/happiness-crm-miniapp/internal/domain"
	"github.com/hapjinhope/happiness-crm-miniapp/internal/summary"
)

//go:embed schemas/*.json
var schemaFS embed.FS

const (
	patchSchema   = "schemas/object_patch.json"
	showingSchema = "schemas/showing_request.json"
)

// Validator checks inbound JSON documents against the bundled schemas before
// they reach the store.
type Validator struct {
	patch   *jsonschema.Schema
	showing *jsonschema.Schema
}

func NewValidator() (*Validator, error) {
	c := jsonschema.NewCompiler()
	for _, name := range []string{patchSchema, showingSchema} {
		f, err := schemaFS.Open(name)
		if err != nil {
			return nil, err
		}
		err = c.AddResource(name, f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("schema %s: %w", name, err)
		}
	}
	patch, err := c.Compile(patchSchema)
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", patchSchema, err)
	}
	showing, err := c.Compile(showingSchema)
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", showingSchema, err)
	}
	return &Validator{patch: patch, showing: showing}, nil
}

// ObjectPatch parses raw as a non-empty JSON object of column updates.
func (v *Validator) ObjectPatch(raw []byte) (domain.Record, error) {
	doc, err := v.check(v.patch, raw)
	if err != nil {
		return nil, err
	}
	m, _ := domain.AsMap(doc)
	return domain.Record(m), nil
}

type ShowingRequest struct {
	ObjectID string
	Owner    any
	Client   any
	Date     string
	Time     string
	Comment  string
}

func (v *Validator) ShowingRequest(raw []byte) (ShowingRequest, error) {
	doc, err := v.check(v.showing, raw)
	if err != nil {
		return ShowingRequest{}, err
	}
	m, _ := domain.AsMap(doc)
	rec := domain.Record(m)
	sched, _ := domain.AsMap(rec["schedule"])
	return ShowingRequest{
		ObjectID: summary.Stringify(rec["object_id"]),
		Owner:    rec["owner"],
		Client:   rec["client"],
		Date:     domain.Record(sched).Str("date"),
		Time:     domain.Record(sched).Str("time"),
		Comment:  rec.Str("comment"),
	}, nil
}

func (v *Validator) check(s *jsonschema.Schema, raw []byte) (any, error) {
	doc, err := decodeJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}
	if err := s.Validate(doc); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}
	return doc, nil
}

// decodeJSON reads exactly one JSON value, keeping numbers as json.Number.
func decodeJSON(raw []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("unexpected data after JSON value")
	}
	return doc, nil
}
