// Package publish parses the binary publish envelope used by
// PUT /api/v1/crates/new and canonicalizes its manifest into an index
// record.
package publish

import (
	"encoding/binary"
	"encoding/json"

	"github.com/jakibaki/registmily/pkg/registry/cratesio/index"
	"github.com/pkg/errors"
)

// ErrMalformed indicates the request body did not match the envelope
// framing or its JSON did not parse -- a ClientMalformed condition.
var ErrMalformed = errors.New("publish: malformed envelope")

// Dependency is one dependency entry as it appears in the publish
// envelope, before normalization into index.Dependency.
type Dependency struct {
	Name               string          `json:"name"`
	VersionReq         string          `json:"version_req"`
	Features           []string        `json:"features"`
	Optional           bool            `json:"optional"`
	DefaultFeatures    bool            `json:"default_features"`
	Target             json.RawMessage `json:"target"`
	Kind               string          `json:"kind"`
	Registry           json.RawMessage `json:"registry"`
	ExplicitNameInToml json.RawMessage `json:"explicit_name_in_toml"`
}

// Manifest is the publish envelope's JSON payload. Only Name, Vers,
// Deps, Features, and Links survive into the index record; the rest
// are accepted and discarded.
type Manifest struct {
	Name     string          `json:"name"`
	Vers     string          `json:"vers"`
	Deps     []Dependency    `json:"deps"`
	Features json.RawMessage `json:"features"`
	Links    json.RawMessage `json:"links"`

	Authors       []string        `json:"authors"`
	Description   json.RawMessage `json:"description"`
	Documentation json.RawMessage `json:"documentation"`
	Homepage      json.RawMessage `json:"homepage"`
	Readme        json.RawMessage `json:"readme"`
	ReadmeFile    json.RawMessage `json:"readme_file"`
	Keywords      []json.RawMessage `json:"keywords"`
	Categories    []json.RawMessage `json:"categories"`
	License       json.RawMessage `json:"license"`
	LicenseFile   json.RawMessage `json:"license_file"`
	Repository    json.RawMessage `json:"repository"`
	Badges        json.RawMessage `json:"badges"`
}

// ToRecord normalizes m plus the archive checksum into the shape
// persisted to the index: version_req becomes req, explicit_name_in_toml
// becomes package, everything else passes through 1:1.
func (m Manifest) ToRecord(cksum string) index.Record {
	deps := make([]index.Dependency, len(m.Deps))
	for i, d := range m.Deps {
		deps[i] = index.Dependency{
			Name:            d.Name,
			Req:             d.VersionReq,
			Features:        d.Features,
			Optional:        d.Optional,
			DefaultFeatures: d.DefaultFeatures,
			Target:          d.Target,
			Kind:            d.Kind,
			Registry:        d.Registry,
			Package:         d.ExplicitNameInToml,
		}
	}
	if deps == nil {
		deps = []index.Dependency{}
	}
	features := m.Features
	if features == nil {
		features = json.RawMessage("{}")
	}
	return index.Record{
		Name:     m.Name,
		Vers:     m.Vers,
		Deps:     deps,
		Cksum:    cksum,
		Features: features,
		Yanked:   false,
		Links:    m.Links,
	}
}

// Envelope is a parsed publish request body: the manifest plus the raw
// archive bytes.
type Envelope struct {
	Manifest Manifest
	Archive  []byte
}

// Parse validates and decodes the length-prefixed publish envelope:
//
//	0 .. 4        json_len  (u32 LE)
//	4 .. 4+j      json_bytes
//	4+j .. 8+j    crate_len (u32 LE)
//	8+j .. 8+j+c  crate_bytes
//
// Validation runs in order: total length, json_len bound, exact total
// length (trailing bytes rejected), then JSON decode -- matching
// ErrMalformed to any failure in that chain.
func Parse(body []byte) (*Envelope, error) {
	total := len(body)
	if total < 8 {
		return nil, errors.Wrap(ErrMalformed, "body shorter than envelope header")
	}
	jsonLen := binary.LittleEndian.Uint32(body[0:4])
	if int64(jsonLen) > int64(total-8) {
		return nil, errors.Wrap(ErrMalformed, "json_len exceeds body")
	}
	jsonBytes := body[4 : 4+jsonLen]
	crateLen := binary.LittleEndian.Uint32(body[4+jsonLen : 8+jsonLen])
	if uint64(8+jsonLen)+uint64(crateLen) != uint64(total) {
		return nil, errors.Wrap(ErrMalformed, "crate_len does not match body length")
	}
	var m Manifest
	if err := json.Unmarshal(jsonBytes, &m); err != nil {
		return nil, errors.Wrap(ErrMalformed, "decoding manifest json")
	}
	archive := body[8+jsonLen : 8+jsonLen+crateLen]
	return &Envelope{Manifest: m, Archive: archive}, nil
}
