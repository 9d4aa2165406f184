package index

import "encoding/json"

// Dependency is one entry in a Record's deps list, in the shape persisted
// to the index -- already normalized from the publish envelope's
// dependency-publish shape (see pkg/registry/cratesio/publish).
type Dependency struct {
	Name            string          `json:"name"`
	Req             string          `json:"req"`
	Features        []string        `json:"features"`
	Optional        bool            `json:"optional"`
	DefaultFeatures bool            `json:"default_features"`
	Target          json.RawMessage `json:"target"`
	Kind            string          `json:"kind"`
	Registry        json.RawMessage `json:"registry"`
	Package         json.RawMessage `json:"package"`
}

// Record is a single published crate version, persisted as one JSON
// line in the crate's index file. Field order matches the wire format
// exactly (see S1 in the testable properties).
type Record struct {
	Name     string          `json:"name"`
	Vers     string          `json:"vers"`
	Deps     []Dependency    `json:"deps"`
	Cksum    string          `json:"cksum"`
	Features json.RawMessage `json:"features"`
	Yanked   bool            `json:"yanked"`
	Links    json.RawMessage `json:"links"`
}
