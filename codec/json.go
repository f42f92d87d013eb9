package codec

import (
	"encoding/json"
)

// JSON is the standard-library JSON codec.
//
// Checkpoint snapshots hold coefficient vectors and tracker maps, for
// which JSON is stable and portable. Implement Codec for custom
// encodings (e.g. protobuf/msgpack) and set it where supported.
type JSON struct{}

// Marshal encodes the value to JSON.
func (JSON) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

// Unmarshal decodes the JSON data into v.
func (JSON) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// Name returns the unique name of the codec ("json").
func (JSON) Name() string { return "json" }

// Default is the default codec used for checkpoint snapshots. Persisted
// snapshots are self-describing (they store the codec name in their
// header) and are opened by selecting the codec by name.
var Default Codec = JSON{}
