// Package json wraps sonic for the hot JSON paths of the service.
// sonic is used on amd64/arm64; other platforms fall back to encoding/json.
package json

import (
	stdjson "encoding/json"
	"io"
	"runtime"

	"github.com/bytedance/sonic"
)

// RawMessage is re-exported so callers can defer decoding without importing encoding/json.
type RawMessage = stdjson.RawMessage

var (
	// Marshal encodes v into JSON bytes.
	Marshal func(v interface{}) ([]byte, error)

	// Unmarshal decodes JSON bytes into v.
	Unmarshal func(data []byte, v interface{}) error

	// NewEncoder creates a new JSON encoder for the writer.
	// Each Encode call writes one value followed by a newline.
	NewEncoder func(w io.Writer) Encoder

	// NewDecoder creates a new JSON decoder for the reader.
	NewDecoder func(r io.Reader) Decoder

	usingSonic bool
)

// Encoder is a JSON encoder interface.
type Encoder interface {
	Encode(v interface{}) error
}

// Decoder is a JSON decoder interface.
type Decoder interface {
	Decode(v interface{}) error
}

func init() {
	if runtime.GOARCH == "amd64" || runtime.GOARCH == "arm64" {
		useSonic(sonic.ConfigStd)
		return
	}

	Marshal = stdjson.Marshal
	Unmarshal = stdjson.Unmarshal
	NewEncoder = func(w io.Writer) Encoder {
		return stdjson.NewEncoder(w)
	}
	NewDecoder = func(r io.Reader) Decoder {
		return stdjson.NewDecoder(r)
	}
	usingSonic = false
}

// useSonic binds the package functions to the given sonic API.
// ConfigStd keeps encoding/json compatible output (sorted map keys, HTML escaping),
// which the NDJSON stream and the buffered response both rely on.
func useSonic(api sonic.API) {
	Marshal = api.Marshal
	Unmarshal = api.Unmarshal
	NewEncoder = func(w io.Writer) Encoder {
		return api.NewEncoder(w)
	}
	NewDecoder = func(r io.Reader) Decoder {
		return api.NewDecoder(r)
	}
	usingSonic = true
}

// Valid reports whether data is a valid JSON encoding.
func Valid(data []byte) bool {
	if usingSonic {
		return sonic.Valid(data)
	}
	return stdjson.Valid(data)
}

// IsUsingSonic returns true if sonic is being used for JSON operations.
func IsUsingSonic() bool {
	return usingSonic
}
