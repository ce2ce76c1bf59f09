package document

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/leapstack-labs/datatree/pkg/dataset"
	"github.com/leapstack-labs/datatree/pkg/datatree"
	"gopkg.in/yaml.v3"
)

// Format is a document encoding.
type Format string

// Supported formats.
const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// FormatForPath picks a format from a file extension. Unknown extensions are YAML.
func FormatForPath(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return FormatJSON
	}
	return FormatYAML
}

// DecodeNode reads one document node. Unknown fields are rejected.
func DecodeNode(r io.Reader, format Format) (Node, error) {
	var n Node
	switch format {
	case FormatJSON:
		dec := json.NewDecoder(r)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&n); err != nil {
			return Node{}, fmt.Errorf("invalid JSON document: %w", err)
		}
	case FormatYAML, "":
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		if err := dec.Decode(&n); err != nil {
			if errors.Is(err, io.EOF) {
				return Node{}, fmt.Errorf("empty document")
			}
			return Node{}, fmt.Errorf("invalid YAML document: %w", err)
		}
	default:
		return Node{}, fmt.Errorf("unknown document format %q", format)
	}
	return n, nil
}

// Decode reads a tree document.
func Decode(r io.Reader, format Format) (*datatree.Tree, error) {
	n, err := DecodeNode(r, format)
	if err != nil {
		return nil, err
	}
	return ToTree(n)
}

// Encode writes t as a document.
func Encode(w io.Writer, t *datatree.Tree, format Format) error {
	return EncodeNode(w, FromTree(t), format)
}

// EncodeNode writes one document node.
func EncodeNode(w io.Writer, n Node, format Format) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(n); err != nil {
			return fmt.Errorf("failed to encode JSON document: %w", err)
		}
	case FormatYAML, "":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(n); err != nil {
			return fmt.Errorf("failed to encode YAML document: %w", err)
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown document format %q", format)
	}
	return nil
}

// LoadFile reads a tree document, choosing the format by extension.
func LoadFile(path string) (*datatree.Tree, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from the command line
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	t, err := Decode(bytes.NewReader(data), FormatForPath(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// WriteFile writes t to path, choosing the format by extension.
func WriteFile(path string, t *datatree.Tree) error {
	var buf bytes.Buffer
	if err := Encode(&buf, t, FormatForPath(path)); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil { //nolint:gosec // G306: documents are shared files
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// MarshalPayload encodes a dataset as compact JSON. A nil dataset yields nil.
func MarshalPayload(ds *dataset.Dataset) ([]byte, error) {
	if ds == nil {
		return nil, nil
	}
	return json.Marshal(EncodeDataset(ds))
}

// UnmarshalPayload is the inverse of MarshalPayload.
func UnmarshalPayload(data []byte) (*dataset.Dataset, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("invalid payload: %w", err)
	}
	return DecodeDataset(p)
}
