package graph

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
)

// WriteSnapshot writes g to w as zstd-compressed wire JSON.
func WriteSnapshot(w io.Writer, g *Graph) error {
	enc, err := zstd.NewWriter(w)
	if err != nil {
		return fmt.Errorf("create zstd writer: %w", err)
	}
	if err := json.NewEncoder(enc).Encode(g); err != nil {
		_ = enc.Close()
		return fmt.Errorf("encode graph snapshot: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("flush graph snapshot: %w", err)
	}
	return nil
}

// ReadSnapshot reads a graph written by WriteSnapshot.
func ReadSnapshot(r io.Reader) (*Graph, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("create zstd reader: %w", err)
	}
	defer dec.Close()

	data, err := io.ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("read graph snapshot: %w", err)
	}
	g := &Graph{}
	if err := json.Unmarshal(data, g); err != nil {
		return nil, fmt.Errorf("decode graph snapshot: %w", err)
	}
	return g, nil
}
