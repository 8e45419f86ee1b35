package common

import (
	"bytes"
	"fmt"
	"io"

	"github.com/ulikunitz/xz"
)

// CompressData xz-compresses data.
func CompressData(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := xz.NewWriter(&buf)
	if err != nil {
		return nil, fmt.Errorf("xz.NewWriter failed: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("xz write failed: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("xz close failed: %w", err)
	}
	return buf.Bytes(), nil
}

func DecompressData(data []byte) ([]byte, error) {
	r, err := xz.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("xz.NewReader failed: %w", err)
	}
	return io.ReadAll(r)
}
