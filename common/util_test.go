package common

import (
	"bytes"
	"testing"
)

func TestDataCompression(t *testing.T) {
	data := "message"
	compressedData, err := CompressData([]byte(data))
	if err != nil {
		t.Fatal(err)
	}

	decompressedData, err := DecompressData(compressedData)
	if err != nil {
		t.Fatal(err)
	}

	if string(decompressedData) != data {
		t.Fatalf("decompressed: %s, expected: %s", decompressedData, data)
	}
}

func TestDecompressRejectsGarbage(t *testing.T) {
	if _, err := DecompressData([]byte("not xz")); err == nil {
		t.Fatal("expected error for non-xz input")
	}
}

func TestCompressionShrinksRepetitiveData(t *testing.T) {
	data := bytes.Repeat([]byte("signature"), 1000)
	compressedData, err := CompressData(data)
	if err != nil {
		t.Fatal(err)
	}
	if len(compressedData) >= len(data) {
		t.Fatalf("compressed size %d not smaller than %d", len(compressedData), len(data))
	}
}
