package backup

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// FormatVersion is the archive layout written by Write.
const FormatVersion = 1

// MaxDecompressedSize bounds the payload of an archive (1GB).
const MaxDecompressedSize = 1 << 30

// ErrChecksum is returned when an archive's payload does not match its header.
var ErrChecksum = errors.New("backup checksum mismatch")

// Header is the plain-text first line of an archive. It can be read without
// decompressing the payload.
type Header struct {
	Version    int       `json:"version"`
	CreatedAt  time.Time `json:"created_at"`
	Checksum   string    `json:"checksum"`
	BatchCount int       `json:"batch_count"`
	RunCount   int       `json:"run_count"`
}

// Write stores a as a header line followed by the gzip-compressed JSON payload.
func Write(path string, a *Archive) error {
	payload, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshaling payload: %w", err)
	}

	var compressed bytes.Buffer
	gzw := gzip.NewWriter(&compressed)
	if _, err := gzw.Write(payload); err != nil {
		return fmt.Errorf("compressing payload: %w", err)
	}
	if err := gzw.Close(); err != nil {
		return fmt.Errorf("closing gzip writer: %w", err)
	}

	header, err := json.Marshal(Header{
		Version:    FormatVersion,
		CreatedAt:  a.CreatedAt,
		Checksum:   checksum(compressed.Bytes()),
		BatchCount: len(a.Batches),
		RunCount:   a.RunCount(),
	})
	if err != nil {
		return fmt.Errorf("marshaling header: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("creating file: %w", err)
	}
	w := bufio.NewWriter(f)
	w.Write(header)
	w.WriteByte('\n')
	w.Write(compressed.Bytes())
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	return f.Close()
}

func checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(sum[:])
}

// open reads the header and the raw compressed payload of path.
func open(path string) (*Header, []byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	header, err := readHeader(r)
	if err != nil {
		return nil, nil, err
	}
	payload, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, fmt.Errorf("reading payload: %w", err)
	}
	if got := checksum(payload); got != header.Checksum {
		return nil, nil, fmt.Errorf("%w: expected %s, got %s", ErrChecksum, header.Checksum, got)
	}
	return header, payload, nil
}

func readHeader(r *bufio.Reader) (*Header, error) {
	line, err := r.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("reading header line: %w", err)
	}
	var header Header
	if err := json.Unmarshal(bytes.TrimSpace(line), &header); err != nil {
		return nil, fmt.Errorf("not a rabbitsim backup: %w", err)
	}
	if header.Version != FormatVersion {
		return nil, fmt.Errorf("unsupported backup version %d", header.Version)
	}
	return &header, nil
}

// ReadHeader reads only the header line of an archive.
func ReadHeader(path string) (*Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()
	return readHeader(bufio.NewReader(f))
}

// Verify checks an archive's checksum without decompressing it.
func Verify(path string) (*Header, error) {
	header, _, err := open(path)
	return header, err
}

// Read verifies and decodes an archive.
func Read(path string) (*Archive, error) {
	_, payload, err := open(path)
	if err != nil {
		return nil, err
	}

	gzr, err := gzip.NewReader(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating gzip reader: %w", err)
	}
	defer gzr.Close()

	data, err := io.ReadAll(io.LimitReader(gzr, MaxDecompressedSize+1))
	if err != nil {
		return nil, fmt.Errorf("decompressing payload: %w", err)
	}
	if len(data) > MaxDecompressedSize {
		return nil, fmt.Errorf("decompressed payload exceeds %d bytes", MaxDecompressedSize)
	}

	var a Archive
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("parsing backup data: %w", err)
	}
	return &a, nil
}
