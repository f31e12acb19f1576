package model

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"hash/crc32"
	"io/fs"
	"os"
	"path/filepath"

	apperrors "github.com/Adithya-Monish-Kumar-K/home-loan-approval/pkg/errors"
)

// Artifact layout: 4-byte magic, 8-byte payload length, JSON payload,
// 4-byte CRC-32 of the payload. All integers are little endian.
const (
	MagicBytes uint32 = 0x4C414D50
	headerSize        = 12
	footerSize        = 4
)

// Save writes the pipeline to path atomically: the bytes go to a temporary
// file in the same directory, are synced, and then renamed over path. A
// reader never observes a partially written artifact.
func Save(path string, p *Pipeline) error {
	if err := p.validate(); err != nil {
		return fmt.Errorf("refusing to save pipeline: %w", err)
	}
	payload, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshaling pipeline: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating artifact directory: %w", err)
	}
	f, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp artifact file: %w", err)
	}
	tmpPath := f.Name()
	defer os.Remove(tmpPath)
	defer f.Close()

	header := make([]byte, headerSize)
	binary.LittleEndian.PutUint32(header[0:4], MagicBytes)
	binary.LittleEndian.PutUint64(header[4:12], uint64(len(payload)))
	footer := make([]byte, footerSize)
	binary.LittleEndian.PutUint32(footer, crc32.ChecksumIEEE(payload))

	for _, chunk := range [][]byte{header, payload, footer} {
		if _, err := f.Write(chunk); err != nil {
			return fmt.Errorf("writing artifact: %w", err)
		}
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("syncing artifact file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing artifact file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming artifact file: %w", err)
	}
	return nil
}

// Load reads and verifies an artifact. A missing file is reported as
// ErrModelNotLoaded; a damaged one as ErrArtifactCorrupted.
func Load(path string) (*Pipeline, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrModelNotLoaded, err)
	}
	if err != nil {
		return nil, fmt.Errorf("reading artifact: %w", err)
	}
	return Decode(data)
}

// Decode parses artifact bytes.
func Decode(data []byte) (*Pipeline, error) {
	if len(data) < headerSize+footerSize {
		return nil, fmt.Errorf("%w: %d bytes is too short", apperrors.ErrArtifactCorrupted, len(data))
	}
	if magic := binary.LittleEndian.Uint32(data[0:4]); magic != MagicBytes {
		return nil, fmt.Errorf("%w: bad magic %#x", apperrors.ErrArtifactCorrupted, magic)
	}
	size := binary.LittleEndian.Uint64(data[4:12])
	if size != uint64(len(data)-headerSize-footerSize) {
		return nil, fmt.Errorf("%w: payload length %d does not match file", apperrors.ErrArtifactCorrupted, size)
	}
	payload := data[headerSize : headerSize+int(size)]
	want := binary.LittleEndian.Uint32(data[headerSize+int(size):])
	if got := crc32.ChecksumIEEE(payload); got != want {
		return nil, fmt.Errorf("%w: checksum %#x, want %#x", apperrors.ErrArtifactCorrupted, got, want)
	}

	var p Pipeline
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrArtifactCorrupted, err)
	}
	if err := p.validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrArtifactCorrupted, err)
	}
	return &p, nil
}
