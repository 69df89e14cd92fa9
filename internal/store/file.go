package store

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"taixiu/internal/game"
)

var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// FileStore keeps the snapshot in a single JSON file, optionally zstd compressed. Writes
// go to a temp file that is renamed over the target, so a crash never leaves a torn file.
type FileStore struct {
	path     string
	compress bool
}

func NewFileStore(path string, compress bool) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("empty data path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return &FileStore{path: path, compress: compress}, nil
}

func (s *FileStore) Load(_ context.Context) (game.Snapshot, error) {
	raw, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return game.Snapshot{}, ErrNoSnapshot
	}
	if err != nil {
		return game.Snapshot{}, err
	}
	if bytes.HasPrefix(raw, zstdMagic) {
		dec, err := zstd.NewReader(bytes.NewReader(raw))
		if err != nil {
			return game.Snapshot{}, err
		}
		defer dec.Close()
		if raw, err = io.ReadAll(dec); err != nil {
			return game.Snapshot{}, fmt.Errorf("zstd decode: %w", err)
		}
	}
	return decode(raw)
}

func (s *FileStore) Save(_ context.Context, snap game.Snapshot) error {
	body, err := encode(snap)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := s.write(tmp, body); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

func (s *FileStore) write(w io.Writer, body []byte) error {
	if !s.compress {
		_, err := w.Write(body)
		return err
	}
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	if _, err := enc.Write(body); err != nil {
		enc.Close()
		return err
	}
	return enc.Close()
}

func (s *FileStore) Close() error { return nil }
