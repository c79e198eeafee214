package sqlite

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"os"
)

// sideFileSuffixes are the journal files SQLite may leave next to a database.
var sideFileSuffixes = []string{"", "-wal", "-shm", "-journal"}

const overwriteChunk = 64 * 1024

// DestroyStore overwrites the database and its side files three times
// (zeros, ones, random), syncing after each pass, then unlinks them. The
// store must be closed. Missing side files are skipped.
func DestroyStore(path string) error {
	if path == "" {
		return errors.New("sqlite path is required")
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("checking store file: %w", err)
	}

	for _, suffix := range sideFileSuffixes {
		p := path + suffix
		if _, err := os.Stat(p); os.IsNotExist(err) {
			continue
		}
		if err := shred(p); err != nil {
			return fmt.Errorf("destroying %s: %w", p, err)
		}
	}
	return nil
}

func shred(path string) error {
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return err
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return err
	}
	size := info.Size()

	passes := []func([]byte) error{
		fillByte(0x00),
		fillByte(0xFF),
		func(b []byte) error {
			_, err := io.ReadFull(rand.Reader, b)
			return err
		},
	}
	for i, fill := range passes {
		if err := overwrite(f, size, fill); err != nil {
			f.Close()
			return fmt.Errorf("pass %d: %w", i+1, err)
		}
	}

	if err := f.Close(); err != nil {
		return err
	}
	return os.Remove(path)
}

func fillByte(v byte) func([]byte) error {
	return func(b []byte) error {
		for i := range b {
			b[i] = v
		}
		return nil
	}
}

func overwrite(f *os.File, size int64, fill func([]byte) error) error {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return err
	}
	buf := make([]byte, overwriteChunk)
	for remaining := size; remaining > 0; {
		n := min(int64(len(buf)), remaining)
		chunk := buf[:n]
		if err := fill(chunk); err != nil {
			return err
		}
		if _, err := f.Write(chunk); err != nil {
			return err
		}
		remaining -= n
	}
	return f.Sync()
}
