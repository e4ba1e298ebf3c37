// Package jsonl stores append-only newline-delimited JSON records.
package jsonl

import (
	"bufio"
	"encoding/json"
	"errors"
	"io"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// File is an append-only log of records of type T, one JSON document per line.
// Lines that fail to decode are skipped on read.
type File[T any] struct {
	path string
	mu   sync.Mutex
}

func NewFile[T any](path string) *File[T] {
	return &File[T]{path: path}
}

func (f *File[T]) Path() string {
	return f.path
}

// Append writes rec as a single line at the end of the file, creating it if needed.
func (f *File[T]) Append(rec T) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return err
	}

	file, err := os.OpenFile(f.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()

	return json.NewEncoder(file).Encode(rec)
}

// Records yields every decodable record from the start of the file. Each call
// re-opens the file, so the sequence can be ranged over more than once.
func (f *File[T]) Records() iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		f.mu.Lock()
		defer f.mu.Unlock()

		var zero T

		file, err := os.Open(f.path)
		if err != nil {
			if !os.IsNotExist(err) {
				yield(zero, err)
			}
			return
		}
		defer file.Close()

		scanner := bufio.NewScanner(file)
		scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

		for scanner.Scan() {
			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}

			var rec T
			if err := json.Unmarshal(line, &rec); err != nil {
				slog.Warn("skipping undecodable record", "path", f.path, "error", err)
				continue
			}

			if !yield(rec, nil) {
				return
			}
		}

		if err := scanner.Err(); err != nil {
			yield(zero, err)
		}
	}
}

// LoadAll collects every record in file order.
func (f *File[T]) LoadAll() ([]T, error) {
	var out []T

	for rec, err := range f.Records() {
		if err != nil {
			return out, err
		}
		out = append(out, rec)
	}

	return out, nil
}

// LoadTail returns up to n of the most recent records, oldest first.
func (f *File[T]) LoadTail(n int) ([]T, error) {
	if n <= 0 {
		return nil, nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	file, err := os.Open(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()

	fileInfo, err := file.Stat()
	if err != nil {
		return nil, err
	}

	fileSize := fileInfo.Size()
	if fileSize == 0 {
		return nil, nil
	}

	lines, err := readLinesBackward(file, fileSize, n)
	if err != nil {
		return nil, err
	}

	var records []T

	for i := len(lines) - 1; i >= 0 && len(records) < n; i-- {
		line := lines[i]
		if len(line) == 0 {
			continue
		}

		var rec T
		if err := json.Unmarshal(line, &rec); err != nil {
			continue
		}

		records = append([]T{rec}, records...)
	}

	return records, nil
}

// Truncate removes every record. A missing file is not an error.
func (f *File[T]) Truncate() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

const (
	chunkSize    = 8 * 1024
	maxLineBytes = 16 * 1024 * 1024
)

// readLinesBackward reads chunks from the end of the file until it has seen
// more than want complete lines or reached the start of the file.
func readLinesBackward(file *os.File, fileSize int64, want int) ([][]byte, error) {
	var allData []byte
	remaining := fileSize

	for remaining > 0 {
		readSize := int64(chunkSize)
		if readSize > remaining {
			readSize = remaining
		}

		offset := remaining - readSize
		chunk := make([]byte, readSize)

		if _, err := file.Seek(offset, io.SeekStart); err != nil {
			return nil, err
		}

		if _, err := io.ReadFull(file, chunk); err != nil {
			return nil, err
		}

		allData = append(chunk, allData...)
		remaining = offset

		if countNewlines(allData) > want {
			break
		}
	}

	var lines [][]byte
	start := 0

	for i := 0; i < len(allData); i++ {
		if allData[i] == '\n' {
			if i > start {
				lines = append(lines, allData[start:i])
			}
			start = i + 1
		}
	}

	if start < len(allData) {
		lines = append(lines, allData[start:])
	}

	// The first line may be cut mid-record when reading stopped early.
	if remaining > 0 && len(lines) > 0 {
		lines = lines[1:]
	}

	return lines, nil
}

func countNewlines(data []byte) int {
	count := 0
	for _, b := range data {
		if b == '\n' {
			count++
		}
	}
	return count
}
