package lifecycle

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

// ErrMarkerExists is returned by AcquireMarker when another instance holds it.
var ErrMarkerExists = errors.New("pid marker already exists")

// ReadMarker returns the pid recorded at path. ok is false when the file is
// absent or its content is not a positive integer. Only I/O failures other
// than absence are returned as errors.
func ReadMarker(path string) (pid int, ok bool, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("read pid marker %q: %w", path, err)
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || parsed <= 0 {
		return 0, false, nil
	}
	return parsed, true, nil
}

// AcquireMarker exclusively creates path and writes pid to it. The returned
// release func removes the marker and may be called any number of times.
func AcquireMarker(path string, pid int) (func() error, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create pid marker directory: %w", err)
		}
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil, fmt.Errorf("%w: %s", ErrMarkerExists, path)
		}
		return nil, fmt.Errorf("create pid marker %q: %w", path, err)
	}
	if _, err := file.WriteString(strconv.Itoa(pid) + "\n"); err != nil {
		_ = file.Close()
		_ = os.Remove(path)
		return nil, fmt.Errorf("write pid marker %q: %w", path, err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("close pid marker %q: %w", path, err)
	}

	var once sync.Once
	var releaseErr error
	release := func() error {
		once.Do(func() { releaseErr = RemoveMarker(path) })
		return releaseErr
	}
	return release, nil
}

// RemoveMarker deletes path. A missing marker is not an error.
func RemoveMarker(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove pid marker %q: %w", path, err)
	}
	return nil
}
