// Package debug writes what an engine shows: PNG snapshots of the composed
// output and text dumps of the plane and register state.
package debug

import (
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// SaveFramePNGToDir saves a composed frame as PNG with a timestamp in the
// given directory, or in the working directory if it is empty. It returns
// the path written.
func SaveFramePNGToDir(frame *image.RGBA, baseName, directory string) (string, error) {
	timestamp := time.Now().Format("20060102_150405")
	return SaveFramePNG(frame, filepath.Join(directory, fmt.Sprintf("%s_%s.png", baseName, timestamp)))
}

// SaveFramePNG saves a composed frame as PNG at path.
func SaveFramePNG(frame *image.RGBA, path string) (string, error) {
	if frame == nil {
		return "", fmt.Errorf("no frame to save")
	}

	if !filepath.IsAbs(path) && filepath.Dir(path) == "." {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create file %s: %w", path, err)
	}
	defer file.Close()

	if err := png.Encode(file, frame); err != nil {
		return "", fmt.Errorf("failed to encode PNG: %w", err)
	}

	b := frame.Bounds()
	slog.Info("Snapshot saved", "path", path, "size", fmt.Sprintf("%dx%d", b.Dx(), b.Dy()), "format", "PNG")
	return path, nil
}

// SnapshotName builds a file name stem from a scenario name and cycle.
func SnapshotName(scenario string, cycle int, name string) string {
	stem := fmt.Sprintf("%s_cycle_%02d", scenario, cycle)
	if name != "" {
		stem += "_" + name
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			return r
		}
		return '_'
	}, stem)
}
