package workspace

import (
	"errors"
	"io/fs"
	"path/filepath"
)

// DirUsage describes one workspace directory.
type DirUsage struct {
	Name  string
	Path  string
	Files int
	Size  int64
}

// Usage reports file counts and sizes for every workspace directory. Missing
// directories report zero.
func Usage(l Layout) ([]DirUsage, error) {
	named := []struct {
		name string
		path string
	}{
		{"raw", l.Raw},
		{"character", l.Character},
		{"voice_bank", l.VoiceBank},
		{"renamed", l.Renamed},
		{"colorized", l.Colorized},
		{"json", l.JSON},
		{"transcript", l.Transcript},
		{"audio", l.Audio},
		{"final", l.Final},
	}
	out := make([]DirUsage, 0, len(named))
	for _, entry := range named {
		files, size, err := dirSize(entry.path)
		if err != nil {
			return nil, err
		}
		out = append(out, DirUsage{Name: entry.name, Path: entry.path, Files: files, Size: size})
	}
	return out, nil
}

func dirSize(path string) (int, int64, error) {
	var (
		files int
		size  int64
	)
	err := filepath.WalkDir(path, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		files++
		size += info.Size()
		return nil
	})
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, 0, nil
		}
		return 0, 0, err
	}
	return files, size, nil
}
