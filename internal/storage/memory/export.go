package memory

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/matthewharwood/arenic-bevy-sub009/internal/timeline"
)

const exportSuffix = ".timelines.json"

// ArenaExport is the root JSON structure of one arena's export file.
type ArenaExport struct {
	Arena     string              `json:"arena"`
	Timelines []timeline.Document `json:"timelines"`
}

// exportFileName turns an arena id into a safe file name.
func exportFileName(arena string, compress bool) string {
	name := strings.NewReplacer(" ", "_", ":", "_", "/", "_", "\\", "_").Replace(arena)
	if name == "" {
		name = "default"
	}
	name += exportSuffix
	if compress {
		name += ".gz"
	}
	return name
}

// exportJSON writes one file per arena. Caller holds the lock.
func (b *Backend) exportJSON() error {
	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	byArena := make(map[string][]timeline.Document)
	for k, d := range b.documents {
		byArena[k.arena] = append(byArena[k.arena], d)
	}

	arenas := make([]string, 0, len(byArena))
	for a := range byArena {
		arenas = append(arenas, a)
	}
	slices.Sort(arenas)

	b.exported = b.exported[:0]
	for _, arena := range arenas {
		docs := byArena[arena]
		slices.SortFunc(docs, func(x, y timeline.Document) int {
			switch {
			case x.Entity < y.Entity:
				return -1
			case x.Entity > y.Entity:
				return 1
			}
			return 0
		})

		path := filepath.Join(b.cfg.OutputDir, exportFileName(arena, b.cfg.CompressOutput))
		export := ArenaExport{Arena: arena, Timelines: docs}

		var err error
		if b.cfg.CompressOutput {
			err = writeGzipJSON(path, export)
		} else {
			err = writeJSON(path, export)
		}
		if err != nil {
			return err
		}
		b.exported = append(b.exported, path)
		b.logger.Info("exported timelines", "arena", arena, "path", path, "count", len(docs))
	}
	return nil
}

func writeJSON(path string, data any) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	if err := json.NewEncoder(f).Encode(data); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

func writeGzipJSON(path string, data any) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	gw := gzip.NewWriter(f)
	if err := json.NewEncoder(gw).Encode(data); err != nil {
		gw.Close()
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	if err := gw.Close(); err != nil {
		return fmt.Errorf("failed to close gzip writer: %w", err)
	}
	return nil
}

// importDir reads every export file in dir. A missing dir is empty.
func importDir(dir string) ([]timeline.Document, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read output directory: %w", err)
	}

	var docs []timeline.Document
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !(strings.HasSuffix(name, exportSuffix) || strings.HasSuffix(name, exportSuffix+".gz")) {
			continue
		}
		export, err := readExport(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		for _, d := range export.Timelines {
			if d.Arena == "" {
				d.Arena = export.Arena
			}
			docs = append(docs, d)
		}
	}
	return docs, nil
}

func readExport(path string) (ArenaExport, error) {
	var export ArenaExport

	f, err := os.Open(path)
	if err != nil {
		return export, fmt.Errorf("failed to open export: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gr, err := gzip.NewReader(f)
		if err != nil {
			return export, fmt.Errorf("failed to open gzip export %s: %w", path, err)
		}
		defer gr.Close()
		r = gr
	}

	if err := json.NewDecoder(r).Decode(&export); err != nil {
		return export, fmt.Errorf("failed to decode export %s: %w", path, err)
	}
	return export, nil
}
