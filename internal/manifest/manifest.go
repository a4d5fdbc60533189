// Package manifest maintains the fragment completion record: one entry per
// converted chapter with the checksum of its markup source. The record
// replaces the single marker-file proxy with per-chapter freshness, so a
// touched chapter reconverts alone instead of riding on the map fragment's
// timestamp.
package manifest

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// Fragment records one converted chapter.
type Fragment struct {
	Chapter      string    `json:"chapter"`       // two-character chapter name
	Source       string    `json:"source"`        // markup source path
	Path         string    `json:"path"`          // generated fragment path
	SourceSHA256 string    `json:"source_sha256"` // checksum of the source at conversion time
	Title        string    `json:"title,omitempty"`
	ConvertedAt  time.Time `json:"converted_at"`
}

// Manifest is the completion record for one target directory.
type Manifest struct {
	GeneratedAt    time.Time  `json:"generated_at"`
	SourceRevision string     `json:"source_revision,omitempty"` // git HEAD of the target, when available
	Fragments      []Fragment `json:"fragments"`
}

// Load reads the manifest at path. A missing file yields an empty manifest.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Manifest{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshal manifest: %w", err)
	}
	return &m, nil
}

// Write persists the manifest, creating the state directory if needed.
func (m *Manifest) Write(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// Lookup returns the recorded fragment for a chapter name.
func (m *Manifest) Lookup(chapter string) (Fragment, bool) {
	for _, f := range m.Fragments {
		if f.Chapter == chapter {
			return f, true
		}
	}
	return Fragment{}, false
}

// Record inserts or replaces the entry for frag.Chapter, keeping Fragments
// ordered by insertion (callers record in chapter order).
func (m *Manifest) Record(frag Fragment) {
	for i, f := range m.Fragments {
		if f.Chapter == frag.Chapter {
			m.Fragments[i] = frag
			return
		}
	}
	m.Fragments = append(m.Fragments, frag)
}

// Prune drops entries for chapters no longer present.
func (m *Manifest) Prune(present map[string]bool) {
	kept := m.Fragments[:0]
	for _, f := range m.Fragments {
		if present[f.Chapter] {
			kept = append(kept, f)
		}
	}
	m.Fragments = kept
}

// Stale reports whether a chapter needs reconversion: the fragment file is
// missing, the chapter was never recorded, or the source checksum changed.
func (m *Manifest) Stale(chapter, sourceSHA, fragmentPath string) (bool, string) {
	if _, err := os.Stat(fragmentPath); err != nil {
		return true, "fragment missing"
	}
	rec, ok := m.Lookup(chapter)
	if !ok {
		return true, "not recorded"
	}
	if rec.SourceSHA256 != sourceSHA {
		return true, "source changed"
	}
	return false, ""
}

// HashFile returns the hex SHA-256 of the file at path.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
