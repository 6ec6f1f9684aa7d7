package words

import (
	"bytes"
	"fmt"
	"os"
	"path"
	"strings"

	"gopkg.in/yaml.v3"
)

// fileDoc is the on-disk layout. A bare list of cards is accepted as well.
type fileDoc struct {
	Words []Word `yaml:"words"`
}

// LoadFile reads a YAML (or JSON) word list. Cards without an id are
// numbered by position starting at 1. Asset paths are rewritten to the
// public /audio/ and /images/ folders.
func LoadFile(filename string) ([]Word, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes a word list document.
func Parse(data []byte) ([]Word, error) {
	var ws []Word
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && (trimmed[0] == '-' || trimmed[0] == '[') {
		if err := yaml.Unmarshal(data, &ws); err != nil {
			return nil, fmt.Errorf("decode word list: %w", err)
		}
	} else {
		var doc fileDoc
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("decode word list: %w", err)
		}
		ws = doc.Words
	}

	if len(ws) == 0 {
		return nil, fmt.Errorf("word list is empty")
	}

	seen := make(map[int]bool, len(ws))
	for i := range ws {
		w := &ws[i]
		if w.ID == 0 {
			w.ID = i + 1
		}
		if w.ID < 0 {
			return nil, fmt.Errorf("word %d: negative id %d", i+1, w.ID)
		}
		if seen[w.ID] {
			return nil, fmt.Errorf("word %d: duplicate id %d", i+1, w.ID)
		}
		seen[w.ID] = true

		w.Word = strings.TrimSpace(w.Word)
		if w.Word == "" {
			return nil, fmt.Errorf("word %d (id %d): empty word", i+1, w.ID)
		}
		w.WordAudio = publicPath("/audio/", w.WordAudio)
		w.CueAudio = publicPath("/audio/", w.CueAudio)
		w.ImagePath = publicPath("/images/", w.ImagePath)
	}
	return ws, nil
}

// publicPath keeps only the file name of p and places it under dir.
// Absolute URLs and empty paths are left alone.
func publicPath(dir, p string) string {
	if p == "" || strings.Contains(p, "://") {
		return p
	}
	return dir + path.Base(strings.ReplaceAll(p, "\\", "/"))
}
