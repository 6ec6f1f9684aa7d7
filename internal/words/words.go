// Package words holds the vocabulary cards the exercise asks users to name.
package words

import (
	"sort"
	"sync"
)

// Word is one vocabulary card.
type Word struct {
	ID             int    `json:"id" yaml:"id"`
	Word           string `json:"word" yaml:"word"`
	WordAudio      string `json:"word_audio" yaml:"word_audio"`
	CueAudio       string `json:"cue_audio" yaml:"cue_audio"`
	WordHintAudio  string `json:"word_hint_audio" yaml:"word_hint_audio"`
	SemanticCue    string `json:"semantic_cue" yaml:"semantic_cue"`
	FrequencyLevel int    `json:"frequency_level" yaml:"frequency_level"`
	ImagePath      string `json:"image_path" yaml:"image_path"`
}

// Catalog is the word table. Safe for concurrent use; Replace swaps the
// whole table at once.
type Catalog struct {
	mu     sync.RWMutex
	byID   map[int]Word
	sorted []Word
	source string
}

// NewCatalog builds a catalog from ws. IDs must already be assigned.
func NewCatalog(ws []Word, source string) *Catalog {
	c := &Catalog{}
	c.Replace(ws, source)
	return c
}

// Default returns a catalog holding the built-in word list.
func Default() *Catalog {
	return NewCatalog(DefaultWords(), "builtin")
}

// Replace swaps the table.
func (c *Catalog) Replace(ws []Word, source string) {
	byID := make(map[int]Word, len(ws))
	sorted := make([]Word, 0, len(ws))
	for _, w := range ws {
		byID[w.ID] = w
		sorted = append(sorted, w)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	c.mu.Lock()
	c.byID = byID
	c.sorted = sorted
	c.source = source
	c.mu.Unlock()
}

// Word returns the card with the given id.
func (c *Catalog) Word(id int) (Word, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	w, ok := c.byID[id]
	return w, ok
}

// All returns a copy of every card ordered by id.
func (c *Catalog) All() []Word {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Word, len(c.sorted))
	copy(out, c.sorted)
	return out
}

// Len returns the number of cards.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.sorted)
}

// Source returns where the current table came from ("builtin" or a file path).
func (c *Catalog) Source() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.source
}

// DefaultWords returns the built-in card set with public asset paths.
func DefaultWords() []Word {
	return []Word{
		{1, "بنات", "/audio/banat.m4a", "/audio/banat_cue.m4a", "بَ", "طفلة… مش وَلَد", 1, "/images/banat.png"},
		{2, "مدرسة", "/audio/madrasa.m4a", "/audio/madrasa_cue.m4a", "مد", "مكان تعليم للأطفال", 2, "/images/madrasa.png"},
		{3, "سمكة", "/audio/samaka.m4a", "/audio/samaka cue.m4a", "سم", "حيوان يعيش بالمَيّ… نلاقيه في البحر", 2, "/images/samaka.png"},
		{4, "تفاحة", "/audio/tofaha.m4a", "/audio/tofaha_cue.m4a", "تُ", "فاكهة حمراء / فاكهة مدوّرة", 1, "/images/tofaha.png"},
		{5, "ولد", "/audio/walad.m4a", "/audio/walad_cue.m4a", "وَ", "طفل… مش بنت", 1, "/images/walad.png"},
		{6, "يشرب", "/audio/yashrab.m4a", "/audio/yashrab_cue.m4a", "يش", "لما نرفع الكأس… وناخد ماء.", 3, "/images/yashrab.png"},
		{7, "يغسل", "/audio/yaghsel.m4a", "/audio/yaghsel_cue.m4a", "يغ", "ينضّف الشي بالمَيّ والصابون", 3, "/images/yaghshel.png"},
		{8, "يقرأ", "/audio/yaqraa.m4a", "/audio/yaqraa_cue.m4a", "يق", "يطلع على الكلمات… ويفهمها", 3, "/images/yaqraa.png"},
		{9, "أسد", "/audio/assad.m4a", "/audio/assad_cue.m4a", "اس", "حيوان قوي… يعيش بالغابة.", 2, "/images/assad.png"},
		{10, "فيل", "/audio/feel.m4a", "/audio/feel_cue.m4a", "في", "حيوان كبير… له خرطوم طويل", 2, "/images/feel.png"},
		{11, "قطة", "/audio/قطة.webm", "/audio/قطة cue.webm", "ق", "ق", 1, "/images/قطة.jpg"},
	}
}
