package content

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

//go:embed data/content.json data/dungeons.json
var embedded embed.FS

// DefaultSpotlightVerbs apply to dungeons missing from the catalog.
var DefaultSpotlightVerbs = []string{"push_pull", "pound", "reveal"}

// ErrEmptyCatalog is returned when a catalog document carries no tile size.
var ErrEmptyCatalog = errors.New("content catalog missing tileSize")

type source interface {
	Load() ([]byte, error)
	Path() string
}

type fileSource struct {
	path string
}

func (f fileSource) Load() ([]byte, error) {
	return os.ReadFile(f.path)
}

func (f fileSource) Path() string {
	return f.path
}

type embeddedSource struct {
	name string
}

func (e embeddedSource) Load() ([]byte, error) {
	return embedded.ReadFile(e.name)
}

func (e embeddedSource) Path() string {
	return "embedded:" + e.name
}

// Paths selects on-disk overrides for the catalog documents. Empty fields
// fall back to the embedded defaults.
type Paths struct {
	Content  string
	Dungeons string
}

// Store is the immutable content catalog. It is safe for concurrent readers
// because nothing mutates it after Load returns.
type Store struct {
	catalog      Catalog
	catalogJSON  []byte
	dungeonsJSON []byte

	summons  map[string]Summon
	dungeons map[string]Dungeon
	chars    map[string]Character
	djinn    map[string]Djinn
}

// Load reads the catalog and dungeon definitions once.
func Load(paths Paths) (*Store, error) {
	contentSrc := source(embeddedSource{name: "data/content.json"})
	if paths.Content != "" {
		contentSrc = fileSource{path: paths.Content}
	}
	dungeonSrc := source(embeddedSource{name: "data/dungeons.json"})
	if paths.Dungeons != "" {
		dungeonSrc = fileSource{path: paths.Dungeons}
	}

	rawCatalog, err := contentSrc.Load()
	if err != nil {
		return nil, fmt.Errorf("read content catalog %s: %w", contentSrc.Path(), err)
	}
	rawDungeons, err := dungeonSrc.Load()
	if err != nil {
		return nil, fmt.Errorf("read dungeon definitions %s: %w", dungeonSrc.Path(), err)
	}
	if !json.Valid(rawDungeons) {
		return nil, fmt.Errorf("parse dungeon definitions %s: invalid JSON", dungeonSrc.Path())
	}

	var catalog Catalog
	decoder := json.NewDecoder(bytes.NewReader(rawCatalog))
	if err := decoder.Decode(&catalog); err != nil {
		return nil, fmt.Errorf("parse content catalog %s: %w", contentSrc.Path(), err)
	}
	if catalog.TileSize <= 0 {
		return nil, fmt.Errorf("parse content catalog %s: %w", contentSrc.Path(), ErrEmptyCatalog)
	}

	return newStore(catalog, rawCatalog, rawDungeons), nil
}

// MustDefault loads the embedded catalog. It panics only if the embedded
// documents are broken, which the package tests guard against.
func MustDefault() *Store {
	store, err := Load(Paths{})
	if err != nil {
		panic(err)
	}
	return store
}

// New builds a store from an in-memory catalog. Used by tests.
func New(catalog Catalog) *Store {
	raw, err := json.Marshal(catalog)
	if err != nil {
		raw = []byte("{}")
	}
	return newStore(catalog, raw, []byte("{}"))
}

func newStore(catalog Catalog, rawCatalog, rawDungeons []byte) *Store {
	s := &Store{
		catalog:      catalog,
		catalogJSON:  compact(rawCatalog),
		dungeonsJSON: compact(rawDungeons),
		summons:      make(map[string]Summon, len(catalog.Summons)),
		dungeons:     make(map[string]Dungeon, len(catalog.Dungeons)),
		chars:        make(map[string]Character, len(catalog.Characters)),
		djinn:        make(map[string]Djinn),
	}
	for _, summon := range catalog.Summons {
		s.summons[summon.ID] = summon
	}
	for _, dungeon := range catalog.Dungeons {
		s.dungeons[dungeon.ID] = dungeon
	}
	for _, character := range catalog.Characters {
		s.chars[character.ID] = character
	}
	for group, list := range catalog.Djinn {
		for _, d := range list {
			if d.Element == "" {
				d.Element = group
			}
			s.djinn[d.ID] = d
		}
	}
	return s
}

func compact(raw []byte) []byte {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return append([]byte(nil), raw...)
	}
	return buf.Bytes()
}

// TileSize converts cell coordinates into world units.
func (s *Store) TileSize() float64 {
	return s.catalog.TileSize
}

// Summon looks up a summon by id.
func (s *Store) Summon(id string) (Summon, bool) {
	summon, ok := s.summons[id]
	return summon, ok
}

// Character looks up a character by id.
func (s *Store) Character(id string) (Character, bool) {
	character, ok := s.chars[id]
	return character, ok
}

// CharacterOrDefault returns id when the catalog knows it and the first
// catalog character otherwise.
func (s *Store) CharacterOrDefault(id string) string {
	if _, ok := s.Character(id); ok || len(s.catalog.Characters) == 0 {
		return id
	}
	return s.catalog.Characters[0].ID
}

// Djinn looks up a djinn by id across all element groups.
func (s *Store) Djinn(id string) (Djinn, bool) {
	d, ok := s.djinn[id]
	return d, ok
}

// Dungeon looks up a dungeon by id.
func (s *Store) Dungeon(id string) (Dungeon, bool) {
	dungeon, ok := s.dungeons[id]
	return dungeon, ok
}

// SpotlightVerbs returns the boss-damaging verbs for a dungeon. The returned
// slice is a copy.
func (s *Store) SpotlightVerbs(dungeonID string) []string {
	verbs := DefaultSpotlightVerbs
	if dungeon, ok := s.Dungeon(dungeonID); ok && dungeon.Verbs != nil {
		verbs = dungeon.Verbs
	}
	return append([]string(nil), verbs...)
}

// IsSpotlightVerb reports whether verb damages the boss of dungeonID.
func (s *Store) IsSpotlightVerb(dungeonID, verb string) bool {
	for _, candidate := range s.SpotlightVerbs(dungeonID) {
		if candidate == verb {
			return true
		}
	}
	return false
}

// CatalogJSON returns the catalog document as served to clients.
func (s *Store) CatalogJSON() []byte {
	return s.catalogJSON
}

// DungeonsJSON returns the dungeon definitions document as served to clients.
func (s *Store) DungeonsJSON() []byte {
	return s.dungeonsJSON
}
