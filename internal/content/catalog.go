package content

// Stats are the base attributes of a playable character.
type Stats struct {
	HP    int `json:"hp" jsonschema:"minimum=1"`
	Atk   int `json:"atk" jsonschema:"minimum=0"`
	Speed int `json:"speed" jsonschema:"minimum=0"`
	Focus int `json:"focus" jsonschema:"minimum=0"`
}

// Character is a selectable adept.
type Character struct {
	ID      string `json:"id" jsonschema:"title=Character ID,minLength=1,required"`
	Element string `json:"element" jsonschema:"enum=venus,enum=mars,enum=jupiter,enum=mercury"`
	Weapon  string `json:"weapon"`
	Name    string `json:"name" jsonschema:"minLength=1,required"`
	Stats   Stats  `json:"stats"`
}

// Djinn is a collectible spirit that players set or put on standby.
type Djinn struct {
	ID      string `json:"id" jsonschema:"title=Djinn ID,minLength=1,required"`
	Name    string `json:"name"`
	Active  string `json:"active" jsonschema:"description=Name of the battle effect unleashed from the set state"`
	Element string `json:"element,omitempty"`
}

// Summon consumes standby djinn and returns them to the set state.
type Summon struct {
	ID          string `json:"id" jsonschema:"title=Summon ID,minLength=1,required"`
	Name        string `json:"name"`
	CostStandby int    `json:"costStandby" jsonschema:"minimum=0,description=Number of standby djinn required"`
}

// Dungeon carries the spotlight verbs that damage its boss.
type Dungeon struct {
	ID    string   `json:"id" jsonschema:"title=Dungeon ID,minLength=1,required"`
	Name  string   `json:"name"`
	Verbs []string `json:"verbs" jsonschema:"description=Spotlight verbs that count toward boss damage"`
}

// Catalog models content.json. Djinn are grouped by element.
type Catalog struct {
	TileSize   float64            `json:"tileSize" jsonschema:"minimum=0,required"`
	Characters []Character        `json:"characters"`
	Djinn      map[string][]Djinn `json:"djinn"`
	Summons    []Summon           `json:"summons"`
	Dungeons   []Dungeon          `json:"dungeons"`
}
