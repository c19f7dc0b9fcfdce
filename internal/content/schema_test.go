package content

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestSchemaDescribesCatalog(t *testing.T) {
	schema := Schema()
	if schema.Title == "" {
		t.Fatal("expected schema title")
	}

	data, err := json.Marshal(schema)
	if err != nil {
		t.Fatalf("marshal schema: %v", err)
	}
	doc := string(data)
	for _, field := range []string{"tileSize", "characters", "djinn", "summons", "dungeons", "costStandby"} {
		if !strings.Contains(doc, `"`+field+`"`) {
			t.Fatalf("expected schema to mention %q", field)
		}
	}
}
