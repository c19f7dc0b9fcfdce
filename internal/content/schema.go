package content

import "github.com/invopop/jsonschema"

// Schema describes the catalog document accepted by Load.
func Schema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		AllowAdditionalProperties:  true,
	}
	schema := reflector.Reflect(new(Catalog))
	schema.Title = "Silver Moon Content Catalog"
	schema.Description = "Validates characters, djinn, summons and dungeons in content.json"
	return schema
}
