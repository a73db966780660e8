package catalog

import "github.com/invopop/jsonschema"

var definitionReflector = jsonschema.Reflector{
	DoNotReference:             true,
	RequiredFromJSONSchemaTags: true,
}

// Schema returns the JSON schema of a provider definition as it is embedded
// in the catalog and served by the API.
func Schema() *jsonschema.Schema {
	schema := definitionReflector.Reflect(&Provider{})
	schema.Title = "Provider"
	schema.Description = "An AI inference provider and the models it serves."
	return schema
}
