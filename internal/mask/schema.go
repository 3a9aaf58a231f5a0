package mask

import "github.com/invopop/jsonschema"

// Schema describes an event list as it appears in configuration.
func Schema() *jsonschema.Schema {
	enum := make([]any, 0, len(names))
	for _, name := range Names() {
		enum = append(enum, name)
	}
	return &jsonschema.Schema{
		Type:        "array",
		Description: "Filesystem event kinds that trigger a copy.",
		Items: &jsonschema.Schema{
			Type: "string",
			Enum: enum,
		},
	}
}
