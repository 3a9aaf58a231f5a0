package main

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
	"github.com/spf13/cobra"

	"github.com/containercopier/container-copier/internal/config"
)

func newSchemaCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON schema of the copyset document",
		Long: `Print the JSON schema of the copyset document.

The schema covers the YAML form directly and describes the same structure
as the TOML form. Editors can use it for completion and validation.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			enc := json.NewEncoder(c.stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(configSchema())
		},
	}
}

func configSchema() *jsonschema.Schema {
	reflector := &jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
		ExpandedStruct:            true,
	}
	schema := reflector.Reflect(&config.Config{})
	schema.Title = "container-copier configuration"
	if schema.Version == "" {
		schema.Version = jsonschema.Version
	}
	return schema
}
