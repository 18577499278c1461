package cli

import (
	"fmt"
	"slices"

	"github.com/ggoodman/nextedit-go/ghapi"
	"github.com/invopop/jsonschema"
	"github.com/spf13/cobra"
)

var schemas = map[string]func() *jsonschema.Schema{
	"user":              ghapi.UserValidator().JSONSchema,
	"job":               ghapi.JobInfoValidator().JSONSchema,
	"job-response":      ghapi.JobResponseValidator().JSONSchema,
	"custom-agent":      ghapi.CustomAgentValidator().JSONSchema,
	"pull-request-file": ghapi.PullRequestFileValidator().JSONSchema,
	"session":           ghapi.SessionInfoValidator().JSONSchema,
	"repository-item":   ghapi.RepositoryItemValidator().JSONSchema,
	"pull-request":      ghapi.PullRequestValidator().JSONSchema,
	"comment":           ghapi.PullRequestCommentValidator().JSONSchema,
}

func schemaNames() []string {
	names := make([]string, 0, len(schemas))
	for k := range schemas {
		names = append(names, k)
	}
	slices.Sort(names)
	return names
}

func newSchemaCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "schema [name]",
		Short: "Describe the payload shapes accepted from the API",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return opts.write(cmd.OutOrStdout(), schemaNames())
			}
			fn, ok := schemas[args[0]]
			if !ok {
				return fmt.Errorf("unknown schema %q: must be one of %v", args[0], schemaNames())
			}
			return opts.write(cmd.OutOrStdout(), fn())
		},
	}
}
