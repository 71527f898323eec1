package cli

import (
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// ModelInfo describes a model in the output of the models command.
type ModelInfo struct {
	Name       string   `yaml:"name"`
	Table      string   `yaml:"table"`
	PrimaryKey []string `yaml:"primary_key,omitempty,flow"`
	Fields     []string `yaml:"fields,flow"`
}

// NewModelsCommand creates the models command, listing the models of
// the configuration.
func NewModelsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the configured models",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := rootOpts.load()
			if err != nil {
				return err
			}
			reg, err := cfg.Registry()
			if err != nil {
				return err
			}
			var infos []ModelInfo
			for _, m := range reg.Models() {
				infos = append(infos, ModelInfo{
					Name:       m.Name(),
					Table:      m.SchemaName() + "." + m.TableName(),
					PrimaryKey: m.PrimaryKey(),
					Fields:     m.Fields(),
				})
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			defer enc.Close()
			return enc.Encode(infos)
		},
	}
}
