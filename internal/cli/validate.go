package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bhatti/grpc-param-mapper/parammapper"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <config>",
		Short: "Check a rules file and list the effective rules per controller",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mapper, err := loadMapper(args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, c := range mapper.Controllers() {
				if c.Parent() != nil {
					fmt.Fprintf(out, "%s (inherits %s)\n", c.Name(), c.Parent().Name())
				} else {
					fmt.Fprintln(out, c.Name())
				}
				for _, r := range c.EffectiveRules() {
					fmt.Fprintf(out, "  %s\n", r)
				}
			}
			fmt.Fprintf(out, "ok: %d controllers\n", len(mapper.Controllers()))
			return nil
		},
	}
}

func loadMapper(path string) (*parammapper.Mapper, error) {
	config, err := parammapper.LoadConfigFromFile(path)
	if err != nil {
		return nil, err
	}
	mapper, err := parammapper.NewMapper(config)
	if err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return mapper, nil
}
