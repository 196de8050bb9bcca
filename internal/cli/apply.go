package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bhatti/grpc-param-mapper/parammapper"
)

type applyOptions struct {
	cfgPath string
	unit    string
	action  string
}

func newApplyCmd() *cobra.Command {
	opts := applyOptions{}
	cmd := &cobra.Command{
		Use:   "apply key=value...",
		Short: "Print the parameters a handler would see after renaming",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApply(cmd.OutOrStdout(), opts, args)
		},
	}
	fs := cmd.Flags()
	fs.StringVarP(&opts.cfgPath, "config", "c", "rules.yaml", "rules file (yaml or json)")
	fs.StringVarP(&opts.unit, "unit", "u", "", "controller or gRPC service name")
	fs.StringVarP(&opts.action, "action", "a", "", "action or gRPC method name")
	_ = cmd.MarkFlagRequired("unit")
	return cmd
}

func runApply(w io.Writer, opts applyOptions, args []string) error {
	params, err := parseParams(args)
	if err != nil {
		return err
	}

	mapper, err := loadMapper(opts.cfgPath)
	if err != nil {
		return err
	}
	if _, ok := mapper.Pipeline(opts.unit); !ok {
		return fmt.Errorf("unknown controller %q", opts.unit)
	}

	result, err := mapper.Apply(opts.unit, opts.action, params)
	if err != nil {
		return err
	}

	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode params: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// parseParams reads key=value pairs; repeated keys collect into a list
func parseParams(args []string) (parammapper.Params, error) {
	params := parammapper.NewParams()
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return parammapper.Params{}, fmt.Errorf("invalid parameter %q, want key=value", arg)
		}
		existing, found := params.Get(key)
		switch {
		case !found:
			params.Set(key, value)
		default:
			params.Set(key, append(parammapper.StringSlice(existing), value))
		}
	}
	return params, nil
}
