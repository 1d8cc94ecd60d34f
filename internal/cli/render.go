package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

// RenderOptions holds flags for the render command.
type RenderOptions struct {
	*RootOptions
	OutDir string
}

// NewRenderCommand creates the render command.
func NewRenderCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RenderOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "render <specs-dir>",
		Short: "Render function definitions as JSON documents",
		Long: `Render each function spec as its serialized function definition: the
document a function-calling client consumes (name, description,
parameter schema, and the data_map execution plan).

Definitions print to stdout, or to one file per function with --out.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.OutDir, "out", "", "directory to write one <function>.json per spec")

	return cmd
}

func runRender(opts *RenderOptions, specsDir string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	_, result, loadErrors := LoadRegistry(specsDir)
	if len(loadErrors) > 0 {
		first := loadErrors[0]
		var loadErr *LoadError
		if errors.As(first, &loadErr) {
			_ = formatter.Error(loadErr.Code, loadErr.Message, nil)
			return NewExitError(ExitCommandError, loadErr.Message)
		}
		_ = formatter.Error(ErrCodeGeneric, first.Error(), nil)
		return NewExitError(ExitCommandError, first.Error())
	}

	definitions := make([]map[string]any, 0, len(result.Functions))
	for _, fn := range result.Functions {
		definitions = append(definitions, fn.Definition())
	}

	if opts.OutDir != "" {
		if err := os.MkdirAll(opts.OutDir, 0o755); err != nil {
			return WrapExitError(ExitCommandError, "creating output directory", err)
		}
		for i, fn := range result.Functions {
			data, err := json.MarshalIndent(definitions[i], "", "  ")
			if err != nil {
				return WrapExitError(ExitCommandError, "encoding definition", err)
			}
			path := filepath.Join(opts.OutDir, fn.Name+".json")
			if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
				_ = formatter.Error(ErrCodeWriteFailed, err.Error(), nil)
				return WrapExitError(ExitCommandError, "writing "+path, err)
			}
			formatter.VerboseLog("wrote %s", path)
		}
		fmt.Fprintf(formatter.Writer, "Rendered %d definition(s) to %s\n", len(definitions), opts.OutDir)
		return nil
	}

	enc := json.NewEncoder(formatter.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(definitions)
}
