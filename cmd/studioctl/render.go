package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ashureev/agent-studio/internal/markdown"
	"github.com/ashureev/agent-studio/internal/render"
)

type renderFlags struct {
	width  int
	asJSON bool
}

func newRenderCmd() *cobra.Command {
	var flags renderFlags

	cmd := &cobra.Command{
		Use:   "render [file]",
		Short: "Render a markdown file (or stdin) as the studio would display it",
		Args:  cobra.MaximumNArgs(1),
		RunE:  flags.run,
	}
	cmd.Flags().IntVarP(&flags.width, "width", "w", defaultWidth, "Terminal width")
	cmd.Flags().BoolVar(&flags.asJSON, "json", false, "Print the block document as JSON instead")
	return cmd
}

func (f *renderFlags) run(cmd *cobra.Command, args []string) error {
	var (
		data []byte
		err  error
	)
	if len(args) == 1 && args[0] != "-" {
		data, err = os.ReadFile(args[0])
	} else {
		data, err = io.ReadAll(cmd.InOrStdin())
	}
	if err != nil {
		return fmt.Errorf("read markdown: %w", err)
	}

	blocks := markdown.Build(string(data))
	if f.asJSON {
		if blocks == nil {
			blocks = []markdown.Block{}
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(blocks)
	}

	_, err = fmt.Fprintln(cmd.OutOrStdout(), render.Terminal(blocks, f.width))
	return err
}
