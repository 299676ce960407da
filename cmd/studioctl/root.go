package main

import (
	"github.com/spf13/cobra"
)

const defaultWidth = 80

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "studioctl",
		Short:         "Chat with an agent backend and render agent markdown",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(newChatCmd(), newRenderCmd())
	return cmd
}
