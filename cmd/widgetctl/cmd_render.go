package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Mount the configured widgets and print the document",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		h := newHost(cfg)
		defer h.close()

		// no loop needed: nothing else touches the core
		if err := h.mount(commandContext(cmd)); err != nil {
			return err
		}
		return renderTo(cmd, h)
	},
}

func renderTo(cmd *cobra.Command, h *host) error {
	if err := h.core.Document().Render(cmd.OutOrStdout()); err != nil {
		return fmt.Errorf("rendering document: %w", err)
	}
	_, err := fmt.Fprintln(cmd.OutOrStdout())
	return err
}

// commandContext returns the command's context, or Background when it is run without one.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
