package main

import (
	"fmt"

	"github.com/kapitanov/chip8vm/internal/termhal"
	"github.com/spf13/cobra"
)

func newTermCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "term PATH_TO_ROM_FILE",
		Short: "Run emulator in the terminal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			program, err := loadProgram(args[0])
			if err != nil {
				return err
			}

			cfg, err := opts.config()
			if err != nil {
				return err
			}

			h, err := termhal.New(cfg.TickRate)
			if err != nil {
				return fmt.Errorf("unable to initialize terminal: %w", err)
			}
			defer h.Shutdown()

			return runMachine(cmd.Context(), opts, program, h)
		},
	}
}
