package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/kapitanov/chip8vm/internal/headless"
	"github.com/kapitanov/chip8vm/internal/vm"
	"github.com/spf13/cobra"
)

var errNoFrames = errors.New("frames must be positive")

type headlessOptions struct {
	frames  int
	presses []string
	png     string
	scale   int
	wav     string
}

func newHeadlessCmd(opts *options) *cobra.Command {
	hopts := &headlessOptions{}

	cmd := &cobra.Command{
		Use:   "headless PATH_TO_ROM_FILE",
		Short: "Run emulator without a window and print the final screen",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			program, err := loadProgram(args[0])
			if err != nil {
				return err
			}

			h, err := runHeadless(cmd, opts, hopts, program)
			if err != nil {
				return err
			}

			screen := h.Screen()
			fmt.Fprint(cmd.OutOrStdout(), screen.String())

			return hopts.writeOutputs(h)
		},
	}

	flags := cmd.Flags()
	flags.IntVar(&hopts.frames, "frames", 600, "number of frames to run")
	flags.StringArrayVar(&hopts.presses, "press", nil, "key press as KEY@FRAME[+FRAMES], e.g. 5@120+10")
	flags.StringVar(&hopts.png, "png", "", "write the final screen to this PNG file")
	flags.IntVar(&hopts.scale, "scale", 8, "PNG scale factor")
	flags.StringVar(&hopts.wav, "wav", "", "write the beeper track to this WAV file")

	return cmd
}

func runHeadless(cmd *cobra.Command, opts *options, hopts *headlessOptions, program []byte) (*headless.HAL, error) {
	if hopts.frames < 1 {
		return nil, fmt.Errorf("%w, got %d", errNoFrames, hopts.frames)
	}

	presses := make([]headless.Press, 0, len(hopts.presses))
	for _, s := range hopts.presses {
		p, err := headless.ParsePress(s)
		if err != nil {
			return nil, err
		}
		presses = append(presses, p)
	}

	machine, err := opts.newMachine(program)
	if err != nil {
		return nil, err
	}

	h := headless.New(hopts.frames, opts.tickRate, presses, machine)

	err = machine.Run(cmd.Context(), h)
	if !errors.Is(err, vm.ErrQuit) {
		return nil, err
	}

	slog.Debug("headless: done", "frames", h.Frame(), "draws", h.Draws(), "beeps", h.Beeps())
	return h, nil
}

func (hopts *headlessOptions) writeOutputs(h *headless.HAL) error {
	if hopts.png != "" {
		if err := writeFile(hopts.png, func(f *os.File) error { return h.WritePNG(f, hopts.scale) }); err != nil {
			return err
		}
	}

	if hopts.wav != "" {
		if err := writeFile(hopts.wav, func(f *os.File) error { return h.WriteWAV(f) }); err != nil {
			return err
		}
	}

	return nil
}

func writeFile(path string, write func(f *os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("unable to create file %q: %w", path, err)
	}

	if err := write(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("unable to write file %q: %w", path, err)
	}

	return f.Close()
}
