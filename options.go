package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/kapitanov/chip8vm/internal/vm"
	"github.com/spf13/cobra"
)

// options are the machine flags shared by every command that runs a program.
type options struct {
	verbose bool

	clock    int
	tickRate int
	preset   string

	shiftVY      bool
	loadStoreInc bool
	wrap         bool

	// Zero seeds CXNN from the system generator.
	seed uint64
}

func (opts *options) bind(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()

	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "enable verbose logging")
	flags.IntVar(&opts.clock, "clock", vm.DefaultClockSpeed, "instructions per second")
	flags.IntVar(&opts.tickRate, "tick-rate", vm.DefaultTickRate, "frames and timer ticks per second")
	flags.StringVar(&opts.preset, "quirks", "canonical", "quirk preset: "+strings.Join(vm.QuirkPresets(), ", "))
	flags.BoolVar(&opts.shiftVY, "shift-vy", false, "8XY6/8XYE shift VY into VX")
	flags.BoolVar(&opts.loadStoreInc, "load-store-inc", false, "FX55/FX65 advance I")
	flags.BoolVar(&opts.wrap, "wrap", false, "wrap sprites at the screen edge")
	flags.Uint64Var(&opts.seed, "seed", 0, "seed for CXNN, 0 for a random one")
}

func (opts *options) setupLogging() {
	loggerOpts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}
	if opts.verbose {
		loggerOpts.Level = slog.LevelDebug
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, loggerOpts)))
}

// config resolves the flags into a VM configuration. Quirk flags are added on
// top of the preset.
func (opts *options) config() (vm.Config, error) {
	quirks, err := vm.QuirksFor(opts.preset)
	if err != nil {
		return vm.Config{}, err
	}

	quirks.ShiftUsesVY = quirks.ShiftUsesVY || opts.shiftVY
	quirks.LoadStoreIncrementsIndex = quirks.LoadStoreIncrementsIndex || opts.loadStoreInc
	quirks.WrapSprites = quirks.WrapSprites || opts.wrap

	cfg := vm.Config{
		ClockSpeed: opts.clock,
		TickRate:   opts.tickRate,
		Quirks:     quirks,
	}
	if opts.seed != 0 {
		cfg.Random = vm.NewSeededRandom(opts.seed)
	}

	return cfg, nil
}

func (opts *options) newMachine(program []byte) (*vm.VM, error) {
	cfg, err := opts.config()
	if err != nil {
		return nil, err
	}

	machine, err := vm.New(cfg)
	if err != nil {
		return nil, err
	}

	if err := machine.Load(program); err != nil {
		return nil, fmt.Errorf("unable to load program: %w", err)
	}

	return machine, nil
}

// runMachine runs program on host until the user quits. A reboot request
// starts over with a fresh machine.
func runMachine(ctx context.Context, opts *options, program []byte, host vm.HAL) error {
	for {
		machine, err := opts.newMachine(program)
		if err != nil {
			return err
		}

		err = machine.Run(ctx, host)

		switch {
		case errors.Is(err, vm.ErrReboot):
			slog.Info("reboot")
			continue

		case errors.Is(err, vm.ErrQuit), errors.Is(err, context.Canceled):
			return nil
		}

		return err
	}
}
