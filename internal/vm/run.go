package vm

import (
	"context"
	"fmt"
	"log/slog"
)

// HAL is the host side of the emulator: input, screen, sound and pacing.
type HAL interface {
	ReadInput(keyDown func(Key), keyUp func(Key)) error
	Draw(fb *Framebuffer) error
	Beep() error
	WaitForNextFrame() error
}

// Run drives the VM from hal, one Tick per frame, until ctx is cancelled or
// hal or the VM returns an error.
func (vm *VM) Run(ctx context.Context, hal HAL) error {
	var keys KeyState

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := hal.ReadInput(keys.Press, keys.Release); err != nil {
			return err
		}

		events, err := vm.Tick(&keys)
		if err != nil {
			slog.Error("vm fault", "pc", fmt.Sprintf("0x%04x", vm.pc), "err", err)
			return err
		}

		for _, e := range events {
			if err := vm.dispatch(hal, e); err != nil {
				return err
			}
		}

		if err := hal.WaitForNextFrame(); err != nil {
			return err
		}
	}
}

func (vm *VM) dispatch(hal HAL, e Event) error {
	switch e.Kind {
	case EventBeep:
		return hal.Beep()

	case EventScreenUpdate:
		fb := vm.gfx
		return hal.Draw(&fb)
	}

	return nil
}
