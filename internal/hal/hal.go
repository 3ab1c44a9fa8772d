// Package hal is the SDL2 host: a window scaled up from the 64x32 screen,
// the keyboard as the hex keypad, and a square wave beep.
package hal

import (
	"fmt"
	"log/slog"
	"time"
	"unsafe"

	"github.com/kapitanov/chip8vm/internal/vm"
	"github.com/veandco/go-sdl2/sdl"
)

// Each CHIP-8 pixel is a pixelScale x pixelScale square on screen.
const pixelScale = 16

const (
	WindowWidth  = vm.ScreenWidth * pixelScale
	WindowHeight = vm.ScreenHeight * pixelScale
)

// ARGB8888 colours of unlit and lit pixels.
var palette = [2]uint32{0xff000000, 0xffbea700}

type HAL struct {
	window   *sdl.Window
	renderer *sdl.Renderer
	texture  *sdl.Texture
	pixels   [vm.ScreenWidth * vm.ScreenHeight]uint32

	audio *beeper
	frame *time.Ticker
}

var _ vm.HAL = (*HAL)(nil)

// New opens the emulator window and audio device. Frames are paced at
// tickRate per second. Call Shutdown to release them.
func New(tickRate int) (*HAL, error) {
	if err := sdl.Init(sdl.INIT_VIDEO | sdl.INIT_AUDIO | sdl.INIT_EVENTS); err != nil {
		return nil, fmt.Errorf("failed to init sdl: %w", err)
	}

	hal := &HAL{}
	if err := hal.createWindow(); err != nil {
		hal.destroy()
		return nil, err
	}

	audio, err := newBeeper()
	if err != nil {
		// Without a sound device the beep is dropped.
		slog.Warn("hal: no audio", "err", err)
	}
	hal.audio = audio
	hal.frame = time.NewTicker(time.Second / time.Duration(tickRate))

	return hal, nil
}

func (hal *HAL) createWindow() error {
	var err error

	hal.window, err = sdl.CreateWindow("CHIP-8", sdl.WINDOWPOS_CENTERED, sdl.WINDOWPOS_CENTERED,
		WindowWidth, WindowHeight, sdl.WINDOW_SHOWN)
	if err != nil {
		return fmt.Errorf("failed to create sdl window: %w", err)
	}

	hal.renderer, err = sdl.CreateRenderer(hal.window, -1, sdl.RENDERER_ACCELERATED)
	if err != nil {
		return fmt.Errorf("failed to create sdl renderer: %w", err)
	}
	if err := hal.renderer.SetLogicalSize(WindowWidth, WindowHeight); err != nil {
		return fmt.Errorf("failed to resize sdl renderer: %w", err)
	}

	hal.texture, err = hal.renderer.CreateTexture(sdl.PIXELFORMAT_ARGB8888, sdl.TEXTUREACCESS_STREAMING,
		vm.ScreenWidth, vm.ScreenHeight)
	if err != nil {
		return fmt.Errorf("failed to create sdl texture: %w", err)
	}

	slog.Debug("hal: window ready", "width", WindowWidth, "height", WindowHeight)
	return nil
}

func (hal *HAL) Shutdown() {
	hal.frame.Stop()

	if hal.audio != nil {
		hal.audio.close()
	}

	hal.destroy()
}

// destroy releases whatever part of the window was created, then SDL itself.
func (hal *HAL) destroy() {
	if hal.texture != nil {
		if err := hal.texture.Destroy(); err != nil {
			slog.Error("failed to destroy sdl texture", "err", err)
		}
	}

	if hal.renderer != nil {
		if err := hal.renderer.Destroy(); err != nil {
			slog.Error("failed to destroy sdl renderer", "err", err)
		}
	}

	if hal.window != nil {
		if err := hal.window.Destroy(); err != nil {
			slog.Error("failed to destroy sdl window", "err", err)
		}
	}

	sdl.Quit()
}

// ReadInput drains the SDL event queue. Escape or closing the window quits,
// Backspace reboots.
func (hal *HAL) ReadInput(keyDown func(vm.Key), keyUp func(vm.Key)) error {
	for e := sdl.PollEvent(); e != nil; e = sdl.PollEvent() {
		switch e := e.(type) {
		case *sdl.QuitEvent:
			slog.Debug("hal: exit requested")
			return vm.ErrQuit

		case *sdl.KeyboardEvent:
			if e.Repeat != 0 {
				continue
			}
			if err := hal.processKey(e, keyDown, keyUp); err != nil {
				return err
			}
		}
	}

	return nil
}

func (hal *HAL) processKey(e *sdl.KeyboardEvent, keyDown, keyUp func(vm.Key)) error {
	pressed := e.Type == sdl.KEYDOWN

	switch e.Keysym.Scancode {
	case sdl.SCANCODE_ESCAPE:
		if pressed {
			slog.Debug("hal: exit requested")
			return vm.ErrQuit
		}
		return nil

	case sdl.SCANCODE_BACKSPACE:
		if pressed {
			slog.Debug("hal: reboot requested")
			return vm.ErrReboot
		}
		return nil
	}

	key, ok := keyMap(e.Keysym.Scancode)
	switch {
	case !ok:
	case pressed:
		keyDown(key)
	default:
		keyUp(key)
	}

	return nil
}

// keyLayout maps the left of a QWERTY keyboard onto the hex keypad,
// indexed by keypad key:
//
//	1 2 3 4        1 2 3 C
//	q w e r        4 5 6 D
//	a s d f  <=>   7 8 9 E
//	z x c v        A 0 B F
var keyLayout = [vm.KeyCount]sdl.Scancode{
	sdl.SCANCODE_X,
	sdl.SCANCODE_1, sdl.SCANCODE_2, sdl.SCANCODE_3,
	sdl.SCANCODE_Q, sdl.SCANCODE_W, sdl.SCANCODE_E,
	sdl.SCANCODE_A, sdl.SCANCODE_S, sdl.SCANCODE_D,
	sdl.SCANCODE_Z, sdl.SCANCODE_C,
	sdl.SCANCODE_4, sdl.SCANCODE_R, sdl.SCANCODE_F, sdl.SCANCODE_V,
}

func keyMap(scancode sdl.Scancode) (vm.Key, bool) {
	for key, sc := range keyLayout {
		if sc == scancode {
			return vm.Key(key), true
		}
	}
	return 0, false
}

func (hal *HAL) Draw(fb *vm.Framebuffer) error {
	for i, lit := range fb {
		if lit {
			hal.pixels[i] = palette[1]
		} else {
			hal.pixels[i] = palette[0]
		}
	}

	const pitch = vm.ScreenWidth * int(unsafe.Sizeof(uint32(0)))
	if err := hal.texture.Update(nil, unsafe.Pointer(&hal.pixels[0]), pitch); err != nil {
		return fmt.Errorf("failed to update sdl texture: %w", err)
	}

	if err := hal.renderer.Copy(hal.texture, nil, nil); err != nil {
		return fmt.Errorf("failed to copy sdl texture to renderer: %w", err)
	}

	hal.renderer.Present()
	return nil
}

func (hal *HAL) Beep() error {
	if hal.audio == nil {
		return nil
	}

	if err := hal.audio.beep(); err != nil {
		return fmt.Errorf("failed to queue beep: %w", err)
	}
	return nil
}

func (hal *HAL) WaitForNextFrame() error {
	<-hal.frame.C
	return nil
}
