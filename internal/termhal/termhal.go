// Package termhal runs the emulator inside a terminal: the screen is drawn
// with half-block characters and keys are read from stdin in raw mode.
package termhal

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/kapitanov/chip8vm/internal/vm"
	"golang.org/x/term"
)

// Terminals only report key presses, so a key is held for this many frames
// after its last repeat.
const holdFrames = 6

var ErrTooSmall = errors.New("terminal too small")

type HAL struct {
	fd       int
	oldState *term.State
	out      *bufio.Writer
	input    chan []byte
	held     [vm.KeyCount]int
	frame    *time.Ticker
}

var _ vm.HAL = (*HAL)(nil)

// New switches stdin to raw mode. Call Shutdown to restore it.
func New(tickRate int) (*HAL, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil, errors.New("stdin is not a terminal")
	}

	width, height, err := term.GetSize(fd)
	if err != nil {
		return nil, fmt.Errorf("failed to get terminal size: %w", err)
	}
	if width < vm.ScreenWidth || height < vm.ScreenHeight/2 {
		return nil, fmt.Errorf("%w: %dx%d, need %dx%d", ErrTooSmall, width, height, vm.ScreenWidth, vm.ScreenHeight/2)
	}

	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("failed to set raw mode: %w", err)
	}
	slog.Debug("termhal: raw mode")

	hal := &HAL{
		fd:       fd,
		oldState: oldState,
		out:      bufio.NewWriter(os.Stdout),
		input:    make(chan []byte, 16),
		frame:    time.NewTicker(time.Second / time.Duration(tickRate)),
	}
	go hal.readStdin(os.Stdin)

	// Hide cursor and clear screen.
	_, _ = hal.out.WriteString("\x1b[?25l\x1b[2J")
	if err := hal.out.Flush(); err != nil {
		hal.Shutdown()
		return nil, fmt.Errorf("failed to write to terminal: %w", err)
	}

	return hal, nil
}

// readStdin forwards each read until stdin is closed. Escape sequences
// arrive in a single read, which is how they are told apart from a lone Esc.
// It is never stopped, the process exits with it blocked in Read.
func (hal *HAL) readStdin(r io.Reader) {
	for {
		buf := make([]byte, 32)
		n, err := r.Read(buf)
		if n > 0 {
			hal.input <- buf[:n]
		}
		if err != nil {
			return
		}
	}
}

func (hal *HAL) Shutdown() {
	hal.frame.Stop()

	_, _ = hal.out.WriteString("\x1b[0m\x1b[?25h\r\n")
	if err := hal.out.Flush(); err != nil {
		slog.Error("failed to flush terminal", "err", err)
	}

	if err := term.Restore(hal.fd, hal.oldState); err != nil {
		slog.Error("failed to restore terminal", "err", err)
	}
}

func (hal *HAL) ReadInput(keyDown func(vm.Key), keyUp func(vm.Key)) error {
	for {
		select {
		case buf := <-hal.input:
			if err := hal.processInput(buf, keyDown); err != nil {
				return err
			}
		default:
			hal.releaseKeys(keyUp)
			return nil
		}
	}
}

func (hal *HAL) processInput(buf []byte, keyDown func(vm.Key)) error {
	for i := 0; i < len(buf); i++ {
		if buf[i] != 0x1b {
			if err := hal.processByte(buf[i], keyDown); err != nil {
				return err
			}
			continue
		}

		if i == len(buf)-1 {
			slog.Debug("termhal: exit requested")
			return vm.ErrQuit
		}

		// Arrow, function and Alt keys.
		i += escapeLen(buf[i:]) - 1
	}

	return nil
}

// escapeLen is the length of the escape sequence at the start of seq.
func escapeLen(seq []byte) int {
	switch seq[1] {
	case '[': // CSI: parameters up to a final byte in 0x40..0x7e
		for j := 2; j < len(seq); j++ {
			if seq[j] >= 0x40 && seq[j] <= 0x7e {
				return j + 1
			}
		}
		return len(seq)

	case 'O': // SS3: one more byte
		return min(3, len(seq))
	}

	return 2
}

func (hal *HAL) processByte(b byte, keyDown func(vm.Key)) error {
	switch b {
	case 0x03: // Ctrl-C
		slog.Debug("termhal: exit requested")
		return vm.ErrQuit
	case 0x7f, 0x08: // Backspace
		slog.Debug("termhal: reboot requested")
		return vm.ErrReboot
	}

	key, ok := keyMap(b)
	if ok {
		hal.held[key] = holdFrames
		keyDown(key)
	}
	return nil
}

func (hal *HAL) releaseKeys(keyUp func(vm.Key)) {
	for key, frames := range hal.held {
		if frames == 0 {
			continue
		}

		hal.held[key]--
		if hal.held[key] == 0 {
			keyUp(vm.Key(key))
		}
	}
}

func keyMap(b byte) (vm.Key, bool) {
	// Same layout as the SDL host:
	//
	// | 1 | 2 | 3 | 4 |       | 1 | 2 | 3 | C |
	// | q | w | e | r |       | 4 | 5 | 6 | D |
	// | a | s | d | f |  <=>  | 7 | 8 | 9 | E |
	// | z | x | c | v |       | A | 0 | B | F |

	const layout = "x123qweasdzc4rfv"

	i := strings.IndexByte(layout, toLower(b))
	if i < 0 {
		return 0, false
	}
	return vm.Key(i), true
}

func toLower(b byte) byte {
	if b >= 'A' && b <= 'Z' {
		return b + 'a' - 'A'
	}
	return b
}

func (hal *HAL) Draw(fb *vm.Framebuffer) error {
	_, _ = hal.out.WriteString("\x1b[H")
	_, _ = hal.out.WriteString(render(fb))
	return hal.out.Flush()
}

// render packs two pixel rows into each text line using half blocks.
func render(fb *vm.Framebuffer) string {
	var sb strings.Builder

	for y := 0; y < vm.ScreenHeight; y += 2 {
		for x := 0; x < vm.ScreenWidth; x++ {
			top, bottom := fb.Pixel(x, y), fb.Pixel(x, y+1)

			switch {
			case top && bottom:
				sb.WriteString("█")
			case top:
				sb.WriteString("▀")
			case bottom:
				sb.WriteString("▄")
			default:
				sb.WriteByte(' ')
			}
		}
		sb.WriteString("\r\n")
	}

	return sb.String()
}

func (hal *HAL) Beep() error {
	_, _ = hal.out.WriteString("\a")
	return hal.out.Flush()
}

func (hal *HAL) WaitForNextFrame() error {
	<-hal.frame.C
	return nil
}
