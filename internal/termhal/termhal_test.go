package termhal

import (
	"errors"
	"strings"
	"testing"

	"github.com/kapitanov/chip8vm/internal/vm"
	"github.com/retroenv/retrogolib/assert"
)

func TestKeyMap(t *testing.T) {
	tests := []struct {
		b   byte
		key vm.Key
		ok  bool
	}{
		{'x', vm.Key0, true},
		{'1', vm.Key1, true},
		{'Q', vm.Key4, true},
		{'4', vm.KeyC, true},
		{'v', vm.KeyF, true},
		{'p', 0, false},
	}

	for _, tt := range tests {
		key, ok := keyMap(tt.b)
		assert.Equal(t, tt.ok, ok)
		assert.Equal(t, tt.key, key)
	}
}

func TestReadInput_HoldsKeys(t *testing.T) {
	hal := &HAL{input: make(chan []byte, 8)}
	var keys vm.KeyState

	hal.input <- []byte("w")
	assert.NoError(t, hal.ReadInput(keys.Press, keys.Release))
	assert.True(t, keys.IsPressed(vm.Key5))

	for i := 1; i < holdFrames; i++ {
		assert.NoError(t, hal.ReadInput(keys.Press, keys.Release))
	}
	assert.False(t, keys.IsPressed(vm.Key5))
}

func TestReadInput_Control(t *testing.T) {
	hal := &HAL{input: make(chan []byte, 8)}
	var keys vm.KeyState

	hal.input <- []byte{0x7f}
	err := hal.ReadInput(keys.Press, keys.Release)
	assert.True(t, errors.Is(err, vm.ErrReboot))

	hal.input <- []byte{0x1b}
	err = hal.ReadInput(keys.Press, keys.Release)
	assert.True(t, errors.Is(err, vm.ErrQuit))
}

func TestReadInput_EscapeSequences(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		pressed bool
	}{
		{"arrow up", "\x1b[A", false},
		{"f1", "\x1bOP", false},
		{"f5", "\x1b[15~", false},
		{"alt key", "\x1bq", false},
		{"arrow then key", "\x1b[Bw", true},
		{"key then f1", "w\x1bOP", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hal := &HAL{input: make(chan []byte, 1)}
			var keys vm.KeyState

			hal.input <- []byte(tt.input)
			assert.NoError(t, hal.ReadInput(keys.Press, keys.Release))
			assert.Equal(t, tt.pressed, keys.IsPressed(vm.Key5))
			assert.False(t, keys.IsPressed(vm.Key4))
		})
	}
}

func TestReadInput_CtrlC(t *testing.T) {
	hal := &HAL{input: make(chan []byte, 1)}
	var keys vm.KeyState

	hal.input <- []byte{'w', 0x03}
	err := hal.ReadInput(keys.Press, keys.Release)
	assert.True(t, errors.Is(err, vm.ErrQuit))
}

func TestRender(t *testing.T) {
	var fb vm.Framebuffer
	fb.Draw(0, 0, []uint8{0xC0, 0x40}, false)

	lines := strings.Split(render(&fb), "\r\n")
	assert.Equal(t, vm.ScreenHeight/2+1, len(lines))
	assert.True(t, strings.HasPrefix(lines[0], "▀█ "))
	assert.Equal(t, strings.Repeat(" ", vm.ScreenWidth), lines[1])
}
