// Package headless runs the emulator without a window for a fixed number of
// frames, with scripted key presses. The last frame can be saved as a PNG
// and the sound timer activity as a WAV track.
package headless

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"strconv"
	"strings"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/kapitanov/chip8vm/internal/vm"
	"golang.org/x/image/draw"
)

const (
	SampleRate = 8000
	toneFreq   = 440
	toneLevel  = 8000
)

var ErrInvalidPress = errors.New("invalid key press")

// Press holds a key down from frame At for Frames frames.
type Press struct {
	Key    vm.Key
	At     int
	Frames int
}

// ParsePress parses "KEY@FRAME" or "KEY@FRAME+FRAMES", KEY being a hex digit.
// A press without a duration lasts one frame.
func ParsePress(s string) (Press, error) {
	keyStr, when, ok := strings.Cut(s, "@")
	if !ok || len(keyStr) != 1 {
		return Press{}, fmt.Errorf("%w: %q", ErrInvalidPress, s)
	}

	key, err := strconv.ParseUint(keyStr, 16, 8)
	if err != nil {
		return Press{}, fmt.Errorf("%w: %q: %w", ErrInvalidPress, s, err)
	}

	p := Press{Key: vm.Key(key), Frames: 1}

	atStr, framesStr, hasFrames := strings.Cut(when, "+")
	if p.At, err = strconv.Atoi(atStr); err != nil || p.At < 0 {
		return Press{}, fmt.Errorf("%w: %q: bad frame", ErrInvalidPress, s)
	}
	if hasFrames {
		if p.Frames, err = strconv.Atoi(framesStr); err != nil || p.Frames < 1 {
			return Press{}, fmt.Errorf("%w: %q: bad duration", ErrInvalidPress, s)
		}
	}

	return p, nil
}

// Sound is the part of the VM the headless host samples each frame.
type Sound interface {
	SoundTimer() uint8
}

type HAL struct {
	frames   int
	tickRate int
	presses  []Press
	sound    Sound

	frame   int
	screen  vm.Framebuffer
	draws   int
	beeps   int
	samples []int
	phase   int
}

var _ vm.HAL = (*HAL)(nil)

// New returns a HAL that stops Run with vm.ErrQuit after frames frames.
// sound may be nil, in which case no audio is recorded.
func New(frames, tickRate int, presses []Press, sound Sound) *HAL {
	return &HAL{
		frames:   frames,
		tickRate: tickRate,
		presses:  presses,
		sound:    sound,
	}
}

// Frame is the number of frames completed so far.
func (hal *HAL) Frame() int {
	return hal.frame
}

func (hal *HAL) ReadInput(keyDown func(vm.Key), keyUp func(vm.Key)) error {
	for _, p := range hal.presses {
		switch hal.frame {
		case p.At:
			keyDown(p.Key)
		case p.At + p.Frames:
			keyUp(p.Key)
		}
	}

	return nil
}

func (hal *HAL) Draw(fb *vm.Framebuffer) error {
	hal.screen = *fb
	hal.draws++
	return nil
}

func (hal *HAL) Beep() error {
	hal.beeps++
	return nil
}

// WaitForNextFrame records one frame of audio: a square wave while the
// sound timer is running, silence otherwise.
func (hal *HAL) WaitForNextFrame() error {
	on := hal.sound != nil && hal.sound.SoundTimer() > 0
	halfPeriod := SampleRate / toneFreq / 2

	for i := 0; i < SampleRate/hal.tickRate; i++ {
		sample := 0
		if on {
			sample = toneLevel
			if (hal.phase/halfPeriod)%2 == 1 {
				sample = -toneLevel
			}
			hal.phase++
		}
		hal.samples = append(hal.samples, sample)
	}

	hal.frame++
	if hal.frame >= hal.frames {
		return vm.ErrQuit
	}
	return nil
}

func (hal *HAL) Screen() vm.Framebuffer {
	return hal.screen
}

func (hal *HAL) Draws() int {
	return hal.draws
}

func (hal *HAL) Beeps() int {
	return hal.beeps
}

var palette = color.Palette{
	color.RGBA{R: 0x00, G: 0x00, B: 0x00, A: 0xff},
	color.RGBA{R: 0xbe, G: 0xa7, B: 0x00, A: 0xff},
}

// Snapshot returns the last drawn frame scaled up by scale.
func (hal *HAL) Snapshot(scale int) image.Image {
	src := image.NewPaletted(image.Rect(0, 0, vm.ScreenWidth, vm.ScreenHeight), palette)
	for y := 0; y < vm.ScreenHeight; y++ {
		for x := 0; x < vm.ScreenWidth; x++ {
			if hal.screen.Pixel(x, y) {
				src.SetColorIndex(x, y, 1)
			}
		}
	}

	if scale <= 1 {
		return src
	}

	dst := image.NewRGBA(image.Rect(0, 0, vm.ScreenWidth*scale, vm.ScreenHeight*scale))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst
}

func (hal *HAL) WritePNG(w io.Writer, scale int) error {
	if err := png.Encode(w, hal.Snapshot(scale)); err != nil {
		return fmt.Errorf("png: %w", err)
	}
	return nil
}

// WriteWAV writes the recorded audio as 16-bit mono PCM.
func (hal *HAL) WriteWAV(w io.WriteSeeker) error {
	const bitDepth = 16

	enc := wav.NewEncoder(w, SampleRate, bitDepth, 1, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: SampleRate},
		Data:           hal.samples,
		SourceBitDepth: bitDepth,
	}

	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("wav: %w", err)
	}
	return nil
}
