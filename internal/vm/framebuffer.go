package vm

import "strings"

// Framebuffer is the 64x32 monochrome screen, row-major.
type Framebuffer [ScreenWidth * ScreenHeight]bool

func (fb *Framebuffer) Clear() {
	for i := range fb {
		fb[i] = false
	}
}

func (fb *Framebuffer) Pixel(x, y int) bool {
	if x < 0 || x >= ScreenWidth || y < 0 || y >= ScreenHeight {
		return false
	}
	return fb[y*ScreenWidth+x]
}

// Draw XORs an 8-pixel-wide sprite onto the screen with its top left corner
// at (x, y). Pixels past the right or bottom edge are clipped, or wrapped to
// the opposite edge when wrap is set. It reports whether any lit pixel was
// turned off.
func (fb *Framebuffer) Draw(x, y int, sprite []uint8, wrap bool) bool {
	const width = 8

	collision := false
	for row, bits := range sprite {
		for col := 0; col < width; col++ {
			if bits&(0x80>>col) == 0 {
				continue
			}

			px, py := x+col, y+row
			if wrap {
				px %= ScreenWidth
				py %= ScreenHeight
			} else if px >= ScreenWidth || py >= ScreenHeight {
				continue
			}

			i := py*ScreenWidth + px
			if fb[i] {
				collision = true
			}
			fb[i] = !fb[i]
		}
	}

	return collision
}

// String renders the screen as text, '#' for lit pixels and '.' otherwise.
func (fb *Framebuffer) String() string {
	var sb strings.Builder
	sb.Grow((ScreenWidth + 1) * ScreenHeight)

	for y := 0; y < ScreenHeight; y++ {
		for x := 0; x < ScreenWidth; x++ {
			if fb[y*ScreenWidth+x] {
				sb.WriteByte('#')
			} else {
				sb.WriteByte('.')
			}
		}
		sb.WriteByte('\n')
	}

	return sb.String()
}
