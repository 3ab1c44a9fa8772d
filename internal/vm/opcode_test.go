package vm

import (
	"errors"
	"testing"

	"github.com/retroenv/retrogolib/assert"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		opcode uint16
		op     Op
	}{
		{0x00E0, OpCls},
		{0x00EE, OpRts},
		{0x0123, OpUnknown},
		{0x1ABC, OpJmp},
		{0x2ABC, OpJsr},
		{0x3A12, OpSkeqImm},
		{0x4A12, OpSkneImm},
		{0x5AB0, OpSkeqReg},
		{0x5AB1, OpUnknown},
		{0x6A12, OpMovImm},
		{0x7A12, OpAddImm},
		{0x8AB0, OpMovReg},
		{0x8AB1, OpOr},
		{0x8AB2, OpAnd},
		{0x8AB3, OpXor},
		{0x8AB4, OpAddReg},
		{0x8AB5, OpSub},
		{0x8AB6, OpShr},
		{0x8AB7, OpRsb},
		{0x8AB8, OpUnknown},
		{0x8ABE, OpShl},
		{0x9AB0, OpSkneReg},
		{0x9AB3, OpUnknown},
		{0xA123, OpMvi},
		{0xB123, OpJmi},
		{0xCA12, OpRand},
		{0xDAB5, OpSprite},
		{0xEA9E, OpSkpr},
		{0xEAA1, OpSkup},
		{0xEA00, OpUnknown},
		{0xFA07, OpGdelay},
		{0xFA0A, OpKey},
		{0xFA15, OpSdelay},
		{0xFA18, OpSsound},
		{0xFA1E, OpAdi},
		{0xFA29, OpFont},
		{0xFA33, OpBcd},
		{0xFA55, OpStr},
		{0xFA65, OpLdr},
		{0xFAFF, OpUnknown},
	}

	for _, tt := range tests {
		in := Decode(tt.opcode)
		assert.Equal(t, tt.op, in.Op, in.String())
	}
}

func TestDecode_Fields(t *testing.T) {
	in := Decode(0xD3C7)

	assert.Equal(t, uint8(0x3), in.X)
	assert.Equal(t, uint8(0xC), in.Y)
	assert.Equal(t, uint8(0x7), in.N)
	assert.Equal(t, uint8(0xC7), in.NN)
	assert.Equal(t, uint16(0x3C7), in.NNN)
}

func TestInstruction_String(t *testing.T) {
	tests := []struct {
		opcode uint16
		want   string
	}{
		{0x00E0, "cls"},
		{0x1234, "jmp 0x234"},
		{0x6A0F, "mov va, 15"},
		{0x8125, "sub v1, v2"},
		{0xD125, "sprite v1, v2, 5"},
		{0xF533, "bcd v5"},
		{0x0123, "unknown 0x0123"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Decode(tt.opcode).String())
	}
}

func TestALU_Flags(t *testing.T) {
	vm := newTestVM(t)

	for x := 0; x < 256; x++ {
		for y := 0; y < 256; y++ {
			vx, vy := uint8(x), uint8(y)

			vm.registers[1], vm.registers[2] = vx, vy
			assert.NoError(t, vm.executeOpcode(0x8124))
			if vm.registers[1] != vx+vy || vm.registers[0xF] != flag(x+y > 0xFF) {
				t.Fatalf("add %d+%d: v1=%d vf=%d", x, y, vm.registers[1], vm.registers[0xF])
			}

			vm.registers[1], vm.registers[2] = vx, vy
			assert.NoError(t, vm.executeOpcode(0x8125))
			if vm.registers[1] != vx-vy || vm.registers[0xF] != flag(x >= y) {
				t.Fatalf("sub %d-%d: v1=%d vf=%d", x, y, vm.registers[1], vm.registers[0xF])
			}

			vm.registers[1], vm.registers[2] = vx, vy
			assert.NoError(t, vm.executeOpcode(0x8127))
			if vm.registers[1] != vy-vx || vm.registers[0xF] != flag(y >= x) {
				t.Fatalf("rsb %d-%d: v1=%d vf=%d", y, x, vm.registers[1], vm.registers[0xF])
			}
		}
	}
}

func TestALU_FlagRegisterOperand(t *testing.T) {
	// VF as the destination ends up holding the flag, not the result.
	vm := newTestVM(t, 0x6FFF, 0x6101, 0x8F14)
	step(t, vm, 3)
	assert.Equal(t, uint8(1), vm.Register(0xF))
}

func TestALU_Logic(t *testing.T) {
	tests := []struct {
		name   string
		opcode uint16
		want   uint8
	}{
		{"mov", 0x8120, 0x0F},
		{"or", 0x8121, 0x3F},
		{"and", 0x8122, 0x00},
		{"xor", 0x8123, 0x3F},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vm := newTestVM(t, 0x6130, 0x620F, 0x6F07, tt.opcode)
			step(t, vm, 4)
			assert.Equal(t, tt.want, vm.Register(1))
			assert.Equal(t, uint8(7), vm.Register(0xF))
		})
	}
}

func TestShift(t *testing.T) {
	tests := []struct {
		name   string
		quirks Quirks
		opcode uint16
		wantV1 uint8
		wantVF uint8
	}{
		{"shr vx", Quirks{}, 0x8126, 0x40, 1},
		{"shl vx", Quirks{}, 0x812E, 0x02, 1},
		{"shr vy", Quirks{ShiftUsesVY: true}, 0x8126, 0x21, 0},
		{"shl vy", Quirks{ShiftUsesVY: true}, 0x812E, 0x84, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vm := newTestVM(t, 0x6181, 0x6242, tt.opcode)
			vm.quirks = tt.quirks
			step(t, vm, 3)
			assert.Equal(t, tt.wantV1, vm.Register(1))
			assert.Equal(t, tt.wantVF, vm.Register(0xF))
		})
	}
}

func TestAddImm_NoFlag(t *testing.T) {
	vm := newTestVM(t, 0x61FF, 0x6F05, 0x7102)
	step(t, vm, 3)
	assert.Equal(t, uint8(0x01), vm.Register(1))
	assert.Equal(t, uint8(5), vm.Register(0xF))
}

func TestSkips(t *testing.T) {
	tests := []struct {
		name   string
		opcode uint16
		skip   bool
	}{
		{"skeq imm equal", 0x3105, true},
		{"skeq imm differ", 0x3106, false},
		{"skne imm equal", 0x4105, false},
		{"skne imm differ", 0x4106, true},
		{"skeq reg equal", 0x5120, true},
		{"skeq reg differ", 0x5130, false},
		{"skne reg equal", 0x9120, false},
		{"skne reg differ", 0x9130, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vm := newTestVM(t, 0x6105, 0x6205, 0x6309, tt.opcode)
			step(t, vm, 4)

			want := ProgramStart + 8
			if tt.skip {
				want += 2
			}
			assert.Equal(t, want, vm.PC())
		})
	}
}

func TestJumps(t *testing.T) {
	vm := newTestVM(t, 0x1208)
	step(t, vm, 1)
	assert.Equal(t, uint16(0x208), vm.PC())

	vm = newTestVM(t, 0x6004, 0xB300)
	step(t, vm, 2)
	assert.Equal(t, uint16(0x304), vm.PC())
}

func TestCallReturn(t *testing.T) {
	vm := newTestVM(t, 0x2206, 0x6107, 0x1204, 0x00EE)

	step(t, vm, 1)
	assert.Equal(t, uint16(0x206), vm.PC())
	assert.Equal(t, 1, vm.StackDepth())

	step(t, vm, 1)
	assert.Equal(t, uint16(0x202), vm.PC())
	assert.Equal(t, 0, vm.StackDepth())

	step(t, vm, 1)
	assert.Equal(t, uint8(7), vm.Register(1))
}

func TestStackUnderflow(t *testing.T) {
	vm := newTestVM(t, 0x00EE)
	err := vm.cycle()
	assert.True(t, errors.Is(err, ErrStackUnderflow))
}

func TestStackOverflow(t *testing.T) {
	// Calls itself forever.
	vm := newTestVM(t, 0x2200)
	step(t, vm, StackSize)
	assert.Equal(t, StackSize, vm.StackDepth())

	err := vm.cycle()
	assert.True(t, errors.Is(err, ErrStackOverflow))
}

func TestUnknownOpcode_IsNoop(t *testing.T) {
	vm := newTestVM(t, 0x0123, 0x6107)
	before := vm.Registers()

	step(t, vm, 1)
	assert.Equal(t, ProgramStart+2, vm.PC())
	assert.Equal(t, before, vm.Registers())
	assert.Equal(t, 1, len(vm.events))
	assert.Equal(t, EventUnknownOpcode, vm.events[0].Kind)
	assert.Equal(t, ProgramStart, vm.events[0].PC)
	assert.Equal(t, uint16(0x0123), vm.events[0].Opcode)

	step(t, vm, 1)
	assert.Equal(t, uint8(7), vm.Register(1))
}

func TestIndexOps(t *testing.T) {
	vm := newTestVM(t, 0xA123, 0x61FF, 0xF11E)
	step(t, vm, 3)
	assert.Equal(t, uint16(0x222), vm.Index())

	vm = newTestVM(t, 0x610B, 0xF129)
	step(t, vm, 2)
	assert.Equal(t, uint16(0x0B*5), vm.Index())
}

func TestRand(t *testing.T) {
	vm := newTestVM(t, 0xC10F)
	step(t, vm, 1)
	assert.Equal(t, uint8(0xA5&0x0F), vm.Register(1))
}

func TestBCD(t *testing.T) {
	vm := newTestVM(t, 0x61EA, 0xA300, 0xF133)
	step(t, vm, 3)

	mem := vm.Memory()
	assert.Equal(t, [3]uint8{2, 3, 4}, [3]uint8(mem[0x300:0x303]))
	assert.Equal(t, uint16(0x300), vm.Index())
}

func TestBCD_OutOfBounds(t *testing.T) {
	vm := newTestVM(t, 0x61EA, 0xAFFE, 0xF133)
	step(t, vm, 2)

	err := vm.cycle()
	assert.True(t, errors.Is(err, ErrMemoryOutOfBounds))
}

func TestStoreLoad(t *testing.T) {
	tests := []struct {
		name          string
		quirks        Quirks
		wantIndex     uint16
		wantLoadIndex uint16
	}{
		{"index kept", Quirks{}, 0x300, 0x300},
		{"index incremented", Quirks{LoadStoreIncrementsIndex: true}, 0x303, 0x304},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vm := newTestVM(t, 0x6011, 0x6122, 0x6233, 0x6344, 0xA300, 0xF255)
			vm.quirks = tt.quirks
			step(t, vm, 6)

			mem := vm.Memory()
			assert.Equal(t, [4]uint8{0x11, 0x22, 0x33, 0x00}, [4]uint8(mem[0x300:0x304]))
			assert.Equal(t, tt.wantIndex, vm.Index())

			vm.registers = [RegisterCount]uint8{}
			vm.index = 0x300
			assert.NoError(t, vm.executeOpcode(0xF365))
			assert.Equal(t, uint8(0x11), vm.Register(0))
			assert.Equal(t, uint8(0x22), vm.Register(1))
			assert.Equal(t, uint8(0x33), vm.Register(2))
			assert.Equal(t, uint8(0x00), vm.Register(3))
			assert.Equal(t, tt.wantLoadIndex, vm.Index())
		})
	}
}

func TestStoreLoad_OutOfBounds(t *testing.T) {
	vm := newTestVM(t)
	vm.index = 0xFFC

	err := vm.executeOpcode(0xF455)
	assert.True(t, errors.Is(err, ErrMemoryOutOfBounds))

	err = vm.executeOpcode(0xF365)
	assert.NoError(t, err)
}

func TestTimerOpcodes(t *testing.T) {
	vm := newTestVM(t, 0x6120, 0xF115, 0xF118, 0xF207)
	step(t, vm, 4)

	assert.Equal(t, uint8(0x20), vm.DelayTimer())
	assert.Equal(t, uint8(0x20), vm.SoundTimer())
	assert.Equal(t, uint8(0x20), vm.Register(2))
}

func TestKeySkips(t *testing.T) {
	tests := []struct {
		name    string
		opcode  uint16
		pressed bool
		skip    bool
	}{
		{"skpr pressed", 0xE19E, true, true},
		{"skpr released", 0xE19E, false, false},
		{"skup pressed", 0xE1A1, true, false},
		{"skup released", 0xE1A1, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vm := newTestVM(t, 0x610C, tt.opcode)
			keys := &KeyState{}
			if tt.pressed {
				keys.Press(KeyC)
			}
			vm.keys = keys
			step(t, vm, 2)

			want := ProgramStart + 4
			if tt.skip {
				want += 2
			}
			assert.Equal(t, want, vm.PC())
		})
	}
}

func TestSprite_OutOfBounds(t *testing.T) {
	vm := newTestVM(t, 0xAFFC, 0xD005)
	step(t, vm, 1)

	err := vm.cycle()
	assert.True(t, errors.Is(err, ErrMemoryOutOfBounds))
}

func TestSprite_ZeroHeight(t *testing.T) {
	vm := newTestVM(t, 0xA000, 0xD000, 0xD000, 0xD010)
	step(t, vm, 2)
	assert.Equal(t, uint8(0), vm.Register(0xF))

	vm.registers[0xF] = 1
	step(t, vm, 1)
	assert.Equal(t, uint8(0), vm.Register(0xF))
	assert.Equal(t, Framebuffer{}, vm.Framebuffer())

	// No memory is read for a zero-height sprite, so I may point anywhere.
	vm.index = 0xFFFF
	vm.registers[0xF] = 1
	step(t, vm, 1)
	assert.Equal(t, uint8(0), vm.Register(0xF))
}

func TestSprite_Collision(t *testing.T) {
	vm := newTestVM(t, 0xA300, 0xD011, 0xD011)
	vm.memory[0x300] = 0x81

	step(t, vm, 2)
	assert.Equal(t, uint8(0), vm.Register(0xF))
	fb := vm.Framebuffer()
	assert.True(t, fb.Pixel(0, 0))
	assert.True(t, fb.Pixel(7, 0))

	step(t, vm, 1)
	assert.Equal(t, uint8(1), vm.Register(0xF))
	assert.Equal(t, Framebuffer{}, vm.Framebuffer())
}

func TestSprite_Font(t *testing.T) {
	// Draw glyph "1" at (0, 0).
	vm := newTestVM(t, 0x6001, 0xF029, 0x6000, 0xD005)
	step(t, vm, 4)

	fb := vm.Framebuffer()
	assert.True(t, fb.Pixel(2, 0))
	assert.True(t, fb.Pixel(1, 1))
	assert.True(t, fb.Pixel(2, 1))
	assert.False(t, fb.Pixel(0, 0))
	assert.True(t, fb.Pixel(3, 4))
}

func TestCls(t *testing.T) {
	vm := newTestVM(t, 0xA000, 0xD00F, 0x00E0)
	step(t, vm, 2)
	fb := vm.Framebuffer()
	assert.True(t, fb.Pixel(0, 0))

	step(t, vm, 1)
	assert.Equal(t, Framebuffer{}, vm.Framebuffer())
}
