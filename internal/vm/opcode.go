package vm

import (
	"context"
	"fmt"
	"log/slog"
)

// Op identifies an opcode family.
type Op uint8

const (
	OpUnknown Op = iota
	OpCls
	OpRts
	OpJmp
	OpJsr
	OpSkeqImm
	OpSkneImm
	OpSkeqReg
	OpMovImm
	OpAddImm
	OpMovReg
	OpOr
	OpAnd
	OpXor
	OpAddReg
	OpSub
	OpShr
	OpRsb
	OpShl
	OpSkneReg
	OpMvi
	OpJmi
	OpRand
	OpSprite
	OpSkpr
	OpSkup
	OpGdelay
	OpKey
	OpSdelay
	OpSsound
	OpAdi
	OpFont
	OpBcd
	OpStr
	OpLdr

	opCount
)

// Instruction is a decoded opcode with its operand fields split out.
// Fields that the opcode family does not use are still filled in.
type Instruction struct {
	Op     Op
	Opcode uint16

	X   uint8  // Second nibble, register index
	Y   uint8  // Third nibble, register index
	N   uint8  // Low nibble
	NN  uint8  // Low byte
	NNN uint16 // Low 12 bits, address
}

func (in Instruction) String() string {
	instr := instructions[in.Op]
	if instr.operands == nil {
		return instr.mnemonic
	}
	return instr.mnemonic + " " + instr.operands(in)
}

// Decode splits an opcode into its family and operand fields.
func Decode(opcode uint16) Instruction {
	return Instruction{
		Op:     decodeOp(opcode),
		Opcode: opcode,
		X:      uint8((opcode & 0x0F00) >> 8),
		Y:      uint8((opcode & 0x00F0) >> 4),
		N:      uint8(opcode & 0x000F),
		NN:     uint8(opcode & 0x00FF),
		NNN:    opcode & 0x0FFF,
	}
}

func decodeOp(opcode uint16) Op {
	switch opcode & 0xF000 {
	case 0x0000:
		switch opcode & 0x00FF {
		case 0x00E0:
			// 00E0 - Clear screen
			return OpCls

		case 0x00EE:
			// 00EE - Return from subroutine
			return OpRts
		}

	case 0x1000:
		// 1NNN - Jumps to address NNN
		return OpJmp

	case 0x2000:
		// 2NNN - Calls subroutine at NNN
		return OpJsr

	case 0x3000:
		// 3XNN - Skips the next instruction if VX equals NN
		return OpSkeqImm

	case 0x4000:
		// 4XNN - Skips the next instruction if VX does not equal NN
		return OpSkneImm

	case 0x5000:
		// 5XY0 - Skips the next instruction if VX equals VY
		if opcode&0x000F == 0 {
			return OpSkeqReg
		}

	case 0x6000:
		// 6XNN - Sets VX to NN
		return OpMovImm

	case 0x7000:
		// 7XNN - Adds NN to VX
		return OpAddImm

	case 0x8000:
		// 8XY_
		switch opcode & 0x000F {
		case 0x0000:
			// 8XY0 - Sets VX to the value of VY
			return OpMovReg

		case 0x0001:
			// 8XY1 - Sets VX to (VX OR VY)
			return OpOr

		case 0x0002:
			// 8XY2 - Sets VX to (VX AND VY)
			return OpAnd

		case 0x0003:
			// 8XY3 - Sets VX to (VX XOR VY)
			return OpXor

		case 0x0004:
			// 8XY4 - Adds VY to VX. VF is set to 1 when there's a carry, and to 0 when there isn't.
			return OpAddReg

		case 0x0005:
			// 8XY5 - VY is subtracted from VX. VF is set to 0 when there's a borrow, and 1 when there isn't.
			return OpSub

		case 0x0006:
			// 8XY6 - Shifts VX right by one. VF is set to the bit shifted out.
			return OpShr

		case 0x0007:
			// 8XY7 - Sets VX to VY minus VX. VF is set to 0 when there's a borrow, and 1 when there isn't.
			return OpRsb

		case 0x000E:
			// 8XYE - Shifts VX left by one. VF is set to the bit shifted out.
			return OpShl
		}

	case 0x9000:
		// 9XY0 - Skips the next instruction if VX doesn't equal VY
		if opcode&0x000F == 0 {
			return OpSkneReg
		}

	case 0xA000:
		// ANNN - Sets I to the address NNN
		return OpMvi

	case 0xB000:
		// BNNN - Jumps to the address NNN plus V0
		return OpJmi

	case 0xC000:
		// CXNN - Sets VX to a random number, masked by NN
		return OpRand

	case 0xD000:
		// DXYN - Draws an 8xN sprite read from I at (VX, VY).
		// VF is set to 1 if any lit pixel is turned off, and to 0 otherwise.
		return OpSprite

	case 0xE000:
		switch opcode & 0x00FF {
		case 0x009E:
			// EX9E - Skips the next instruction if the key stored in VX is pressed
			return OpSkpr

		case 0x00A1:
			// EXA1 - Skips the next instruction if the key stored in VX isn't pressed
			return OpSkup
		}

	case 0xF000:
		switch opcode & 0x00FF {
		case 0x0007:
			// FX07 - Sets VX to the value of the delay timer
			return OpGdelay

		case 0x000A:
			// FX0A - A key press is awaited, and then stored in VX
			return OpKey

		case 0x0015:
			// FX15 - Sets the delay timer to VX
			return OpSdelay

		case 0x0018:
			// FX18 - Sets the sound timer to VX
			return OpSsound

		case 0x001E:
			// FX1E - Adds VX to I. VF is not affected.
			return OpAdi

		case 0x0029:
			// FX29 - Sets I to the location of the font glyph for the digit in VX
			return OpFont

		case 0x0033:
			// FX33 - Stores the decimal digits of VX at I, I+1 and I+2
			return OpBcd

		case 0x0055:
			// FX55 - Stores V0 to VX in memory starting at address I
			return OpStr

		case 0x0065:
			// FX65 - Reads memory starting at address I into V0 to VX
			return OpLdr
		}
	}

	return OpUnknown
}

func (vm *VM) executeOpcode(opcode uint16) error {
	in := Decode(opcode)

	if slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		slog.Debug(
			"exec",
			"pc", fmt.Sprintf("0x%04x", vm.pc-InstructionSize),
			"opcode", fmt.Sprintf("0x%04x", opcode),
			"instr", in.String(),
		)
	}

	return instructions[in.Op].execute(vm, in)
}

type instruction struct {
	mnemonic string
	operands func(in Instruction) string
	execute  func(vm *VM, in Instruction) error
}

func (vm *VM) skipIf(cond bool) {
	if cond {
		vm.pc += InstructionSize
	}
}

func flag(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

func addrOperand(in Instruction) string {
	return fmt.Sprintf("0x%03x", in.NNN)
}

func regOperand(in Instruction) string {
	return fmt.Sprintf("v%x", in.X)
}

func regImmOperands(in Instruction) string {
	return fmt.Sprintf("v%x, %d", in.X, in.NN)
}

func regRegOperands(in Instruction) string {
	return fmt.Sprintf("v%x, v%x", in.X, in.Y)
}

var instructions = [opCount]instruction{
	OpUnknown: {
		mnemonic: "unknown",
		operands: func(in Instruction) string {
			return fmt.Sprintf("0x%04x", in.Opcode)
		},
		execute: func(vm *VM, in Instruction) error {
			pc := vm.pc - InstructionSize
			slog.Warn("unknown opcode",
				"pc", fmt.Sprintf("0x%04x", pc),
				"opcode", fmt.Sprintf("0x%04x", in.Opcode),
			)
			vm.emit(Event{Kind: EventUnknownOpcode, PC: pc, Opcode: in.Opcode})
			return nil
		},
	},

	// 00E0	cls	Clear the screen
	OpCls: {
		mnemonic: "cls",
		execute: func(vm *VM, in Instruction) error {
			vm.gfx.Clear()
			vm.drawFlag = true
			return nil
		},
	},

	// 00EE	rts	return from subroutine call
	OpRts: {
		mnemonic: "rts",
		execute: func(vm *VM, in Instruction) error {
			pc, err := vm.pop()
			if err != nil {
				return err
			}
			vm.pc = pc
			return nil
		},
	},

	// 1xxx	jmp xxx	jump to address xxx
	OpJmp: {
		mnemonic: "jmp",
		operands: addrOperand,
		execute: func(vm *VM, in Instruction) error {
			vm.pc = in.NNN
			return nil
		},
	},

	// 2xxx	jsr xxx	jump to subroutine at address xxx
	OpJsr: {
		mnemonic: "jsr",
		operands: addrOperand,
		execute: func(vm *VM, in Instruction) error {
			if err := vm.push(vm.pc); err != nil {
				return err
			}
			vm.pc = in.NNN
			return nil
		},
	},

	// 3rxx	skeq vr,xx	skip if register r = constant
	OpSkeqImm: {
		mnemonic: "skeq",
		operands: regImmOperands,
		execute: func(vm *VM, in Instruction) error {
			vm.skipIf(vm.registers[in.X] == in.NN)
			return nil
		},
	},

	// 4rxx	skne vr,xx	skip if register r <> constant
	OpSkneImm: {
		mnemonic: "skne",
		operands: regImmOperands,
		execute: func(vm *VM, in Instruction) error {
			vm.skipIf(vm.registers[in.X] != in.NN)
			return nil
		},
	},

	// 5ry0	skeq vr,vy	skip if register r = register y
	OpSkeqReg: {
		mnemonic: "skeq",
		operands: regRegOperands,
		execute: func(vm *VM, in Instruction) error {
			vm.skipIf(vm.registers[in.X] == vm.registers[in.Y])
			return nil
		},
	},

	// 6rxx	mov vr,xx	move constant to register r
	OpMovImm: {
		mnemonic: "mov",
		operands: regImmOperands,
		execute: func(vm *VM, in Instruction) error {
			vm.registers[in.X] = in.NN
			return nil
		},
	},

	// 7rxx	add vr,xx	add constant to register r	No carry generated
	OpAddImm: {
		mnemonic: "add",
		operands: regImmOperands,
		execute: func(vm *VM, in Instruction) error {
			vm.registers[in.X] += in.NN
			return nil
		},
	},

	// 8ry0	mov vr,vy	move register vy into vr
	OpMovReg: {
		mnemonic: "mov",
		operands: regRegOperands,
		execute: func(vm *VM, in Instruction) error {
			vm.registers[in.X] = vm.registers[in.Y]
			return nil
		},
	},

	// 8ry1	or rx,ry	or register vy into register vx
	OpOr: {
		mnemonic: "or",
		operands: regRegOperands,
		execute: func(vm *VM, in Instruction) error {
			vm.registers[in.X] |= vm.registers[in.Y]
			return nil
		},
	},

	// 8ry2	and rx,ry	and register vy into register vx
	OpAnd: {
		mnemonic: "and",
		operands: regRegOperands,
		execute: func(vm *VM, in Instruction) error {
			vm.registers[in.X] &= vm.registers[in.Y]
			return nil
		},
	},

	// 8ry3	xor rx,ry	exclusive or register ry into register rx
	OpXor: {
		mnemonic: "xor",
		operands: regRegOperands,
		execute: func(vm *VM, in Instruction) error {
			vm.registers[in.X] ^= vm.registers[in.Y]
			return nil
		},
	},

	// 8ry4	add vr,vy	add register vy to vr,carry in vf
	OpAddReg: {
		mnemonic: "add",
		operands: regRegOperands,
		execute: func(vm *VM, in Instruction) error {
			sum := uint16(vm.registers[in.X]) + uint16(vm.registers[in.Y])

			vm.registers[in.X] = uint8(sum)
			vm.registers[flagRegister] = flag(sum > 0xFF)
			return nil
		},
	},

	// 8ry5	sub vr,vy	subtract register vy from vr,vf set to 1 if no borrow
	OpSub: {
		mnemonic: "sub",
		operands: regRegOperands,
		execute: func(vm *VM, in Instruction) error {
			x := vm.registers[in.X]
			y := vm.registers[in.Y]

			vm.registers[in.X] = x - y
			vm.registers[flagRegister] = flag(x >= y)
			return nil
		},
	},

	// 8ry6	shr vr	shift register vr right, bit 0 goes into register vf
	OpShr: {
		mnemonic: "shr",
		operands: regOperand,
		execute: func(vm *VM, in Instruction) error {
			src := vm.shiftSource(in)

			vm.registers[in.X] = src >> 1
			vm.registers[flagRegister] = src & 0x01
			return nil
		},
	},

	// 8ry7	rsb vr,vy	subtract register vr from register vy, result in vr, vf set to 1 if no borrow
	OpRsb: {
		mnemonic: "rsb",
		operands: regRegOperands,
		execute: func(vm *VM, in Instruction) error {
			x := vm.registers[in.X]
			y := vm.registers[in.Y]

			vm.registers[in.X] = y - x
			vm.registers[flagRegister] = flag(y >= x)
			return nil
		},
	},

	// 8rye	shl vr	shift register vr left, bit 7 goes into register vf
	OpShl: {
		mnemonic: "shl",
		operands: regOperand,
		execute: func(vm *VM, in Instruction) error {
			src := vm.shiftSource(in)

			vm.registers[in.X] = src << 1
			vm.registers[flagRegister] = src >> 7
			return nil
		},
	},

	// 9ry0	skne rx,ry	skip if register rx <> register ry
	OpSkneReg: {
		mnemonic: "skne",
		operands: regRegOperands,
		execute: func(vm *VM, in Instruction) error {
			vm.skipIf(vm.registers[in.X] != vm.registers[in.Y])
			return nil
		},
	},

	// axxx	mvi xxx	Load index register with constant xxx
	OpMvi: {
		mnemonic: "mvi",
		operands: addrOperand,
		execute: func(vm *VM, in Instruction) error {
			vm.index = in.NNN
			return nil
		},
	},

	// bxxx	jmi xxx	Jump to address xxx+register v0
	OpJmi: {
		mnemonic: "jmi",
		operands: addrOperand,
		execute: func(vm *VM, in Instruction) error {
			vm.pc = in.NNN + uint16(vm.registers[0])
			return nil
		},
	},

	// crxx	rand vr,xx	vr = random byte AND xx
	OpRand: {
		mnemonic: "rand",
		operands: regImmOperands,
		execute: func(vm *VM, in Instruction) error {
			vm.registers[in.X] = vm.random.Byte() & in.NN
			return nil
		},
	},

	// drys	sprite rx,ry,s	Draw sprite at screen location rx,ry height s
	// Sprites stored in memory at location in index register, 8 bits wide.
	// If when drawn, clears a pixel, vf is set to 1 otherwise it is zero.
	// All drawing is xor drawing (e.g. it toggles the screen pixels)
	OpSprite: {
		mnemonic: "sprite",
		operands: func(in Instruction) string {
			return fmt.Sprintf("v%x, v%x, %d", in.X, in.Y, in.N)
		},
		execute: func(vm *VM, in Instruction) error {
			sprite, err := vm.memoryRange(vm.index, int(in.N))
			if err != nil {
				return err
			}

			x, y := int(vm.registers[in.X]), int(vm.registers[in.Y])
			vm.registers[flagRegister] = 0

			collision := vm.gfx.Draw(x, y, sprite, vm.quirks.WrapSprites)
			vm.registers[flagRegister] = flag(collision)
			vm.drawFlag = true
			return nil
		},
	},

	// ek9e	skpr k	skip if key (register rk) pressed
	OpSkpr: {
		mnemonic: "skpr",
		operands: regOperand,
		execute: func(vm *VM, in Instruction) error {
			vm.skipIf(vm.keys.IsPressed(vm.keyIn(in.X)))
			return nil
		},
	},

	// eka1	skup k	skip if key (register rk) not pressed
	OpSkup: {
		mnemonic: "skup",
		operands: regOperand,
		execute: func(vm *VM, in Instruction) error {
			vm.skipIf(!vm.keys.IsPressed(vm.keyIn(in.X)))
			return nil
		},
	},

	// fr07	gdelay vr	get delay timer into vr
	OpGdelay: {
		mnemonic: "gdelay",
		operands: regOperand,
		execute: func(vm *VM, in Instruction) error {
			vm.registers[in.X] = vm.delayTimer
			return nil
		},
	},

	// fr0a	key vr	wait for for keypress,put key in register vr
	OpKey: {
		mnemonic: "key",
		operands: regOperand,
		execute: func(vm *VM, in Instruction) error {
			if !vm.keyWait.active {
				vm.keyWait.enter(in.X)
				vm.pc -= InstructionSize
				return nil
			}

			key, ok := firstPressed(vm.keys)
			if !ok {
				// Stall on this opcode until a key goes down.
				vm.pc -= InstructionSize
				return nil
			}

			vm.registers[vm.keyWait.target] = uint8(key)
			vm.keyWait.release()
			return nil
		},
	},

	// fr15	sdelay vr	set the delay timer to vr
	OpSdelay: {
		mnemonic: "sdelay",
		operands: regOperand,
		execute: func(vm *VM, in Instruction) error {
			vm.delayTimer = vm.registers[in.X]
			return nil
		},
	},

	// fr18	ssound vr	set the sound timer to vr
	OpSsound: {
		mnemonic: "ssound",
		operands: regOperand,
		execute: func(vm *VM, in Instruction) error {
			vm.soundTimer = vm.registers[in.X]
			return nil
		},
	},

	// fr1e	adi vr	add register vr to the index register
	OpAdi: {
		mnemonic: "adi",
		operands: regOperand,
		execute: func(vm *VM, in Instruction) error {
			vm.index += uint16(vm.registers[in.X])
			return nil
		},
	},

	// fr29	font vr	point I to the sprite for hexadecimal character in vr	Sprite is 5 bytes high
	OpFont: {
		mnemonic: "font",
		operands: regOperand,
		execute: func(vm *VM, in Instruction) error {
			vm.index = FontOffset + uint16(vm.registers[in.X])*fontGlyphSize
			return nil
		},
	},

	// fr33	bcd vr	store the bcd representation of register vr at location I,I+1,I+2	Doesn't change I
	OpBcd: {
		mnemonic: "bcd",
		operands: regOperand,
		execute: func(vm *VM, in Instruction) error {
			mem, err := vm.memoryRange(vm.index, 3)
			if err != nil {
				return err
			}

			x := vm.registers[in.X]
			mem[0] = x / 100
			mem[1] = (x / 10) % 10
			mem[2] = x % 10
			return nil
		},
	},

	// fr55	str v0-vr	store registers v0-vr at location I onwards
	OpStr: {
		mnemonic: "str",
		operands: regOperand,
		execute: func(vm *VM, in Instruction) error {
			n := int(in.X) + 1
			mem, err := vm.memoryRange(vm.index, n)
			if err != nil {
				return err
			}

			copy(mem, vm.registers[:n])
			vm.advanceIndex(n)
			return nil
		},
	},

	// fr65	ldr v0-vr	load registers v0-vr from location I onwards
	OpLdr: {
		mnemonic: "ldr",
		operands: regOperand,
		execute: func(vm *VM, in Instruction) error {
			n := int(in.X) + 1
			mem, err := vm.memoryRange(vm.index, n)
			if err != nil {
				return err
			}

			copy(vm.registers[:n], mem)
			vm.advanceIndex(n)
			return nil
		},
	},
}

func (vm *VM) shiftSource(in Instruction) uint8 {
	if vm.quirks.ShiftUsesVY {
		return vm.registers[in.Y]
	}
	return vm.registers[in.X]
}

// On the COSMAC VIP interpreter, when FX55/FX65 is done, I = I + X + 1.
func (vm *VM) advanceIndex(n int) {
	if vm.quirks.LoadStoreIncrementsIndex {
		vm.index += uint16(n)
	}
}

// keyIn returns the key number held in VX. Only its low nibble is used.
func (vm *VM) keyIn(x uint8) Key {
	return Key(vm.registers[x] & 0x0F)
}
