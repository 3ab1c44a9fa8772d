package vm

import (
	"fmt"
	"log/slog"
)

const (
	MemorySize    = 4096
	StackSize     = 16
	RegisterCount = 16
	ScreenWidth   = 64
	ScreenHeight  = 32
	KeyCount      = 16

	FontOffset      = uint16(0x000)
	ProgramStart    = uint16(0x200)
	MaxAddress      = uint16(MemorySize - 1)
	MaxProgramSize  = MemorySize - int(ProgramStart)
	InstructionSize = 2

	flagRegister = 0x0F
)

type VM struct {
	memory    [MemorySize]uint8    // Memory (4k)
	registers [RegisterCount]uint8 // V registers (V0-VF)

	stack [StackSize]uint16 // Stack
	sp    int               // Stack pointer

	pc    uint16 // Program counter
	index uint16 // Index register

	delayTimer uint8 // Delay timer
	soundTimer uint8 // Sound timer

	gfx      Framebuffer // Graphics buffer
	keyWait  keyWait     // FX0A latch
	drawFlag bool        // Indicates a draw has occurred during the current tick

	quirks        Quirks
	random        RandomSource
	cyclesPerTick int

	keys   Keypad  // Key state of the tick in progress
	events []Event // Events emitted during the tick in progress
	fault  error   // Fatal error, returned by every later Tick
}

// New creates a VM with zeroed state, the font loaded and PC at ProgramStart.
func New(cfg Config) (*VM, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	vm := &VM{
		quirks:        cfg.Quirks,
		random:        cfg.Random,
		cyclesPerTick: cfg.CyclesPerTick(),
		keys:          &KeyState{},
	}
	if vm.random == nil {
		vm.random = SystemRandom{}
	}

	vm.initialize()
	return vm, nil
}

func (vm *VM) initialize() {
	vm.pc = ProgramStart
	vm.index = 0
	vm.sp = 0

	vm.gfx.Clear()
	vm.drawFlag = true

	// Load font set into memory
	slog.Debug("load font", "at", fmt.Sprintf("0x%04x", FontOffset), "n", len(chip8Font))
	copy(vm.memory[FontOffset:], chip8Font[:])
}

// Load writes the program image at ProgramStart. An image that does not fit
// is rejected and the VM is left untouched.
func (vm *VM) Load(program []byte) error {
	if len(program) > MaxProgramSize {
		return fmt.Errorf("%w: %d bytes, at most %d fit at 0x%04x",
			ErrProgramTooLarge, len(program), MaxProgramSize, ProgramStart)
	}

	slog.Info("load program", "at", fmt.Sprintf("0x%04x", ProgramStart), "n", len(program))
	copy(vm.memory[ProgramStart:], program)
	return nil
}

func (vm *VM) PC() uint16 {
	return vm.pc
}

func (vm *VM) Index() uint16 {
	return vm.index
}

// Register returns VX. Only the low nibble of x is used.
func (vm *VM) Register(x int) uint8 {
	return vm.registers[x&0x0F]
}

func (vm *VM) Registers() [RegisterCount]uint8 {
	return vm.registers
}

func (vm *VM) DelayTimer() uint8 {
	return vm.delayTimer
}

func (vm *VM) SoundTimer() uint8 {
	return vm.soundTimer
}

func (vm *VM) StackDepth() int {
	return vm.sp
}

// Waiting reports whether the VM is blocked on FX0A and which register
// receives the key.
func (vm *VM) Waiting() (bool, int) {
	return vm.keyWait.active, int(vm.keyWait.target)
}

// Framebuffer returns a copy of the screen.
func (vm *VM) Framebuffer() Framebuffer {
	return vm.gfx
}

// Memory returns a copy of the address space.
func (vm *VM) Memory() [MemorySize]uint8 {
	return vm.memory
}

// Fault returns the fatal error that stopped the VM, if any.
func (vm *VM) Fault() error {
	return vm.fault
}

func (vm *VM) cycle() error {
	opcode, err := vm.fetchOpcode()
	if err != nil {
		return err
	}

	return vm.executeOpcode(opcode)
}

// fetchOpcode reads the big-endian word at PC and advances PC past it.
func (vm *VM) fetchOpcode() (uint16, error) {
	if vm.pc >= MaxAddress {
		return 0, fmt.Errorf("%w: fetch at 0x%04x", ErrMemoryOutOfBounds, vm.pc)
	}

	hi := vm.memory[vm.pc]
	lo := vm.memory[vm.pc+1]
	vm.pc += InstructionSize

	opcode := uint16(hi)<<8 | uint16(lo) // Op code is two bytes
	return opcode, nil
}

// memoryRange returns memory[addr:addr+n] or ErrMemoryOutOfBounds if any
// byte of it lies past MaxAddress.
func (vm *VM) memoryRange(addr uint16, n int) ([]uint8, error) {
	if n == 0 {
		return nil, nil
	}

	end := int(addr) + n
	if end > MemorySize {
		return nil, fmt.Errorf("%w: 0x%04x..0x%04x", ErrMemoryOutOfBounds, addr, end-1)
	}

	return vm.memory[addr:end], nil
}

func (vm *VM) emit(e Event) {
	vm.events = append(vm.events, e)
}
