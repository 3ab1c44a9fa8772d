package vm

import "fmt"

func (vm *VM) push(addr uint16) error {
	if vm.sp >= StackSize {
		return fmt.Errorf("%w: call at 0x%04x with %d frames", ErrStackOverflow, vm.pc-InstructionSize, vm.sp)
	}

	vm.stack[vm.sp] = addr
	vm.sp++
	return nil
}

func (vm *VM) pop() (uint16, error) {
	if vm.sp == 0 {
		return 0, fmt.Errorf("%w: return at 0x%04x", ErrStackUnderflow, vm.pc-InstructionSize)
	}

	vm.sp--
	addr := vm.stack[vm.sp]
	vm.stack[vm.sp] = 0
	return addr, nil
}
