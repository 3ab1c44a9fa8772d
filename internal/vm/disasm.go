package vm

import "fmt"

// Line is one disassembled opcode.
type Line struct {
	Addr        uint16
	Instruction Instruction
}

func (l Line) String() string {
	return fmt.Sprintf("0x%04x  %04x  %s", l.Addr, l.Instruction.Opcode, l.Instruction)
}

// Disassemble decodes program as a sequence of opcodes loaded at origin.
// A trailing odd byte is not decoded.
func Disassemble(program []byte, origin uint16) []Line {
	lines := make([]Line, 0, len(program)/InstructionSize)

	for i := 0; i+1 < len(program); i += InstructionSize {
		opcode := uint16(program[i])<<8 | uint16(program[i+1])
		lines = append(lines, Line{
			Addr:        origin + uint16(i),
			Instruction: Decode(opcode),
		})
	}

	return lines
}
