package main

import (
	"fmt"

	"github.com/kapitanov/chip8vm/internal/vm"
	"github.com/spf13/cobra"
)

func newDisasmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disasm PATH_TO_ROM_FILE",
		Short: "Print the program as a listing of mnemonics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			program, err := loadProgram(args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, line := range vm.Disassemble(program, vm.ProgramStart) {
				fmt.Fprintln(out, line)
			}

			if len(program)%vm.InstructionSize != 0 {
				last := len(program) - 1
				fmt.Fprintf(out, "0x%04x  %02x    db 0x%02x\n", int(vm.ProgramStart)+last, program[last], program[last])
			}

			return nil
		},
	}
}
