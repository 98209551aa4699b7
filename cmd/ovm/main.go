package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"ovm/internal/debugger"
	"ovm/internal/vm"
)

func main() {
	var stackSize int
	var callStackSize int
	var registers int

	rootCmd := &cobra.Command{
		Use:   "ovm",
		Short: "ovm runs, disassembles, and debugs OVM bytecode programs",
	}
	rootCmd.PersistentFlags().IntVar(&stackSize, "stack-size", vm.DefaultStackSize, "operand stack size in bytes")
	rootCmd.PersistentFlags().IntVar(&callStackSize, "call-stack-size", vm.DefaultCallStackSize, "call stack depth")
	rootCmd.PersistentFlags().IntVar(&registers, "registers", vm.DefaultRegisterWords, "register file size in 8-byte words")

	runCmd := &cobra.Command{
		Use:   "run <file>",
		Short: "load and execute a bytecode program",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := loadMachine(args[0], stackSize, callStackSize, registers)
			if err != nil {
				return err
			}
			if err := m.Run(os.Stdout); err != nil {
				return fmt.Errorf("ovm: %w", err)
			}
			return nil
		},
	}

	disasmCmd := &cobra.Command{
		Use:   "disasm <file>",
		Short: "print a disassembly listing of a bytecode program",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			buf, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			prog, err := vm.ReadProgram(buf)
			if err != nil {
				return fmt.Errorf("ovm: %w", err)
			}
			for addr, in := range prog.Instructions {
				marker := "  "
				if uint64(addr) == prog.StartAddress {
					marker = "->"
				}
				fmt.Printf("%s %04d  %s\n", marker, addr, in.String())
			}
			return nil
		},
	}

	var breakAddrs []int64
	debugCmd := &cobra.Command{
		Use:   "debug <file>",
		Short: "step through a bytecode program in an interactive debugger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := loadMachine(args[0], stackSize, callStackSize, registers)
			if err != nil {
				return err
			}
			bps := make([]uint64, len(breakAddrs))
			for i, a := range breakAddrs {
				bps[i] = uint64(a)
			}
			return debugger.Run(m, bps)
		},
	}
	debugCmd.Flags().Int64SliceVar(&breakAddrs, "break", nil, "breakpoint program addresses")

	rootCmd.AddCommand(runCmd, disasmCmd, debugCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadMachine(path string, stackSize, callStackSize, registers int) (*vm.Machine, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	prog, err := vm.ReadProgram(buf)
	if err != nil {
		return nil, fmt.Errorf("ovm: %w", err)
	}
	m := vm.NewMachine(stackSize, callStackSize, registers)
	if err := m.Load(prog); err != nil {
		return nil, fmt.Errorf("ovm: %w", err)
	}
	return m, nil
}
