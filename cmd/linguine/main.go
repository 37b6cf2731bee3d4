// Command linguine is the ambient CLI shell around the language
// core: run a script, compile it to a persisted image, or disassemble
// one. None of this is part of the language itself (spec §1 excludes
// "build, packaging, and CLI shell" from the core); it exists so the
// runtime package has a way to be exercised from a terminal.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/momoengine/linguine"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "linguine",
		Short: "Run, compile and inspect Linguine scripts",
	}
	root.AddCommand(newRunCmd(), newCompileCmd(), newDisasmCmd())
	return root
}

func newRunCmd() *cobra.Command {
	var entry string
	var intArgs []int

	cmd := &cobra.Command{
		Use:   "run <file>",
		Short: "Compile and execute a Linguine source file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, argv []string) error {
			src, err := os.ReadFile(argv[0])
			if err != nil {
				return err
			}
			rt := linguine.NewRuntime()
			defer rt.Free()
			if err := rt.LoadSource(argv[0], src); err != nil {
				return err
			}
			args := make([]linguine.Value, len(intArgs))
			for i, a := range intArgs {
				args[i] = linguine.IntValue(int32(a))
			}
			result, err := rt.Call(entry, args)
			if err != nil {
				return err
			}
			fmt.Println(result.String())
			return nil
		},
	}
	cmd.Flags().StringVar(&entry, "entry", "main", "function to invoke after loading")
	cmd.Flags().IntSliceVar(&intArgs, "arg", nil, "integer argument to pass to the entry function (repeatable)")
	return cmd
}

func newCompileCmd() *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "compile <file>",
		Short: "Compile a source file to a bytecode image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, argv []string) error {
			src, err := os.ReadFile(argv[0])
			if err != nil {
				return err
			}
			p, err := linguine.NewParser(argv[0], src)
			if err != nil {
				return err
			}
			fl, err := p.Parse()
			if err != nil {
				return err
			}
			img, err := linguine.Compile(argv[0], fl)
			if err != nil {
				return err
			}
			data, err := img.Encode()
			if err != nil {
				return err
			}
			if outPath == "" {
				outPath = argv[0] + ".lnb"
			}
			return os.WriteFile(outPath, data, 0o644)
		},
	}
	cmd.Flags().StringVarP(&outPath, "output", "o", "", "output path for the compiled image (default: <file>.lnb)")
	return cmd
}

func newDisasmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disasm <file.lnb>",
		Short: "Print the instructions of a compiled bytecode image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, argv []string) error {
			data, err := os.ReadFile(argv[0])
			if err != nil {
				return err
			}
			img, err := linguine.DecodeImage(data)
			if err != nil {
				return err
			}
			for _, fn := range img.Functions {
				fmt.Printf("func %s(%s) ; tmpvars=%d\n", fn.Name, joinParams(fn.Params), fn.TmpvarCount)
				for pc, instr := range fn.Code {
					fmt.Printf("  %4d  %-18s dst=%d a=%d b=%d\n", pc, instr.Op, instr.Dst, instr.A, instr.B)
				}
			}
			return nil
		},
	}
}

func joinParams(params []string) string {
	out := ""
	for i, p := range params {
		if i > 0 {
			out += ", "
		}
		out += p
	}
	return out
}
