package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/chazu/garnet/store"
	"github.com/chazu/garnet/vm/wire"
)

func newRunCmd(a *app) *cobra.Command {
	var printResult bool
	cmd := &cobra.Command{
		Use:   "run [file.gas|file.gbc]",
		Short: "Run a unit (default: the project entry)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.manifest.EntryPath()
			if len(args) == 1 {
				path = args[0]
			}
			if path == "" {
				return fmt.Errorf("no file given and no project entry configured")
			}
			unit, err := a.loadUnit(path)
			if err != nil {
				return err
			}
			return a.runUnit(cmd, unit, printResult)
		},
	}
	cmd.Flags().BoolVar(&printResult, "print", false, "print the inspect of the result")
	return cmd
}

func newAsmCmd(a *app) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "asm <file.gas>",
		Short: "Assemble a source file into an encoded unit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			unit, err := a.loadUnit(args[0])
			if err != nil {
				return err
			}
			data, err := wire.MarshalUnit(unit)
			if err != nil {
				return err
			}
			if output == "" {
				output = strings.TrimSuffix(args[0], ".gas") + ".gbc"
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return fmt.Errorf("cannot write %s: %w", output, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d bytes, %s\n", output, len(data), store.Hash(data)[:12])
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: input with .gbc)")
	return cmd
}

func newDisasmCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "disasm <file>",
		Short: "Disassemble a unit and its nested units",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			unit, err := a.loadUnit(args[0])
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), unit.Disassemble())
			return nil
		},
	}
}

func newStoreCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "store",
		Short: "Manage the content-addressed unit store",
	}

	withStore := func(fn func(cmd *cobra.Command, s *store.Store, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			s, err := store.Open(a.manifest.StorePath())
			if err != nil {
				return err
			}
			defer s.Close()
			return fn(cmd, s, args)
		}
	}

	put := &cobra.Command{
		Use:   "put <file>",
		Short: "Store a unit and print its hash",
		Args:  cobra.ExactArgs(1),
		RunE: withStore(func(cmd *cobra.Command, s *store.Store, args []string) error {
			unit, err := a.loadUnit(args[0])
			if err != nil {
				return err
			}
			hash, err := s.Put(unit)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		}),
	}

	ls := &cobra.Command{
		Use:   "ls",
		Short: "List stored units",
		Args:  cobra.NoArgs,
		RunE: withStore(func(cmd *cobra.Command, s *store.Store, args []string) error {
			entries, err := s.List()
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", e.Hash[:12], e.Name, e.Size, e.CreatedAt.Format("2006-01-02 15:04:05"))
			}
			return w.Flush()
		}),
	}

	var printResult bool
	run := &cobra.Command{
		Use:   "run <hash-prefix>",
		Short: "Run a stored unit",
		Args:  cobra.ExactArgs(1),
		RunE: withStore(func(cmd *cobra.Command, s *store.Store, args []string) error {
			hash, err := s.Resolve(args[0])
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			unit, err := s.Get(hash)
			if err != nil {
				return err
			}
			return a.runUnit(cmd, unit, printResult)
		}),
	}
	run.Flags().BoolVar(&printResult, "print", false, "print the inspect of the result")

	cmd.AddCommand(put, ls, run)
	return cmd
}
