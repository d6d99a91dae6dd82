package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/chazu/garnet/asm"
	"github.com/chazu/garnet/manifest"
	"github.com/chazu/garnet/vm"
	"github.com/chazu/garnet/vm/wire"
)

// app carries the state shared by every subcommand.
type app struct {
	verbose   int
	configDir string

	manifest *manifest.Manifest
	log      commonlog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "garnet",
		Short:         "Assemble, store and run garnet bytecode units",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
	}
	root.PersistentFlags().CountVarP(&a.verbose, "verbose", "v", "increase log verbosity (repeatable)")
	root.PersistentFlags().StringVar(&a.configDir, "config", "", "directory to search for "+manifest.FileName)

	root.AddCommand(
		newRunCmd(a),
		newAsmCmd(a),
		newDisasmCmd(a),
		newStoreCmd(a),
	)
	return root
}

// setup loads the manifest and configures logging.
func (a *app) setup() error {
	start := a.configDir
	if start == "" {
		start = "."
	}
	m, err := manifest.FindAndLoad(start)
	if errors.Is(err, manifest.ErrNoManifest) {
		dir, aerr := filepath.Abs(start)
		if aerr != nil {
			return aerr
		}
		m, err = manifest.Default(dir), nil
	}
	if err != nil {
		return err
	}
	a.manifest = m

	var path *string
	if m.Log.File != "" {
		p := m.Log.File
		if !filepath.IsAbs(p) {
			p = filepath.Join(m.Dir, p)
		}
		path = &p
	}
	commonlog.Configure(m.Log.Verbosity+a.verbose, path)
	a.log = commonlog.GetLogger("garnet.cli")
	a.log.Debugf("project dir %s", m.Dir)
	return nil
}

// newSpace creates an object space configured from the manifest.
func (a *app) newSpace(cmd *cobra.Command) *vm.Space {
	opts := a.manifest.Options()
	opts.Stdout = cmd.OutOrStdout()
	opts.Compile = asm.Compile
	return vm.NewSpace(opts)
}

// loadUnit reads an assembly source (.gas) or an encoded unit (.gbc).
func (a *app) loadUnit(path string) (*vm.Unit, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	if strings.HasSuffix(path, ".gbc") {
		unit, err := wire.UnmarshalUnit(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return unit, nil
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	unit, err := asm.Compile(name, string(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	a.log.Debugf("assembled %s (%d bytes of code)", path, len(unit.Code))
	return unit, nil
}

// runUnit executes unit in a fresh space.
func (a *app) runUnit(cmd *cobra.Command, unit *vm.Unit, printResult bool) error {
	space := a.newSpace(cmd)
	result, err := space.Run(unit)
	if err != nil {
		return err
	}
	if printResult {
		fmt.Fprintln(cmd.OutOrStdout(), vm.Inspect(result))
	}
	if space.Profiler != nil {
		a.log.Infof("%d hot loops", space.Profiler.HotLoopCount())
	}
	return nil
}
