// Package app implements the mrimesh command line.
package app

import (
	"github.com/mandelsoft/vfs/pkg/osfs"
	"github.com/mandelsoft/vfs/pkg/vfs"
	"github.com/spf13/cobra"

	"mrimesh/internal/logging"
	"mrimesh/pkg/config"
)

type Options struct {
	configPath string
	verbose    bool
	fs         vfs.FileSystem
	cfg        *config.Config
}

// Config returns the loaded configuration, or the defaults before loading.
func (o *Options) Config() *config.Config {
	if o.cfg == nil {
		return config.DefaultConfig()
	}
	return o.cfg
}

func (o *Options) load() error {
	cfg, err := config.LoadConfigFS(o.fs, o.configPath)
	if err != nil {
		return err
	}
	o.cfg = cfg
	logging.Configure(o.verbose || cfg.Output.Verbose)
	return nil
}

// New creates the root command. The optional filesystem is used for the
// configuration file.
func New(fss ...vfs.FileSystem) *cobra.Command {
	opts := &Options{
		fs: vfs.FileSystem(osfs.OsFs),
	}
	if len(fss) > 0 && fss[0] != nil {
		opts.fs = fss[0]
	}

	maincmd := &cobra.Command{
		Use:   "mrimesh <options> <cmd> <args>",
		Short: "build surface meshes from MRI slice stacks",
		Long: `
This command extracts iso-surfaces from stacks of 2D MRI slices, writes them
as STL or glTF meshes and inspects existing mesh files.
`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load()
		},
	}

	flags := maincmd.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "config.yaml", "configuration file")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "log progress")

	maincmd.AddCommand(NewExtract(opts))
	maincmd.AddCommand(NewInfo(opts))
	maincmd.AddCommand(NewSlices(opts))
	maincmd.AddCommand(NewConfig(opts))
	return maincmd
}
