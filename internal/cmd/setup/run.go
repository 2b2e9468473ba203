// Package setup implements the `glassfile setup` subcommand.
package setup

import (
	"flag"

	"github.com/miikkis-gh/glassfile/internal/setup"
)

func Run(args []string) error {
	fs := flag.NewFlagSet("setup", flag.ContinueOnError)
	var opt setup.Options
	fs.StringVar(&opt.ConfigPath, "config", "config.yaml", "path to write config.yaml")
	fs.StringVar(&opt.StorageDir, "storage-dir", "./data", "managed storage directory")
	fs.StringVar(&opt.Bind, "bind", "127.0.0.1", "bind address")
	fs.IntVar(&opt.Port, "port", 8080, "HTTP port")
	if err := fs.Parse(args); err != nil {
		return err
	}
	return setup.Run(opt)
}
