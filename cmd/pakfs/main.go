// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/pakfs

// pakfs inspects and exercises a layered game filesystem from the command
// line: it prints the search path, lists and reads logical paths, touches
// files to trigger copy-on-demand, and builds PBO archives.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"
	"github.com/spf13/pflag"
	"github.com/woozymasta/pathrules"
	"go.uber.org/zap"

	"github.com/woozymasta/pakfs"
)

// cliFlags holds command line overrides applied on top of the config file.
type cliFlags struct {
	config     string
	cd         string
	base       string
	dev        string
	save       string
	configRoot string
	baseGame   string
	gameBase   string
	game       string
	logLevel   string
	logFormat  string
	prefix     string
	checksums  string
	compress   []string
	include    []string
	copyPolicy int
	addons     []uint32
	pure       []uint32
	stats      bool
	verify     bool
}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(argv []string, stdout io.Writer) error {
	var f cliFlags

	flagSet := pflag.NewFlagSet("pakfs", pflag.ContinueOnError)
	flagSet.StringVarP(&f.config, "config", "c", "", "path to YAML config file")
	flagSet.StringVar(&f.cd, "cd", "", "CD root directory")
	flagSet.StringVar(&f.base, "base", "", "installation root directory")
	flagSet.StringVar(&f.dev, "dev", "", "development root directory")
	flagSet.StringVar(&f.save, "save", "", "save root directory (default write target)")
	flagSet.StringVar(&f.configRoot, "config-root", "", "configuration root directory")
	flagSet.StringVar(&f.baseGame, "base-game", "", "base mod directory (default \"base\")")
	flagSet.StringVar(&f.gameBase, "game-base", "", "mod directory mounted over the base game")
	flagSet.StringVarP(&f.game, "game", "g", "", "mod directory with the highest priority")
	flagSet.IntVar(&f.copyPolicy, "copy-policy", -1, "copy-on-demand policy 0..4")
	flagSet.StringVar(&f.checksums, "checksum", "", "archive checksum algorithm: md4 or blake3")
	flagSet.StringVar(&f.logLevel, "log-level", "", "log level: debug, info, warn, error")
	flagSet.StringVar(&f.logFormat, "log-format", "", "log format: console or json")
	flagSet.StringVar(&f.prefix, "prefix", "", "build: archive prefix header")
	flagSet.StringSliceVar(&f.compress, "compress", nil, "build: compression include patterns")
	flagSet.StringSliceVar(&f.include, "include", nil, "build: file include patterns")
	flagSet.BoolVar(&f.verify, "verify", false, "build: verify the written archive")
	flagSet.BoolVar(&f.stats, "stats", false, "print engine counters on exit")
	flagSet.BoolP("help", "h", false, "show help")

	var addons, pure []uint
	flagSet.UintSliceVar(&addons, "addon", nil, "addon checksum to enable (repeatable)")
	flagSet.UintSliceVar(&pure, "pure", nil, "pure checksum to allow (repeatable)")

	if err := flagSet.Parse(argv); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printHelp(flagSet)
			return nil
		}
		return err
	}

	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return nil
	}

	args := flagSet.Args()
	if len(args) == 0 {
		printHelp(flagSet)
		return errors.New("missing command")
	}

	for _, v := range addons {
		f.addons = append(f.addons, uint32(v)) //nolint:gosec // checksums are 32-bit
	}
	for _, v := range pure {
		f.pure = append(f.pure, uint32(v)) //nolint:gosec // checksums are 32-bit
	}

	cfg, err := loadConfig(f)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "build":
		return runBuild(ctx, cfg, f, logger, rest, stdout)
	case "verify":
		return runVerify(rest, stdout)
	}

	opts, err := cfg.Options()
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	opts.Logger = logger
	opts.Metrics = pakfs.NewMetrics(reg)

	fsys := pakfs.New(opts)
	fsys.SetRestartChecksums(f.pure, f.addons)
	if err := fsys.Startup(); err != nil {
		return err
	}
	defer func() {
		if err := fsys.Shutdown(); err != nil {
			logger.Warn("shutdown", zap.Error(err))
		}
	}()

	if err := runCommand(fsys, cmd, rest, stdout); err != nil {
		return err
	}

	if f.stats {
		return printStats(reg, stdout)
	}

	return nil
}

// loadConfig reads the optional config file and applies flag overrides.
func loadConfig(f cliFlags) (*pakfs.Config, error) {
	cfg := &pakfs.Config{}
	if f.config != "" {
		loaded, err := pakfs.LoadConfig(afero.NewOsFs(), f.config)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	overrides := []struct {
		dst *string
		val string
	}{
		{&cfg.Roots.CD, f.cd},
		{&cfg.Roots.Base, f.base},
		{&cfg.Roots.Dev, f.dev},
		{&cfg.Roots.Save, f.save},
		{&cfg.Roots.Config, f.configRoot},
		{&cfg.BaseGame, f.baseGame},
		{&cfg.GameBase, f.gameBase},
		{&cfg.Game, f.game},
		{&cfg.Checksum, f.checksums},
		{&cfg.Log.Level, f.logLevel},
		{&cfg.Log.Format, f.logFormat},
		{&cfg.Build.Prefix, f.prefix},
	}
	for _, o := range overrides {
		if o.val != "" {
			*o.dst = o.val
		}
	}

	if f.verify {
		cfg.Build.Verify = true
	}

	if f.copyPolicy >= 0 {
		cfg.CopyPolicy = pakfs.CopyPolicy(f.copyPolicy)
	}

	for _, p := range f.compress {
		cfg.Build.Compress = append(cfg.Build.Compress, pathrules.Rule{Action: pathrules.ActionInclude, Pattern: p})
	}
	for _, p := range f.include {
		cfg.Build.Include = append(cfg.Build.Include, pathrules.Rule{Action: pathrules.ActionInclude, Pattern: p})
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// runCommand executes one filesystem subcommand.
func runCommand(fsys *pakfs.FileSystem, cmd string, args []string, stdout io.Writer) error {
	switch cmd {
	case "path":
		return printPath(fsys, stdout)
	case "dir", "dirtree":
		if len(args) < 1 || len(args) > 2 {
			return fmt.Errorf("usage: %s <directory> [extension]", cmd)
		}
		return printListing(fsys, cmd == "dirtree", args, stdout)
	case "cat":
		if len(args) != 1 {
			return errors.New("usage: cat <file>")
		}
		data, err := fsys.ReadFile(args[0])
		if err != nil {
			return err
		}
		_, err = stdout.Write(data)
		return err
	case "touch":
		if len(args) != 1 {
			return errors.New("usage: touch <file>")
		}
		return touch(fsys, args[0], stdout)
	case "touchlist":
		if len(args) != 1 {
			return errors.New("usage: touchlist <file>")
		}
		data, err := fsys.ReadFile(args[0])
		if err != nil {
			return err
		}
		for _, name := range strings.Fields(string(data)) {
			if err := touch(fsys, name, stdout); err != nil && !errors.Is(err, pakfs.ErrNotFound) {
				return err
			}
		}
		return nil
	case "find":
		if len(args) != 1 {
			return errors.New("usage: find <file>")
		}
		_, err := fmt.Fprintln(stdout, fsys.FindFile(args[0], false))
		return err
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func printPath(fsys *pakfs.FileSystem, stdout io.Writer) error {
	fmt.Fprintln(stdout, "Current search path:")
	for _, info := range fsys.SearchPaths() {
		fmt.Fprintln(stdout, info)
	}

	pool := fsys.AddonPool()
	if len(pool) == 0 {
		return nil
	}

	fmt.Fprintln(stdout, "Addon pk4s:")
	for _, info := range pool {
		fmt.Fprintln(stdout, info)
	}

	return nil
}

func printListing(fsys *pakfs.FileSystem, tree bool, args []string, stdout io.Writer) error {
	dir, ext := args[0], ""
	if len(args) == 2 {
		ext = args[1]
		if ext != pakfs.DirectoryExt && !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
	}

	list := fsys.ListFiles
	suffix := ""
	if tree {
		list = fsys.ListFilesTree
		suffix = " /s"
	}

	names, err := list(dir, ext, true)
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "Listing of %s/*%s%s\n", dir, ext, suffix)
	fmt.Fprintln(stdout, "---------------")
	for _, name := range names {
		fmt.Fprintln(stdout, name)
	}
	fmt.Fprintf(stdout, "%d files\n", len(names))

	return nil
}

func touch(fsys *pakfs.FileSystem, name string, stdout io.Writer) error {
	f, err := fsys.OpenFileRead(name)
	if err != nil {
		return err
	}

	fmt.Fprintln(stdout, f.FullPath())
	return f.Close()
}

func runBuild(ctx context.Context, cfg *pakfs.Config, f cliFlags, logger *zap.Logger, args []string, stdout io.Writer) error {
	if len(args) != 2 {
		return errors.New("usage: build <input_dir> <output.pbo>")
	}

	opts := cfg.Build
	opts.Logger = logger

	res, err := pakfs.BuildArchive(ctx, afero.NewOsFs(), args[0], args[1], opts)
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "%s: %d entries (%d compressed), %d bytes, sha1 %x\n",
		args[1], res.Entries, res.CompressedEntries, res.DataSize, res.Checksum)

	if f.stats {
		fmt.Fprintf(stdout, "raw %d bytes in %s\n", res.RawBytes, res.Duration)
	}

	return nil
}

func printStats(reg *prometheus.Registry, stdout io.Writer) error {
	families, err := reg.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}

	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			var labels []string
			for _, lp := range m.GetLabel() {
				labels = append(labels, lp.GetName()+"="+lp.GetValue())
			}

			value := m.GetCounter().GetValue()
			if g := m.GetGauge(); g != nil {
				value = g.GetValue()
			}

			fmt.Fprintf(stdout, "%s{%s} %g\n", mf.GetName(), strings.Join(labels, ","), value)
		}
	}

	return nil
}

func runVerify(args []string, stdout io.Writer) error {
	if len(args) != 1 {
		return errors.New("usage: verify <archive.pbo>")
	}

	report, err := pakfs.VerifyArchive(afero.NewOsFs(), args[0])
	if err != nil {
		return err
	}

	for _, h := range report.Headers {
		fmt.Fprintf(stdout, "header %s=%s\n", h.Key, h.Value)
	}
	for _, e := range report.Entries {
		fmt.Fprintf(stdout, "%10d %s\n", e.DataSize, e.Path)
	}

	if report.HasTrailer {
		fmt.Fprintf(stdout, "%d entries, sha1 %x\n", len(report.Entries), report.Trailer)
	} else {
		fmt.Fprintf(stdout, "%d entries, no trailer\n", len(report.Entries))
	}

	return nil
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `pakfs inspects a layered game filesystem.

Usage:
  pakfs [flags] <command> [args]

Commands:
  path                          print the search path and the addon pool
  dir <directory> [ext]         list direct children of a logical directory
  dirtree <directory> [ext]     list a logical directory recursively
  cat <file>                    write a logical file to stdout
  touch <file>                  open a logical file, applying copy-on-demand
  touchlist <file>              touch every path listed in a logical file
  find <file>                   report whether a logical file is available
  build <input_dir> <output>    pack a directory into a PBO archive
  verify <archive>              check a PBO trailer and print its index

Flags:
`)
	flagSet.SetOutput(os.Stderr)
	flagSet.PrintDefaults()
}
