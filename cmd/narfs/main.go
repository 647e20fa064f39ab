// narfs inspects Nix archives without unpacking them.
//
// Archives are read from a local file or an HTTP(S) URL that supports range
// requests. With --listing, the archive is never read in full: the index is
// loaded from a JSON listing and file content is fetched by range on demand,
// optionally through a disk or memory cache.
//
// Usage:
//
//	narfs [flags] <command> [args]
//
// Commands:
//
//	ls [-R] [path]              list a directory
//	stat <path>                 show entry metadata
//	cat <path>                  write file content to stdout
//	readlink <path>             print a symlink target
//	listing [--shallow] [path]  write the JSON listing of a subtree
//	dump [path]                 write a subtree as a new archive
//	pack <dir>                  write a local directory as an archive
//	mount <mountpoint>          mount the archive read-only via FUSE
//
// Flag defaults may be set through NARFS_* environment variables.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/pflag"
)

// envConfig holds flag defaults read from the environment.
type envConfig struct {
	CacheDir           string `envconfig:"CACHE_DIR"`
	CacheMaxBytes      int64  `envconfig:"CACHE_MAX_BYTES" default:"0"`
	MemoryCacheEntries int    `envconfig:"MEMORY_CACHE_ENTRIES" default:"0"`
	MaxEntries         int    `envconfig:"MAX_ENTRIES" default:"0"`
	LogLevel           string `envconfig:"LOG_LEVEL" default:"warn"`
}

// options are the global flags.
type options struct {
	archive            string
	listing            string
	cacheDir           string
	cacheMaxBytes      int64
	memoryCacheEntries int
	maxEntries         int
	logLevel           string
}

type command struct {
	name  string
	usage string
	// needsArchive is false for commands that work without --archive.
	needsArchive bool
	run          func(ctx context.Context, env *environment, args []string) error
}

var commands = []command{
	{name: "ls", usage: "ls [-R] [path]", needsArchive: true, run: runLs},
	{name: "stat", usage: "stat <path>", needsArchive: true, run: runStat},
	{name: "cat", usage: "cat <path>", needsArchive: true, run: runCat},
	{name: "readlink", usage: "readlink <path>", needsArchive: true, run: runReadlink},
	{name: "listing", usage: "listing [--shallow] [--zstd] [path]", needsArchive: true, run: runListing},
	{name: "dump", usage: "dump [path]", needsArchive: true, run: runDump},
	{name: "pack", usage: "pack <dir>", run: runPack},
	{name: "mount", usage: "mount [--allow-other] <mountpoint>", needsArchive: true, run: runMount},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "narfs: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var defaults envConfig
	if err := envconfig.Process("narfs", &defaults); err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	var opts options
	flagSet := pflag.NewFlagSet("narfs", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.SetInterspersed(false)
	flagSet.StringVarP(&opts.archive, "archive", "a", "", "archive file path or http(s) URL")
	flagSet.StringVarP(&opts.listing, "listing", "l", "", "JSON listing of the archive; content is then fetched by range")
	flagSet.StringVar(&opts.cacheDir, "cache-dir", defaults.CacheDir, "directory for cached content ranges")
	flagSet.Int64Var(&opts.cacheMaxBytes, "cache-max-bytes", defaults.CacheMaxBytes, "disk cache size limit (0 = unlimited)")
	flagSet.IntVar(&opts.memoryCacheEntries, "memory-cache-entries", defaults.MemoryCacheEntries, "in-memory range cache size (0 = disabled)")
	flagSet.IntVar(&opts.maxEntries, "max-entries", defaults.MaxEntries, "maximum entries in an index (0 = default, negative = unlimited)")
	flagSet.StringVar(&opts.logLevel, "log-level", defaults.LogLevel, "log level: debug, info, warn or error")
	flagSet.Usage = func() { printUsage(stderr, flagSet) }

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(opts.logLevel)); err != nil {
		return fmt.Errorf("invalid log level %q", opts.logLevel)
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	rest := flagSet.Args()
	if len(rest) == 0 {
		printUsage(stderr, flagSet)
		return errors.New("no command given")
	}
	for _, cmd := range commands {
		if cmd.name != rest[0] {
			continue
		}
		if cmd.needsArchive && opts.archive == "" {
			return fmt.Errorf("%s: --archive is required", cmd.name)
		}
		env := &environment{opts: opts, logger: logger, stdout: stdout}
		defer env.close()
		if err := cmd.run(ctx, env, rest[1:]); err != nil && !errors.Is(err, pflag.ErrHelp) {
			return err
		}
		return nil
	}
	return fmt.Errorf("unknown command %q", rest[0])
}

func printUsage(w io.Writer, flagSet *pflag.FlagSet) {
	fmt.Fprintf(w, "Usage: narfs [flags] <command> [args]\n\nCommands:\n")
	for _, cmd := range commands {
		fmt.Fprintf(w, "  %s\n", cmd.usage)
	}
	fmt.Fprintf(w, "\nFlags:\n%s", flagSet.FlagUsages())
}
