package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"

	"github.com/spf13/pflag"

	"github.com/meigma/nar"
	"github.com/meigma/nar/archive"
	"github.com/meigma/nar/fsaccess"
	"github.com/meigma/nar/fuse"
)

// parseArgs parses subcommand flags and returns at most max positional
// arguments, requiring at least min.
func parseArgs(flagSet *pflag.FlagSet, args []string, minArgs, maxArgs int) ([]string, error) {
	if err := flagSet.Parse(args); err != nil {
		return nil, err
	}
	rest := flagSet.Args()
	if len(rest) < minArgs || len(rest) > maxArgs {
		return nil, fmt.Errorf("%s: wrong number of arguments", flagSet.Name())
	}
	return rest, nil
}

func pathArg(args []string) fsaccess.Path {
	if len(args) == 0 {
		return fsaccess.Root()
	}
	return fsaccess.ParsePath(args[0])
}

func runLs(ctx context.Context, env *environment, args []string) error {
	flagSet := pflag.NewFlagSet("ls", pflag.ContinueOnError)
	recursive := flagSet.BoolP("recursive", "R", false, "list subdirectories recursively")
	rest, err := parseArgs(flagSet, args, 0, 1)
	if err != nil {
		return err
	}
	acc, err := env.openAccessor(ctx)
	if err != nil {
		return err
	}
	return list(env, acc, pathArg(rest), "", *recursive)
}

func list(env *environment, acc *nar.Accessor, p fsaccess.Path, prefix string, recursive bool) error {
	entries, err := acc.ReadDirectory(p)
	if err != nil {
		return err
	}
	for _, name := range entries.Names() {
		child := p.Join(name)
		st, err := acc.Stat(child)
		if err != nil {
			return err
		}
		display := path.Join(prefix, name)
		switch st.Type {
		case fsaccess.TypeDirectory:
			fmt.Fprintf(env.stdout, "%s/\n", display)
			if recursive {
				if err := list(env, acc, child, display, true); err != nil {
					return err
				}
			}
		case fsaccess.TypeSymlink:
			target, err := acc.ReadLink(child)
			if err != nil {
				return err
			}
			fmt.Fprintf(env.stdout, "%s -> %s\n", display, target)
		default:
			fmt.Fprintln(env.stdout, display)
		}
	}
	return nil
}

func runStat(ctx context.Context, env *environment, args []string) error {
	flagSet := pflag.NewFlagSet("stat", pflag.ContinueOnError)
	rest, err := parseArgs(flagSet, args, 1, 1)
	if err != nil {
		return err
	}
	acc, err := env.openAccessor(ctx)
	if err != nil {
		return err
	}
	st, err := acc.Stat(pathArg(rest))
	if err != nil {
		return err
	}
	fmt.Fprintf(env.stdout, "type: %s\n", st.Type)
	if st.Type != fsaccess.TypeRegular {
		return nil
	}
	fmt.Fprintf(env.stdout, "executable: %t\n", st.IsExecutable)
	if size, ok := st.Size(); ok {
		fmt.Fprintf(env.stdout, "size: %d\n", size)
	}
	if off, ok := st.Offset(); ok {
		fmt.Fprintf(env.stdout, "narOffset: %d\n", off)
	}
	return nil
}

func runCat(ctx context.Context, env *environment, args []string) error {
	flagSet := pflag.NewFlagSet("cat", pflag.ContinueOnError)
	rest, err := parseArgs(flagSet, args, 1, 1)
	if err != nil {
		return err
	}
	acc, err := env.openAccessor(ctx)
	if err != nil {
		return err
	}
	data, err := acc.ReadFile(pathArg(rest))
	if err != nil {
		return err
	}
	_, err = env.stdout.Write(data)
	return err
}

func runReadlink(ctx context.Context, env *environment, args []string) error {
	flagSet := pflag.NewFlagSet("readlink", pflag.ContinueOnError)
	rest, err := parseArgs(flagSet, args, 1, 1)
	if err != nil {
		return err
	}
	acc, err := env.openAccessor(ctx)
	if err != nil {
		return err
	}
	target, err := acc.ReadLink(pathArg(rest))
	if err != nil {
		return err
	}
	fmt.Fprintln(env.stdout, target)
	return nil
}

func runListing(ctx context.Context, env *environment, args []string) error {
	flagSet := pflag.NewFlagSet("listing", pflag.ContinueOnError)
	shallow := flagSet.Bool("shallow", false, "list only the immediate children of a directory")
	compress := flagSet.Bool("zstd", false, "write the listing zstd-compressed")
	rest, err := parseArgs(flagSet, args, 0, 1)
	if err != nil {
		return err
	}
	acc, err := env.openAccessor(ctx)
	if err != nil {
		return err
	}
	root := pathArg(rest)
	bad, found, err := findUnknown(acc, root, !*shallow)
	if err != nil {
		return err
	}
	if found {
		return fmt.Errorf("listing %s: entry %s has an unsupported type", root, bad)
	}
	l, err := nar.List(acc, root, !*shallow)
	if err != nil {
		return err
	}

	var data []byte
	if *compress {
		data, err = nar.CompressListing(l)
	} else {
		data, err = nar.MarshalListing(l)
		data = append(data, '\n')
	}
	if err != nil {
		return err
	}
	_, err = env.stdout.Write(data)
	return err
}

// findUnknown returns the first entry of unknown type that List would
// describe. Listings from newer producers can carry such entries.
func findUnknown(acc *nar.Accessor, p fsaccess.Path, recursive bool) (fsaccess.Path, bool, error) {
	st, err := acc.Stat(p)
	if err != nil {
		return fsaccess.Path{}, false, err
	}
	switch st.Type {
	case fsaccess.TypeUnknown:
		return p, true, nil
	case fsaccess.TypeDirectory:
		if !recursive {
			return fsaccess.Path{}, false, nil
		}
	default:
		return fsaccess.Path{}, false, nil
	}
	entries, err := acc.ReadDirectory(p)
	if err != nil {
		return fsaccess.Path{}, false, err
	}
	for _, name := range entries.Names() {
		if bad, found, err := findUnknown(acc, p.Join(name), true); err != nil || found {
			return bad, found, err
		}
	}
	return fsaccess.Path{}, false, nil
}

func runDump(ctx context.Context, env *environment, args []string) error {
	flagSet := pflag.NewFlagSet("dump", pflag.ContinueOnError)
	rest, err := parseArgs(flagSet, args, 0, 1)
	if err != nil {
		return err
	}
	acc, err := env.openAccessor(ctx)
	if err != nil {
		return err
	}
	return archive.Dump(ctx, env.stdout, acc, pathArg(rest))
}

func runPack(ctx context.Context, env *environment, args []string) error {
	flagSet := pflag.NewFlagSet("pack", pflag.ContinueOnError)
	rest, err := parseArgs(flagSet, args, 1, 1)
	if err != nil {
		return err
	}
	info, err := os.Lstat(rest[0])
	if err != nil {
		return err
	}
	// A single file or symlink becomes the archive root.
	if !info.IsDir() {
		dir, base := filepath.Split(rest[0])
		if dir == "" {
			dir = "."
		}
		return archive.Dump(ctx, env.stdout, fsaccess.FS(os.DirFS(dir)), fsaccess.ParsePath(base))
	}
	return archive.Dump(ctx, env.stdout, fsaccess.FS(os.DirFS(rest[0])), fsaccess.Root())
}

func runMount(ctx context.Context, env *environment, args []string) error {
	flagSet := pflag.NewFlagSet("mount", pflag.ContinueOnError)
	allowOther := flagSet.Bool("allow-other", false, "allow other users to access the mount")
	subtree := flagSet.String("root", "", "directory within the archive to mount")
	rest, err := parseArgs(flagSet, args, 1, 1)
	if err != nil {
		return err
	}
	acc, err := env.openAccessor(ctx)
	if err != nil {
		return err
	}

	server, err := fuse.Mount(fuse.Options{
		Mountpoint: rest[0],
		Accessor:   acc,
		Root:       fsaccess.ParsePath(*subtree),
		AllowOther: *allowOther,
		Logger:     env.logger,
	})
	if err != nil {
		return err
	}
	env.logger.Info("mounted archive",
		slog.String("archive", env.opts.archive),
		slog.String("mountpoint", rest[0]),
		slog.Int("entries", acc.Len()))

	done := make(chan struct{})
	go func() {
		server.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
	}
	env.logger.Info("unmounting", slog.String("mountpoint", rest[0]))
	if err := server.Unmount(); err != nil {
		return errors.Join(fmt.Errorf("unmount %s: %w", rest[0], err), ctx.Err())
	}
	<-done
	return nil
}
