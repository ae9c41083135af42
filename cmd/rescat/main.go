// Command rescat prints resources through the same accessor the server uses,
// so a build's frozen content can be compared with a live tree.
//
//	rescat str.txt
//	rescat -mode live -root ./assets/files -transform reverse str.txt
//	rescat -list strings
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/keithlinneman/resource/internal/assets"
	"github.com/keithlinneman/resource/internal/cfg"
	"github.com/keithlinneman/resource/internal/log"
	"github.com/keithlinneman/resource/internal/resource"
	"github.com/keithlinneman/resource/internal/transform"
	v "github.com/keithlinneman/resource/internal/version"
)

type options struct {
	mode      string
	root      string
	list      bool
	text      bool
	transform string
	verbose   bool
	version   bool
}

func main() {
	var o options
	fs := flag.NewFlagSet("rescat", flag.ExitOnError)
	fs.StringVar(&o.mode, "mode", "", "resource mode: frozen|live (empty uses the build default)")
	fs.StringVar(&o.root, "root", "", "live-mode resource directory")
	fs.BoolVar(&o.list, "list", false, "list the files in each named directory instead of printing")
	fs.BoolVar(&o.text, "text", false, "load as text, rejecting content that is not UTF-8")
	fs.StringVar(&o.transform, "transform", "", "none|reverse|trim|zstd")
	fs.BoolVar(&o.verbose, "v", false, "log loader activity to stderr")
	fs.BoolVar(&o.version, "V", false, "print version+build information and exit")
	_ = fs.Parse(os.Args[1:])

	if o.version {
		v.AppName = "rescat"
		fmt.Printf("%s default_mode=%s\n", v.Get(), resource.DefaultMode)
		return
	}

	cfg.FillFromEnv(fs, "RESCAT_", func(format string, args ...any) {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	})

	if err := run(context.Background(), o, fs.Args(), os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "rescat:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, o options, names []string, stdout, stderr io.Writer) error {
	if len(names) == 0 {
		return fmt.Errorf("no resource names given")
	}
	mode, err := resource.ParseMode(o.mode)
	if err != nil {
		return err
	}
	f, ok := transform.ByName(o.transform)
	if !ok {
		return fmt.Errorf("unknown transform %q", o.transform)
	}

	L := log.Nop()
	if o.verbose {
		L, err = log.New(log.Options{App: "rescat", Writer: stderr})
		if err != nil {
			return err
		}
	}

	root := o.root
	if root == "" && resource.BuildRoot == "" {
		root = assets.SourceDir()
	}
	l, err := resource.New(resource.Options{
		Mode:     mode,
		Embedded: assets.FS(),
		Root:     root,
		Logger:   L,
	})
	if err != nil {
		return err
	}

	if o.list {
		for _, dir := range names {
			entries, err := l.List(dir)
			if err != nil {
				return err
			}
			for _, e := range entries {
				fmt.Fprintln(stdout, e.Path)
			}
		}
		return nil
	}

	// nothing is printed unless every name loads and transforms
	var outs [][]byte
	if o.text {
		outs, err = resource.TryMapArray(l, names, func(s string) ([]byte, error) { return f([]byte(s)) })
	} else {
		outs, err = resource.TryMapArray(l, names, f)
	}
	if err != nil {
		return err
	}
	for _, out := range outs {
		if _, err := stdout.Write(out); err != nil {
			return err
		}
	}
	L.Debug(ctx, "printed resources", "count", len(names), "mode", l.Mode().String())
	return nil
}
