package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"multicarrier-stego/runner"
	"multicarrier-stego/stego"
)

const usage = `usage:
  multicarrier-stego [-config file]                    run the HTTP API
  multicarrier-stego hide [flags] secret carrier...    hide secret across carriers
  multicarrier-stego reveal [flags] carrier|dir...     recover a hidden file`

// runCommand handles the hide and reveal subcommands. It reports false when
// args name no subcommand.
func runCommand(r *runner.Runner, args []string) (bool, error) {
	if len(args) == 0 {
		return false, nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	switch args[0] {
	case "hide":
		return true, hide(ctx, r, args[1:])
	case "reveal":
		return true, reveal(ctx, r, args[1:])
	default:
		return true, errors.New(usage)
	}
}

func hide(ctx context.Context, r *runner.Runner, args []string) error {
	fs := flag.NewFlagSet("hide", flag.ContinueOnError)
	out := fs.String("out", ".", "directory for the stego carriers")
	weightsFlag := fs.String("weights", "", "comma separated percentages, one per carrier (default even split)")
	password := fs.String("password", os.Getenv("STEGO_PASSWORD"), "encryption password")
	encrypt := fs.Bool("encrypt", false, "encrypt the secret before embedding")
	interleave := fs.Bool("interleave", false, "scramble the payload before splitting")
	lsbBits := fs.Int("lsb-bits", r.LSBBits(), "bits per sample")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 2 {
		return errors.New(usage)
	}

	var weights []float64
	if *weightsFlag != "" {
		for _, field := range strings.Split(*weightsFlag, ",") {
			w, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				return fmt.Errorf("%w: %q", stego.ErrInvalidWeights, field)
			}
			weights = append(weights, w)
		}
	}

	r, err := r.WithLSBBits(*lsbBits)
	if err != nil {
		return err
	}
	opts := stego.Options{Password: *password, Encrypt: *encrypt, Interleave: *interleave}
	published, err := r.Hide(ctx, fs.Arg(0), fs.Args()[1:], weights, *out, opts)
	if err != nil {
		return err
	}
	for _, p := range published {
		log.Printf("wrote %s", p)
	}
	return nil
}

func reveal(ctx context.Context, r *runner.Runner, args []string) error {
	fs := flag.NewFlagSet("reveal", flag.ContinueOnError)
	out := fs.String("out", ".", "directory for the recovered file")
	password := fs.String("password", os.Getenv("STEGO_PASSWORD"), "decryption password")
	lsbBits := fs.Int("lsb-bits", r.LSBBits(), "bits per sample")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errors.New(usage)
	}

	r, err := r.WithLSBBits(*lsbBits)
	if err != nil {
		return err
	}

	var written string
	var failed []*runner.CarrierError
	if info, statErr := os.Stat(fs.Arg(0)); fs.NArg() == 1 && statErr == nil && info.IsDir() {
		written, failed, err = r.RevealDir(ctx, fs.Arg(0), *out, *password)
	} else {
		written, failed, err = r.Reveal(ctx, fs.Args(), *out, *password)
	}
	for _, f := range failed {
		log.Printf("skipped %v", f)
	}
	if written != "" {
		log.Printf("recovered %s", written)
	}
	return err
}
