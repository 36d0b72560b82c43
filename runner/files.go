package runner

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"

	"multicarrier-stego/carrier"
	"multicarrier-stego/stego"
)

func readCarriers(paths []string) ([]Carrier, error) {
	carriers := make([]Carrier, len(paths))
	for i, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("failed to read carrier: %w", err)
		}
		carriers[i] = Carrier{Name: p, Data: data}
	}
	return carriers, nil
}

// Hide reads the secret and carrier files, distributes the secret and writes
// one stego carrier per input into outDir. Outputs are published only when
// every carrier succeeded.
func (r *Runner) Hide(ctx context.Context, secretPath string, carrierPaths []string, weights []float64, outDir string, opts stego.Options) ([]string, error) {
	content, err := os.ReadFile(secretPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read secret file: %w", err)
	}
	carriers, err := readCarriers(carrierPaths)
	if err != nil {
		return nil, err
	}

	payload := stego.Payload{Name: filepath.Base(secretPath), Content: content}
	results, err := r.Distribute(ctx, payload, carriers, weights, opts)
	if err != nil {
		return nil, err
	}

	staging := carrier.NewStaging()
	for _, res := range results {
		if err := staging.Stage(filepath.Join(outDir, res.Name), res.Data); err != nil {
			staging.Discard()
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		staging.Discard()
		return nil, err
	}
	published, err := staging.Publish()
	if err != nil {
		staging.Discard()
		return published, err
	}
	return published, nil
}

// Reveal extracts the hidden file from the given carriers and writes it into
// outDir under its recorded name. On partial recovery the partial file is
// written (when it is meaningful) and the *stego.IncompleteError returned.
func (r *Runner) Reveal(ctx context.Context, carrierPaths []string, outDir, password string) (string, []*CarrierError, error) {
	carriers, err := readCarriers(carrierPaths)
	if err != nil {
		return "", nil, err
	}

	payload, failed, err := r.Reassemble(ctx, carriers, password)
	if payload == nil {
		return "", failed, err
	}

	outPath := filepath.Join(outDir, SafeName(payload.Name))
	if werr := carrier.WriteAtomic(outPath, payload.Content); werr != nil {
		return "", failed, errors.Join(err, werr)
	}
	log.Printf("wrote %s (%d bytes)", outPath, len(payload.Content))
	return outPath, failed, err
}

// RevealDir runs Reveal over every file in dir that some adapter supports.
// Subdirectories and unsupported files are skipped.
func (r *Runner) RevealDir(ctx context.Context, dir, outDir, password string) (string, []*CarrierError, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", nil, fmt.Errorf("failed to list carriers: %w", err)
	}

	var paths []string
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		p := filepath.Join(dir, e.Name())
		if !r.supports(p) {
			log.Printf("skipping %s: unsupported format", p)
			continue
		}
		paths = append(paths, p)
	}
	sort.Strings(paths)

	if len(paths) == 0 {
		return "", nil, fmt.Errorf("%w: no supported carriers in %s", carrier.ErrUnsupportedFormat, dir)
	}
	return r.Reveal(ctx, paths, outDir, password)
}

func (r *Runner) supports(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	head := make([]byte, 64)
	n, _ := f.Read(head)
	_, err = r.registry.Lookup(path, head[:n])
	return err == nil
}

// SafeName reduces a recovered payload name to a plain file name
func SafeName(name string) string {
	base := filepath.Base(filepath.Clean("/" + name))
	if base == "/" || base == "." || base == ".." {
		return stego.DefaultPayloadName
	}
	return base
}
