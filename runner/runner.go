// Package runner drives distribute and reassemble operations across many
// carriers, one goroutine per carrier.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"multicarrier-stego/carrier"
	"multicarrier-stego/metrics"
	"multicarrier-stego/stego"
)

const (
	opDistribute = "distribute"
	opReassemble = "reassemble"
)

// Carrier is a carrier file held in memory
type Carrier struct {
	Name string
	Data []byte
}

// Result describes one stego carrier produced by Distribute
type Result struct {
	Source        string
	Name          string
	Adapter       string
	Data          []byte
	Ordinal       uint32
	FrameBytes    int
	CapacityBytes int
	PSNR          float64
}

// CarrierError is a failure scoped to one carrier
type CarrierError struct {
	Carrier string
	Err     error
}

func (e *CarrierError) Error() string {
	return fmt.Sprintf("carrier %s: %v", e.Carrier, e.Err)
}

func (e *CarrierError) Unwrap() error {
	return e.Err
}

type Runner struct {
	registry *carrier.Registry
	channel  *stego.Channel
	metrics  *metrics.Metrics
}

func New(registry *carrier.Registry, lsbBits int, m *metrics.Metrics) (*Runner, error) {
	ch, err := stego.NewChannel(lsbBits)
	if err != nil {
		return nil, err
	}
	return &Runner{registry: registry, channel: ch, metrics: m}, nil
}

// WithLSBBits returns a runner sharing r's registry and metrics that embeds
// lsbBits bits per sample
func (r *Runner) WithLSBBits(lsbBits int) (*Runner, error) {
	if lsbBits == r.channel.LSBBits() {
		return r, nil
	}
	return New(r.registry, lsbBits, r.metrics)
}

func (r *Runner) LSBBits() int {
	return r.channel.LSBBits()
}

type decoded struct {
	adapter carrier.Adapter
	raw     *carrier.Raw
}

// decodeAll picks an adapter for every carrier and decodes it. The first
// failure cancels the rest.
func (r *Runner) decodeAll(ctx context.Context, carriers []Carrier) ([]decoded, error) {
	out := make([]decoded, len(carriers))
	g, ctx := errgroup.WithContext(ctx)
	for i, c := range carriers {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			adapter, err := r.registry.Lookup(c.Name, c.Data)
			if err != nil {
				return &CarrierError{Carrier: c.Name, Err: err}
			}
			raw, err := adapter.Decode(c.Data)
			if err != nil {
				return &CarrierError{Carrier: c.Name, Err: err}
			}
			out[i] = decoded{adapter: adapter, raw: raw}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Distribute splits payload across carriers by weight and embeds one frame
// into each carrier. Nil weights split evenly. Every carrier is checked for
// capacity before any is modified; a failure anywhere returns no results.
func (r *Runner) Distribute(ctx context.Context, payload stego.Payload, carriers []Carrier, weights []float64, opts stego.Options) (results []*Result, err error) {
	start := time.Now()
	defer func() { r.metrics.ObserveOperation(opDistribute, start, err) }()

	opID := OperationID(ctx)
	if len(carriers) == 0 {
		return nil, fmt.Errorf("%w: no carriers", stego.ErrInvalidWeights)
	}
	if weights == nil {
		weights = stego.EvenWeights(len(carriers))
	}
	if len(weights) != len(carriers) {
		return nil, fmt.Errorf("%w: %d weights for %d carriers", stego.ErrInvalidWeights, len(weights), len(carriers))
	}

	log.Printf("[%s] distributing %d bytes across %d carriers (lsb_bits=%d, encrypt=%t, interleave=%t)",
		opID, len(payload.Content), len(carriers), r.LSBBits(), opts.Encrypt, opts.Interleave)

	chunks, err := stego.Split(payload, weights, opts)
	if err != nil {
		return nil, err
	}

	raws, err := r.decodeAll(ctx, carriers)
	if err != nil {
		return nil, err
	}

	for i, c := range carriers {
		need := chunks[i].FrameSize()
		have := r.channel.CapacityBytes(raws[i].raw.Samples)
		if need > have {
			return nil, &CarrierError{
				Carrier: c.Name,
				Err:     fmt.Errorf("%w: chunk %d needs %d bytes, carrier holds %d", stego.ErrCapacityExceeded, i, need, have),
			}
		}
	}

	results = make([]*Result, len(carriers))
	g, gctx := errgroup.WithContext(ctx)
	for i, c := range carriers {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			d := raws[i]
			original := append([]byte(nil), d.raw.Samples...)

			if err := r.channel.WriteFrame(d.raw.Samples, chunks[i]); err != nil {
				return &CarrierError{Carrier: c.Name, Err: err}
			}
			out, err := d.adapter.Encode(d.raw)
			if err != nil {
				return &CarrierError{Carrier: c.Name, Err: fmt.Errorf("failed to encode stego carrier: %w", err)}
			}

			res := &Result{
				Source:        c.Name,
				Name:          carrier.OutputName(c.Name, d.raw),
				Adapter:       d.adapter.Name(),
				Data:          out,
				Ordinal:       chunks[i].Ordinal,
				FrameBytes:    chunks[i].FrameSize(),
				CapacityBytes: r.channel.CapacityBytes(original),
				PSNR:          carrier.CalculatePSNR(original, d.raw.Samples, d.raw.BitDepth),
			}
			results[i] = res
			r.metrics.AddCarrierBytes(opDistribute, res.Adapter, res.FrameBytes)
			log.Printf("[%s] %s: chunk %d/%d, %d frame bytes via %s, PSNR %.2f dB",
				opID, c.Name, res.Ordinal, len(chunks), res.FrameBytes, res.Adapter, res.PSNR)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Printf("[%s] distribute failed: %v", opID, err)
		return nil, err
	}
	return results, nil
}

// Reassemble extracts a frame from every carrier concurrently and joins
// them. Carriers that fail are reported in the returned slice and do not
// stop the others. Without any valid frame the error wraps
// stego.ErrMalformedFrame; with some ordinals missing it is a
// *stego.IncompleteError, possibly alongside a partial payload.
func (r *Runner) Reassemble(ctx context.Context, carriers []Carrier, password string) (payload *stego.Payload, failed []*CarrierError, err error) {
	start := time.Now()
	defer func() { r.metrics.ObserveOperation(opReassemble, start, err) }()

	if len(carriers) == 0 {
		return nil, nil, fmt.Errorf("%w: no carriers to extract from", stego.ErrMalformedFrame)
	}

	opID := OperationID(ctx)
	log.Printf("[%s] reassembling from %d carriers (lsb_bits=%d)", opID, len(carriers), r.LSBBits())

	chunks := make([]*stego.Chunk, len(carriers))
	errs := make([]*CarrierError, len(carriers))

	var g errgroup.Group
	for i, c := range carriers {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			adapterName := "unknown"
			chunk, err := func() (*stego.Chunk, error) {
				adapter, err := r.registry.Lookup(c.Name, c.Data)
				if err != nil {
					return nil, err
				}
				adapterName = adapter.Name()
				raw, err := adapter.Decode(c.Data)
				if err != nil {
					return nil, err
				}
				return r.channel.ReadFrame(raw.Samples)
			}()
			if err != nil {
				errs[i] = &CarrierError{Carrier: c.Name, Err: err}
				r.metrics.CarrierFailed(adapterName)
				log.Printf("[%s] %s: no chunk recovered: %v", opID, c.Name, err)
				return nil
			}
			chunks[i] = chunk
			r.metrics.AddCarrierBytes(opReassemble, adapterName, chunk.FrameSize())
			log.Printf("[%s] %s: recovered chunk %d/%d via %s", opID, c.Name, chunk.Ordinal, chunk.Total, adapterName)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	var found []*stego.Chunk
	for i := range carriers {
		if errs[i] != nil {
			failed = append(failed, errs[i])
		}
		if chunks[i] != nil {
			found = append(found, chunks[i])
		}
	}

	if len(found) == 0 {
		carrierErrs := make([]error, len(failed))
		for i, f := range failed {
			carrierErrs[i] = f
		}
		return nil, failed, fmt.Errorf("%w: no carrier holds a valid chunk: %w", stego.ErrMalformedFrame, errors.Join(carrierErrs...))
	}

	payload, err = stego.Join(found, password)
	if payload != nil {
		log.Printf("[%s] recovered %s (%d bytes)", opID, payload.Name, len(payload.Content))
	}
	return payload, failed, err
}
