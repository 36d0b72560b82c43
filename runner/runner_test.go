package runner

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"multicarrier-stego/carrier"
	"multicarrier-stego/crypto"
	"multicarrier-stego/stego"
)

const rawMagic = "RAW0"

// rawAdapter treats everything after a 4-byte magic as samples
type rawAdapter struct{}

func (rawAdapter) Name() string { return "raw" }
func (rawAdapter) Category() carrier.Category { return carrier.Other }
func (rawAdapter) Extensions() []string { return []string{".raw"} }
func (rawAdapter) Sniff(data []byte) bool { return bytes.HasPrefix(data, []byte(rawMagic)) }

func (rawAdapter) Decode(data []byte) (*carrier.Raw, error) {
	if !bytes.HasPrefix(data, []byte(rawMagic)) {
		return nil, carrier.ErrUnsupportedFormat
	}
	return &carrier.Raw{Samples: bytes.Clone(data[len(rawMagic):]), Ext: ".raw"}, nil
}

func (rawAdapter) Encode(raw *carrier.Raw) ([]byte, error) {
	return append([]byte(rawMagic), raw.Samples...), nil
}

func rawCarrier(name string, samples int) Carrier {
	data := []byte(rawMagic)
	for i := range samples {
		data = append(data, byte(i*31))
	}
	return Carrier{Name: name, Data: data}
}

func newRunner(t *testing.T, lsbBits int) *Runner {
	t.Helper()
	r, err := New(carrier.NewRegistry(rawAdapter{}), lsbBits, nil)
	require.NoError(t, err)
	return r
}

var secret = stego.Payload{
	Name:    "secret.txt",
	Content: []byte("the quick brown fox jumps over the lazy dog"),
}

func TestDistributeReassemble(t *testing.T) {
	tests := []struct {
		name    string
		lsbBits int
		weights []float64
		opts    stego.Options
	}{
		{"plain even split", 1, nil, stego.Options{}},
		{"weighted", 2, []float64{50, 30, 20}, stego.Options{}},
		{"encrypted", 1, []float64{10, 10, 80}, stego.Options{Encrypt: true, Password: "hunter2"}},
		{"all layers", 4, []float64{34, 33, 33}, stego.Options{Encrypt: true, Interleave: true, Password: "hunter2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRunner(t, tt.lsbBits)
			carriers := []Carrier{
				rawCarrier("a.raw", 4096),
				rawCarrier("b.raw", 4096),
				rawCarrier("c.raw", 4096),
			}

			results, err := r.Distribute(context.Background(), secret, carriers, tt.weights, tt.opts)
			require.NoError(t, err)
			require.Len(t, results, 3)

			var stegoCarriers []Carrier
			for i, res := range results {
				assert.Equal(t, uint32(i), res.Ordinal)
				assert.Equal(t, "raw", res.Adapter)
				assert.Equal(t, carriers[i].Name, res.Source)
				assert.Greater(t, res.PSNR, 30.0)
				stegoCarriers = append(stegoCarriers, Carrier{Name: res.Name, Data: res.Data})
			}
			assert.Equal(t, "a_stego.raw", results[0].Name)

			// extraction order must not matter
			stegoCarriers[0], stegoCarriers[2] = stegoCarriers[2], stegoCarriers[0]

			payload, failed, err := r.Reassemble(context.Background(), stegoCarriers, tt.opts.Password)
			require.NoError(t, err)
			assert.Empty(t, failed)
			assert.Equal(t, secret.Name, payload.Name)
			assert.Equal(t, secret.Content, payload.Content)
		})
	}
}

func TestDistributeCapacityExceeded(t *testing.T) {
	r := newRunner(t, 1)
	carriers := []Carrier{rawCarrier("big.raw", 4096), rawCarrier("tiny.raw", 64)}

	_, err := r.Distribute(context.Background(), secret, carriers, []float64{50, 50}, stego.Options{})
	require.ErrorIs(t, err, stego.ErrCapacityExceeded)

	var cerr *CarrierError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, "tiny.raw", cerr.Carrier)
}

func TestDistributeRejectsBadInput(t *testing.T) {
	r := newRunner(t, 1)

	_, err := r.Distribute(context.Background(), secret, nil, nil, stego.Options{})
	assert.ErrorIs(t, err, stego.ErrInvalidWeights)

	_, err = r.Distribute(context.Background(), secret, []Carrier{rawCarrier("a.raw", 4096)}, []float64{50, 50}, stego.Options{})
	assert.ErrorIs(t, err, stego.ErrInvalidWeights)

	_, err = r.Distribute(context.Background(), secret, []Carrier{{Name: "notes.txt", Data: []byte("hello")}}, nil, stego.Options{})
	assert.ErrorIs(t, err, carrier.ErrUnsupportedFormat)

	_, err = r.Distribute(context.Background(), secret, []Carrier{rawCarrier("a.raw", 4096)}, nil, stego.Options{Encrypt: true})
	assert.Error(t, err)
}

func TestReassembleMissingCarrier(t *testing.T) {
	r := newRunner(t, 1)
	carriers := []Carrier{rawCarrier("a.raw", 4096), rawCarrier("b.raw", 4096), rawCarrier("c.raw", 4096)}

	results, err := r.Distribute(context.Background(), secret, carriers, nil, stego.Options{})
	require.NoError(t, err)

	remaining := []Carrier{
		{Name: results[0].Name, Data: results[0].Data},
		{Name: results[2].Name, Data: results[2].Data},
		{Name: "junk.raw", Data: rawCarrier("junk.raw", 4096).Data},
	}
	payload, failed, err := r.Reassemble(context.Background(), remaining, "")

	var incomplete *stego.IncompleteError
	require.True(t, errors.As(err, &incomplete))
	assert.Equal(t, []uint32{1}, incomplete.Missing)
	assert.ErrorIs(t, err, stego.ErrMalformedFrame)

	require.NotNil(t, payload)
	assert.Equal(t, secret.Name, payload.Name)
	assert.Less(t, len(payload.Content), len(secret.Content))

	require.Len(t, failed, 1)
	assert.Equal(t, "junk.raw", failed[0].Carrier)
	assert.ErrorIs(t, failed[0], stego.ErrMalformedFrame)
}

func TestReassembleFirstCarrierLostEncrypted(t *testing.T) {
	r := newRunner(t, 1)
	carriers := []Carrier{rawCarrier("a.raw", 4096), rawCarrier("b.raw", 4096)}
	results, err := r.Distribute(context.Background(), secret, carriers, nil, stego.Options{Encrypt: true, Password: "pw"})
	require.NoError(t, err)

	payload, failed, err := r.Reassemble(context.Background(), []Carrier{{Name: results[1].Name, Data: results[1].Data}}, "pw")
	assert.Nil(t, payload)
	assert.Empty(t, failed)
	var incomplete *stego.IncompleteError
	require.True(t, errors.As(err, &incomplete))
	assert.Equal(t, []uint32{0}, incomplete.Missing)
}

func TestReassembleWrongPassword(t *testing.T) {
	r := newRunner(t, 1)
	carriers := []Carrier{rawCarrier("a.raw", 4096), rawCarrier("b.raw", 4096)}
	results, err := r.Distribute(context.Background(), secret, carriers, nil, stego.Options{Encrypt: true, Password: "right"})
	require.NoError(t, err)

	stegoCarriers := []Carrier{
		{Name: results[0].Name, Data: results[0].Data},
		{Name: results[1].Name, Data: results[1].Data},
	}
	_, _, err = r.Reassemble(context.Background(), stegoCarriers, "wrong")
	assert.ErrorIs(t, err, crypto.ErrDecryptionFailed)
}

func TestReassembleNothingFound(t *testing.T) {
	r := newRunner(t, 1)
	_, failed, err := r.Reassemble(context.Background(), []Carrier{rawCarrier("a.raw", 1024), {Name: "x.txt", Data: []byte("x")}}, "")
	assert.ErrorIs(t, err, stego.ErrMalformedFrame)
	assert.ErrorIs(t, err, carrier.ErrUnsupportedFormat)
	assert.Len(t, failed, 2)

	_, _, err = r.Reassemble(context.Background(), nil, "")
	assert.ErrorIs(t, err, stego.ErrMalformedFrame)
}

func TestCancelledContext(t *testing.T) {
	r := newRunner(t, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Distribute(ctx, secret, []Carrier{rawCarrier("a.raw", 4096)}, nil, stego.Options{})
	assert.ErrorIs(t, err, context.Canceled)

	_, _, err = r.Reassemble(ctx, []Carrier{rawCarrier("a.raw", 4096)}, "")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWithLSBBits(t *testing.T) {
	r := newRunner(t, 1)
	same, err := r.WithLSBBits(1)
	require.NoError(t, err)
	assert.Same(t, r, same)

	other, err := r.WithLSBBits(3)
	require.NoError(t, err)
	assert.Equal(t, 3, other.LSBBits())

	_, err = r.WithLSBBits(9)
	assert.Error(t, err)
}

func writeCarrier(t *testing.T, dir string, c Carrier) string {
	t.Helper()
	p := filepath.Join(dir, c.Name)
	require.NoError(t, os.WriteFile(p, c.Data, 0o644))
	return p
}

func TestHideReveal(t *testing.T) {
	r := newRunner(t, 2)
	in, out, recovered := t.TempDir(), t.TempDir(), t.TempDir()

	secretPath := filepath.Join(in, "secret.txt")
	require.NoError(t, os.WriteFile(secretPath, secret.Content, 0o644))
	paths := []string{
		writeCarrier(t, in, rawCarrier("a.raw", 2048)),
		writeCarrier(t, in, rawCarrier("b.raw", 2048)),
	}

	published, err := r.Hide(context.Background(), secretPath, paths, []float64{70, 30}, out, stego.Options{Interleave: true})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(out, "a_stego.raw"), filepath.Join(out, "b_stego.raw")}, published)

	written, failed, err := r.Reveal(context.Background(), published, recovered, "")
	require.NoError(t, err)
	assert.Empty(t, failed)
	assert.Equal(t, filepath.Join(recovered, "secret.txt"), written)

	content, err := os.ReadFile(written)
	require.NoError(t, err)
	assert.Equal(t, secret.Content, content)
}

func TestHideFailurePublishesNothing(t *testing.T) {
	r := newRunner(t, 1)
	in, out := t.TempDir(), t.TempDir()

	secretPath := filepath.Join(in, "secret.txt")
	require.NoError(t, os.WriteFile(secretPath, secret.Content, 0o644))
	paths := []string{
		writeCarrier(t, in, rawCarrier("a.raw", 4096)),
		writeCarrier(t, in, rawCarrier("b.raw", 16)),
	}

	_, err := r.Hide(context.Background(), secretPath, paths, nil, out, stego.Options{})
	require.ErrorIs(t, err, stego.ErrCapacityExceeded)

	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRevealDir(t *testing.T) {
	r := newRunner(t, 1)
	carriers := []Carrier{rawCarrier("a.raw", 4096), rawCarrier("b.raw", 4096)}
	results, err := r.Distribute(context.Background(), stego.Payload{Content: []byte("unnamed")}, carriers, nil, stego.Options{})
	require.NoError(t, err)

	dir, out := t.TempDir(), t.TempDir()
	for _, res := range results {
		writeCarrier(t, dir, Carrier{Name: res.Name, Data: res.Data})
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("not a carrier"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0o755))

	written, failed, err := r.RevealDir(context.Background(), dir, out, "")
	require.NoError(t, err)
	assert.Empty(t, failed)
	assert.Equal(t, filepath.Join(out, stego.DefaultPayloadName), written)

	content, err := os.ReadFile(written)
	require.NoError(t, err)
	assert.Equal(t, []byte("unnamed"), content)

	_, _, err = r.RevealDir(context.Background(), t.TempDir(), out, "")
	assert.ErrorIs(t, err, carrier.ErrUnsupportedFormat)
}

func TestRevealDirRejectsMixedRuns(t *testing.T) {
	r := newRunner(t, 1)
	first, err := r.Distribute(context.Background(), stego.Payload{Name: "a.txt", Content: []byte("AAAAAAAA")},
		[]Carrier{rawCarrier("a.raw", 4096), rawCarrier("b.raw", 4096)}, nil, stego.Options{})
	require.NoError(t, err)
	second, err := r.Distribute(context.Background(), stego.Payload{Name: "b.txt", Content: []byte("BBBBBBBB")},
		[]Carrier{rawCarrier("c.raw", 4096), rawCarrier("d.raw", 4096)}, nil, stego.Options{})
	require.NoError(t, err)

	dir, out := t.TempDir(), t.TempDir()
	writeCarrier(t, dir, Carrier{Name: first[0].Name, Data: first[0].Data})
	writeCarrier(t, dir, Carrier{Name: second[1].Name, Data: second[1].Data})

	written, _, err := r.RevealDir(context.Background(), dir, out, "")
	assert.ErrorIs(t, err, stego.ErrMalformedFrame)
	assert.Empty(t, written)

	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestOperationID(t *testing.T) {
	ctx := WithOperationID(context.Background(), "op-123")
	assert.Equal(t, "op-123", OperationID(ctx))

	a, b := OperationID(context.Background()), OperationID(context.Background())
	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}

func TestSafeName(t *testing.T) {
	assert.Equal(t, "report.pdf", SafeName("report.pdf"))
	assert.Equal(t, "passwd", SafeName("../../etc/passwd"))
	assert.Equal(t, "x.bin", SafeName("/abs/x.bin"))
	assert.Equal(t, stego.DefaultPayloadName, SafeName(""))
	assert.Equal(t, stego.DefaultPayloadName, SafeName(".."))
}
