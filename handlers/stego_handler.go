// Package handlers is made to handle requests
package handlers

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"multicarrier-stego/carrier"
	"multicarrier-stego/config"
	"multicarrier-stego/crypto"
	"multicarrier-stego/models"
	"multicarrier-stego/runner"
	"multicarrier-stego/stego"
)

type StegoHandler struct {
	runner    *runner.Runner
	registry  *carrier.Registry
	maxUpload int64
	minPSNR   float64
}

func NewStegoHandler(r *runner.Runner, registry *carrier.Registry, cfg *config.Config) *StegoHandler {
	return &StegoHandler{
		runner:    r,
		registry:  registry,
		maxUpload: cfg.MaxUploadBytes(),
		minPSNR:   cfg.MinPSNR,
	}
}

func (h *StegoHandler) HealthCheck(c *gin.Context) {
	adapters := []string{}
	for _, a := range h.registry.Adapters() {
		adapters = append(adapters, a.Name())
	}
	c.JSON(http.StatusOK, gin.H{
		"status":   "healthy",
		"message":  "Steganography API is running",
		"version":  "1.0.0",
		"adapters": adapters,
	})
}

// statusFor maps an operation error to its HTTP status
func statusFor(err error) int {
	switch {
	case errors.Is(err, stego.ErrInvalidWeights):
		return http.StatusBadRequest
	case errors.Is(err, carrier.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, stego.ErrCapacityExceeded):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, crypto.ErrDecryptionFailed), errors.Is(err, stego.ErrMalformedFrame):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func fail(c *gin.Context, status int, message string) {
	c.JSON(status, models.ErrorResponse{Success: false, Message: message})
}

func (h *StegoHandler) parseForm(c *gin.Context) bool {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload)
	if err := c.Request.ParseMultipartForm(h.maxUpload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			fail(c, http.StatusRequestEntityTooLarge, fmt.Sprintf("Upload exceeds %d bytes", h.maxUpload))
			return false
		}
		fail(c, http.StatusBadRequest, fmt.Sprintf("Failed to parse form: %v", err))
		return false
	}
	return true
}

// runnerFor applies the request's lsb_bits, if any
func (h *StegoHandler) runnerFor(c *gin.Context) (*runner.Runner, bool) {
	lsbBitsStr := c.PostForm("lsb_bits")
	if lsbBitsStr == "" {
		return h.runner, true
	}
	lsbBits, err := strconv.Atoi(lsbBitsStr)
	if err != nil || lsbBits < 1 || lsbBits > stego.MaxLSBBits {
		fail(c, http.StatusBadRequest, fmt.Sprintf("LSB bits must be between 1 and %d", stego.MaxLSBBits))
		return nil, false
	}
	r, err := h.runner.WithLSBBits(lsbBits)
	if err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return nil, false
	}
	return r, true
}

func readFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func (h *StegoHandler) carrierFiles(c *gin.Context) ([]runner.Carrier, bool) {
	headers := c.Request.MultipartForm.File["carrier_files"]
	if len(headers) == 0 {
		fail(c, http.StatusBadRequest, "At least one carrier file is required")
		return nil, false
	}
	carriers := make([]runner.Carrier, len(headers))
	for i, fh := range headers {
		data, err := readFile(fh)
		if err != nil {
			fail(c, http.StatusInternalServerError, fmt.Sprintf("Failed to read carrier file %s: %v", fh.Filename, err))
			return nil, false
		}
		carriers[i] = runner.Carrier{Name: fh.Filename, Data: data}
	}
	return carriers, true
}

// parseWeights accepts repeated fields, comma separated values or both
func parseWeights(values []string) ([]float64, error) {
	var weights []float64
	for _, v := range values {
		for _, field := range strings.Split(v, ",") {
			field = strings.TrimSpace(field)
			if field == "" {
				continue
			}
			w, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: %q is not a number", stego.ErrInvalidWeights, field)
			}
			weights = append(weights, w)
		}
	}
	return weights, nil
}

func formatPSNR(psnr float64) string {
	if math.IsInf(psnr, 1) {
		return "inf"
	}
	return strconv.FormatFloat(psnr, 'f', 2, 64)
}

func (h *StegoHandler) Distribute(c *gin.Context) {
	if !h.parseForm(c) {
		return
	}

	secretHeader, err := c.FormFile("secret_file")
	if err != nil {
		fail(c, http.StatusBadRequest, "Secret file is required")
		return
	}
	secretData, err := readFile(secretHeader)
	if err != nil {
		fail(c, http.StatusInternalServerError, fmt.Sprintf("Failed to read secret file: %v", err))
		return
	}

	carriers, ok := h.carrierFiles(c)
	if !ok {
		return
	}

	weights, err := parseWeights(c.PostFormArray("weights"))
	if err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	opts := stego.Options{
		Password:   c.PostForm("password"),
		Encrypt:    c.PostForm("use_encryption") == "true",
		Interleave: c.PostForm("interleave") == "true",
	}
	if opts.Encrypt {
		if err := crypto.ValidatePassword(opts.Password); err != nil {
			fail(c, http.StatusBadRequest, fmt.Sprintf("Invalid password: %v", err))
			return
		}
	}

	r, ok := h.runnerFor(c)
	if !ok {
		return
	}

	opID := uuid.NewString()
	c.Header("X-Stego-Operation", opID)
	ctx := runner.WithOperationID(c.Request.Context(), opID)

	payload := stego.Payload{Name: secretHeader.Filename, Content: secretData}
	results, err := r.Distribute(ctx, payload, carriers, weights, opts)
	if err != nil {
		fail(c, statusFor(err), fmt.Sprintf("Failed to distribute secret: %v", err))
		return
	}

	archive, minPSNR, err := h.archive(results)
	if err != nil {
		fail(c, http.StatusInternalServerError, fmt.Sprintf("Failed to build archive: %v", err))
		return
	}

	log.Printf("[%s] distributed %s across %d carriers, min PSNR %s dB", opID, payload.Name, len(results), formatPSNR(minPSNR))
	if !carrier.ValidatePSNR(minPSNR, h.minPSNR) {
		log.Printf("[%s] warning: PSNR %s dB is below the %.1f dB threshold", opID, formatPSNR(minPSNR), h.minPSNR)
		c.Header("X-Stego-Quality-Warning", "true")
	}

	c.Header("Content-Description", "File Transfer")
	c.Header("Content-Transfer-Encoding", "binary")
	c.Header("Content-Disposition", "attachment; filename=stego_carriers.zip")
	c.Header("X-Stego-Carriers", strconv.Itoa(len(results)))
	c.Header("X-Stego-PSNR", formatPSNR(minPSNR))
	c.Data(http.StatusOK, "application/zip", archive)
}

// archive zips the stego carriers together with a manifest.json
func (h *StegoHandler) archive(results []*runner.Result) ([]byte, float64, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	minPSNR := math.Inf(1)
	used := map[string]bool{}
	reports := make([]models.CarrierReport, len(results))
	for i, res := range results {
		name := res.Name
		if used[name] {
			name = fmt.Sprintf("%d_%s", res.Ordinal, name)
		}
		used[name] = true

		w, err := zw.Create(name)
		if err != nil {
			return nil, 0, err
		}
		if _, err := w.Write(res.Data); err != nil {
			return nil, 0, err
		}

		if res.PSNR < h.minPSNR {
			log.Printf("warning: %s PSNR %.2f dB is below %.2f dB", name, res.PSNR, h.minPSNR)
		}
		minPSNR = math.Min(minPSNR, res.PSNR)
		psnr := res.PSNR
		if math.IsInf(psnr, 1) {
			// JSON has no infinity
			psnr = 0
		}
		reports[i] = models.CarrierReport{
			Source:     res.Source,
			Filename:   name,
			Adapter:    res.Adapter,
			Ordinal:    res.Ordinal,
			FrameBytes: res.FrameBytes,
			PSNR:       psnr,
		}
	}

	manifest, err := json.MarshalIndent(reports, "", "  ")
	if err != nil {
		return nil, 0, err
	}
	w, err := zw.Create("manifest.json")
	if err != nil {
		return nil, 0, err
	}
	if _, err := w.Write(manifest); err != nil {
		return nil, 0, err
	}
	if err := zw.Close(); err != nil {
		return nil, 0, err
	}
	return buf.Bytes(), minPSNR, nil
}

func formatOrdinals(ordinals []uint32) string {
	parts := make([]string, len(ordinals))
	for i, o := range ordinals {
		parts[i] = strconv.FormatUint(uint64(o), 10)
	}
	return strings.Join(parts, ",")
}

func (h *StegoHandler) Reassemble(c *gin.Context) {
	if !h.parseForm(c) {
		return
	}
	carriers, ok := h.carrierFiles(c)
	if !ok {
		return
	}
	r, ok := h.runnerFor(c)
	if !ok {
		return
	}

	opID := uuid.NewString()
	c.Header("X-Stego-Operation", opID)
	ctx := runner.WithOperationID(c.Request.Context(), opID)

	payload, failed, err := r.Reassemble(ctx, carriers, c.PostForm("password"))
	if len(failed) > 0 {
		c.Header("X-Stego-Failed-Carriers", strconv.Itoa(len(failed)))
	}

	status := http.StatusOK
	if err != nil {
		var incomplete *stego.IncompleteError
		if !errors.As(err, &incomplete) {
			fail(c, statusFor(err), fmt.Sprintf("Failed to reassemble secret: %v", err))
			return
		}
		c.Header("X-Stego-Missing", formatOrdinals(incomplete.Missing))
		if payload == nil {
			c.JSON(http.StatusUnprocessableEntity, models.ErrorResponse{
				Success: false,
				Message: fmt.Sprintf("Failed to reassemble secret: %v", err),
				Missing: incomplete.Missing,
			})
			return
		}
		status = http.StatusPartialContent
	}

	filename := runner.SafeName(payload.Name)
	c.Header("Content-Description", "File Transfer")
	c.Header("Content-Transfer-Encoding", "binary")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(status, "application/octet-stream", payload.Content)
}

func (h *StegoHandler) Capacity(c *gin.Context) {
	if !h.parseForm(c) {
		return
	}
	carriers, ok := h.carrierFiles(c)
	if !ok {
		return
	}
	r, ok := h.runnerFor(c)
	if !ok {
		return
	}
	ch, err := stego.NewChannel(r.LSBBits())
	if err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	// chunk 0 pays for the name, every chunk for the seed
	secretName := c.PostForm("secret_name")
	interleave := c.PostForm("interleave") == "true"

	resp := models.CapacityResponse{Success: true, LSBBits: r.LSBBits()}
	for _, cr := range carriers {
		report := models.CapacityReport{
			Filename: cr.Name,
			Category: carrier.Categorize(cr.Name).String(),
		}
		adapter, err := h.registry.Lookup(cr.Name, cr.Data)
		if err != nil {
			report.Error = err.Error()
			resp.Carriers = append(resp.Carriers, report)
			continue
		}
		report.Adapter = adapter.Name()
		report.Category = adapter.Category().String()

		raw, err := adapter.Decode(cr.Data)
		if err != nil {
			report.Error = err.Error()
			resp.Carriers = append(resp.Carriers, report)
			continue
		}
		report.CapacityBytes = ch.CapacityBytes(raw.Samples)
		report.PayloadBytes = stego.ChunkCapacity(report.CapacityBytes, secretName, interleave)
		if d, ok := adapter.(carrier.Describer); ok {
			report.Metadata = d.Describe(cr.Data)
		}
		resp.Carriers = append(resp.Carriers, report)
	}
	c.JSON(http.StatusOK, resp)
}

// Register mounts the endpoints on an /api/v1 group
func (h *StegoHandler) Register(api *gin.RouterGroup) {
	api.GET("/health", h.HealthCheck)

	stegoGroup := api.Group("/stego")
	{
		stegoGroup.POST("/distribute", h.Distribute)
		stegoGroup.POST("/reassemble", h.Reassemble)
		stegoGroup.POST("/capacity", h.Capacity)
	}
}
