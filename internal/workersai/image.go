package workersai

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/howard-nolan/workersai/internal/metrics"
	"github.com/howard-nolan/workersai/internal/provider"
)

// ImageSettings configures an image model.
type ImageSettings struct {
	Gateway *GatewayOptions

	// MaxImagesPerCall defaults to 1: the backend generates one image per
	// call.
	MaxImagesPerCall int

	Passthrough map[string]any
}

// ImageModel implements provider.ImageModel.
type ImageModel struct {
	modelID  string
	provider string
	settings ImageSettings
	binding  Binding
	gateway  *GatewayOptions
	logger   *slog.Logger
	metrics  *metrics.Recorder

	// now is swapped in tests.
	now func() time.Time
}

var _ provider.ImageModel = (*ImageModel)(nil)

func (m *ImageModel) Provider() string { return m.provider }
func (m *ImageModel) ModelID() string  { return m.modelID }

func (m *ImageModel) MaxImagesPerCall() int {
	if m.settings.MaxImagesPerCall > 0 {
		return m.settings.MaxImagesPerCall
	}
	return 1
}

// Generate issues req.N single-image calls concurrently and waits for all
// of them. The first failure cancels the others and is returned. Images are
// stored at the index of the call that produced them.
func (m *ImageModel) Generate(ctx context.Context, req *provider.ImageRequest) (*provider.ImageResult, error) {
	width, height := parseSize(req.Size)

	var warnings []provider.Warning
	if req.AspectRatio != "" {
		warnings = append(warnings, provider.Warning{
			Type:    provider.WarningUnsupportedSetting,
			Setting: "aspectRatio",
			Details: "This model does not support aspect ratio. Use `size` instead.",
		})
	}

	extra, err := passthroughOptions(m.settings.Passthrough)
	if err != nil {
		return nil, err
	}
	gateway := m.gateway
	if m.settings.Gateway != nil {
		gateway = m.settings.Gateway
	}
	opts := RunOptions{Gateway: gateway, Extra: extra}

	inputs := map[string]any{"prompt": req.Prompt}
	if width != nil {
		inputs["width"] = *width
	}
	if height != nil {
		inputs["height"] = *height
	}
	if req.Seed != nil {
		inputs["seed"] = *req.Seed
	}

	n := req.N
	if n < 1 {
		n = 1
	}
	images := make([][]byte, n)

	g, gctx := errgroup.WithContext(ctx)
	for i := range n {
		g.Go(func() error {
			img, err := m.generateOne(gctx, inputs, opts)
			if err != nil {
				return err
			}
			images[i] = img
			return nil
		})
	}
	err = g.Wait()
	m.metrics.ObserveCall(m.modelID, metrics.KindImage, err)
	if err != nil {
		return nil, err
	}

	m.metrics.ObserveWarnings(warnings)
	m.logger.DebugContext(ctx, "workersai image",
		"model", m.modelID, "images", n, "warnings", len(warnings))

	return &provider.ImageResult{
		Images:   images,
		Warnings: warnings,
		Response: provider.ResponseMetadata{
			ModelID:   m.modelID,
			Timestamp: m.now(),
		},
	}, nil
}

func (m *ImageModel) generateOne(ctx context.Context, inputs map[string]any, opts RunOptions) ([]byte, error) {
	body, err := m.binding.RunStream(ctx, m.modelID, inputs, opts)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	img, err := drain(ctx, body)
	if err != nil {
		return nil, fmt.Errorf("reading workersai image: %w", err)
	}
	return img, nil
}

// drain reads r until it is exhausted into one contiguous buffer, checking
// ctx between reads.
func drain(ctx context.Context, r io.Reader) ([]byte, error) {
	var buf bytes.Buffer
	chunk := make([]byte, 32*1024)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, err := r.Read(chunk)
		buf.Write(chunk[:n])
		if err == io.EOF {
			return buf.Bytes(), nil
		}
		if err != nil {
			return nil, err
		}
	}
}

// parseSize parses "WIDTHxHEIGHT". Missing or non-integer components are
// nil, leaving the choice to the backend.
func parseSize(size string) (width, height *int) {
	if size == "" {
		return nil, nil
	}
	// Only the first two components count, so "512x512x3" is 512 by 512.
	dims := strings.Split(size, "x")
	if len(dims) < 2 {
		return parseDimension(dims[0]), nil
	}
	return parseDimension(dims[0]), parseDimension(dims[1])
}

func parseDimension(s string) *int {
	if s == "" {
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &v
}
