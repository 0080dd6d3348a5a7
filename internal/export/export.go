// Package export renders one full loop of a session into a frame sequence.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"time"

	"github.com/MeKo-Tech/fourierwaves/internal/archive"
	"github.com/MeKo-Tech/fourierwaves/internal/preset"
	"github.com/MeKo-Tech/fourierwaves/internal/render"
	"github.com/MeKo-Tech/fourierwaves/internal/worker"
	"github.com/google/uuid"
)

// Options controls an export. Zero values fall back to the session's export
// settings or to sensible defaults.
type Options struct {
	// Output is the destination: a directory, a .zip file or a frame pack.
	Output string
	// Kind overrides the sink type inferred from Output.
	Kind archive.Kind

	Size    int
	Frames  int
	Workers int

	Compression string
	Deep        bool

	// ContactSheet, when set, is the path of a PNG overview of all frames.
	ContactSheet string
	SheetColumns int
	ThumbSize    int

	Progress bool
}

// Summary reports what an export produced.
type Summary struct {
	ExportID string
	Output   string
	Kind     archive.Kind
	Size     int
	Frames   int
	Elapsed  time.Duration
}

// Run renders session.ExportFrames (or opts.Frames) frames evenly spaced
// over one loop and writes them to the sink in frame order. Tiling preview
// is always disabled for exported frames, so every frame tiles and frame
// count+1 would equal frame 0.
func Run(ctx context.Context, session preset.Session, opts Options, logger *slog.Logger) (Summary, error) {
	if logger == nil {
		logger = slog.Default()
	}
	session = session.Normalized()

	size := opts.Size
	if size <= 0 {
		size = session.ExportRes
	}
	frames := opts.Frames
	if frames <= 0 {
		frames = session.ExportFrames
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if err := render.ValidateCompression(opts.Compression); err != nil {
		return Summary{}, err
	}

	mode := session.Mode.String()
	output := opts.Output
	if output == "" {
		output = archive.DefaultName(mode, frames) + ".zip"
	}
	kind := opts.Kind
	if kind == "" {
		kind = archive.KindFromPath(output)
	}

	doc, err := preset.EncodeBytes(session, preset.FormatJSON)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to encode preset: %w", err)
	}

	summary := Summary{
		ExportID: uuid.NewString(),
		Output:   output,
		Kind:     kind,
		Size:     size,
		Frames:   frames,
	}

	sink, err := archive.Create(kind, output, archive.Metadata{
		Name:         session.Name,
		Mode:         mode,
		Convention:   session.Config.Convention.String(),
		Size:         size,
		Frames:       frames,
		LoopDuration: session.LoopDuration,
		ExportID:     summary.ExportID,
		Preset:       string(doc),
	})
	if err != nil {
		return Summary{}, fmt.Errorf("failed to create %s output: %w", kind, err)
	}

	logger.Info("Starting export",
		"export_id", summary.ExportID,
		"output", output,
		"kind", kind,
		"mode", mode,
		"size", size,
		"frames", frames,
		"workers", workers,
	)

	frame := session.Frame().ForExport()
	r := &render.Renderer{Workers: 1, Deep: opts.Deep}
	gen := worker.GeneratorFunc(func(ctx context.Context, index int, phase float64) ([]byte, error) {
		return r.RenderPNG(ctx, frame, size, phase, opts.Compression)
	})

	progress := worker.NewProgress(frames, session.LoopDuration, opts.Progress)
	pool := worker.New(worker.Config{
		Workers:    workers,
		Generator:  gen,
		OnProgress: progress.Callback(),
	})

	var sheet *contactSheet
	if opts.ContactSheet != "" {
		sheet = newContactSheet(frames, opts.SheetColumns, opts.ThumbSize, size)
	}

	start := time.Now()
	ordered := newReorderBuffer(func(index int, data []byte) error {
		if err := sink.WriteFrame(index, data); err != nil {
			return err
		}
		if sheet != nil {
			if err := sheet.add(index, data); err != nil {
				return err
			}
		}
		progress.Written(index + 1)
		logger.Debug("Frame written", "frame", index)
		return nil
	})

	runErr := pool.Stream(ctx, worker.LoopTasks(frames), func(res worker.Result) error {
		if res.Err != nil {
			return fmt.Errorf("failed to render frame %d: %w", res.Task.Index, res.Err)
		}
		return ordered.push(res.Task.Index, res.Data)
	})
	progress.Done()

	if runErr == nil && ordered.next != frames {
		runErr = fmt.Errorf("export incomplete: wrote %d of %d frames", ordered.next, frames)
	}
	if runErr != nil {
		if err := sink.Abort(); err != nil {
			logger.Warn("Failed to remove partial output", "output", output, "error", err)
		} else {
			logger.Warn("Export aborted, partial output removed", "output", output, "written", ordered.next)
		}
		return Summary{}, runErr
	}
	if err := sink.Close(); err != nil {
		return Summary{}, fmt.Errorf("failed to finalize output: %w", err)
	}

	if sheet != nil {
		if err := sheet.save(opts.ContactSheet); err != nil {
			return Summary{}, err
		}
		logger.Info("Contact sheet written", "path", opts.ContactSheet)
	}

	summary.Elapsed = time.Since(start)
	logger.Info(progress.Summary())
	logger.Info("Export complete",
		"export_id", summary.ExportID,
		"output", filepath.Clean(output),
		"elapsed", summary.Elapsed.Round(time.Millisecond),
	)
	return summary, nil
}

// reorderBuffer releases frames strictly in index order, holding back
// frames that complete early.
type reorderBuffer struct {
	pending map[int][]byte
	write   func(index int, data []byte) error
	next    int
}

func newReorderBuffer(write func(int, []byte) error) *reorderBuffer {
	return &reorderBuffer{pending: make(map[int][]byte), write: write}
}

func (b *reorderBuffer) push(index int, data []byte) error {
	b.pending[index] = data
	for {
		d, ok := b.pending[b.next]
		if !ok {
			return nil
		}
		delete(b.pending, b.next)
		if err := b.write(b.next, d); err != nil {
			return err
		}
		b.next++
	}
}
