package worker

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

const barWidth = 30

// Progress tracks a loop export. Frames are rendered out of order by the
// pool but written in frame order, so it counts both: rendered frames come
// from the pool callback, written frames from Written.
type Progress struct {
	start    time.Time
	output   io.Writer
	loop     time.Duration
	frames   int
	rendered int
	failed   int
	written  int
	mu       sync.Mutex
	enabled  bool
}

// NewProgress creates a tracker for an export of frames frames spanning
// one loop of the given duration.
func NewProgress(frames int, loop time.Duration, enabled bool) *Progress {
	return &Progress{
		frames:  frames,
		loop:    loop,
		start:   time.Now(),
		output:  os.Stderr,
		enabled: enabled,
	}
}

// Callback returns a ProgressFunc suitable for use with Pool.Config.
func (p *Progress) Callback() ProgressFunc {
	return func(completed, total, failed int) {
		p.mu.Lock()
		p.rendered = completed
		p.frames = total
		p.failed = failed
		p.mu.Unlock()
		p.print()
	}
}

// Written records that frames [0, next) have reached the output.
func (p *Progress) Written(next int) {
	p.mu.Lock()
	p.written = next
	p.mu.Unlock()
	p.print()
}

// Covered returns how much of the loop the written frames span.
func (p *Progress) Covered() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.coveredLocked()
}

func (p *Progress) coveredLocked() time.Duration {
	if p.frames <= 0 {
		return 0
	}
	return time.Duration(int64(p.loop) * int64(p.written) / int64(p.frames))
}

func (p *Progress) print() {
	if p.enabled {
		fmt.Fprint(p.output, p.Line())
	}
}

// Line renders the status line. Written frames are drawn solid, frames
// that are rendered but still waiting for an earlier one are shaded.
func (p *Progress) Line() string {
	p.mu.Lock()
	frames, rendered, written, failed := p.frames, p.rendered, p.written, p.failed
	covered := p.coveredLocked()
	loop := p.loop
	elapsed := time.Since(p.start)
	p.mu.Unlock()

	solid, shaded := 0, 0
	if frames > 0 {
		solid = min(written*barWidth/frames, barWidth)
		shaded = min(rendered*barWidth/frames, barWidth) - solid
		if shaded < 0 {
			shaded = 0
		}
	}
	bar := strings.Repeat("█", solid) + strings.Repeat("▒", shaded) + strings.Repeat("░", barWidth-solid-shaded)

	var fps float64
	if elapsed > 0 {
		fps = float64(rendered) / elapsed.Seconds()
	}

	line := fmt.Sprintf("\r[%s] %d/%d frames written, %d rendered", bar, written, frames, rendered)
	if failed > 0 {
		line += fmt.Sprintf(" (%d failed)", failed)
	}
	line += fmt.Sprintf(" - %.2fs of %.2fs loop - %.1f fps", covered.Seconds(), loop.Seconds(), fps)
	if written < frames && fps > 0 {
		eta := time.Duration(float64(frames-rendered) / fps * float64(time.Second))
		line += " - ETA: " + formatDuration(eta)
	}
	if frames > 0 && written == frames {
		line += " - Done in " + formatDuration(elapsed)
	}
	return line + "          "
}

// Done prints the final line and a newline.
func (p *Progress) Done() {
	if p.enabled {
		fmt.Fprintln(p.output, p.Line())
	}
}

// Summary describes the finished export for the log.
func (p *Progress) Summary() string {
	p.mu.Lock()
	frames, written, failed := p.frames, p.written, p.failed
	covered := p.coveredLocked()
	elapsed := time.Since(p.start)
	p.mu.Unlock()

	var fps float64
	if elapsed > 0 {
		fps = float64(written) / elapsed.Seconds()
	}
	return fmt.Sprintf("Wrote %d/%d frames (%d failed) covering %.2fs of loop in %s (%.1f fps)",
		written, frames, failed, covered.Seconds(), formatDuration(elapsed), fps)
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.0fs", d.Seconds())
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}
