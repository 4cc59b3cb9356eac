package terminal

import (
	"context"
	"fmt"

	"github.com/hinshun/vt10x"
)

// warmupFrames exercises the parser paths a first session hits: cursor
// addressing, SGR colours, line wrapping and scrolling.
var warmupFrames = []string{
	"\x1b[2J\x1b[H",
	"\x1b[1;32mmuon\x1b[0m ready\r\n",
	"\x1b[38;5;208mwarm\x1b[48;2;0;0;0m up\x1b[0m\r\n",
	"\x1b[10;10Hx\x1b[K\x1b[2K",
}

// Warmup drives a throwaway terminal emulator through a few frames so the
// first real session does not pay for initialization. It is meant to run
// on a background worker.
func Warmup(ctx context.Context, cols, rows int) error {
	if cols <= 0 || rows <= 0 {
		cols, rows = DefaultCols, DefaultRows
	}

	vt := vt10x.New(vt10x.WithSize(cols, rows))

	for range rows + 2 {
		for _, frame := range warmupFrames {
			if err := ctx.Err(); err != nil {
				return err
			}

			if _, err := vt.Write([]byte(frame)); err != nil {
				return fmt.Errorf("terminal warm-up: %w", err)
			}
		}
	}

	if _, err := vt.Write([]byte("\x1b[Hm")); err != nil {
		return fmt.Errorf("terminal warm-up: %w", err)
	}

	vt.Lock()
	defer vt.Unlock()

	if got := vt.Cell(0, 0).Char; got != 'm' {
		return fmt.Errorf("terminal warm-up: unexpected cell %q", got)
	}

	return nil
}
