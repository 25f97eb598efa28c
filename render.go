package main

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"flickrgallery/gallery"
)

// renderer prints gallery views as plain text. Calls may come from the
// screen's background goroutines.
type renderer struct {
	mu    sync.Mutex
	w     io.Writer
	color bool
	now   func() time.Time
}

func (r *renderer) render(v gallery.View) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	if r.now != nil {
		now = r.now()
	}

	if v.Online {
		r.banner(ansiGreen, "Online")
	} else {
		r.banner(ansiYellow, "Offline: showing cached photos")
	}
	updated := "never"
	if !v.CapturedAt.IsZero() {
		updated = humanize.RelTime(v.CapturedAt, now, "ago", "from now")
	}
	fmt.Fprintf(r.w, "Last updated: %s (source: %s)\n", updated, v.Source)
	if v.FetchErr != nil {
		fmt.Fprintf(r.w, "Refresh failed: %v\n", v.FetchErr)
	}
	if v.Refreshing {
		fmt.Fprintln(r.w, "Refreshing...")
	}
	if len(v.URLs) == 0 {
		fmt.Fprintln(r.w, "No photos available.")
		return
	}
	fmt.Fprintf(r.w, "%s photos:\n", humanize.Comma(int64(len(v.URLs))))
	for i, u := range v.URLs {
		fmt.Fprintf(r.w, "%3d. %s\n", i+1, u)
	}
}

func (r *renderer) banner(color, text string) {
	if r.color {
		fmt.Fprintf(r.w, "%s%s%s\n", color, text, ansiReset)
		return
	}
	fmt.Fprintf(r.w, "[%s]\n", text)
}
