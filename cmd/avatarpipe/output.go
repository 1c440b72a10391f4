package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"avatarpipe/internal/pipeline"
	"avatarpipe/internal/publish"
)

var banner = strings.Repeat("=", 60)

var stepLabels = map[string]string{
	"read script":                 "Reading script",
	"generate audio options":      "Generating Option A (stable) and Option B (expressive)",
	"save audio options":          "Saving audio files to output folder",
	"audio ready for review":      "Audio files ready for review",
	"upload audio":                "Uploading audio to the render service",
	"generate avatar video":       "Generating avatar video",
	"wait for video and download": "Waiting for video and downloading",
	publish.StepStorage:           "Archiving video",
	publish.StepSheet:             "Logging to tracking sheet",
	publish.StepEmail:             "Sending email notification",
	publish.StepYouTube:           "Uploading to YouTube",
}

type printer struct {
	w io.Writer
}

func newPrinter(w io.Writer) *printer {
	return &printer{w: w}
}

func (p *printer) header(title string) {
	fmt.Fprintln(p.w, banner)
	fmt.Fprintln(p.w, title)
	fmt.Fprintln(p.w, banner)
}

func (p *printer) phase(ph pipeline.Phase) {
	switch ph {
	case pipeline.PhaseAudioGenerating:
		p.header("PHASE 1: AUDIO GENERATION")
	case pipeline.PhaseVideoGenerating:
		p.header("PHASE 2: VIDEO GENERATION")
	}
}

// fullPhase also announces the automatic hand-over between the phases.
func (p *printer) fullPhase(ph pipeline.Phase) {
	if ph == pipeline.PhaseAudioReady {
		rule := strings.Repeat("-", 60)
		fmt.Fprintln(p.w, "\n"+rule)
		fmt.Fprintln(p.w, "Automatically continuing with Option A...")
		fmt.Fprintln(p.w, rule)
		return
	}
	p.phase(ph)
}

func (p *printer) step(s pipeline.Progress) {
	label, ok := stepLabels[s.Name]
	if !ok {
		label = s.Name
	}
	fmt.Fprintf(p.w, "\n[STEP %d/%d] %s...\n", s.Step, s.Total, label)
}

func (p *printer) reviewInstructions(res *pipeline.AudioResult) {
	fmt.Fprintln(p.w)
	p.header("AUDIO GENERATION COMPLETE")

	fmt.Fprintf(p.w, "\nScript: %s (%d characters)\n", res.ScriptName, res.ScriptLength)
	fmt.Fprintln(p.w, "\nPlease review the audio files:")
	fmt.Fprintf(p.w, "  - %s\n    (stable/consistent delivery)\n", res.StableAudio)
	fmt.Fprintf(p.w, "  - %s\n    (expressive/dynamic delivery)\n", res.ExpressiveAudio)

	fmt.Fprintln(p.w, "\nDelete the one you don't want, then run:")
	fmt.Fprintf(p.w, "  avatarpipe --continue %q\n", res.StableAudio)
	fmt.Fprintln(p.w, "  OR")
	fmt.Fprintf(p.w, "  avatarpipe --continue %q\n", res.ExpressiveAudio)

	fmt.Fprintf(p.w, "\nGeneration time: %s\n", formatDuration(res.Elapsed))
}

func (p *printer) videoSummary(res *pipeline.VideoResult) {
	failed := res.Publication.Failed()
	for _, f := range failed {
		fmt.Fprintf(p.w, "\n  Warning: %s step failed: %s\n", f.Name, f.Error)
	}
	if len(failed) > 0 {
		fmt.Fprintln(p.w, "  Video was created successfully but some publication steps failed.")
	}

	fmt.Fprintln(p.w)
	p.header("PIPELINE COMPLETE!")
	fmt.Fprintln(p.w, summaryTable(res))
}

func summaryTable(res *pipeline.VideoResult) string {
	rows := [][2]string{
		{"Final video", res.VideoPath},
		{"Audio used", fmt.Sprintf("%s (%s)", filepath.Base(res.AudioPath), res.SelectedVariant)},
	}
	if res.DriveLink != "" {
		rows = append(rows, [2]string{"Archive", res.DriveLink})
	}
	if res.YouTubeURL != "" {
		rows = append(rows, [2]string{"YouTube", res.YouTubeURL})
	}
	if res.SheetLink != "" {
		rows = append(rows, [2]string{"Tracking sheet", res.SheetLink})
	}
	rows = append(rows, [2]string{"Total time", formatDuration(res.Duration)})

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	for _, r := range rows {
		tw.AppendRow(table.Row{r[0], r[1]})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignLeft},
		{Number: 2, Align: text.AlignLeft},
	})
	return tw.Render()
}

func formatDuration(d time.Duration) string {
	return d.Round(time.Second).String()
}
