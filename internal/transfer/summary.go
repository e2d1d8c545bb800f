package transfer

import (
	"io"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
)

// CopyCounts tallies copied files per archive category.
type CopyCounts struct {
	Projections   int // .his frames into CBCT Projections/IPS
	Volumes       int // .SCAN reconstruction files
	Registrations int // anonymized RPS files
	FramesXML     int // anonymized _Frames.xml descriptors
	MotionView    int // .his frames into KIM-KV
	CT            int
	Plan          int
	Structures    int
	Dose          int
	Centroid      int
	Trajectory    int
}

// Total returns the number of files copied across all categories.
func (c CopyCounts) Total() int {
	return c.Projections + c.Volumes + c.Registrations + c.FramesXML +
		c.MotionView + c.CT + c.Plan + c.Structures + c.Dose +
		c.Centroid + c.Trajectory
}

// Summary describes one pipeline run.
type Summary struct {
	Sessions  int
	Fractions int
	DryRun    bool
	Files     CopyCounts
	Errors    int
}

// Render writes the summary as a table.
func (s *Summary) Render(w io.Writer) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Category", "Count"})
	t.AppendRows([]table.Row{
		{"Sessions", s.Sessions},
		{"Fractions", s.Fractions},
	})
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"Projection frames", s.Files.Projections},
		{"Reconstructed volumes", s.Files.Volumes},
		{"Registration files", s.Files.Registrations},
		{"Frames descriptors", s.Files.FramesXML},
		{"MotionView frames", s.Files.MotionView},
		{"CT", s.Files.CT},
		{"Plan", s.Files.Plan},
		{"Structure sets", s.Files.Structures},
		{"Dose", s.Files.Dose},
		{"Centroid", s.Files.Centroid},
		{"Trajectory logs", s.Files.Trajectory},
	})
	t.AppendSeparator()
	t.AppendFooter(table.Row{"Total files", s.Files.Total()})
	if s.DryRun {
		t.AppendFooter(table.Row{"Dry run", "yes"})
	}
	if s.Errors > 0 {
		t.AppendFooter(table.Row{"Errors", strconv.Itoa(s.Errors)})
	}
	t.Render()
}
