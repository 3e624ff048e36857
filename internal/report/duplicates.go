package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/iocchecker/internal/model"
)

// DuplicatesWriter outputs the plain-text duplicates report. In-run
// findings come first; values already held by the repository follow, with
// each file tagged [REPO]. A run without duplicates produces the header only.
type DuplicatesWriter struct {
	baseWriter
}

// NewDuplicatesWriter creates a DuplicatesWriter.
func NewDuplicatesWriter(output io.Writer) *DuplicatesWriter {
	return &DuplicatesWriter{baseWriter: newBaseWriter(output)}
}

// NewDuplicatesReport adapts NewDuplicatesWriter to WriteFile.
func NewDuplicatesReport(output io.Writer) Writer {
	return NewDuplicatesWriter(output)
}

// Write outputs the report.
func (w *DuplicatesWriter) Write(run *model.Run) (int, error) {
	var sb strings.Builder

	sb.WriteString("Duplicate values:\n")
	writeFindings(&sb, run.Findings, "")
	writeFindings(&sb, run.RepositoryFindings(), model.RepositoryTag+" ")

	return io.WriteString(w.output, sb.String())
}

func writeFindings(sb *strings.Builder, findings model.Findings, filePrefix string) {
	for _, tf := range findings {
		for _, f := range tf.Findings {
			fmt.Fprintf(sb, "\n%s: %s (Count: %d)\n\n", tf.Token, f.Value, f.Count)
			sb.WriteString("Found in files:\n")
			for i, file := range f.Files {
				fmt.Fprintf(sb, "%d. %s%s\n", i+1, filePrefix, file)
			}
		}
	}
}
