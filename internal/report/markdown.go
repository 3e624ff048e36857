package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"

	"github.com/nao1215/iocchecker/internal/model"
)

// MarkdownWriter outputs the duplicates report in Markdown format.
// This format is designed for sharing findings in tickets and wikis.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// NewMarkdownReport adapts NewMarkdownWriter to WriteFile.
func NewMarkdownReport(output io.Writer) Writer {
	return NewMarkdownWriter(output)
}

// Write outputs the run in Markdown format.
func (w *MarkdownWriter) Write(run *model.Run) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, run)
	w.writeAlert(md, run)
	w.writeFindings(md, "Duplicates within this run", run.Findings, "")
	w.writeFindings(md, "Values already in the repository", run.RepositoryFindings(), model.RepositoryTag+" ")
	w.writeWarnings(md, run)

	return len(md.String()), md.Build()
}

// writeHeader writes the title and the run summary table.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, run *model.Run) {
	md.H1("Duplicate values")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Run ID", "`" + run.ID + "`"},
			{"Executed At", run.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Rule Files", strconv.Itoa(run.Stats.FilesExtracted) + " of " + strconv.Itoa(run.Stats.FilesDiscovered)},
			{"Extracted Values", strconv.Itoa(run.Occurrences.Len())},
			{"New Values", strconv.Itoa(run.Merge.NewValues)},
			{"Repository Tokens", strconv.Itoa(run.Merge.RepositorySize)},
		},
	})
	md.PlainText("")
}

// writeAlert summarizes the outcome in a GitHub alert.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, run *model.Run) {
	inRun := run.Findings.Len()
	repo := len(run.Merge.Duplicates)

	switch {
	case inRun > 0 && repo > 0:
		md.Warningf("%d value(s) repeat within this run and %d extraction(s) were already in the repository.", inRun, repo)
	case inRun > 0:
		md.Warningf("%d value(s) repeat within this run.", inRun)
	case repo > 0:
		md.Note(fmt.Sprintf("%d extraction(s) were already in the repository.", repo))
	default:
		md.Tip("No duplicate values found.")
	}
	md.PlainText("")
}

// writeFindings writes one table per token.
func (w *MarkdownWriter) writeFindings(md *markdown.Markdown, title string, findings model.Findings, filePrefix string) {
	md.H2(title)
	md.PlainText("")

	if len(findings) == 0 {
		md.PlainText("None.")
		md.PlainText("")
		return
	}

	for _, tf := range findings {
		md.PlainText("### `" + string(tf.Token) + "`")
		md.PlainText("")

		rows := make([][]string, len(tf.Findings))
		for i, f := range tf.Findings {
			files := make([]string, len(f.Files))
			for j, file := range f.Files {
				files[j] = filePrefix + file
			}
			rows[i] = []string{
				escapeCell(f.Value.String()),
				strconv.Itoa(f.Count),
				escapeCell(strings.Join(files, "<br>")),
			}
		}

		md.Table(markdown.TableSet{
			Header: []string{"Value", "Count", "Files"},
			Rows:   rows,
		})
		md.PlainText("")
	}
}

// writeWarnings lists the recovered failures of the run.
func (w *MarkdownWriter) writeWarnings(md *markdown.Markdown, run *model.Run) {
	if len(run.Warnings) == 0 {
		return
	}

	md.H2("Warnings")
	md.PlainText("")
	md.BulletList(run.Warnings...)
	md.PlainText("")
}

// escapeCell keeps a value from breaking the table layout.
func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}
