package report

import (
	"io"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/nao1215/iocchecker/internal/model"
)

// reportJSON renders extracted_values.json with four-space indentation.
var reportJSON = jsoniter.Config{
	EscapeHTML:    false,
	IndentionStep: 4,
}.Froze()

// ExtractedValuesWriter outputs the extracted values report:
//
//	{
//	    "directories": {"<dir>": {"number_of_files": n, "total_size": mib}},
//	    "timestamp": "<RFC 3339>",
//	    "number_of_extracted_values": n,
//	    "extracted_values": {"<token>": {"<value>": count}}
//	}
//
// Object members keep their natural order rather than being sorted:
// directories as given, tokens and values as first extracted.
type ExtractedValuesWriter struct {
	baseWriter
}

// NewExtractedValuesWriter creates an ExtractedValuesWriter.
func NewExtractedValuesWriter(output io.Writer) *ExtractedValuesWriter {
	return &ExtractedValuesWriter{baseWriter: newBaseWriter(output)}
}

// NewExtractedValuesReport adapts NewExtractedValuesWriter to WriteFile.
func NewExtractedValuesReport(output io.Writer) Writer {
	return NewExtractedValuesWriter(output)
}

// valueCount is one entry of a token's value counts.
type valueCount struct {
	key   string
	count int
}

// Write outputs the report.
func (w *ExtractedValuesWriter) Write(run *model.Run) (int, error) {
	stream := reportJSON.BorrowStream(nil)
	defer reportJSON.ReturnStream(stream)

	stream.WriteObjectStart()

	stream.WriteObjectField("directories")
	writeDirectories(stream, run)
	stream.WriteMore()

	stream.WriteObjectField("timestamp")
	stream.WriteString(run.StartedAt.Format(time.RFC3339))
	stream.WriteMore()

	stream.WriteObjectField("number_of_extracted_values")
	stream.WriteInt(run.Occurrences.Len())
	stream.WriteMore()

	stream.WriteObjectField("extracted_values")
	writeValueCounts(stream, run.Occurrences)

	stream.WriteObjectEnd()
	stream.WriteRaw("\n")

	if stream.Error != nil {
		return 0, stream.Error
	}
	return w.output.Write(stream.Buffer())
}

func writeDirectories(stream *jsoniter.Stream, run *model.Run) {
	dirs := make([]string, 0, len(run.Directories))
	seen := make(map[string]struct{})
	for _, d := range run.Directories {
		if _, ok := run.DirectoryInfo[d]; !ok {
			continue
		}
		if _, dup := seen[d]; dup {
			continue
		}
		seen[d] = struct{}{}
		dirs = append(dirs, d)
	}

	if len(dirs) == 0 {
		stream.WriteEmptyObject()
		return
	}

	stream.WriteObjectStart()
	for i, d := range dirs {
		if i > 0 {
			stream.WriteMore()
		}
		info := run.DirectoryInfo[d]
		stream.WriteObjectField(d)
		stream.WriteObjectStart()
		stream.WriteObjectField("number_of_files")
		stream.WriteInt(info.NumberOfFiles)
		stream.WriteMore()
		stream.WriteObjectField("total_size")
		stream.WriteFloat64(info.TotalSize)
		stream.WriteObjectEnd()
	}
	stream.WriteObjectEnd()
}

// writeValueCounts writes per-token value counts. Values are keyed by their
// display form, so a string and a number with the same text share a key.
func writeValueCounts(stream *jsoniter.Stream, occ *model.Occurrences) {
	tokens := occ.Tokens()
	if len(tokens) == 0 {
		stream.WriteEmptyObject()
		return
	}

	stream.WriteObjectStart()
	for i, t := range tokens {
		if i > 0 {
			stream.WriteMore()
		}
		stream.WriteObjectField(string(t))

		counts := make([]valueCount, 0)
		index := make(map[string]int)
		for _, e := range occ.Extractions(t) {
			key := e.Value.String()
			if at, ok := index[key]; ok {
				counts[at].count++
				continue
			}
			index[key] = len(counts)
			counts = append(counts, valueCount{key: key, count: 1})
		}

		stream.WriteObjectStart()
		for j, vc := range counts {
			if j > 0 {
				stream.WriteMore()
			}
			stream.WriteObjectField(vc.key)
			stream.WriteInt(vc.count)
		}
		stream.WriteObjectEnd()
	}
	stream.WriteObjectEnd()
}
