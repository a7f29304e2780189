package executor

import (
	"fmt"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/rowmill/rowmill/rel/table"
)

// TableFormatter renders result tables for human output.
type TableFormatter struct {
	// MaxWidth is the maximum width for a column
	MaxWidth int
	// TruncateString is the string appended when truncating
	TruncateString string
}

// NewTableFormatter creates a formatter with default settings.
func NewTableFormatter() *TableFormatter {
	return &TableFormatter{
		MaxWidth:       50,
		TruncateString: "...",
	}
}

// FormatTempTable renders an executor output table as a markdown table.
func (tf *TableFormatter) FormatTempTable(t *table.TempTable) string {
	if t == nil || t.Len() == 0 {
		return "_No rows_"
	}

	schema := t.Schema()
	tableString := &strings.Builder{}

	alignment := make([]tw.Align, schema.Len())
	for i := range alignment {
		alignment[i] = tw.AlignNone
	}

	out := tablewriter.NewTable(tableString,
		tablewriter.WithRenderer(renderer.NewMarkdown()),
		tablewriter.WithAlignment(alignment),
		tablewriter.WithHeaderAutoFormat(tw.Off),
	)
	out.Header(schema.Names())

	it := t.Iterator()
	defer it.Close()
	for it.Next() {
		row := it.Tuple()
		cells := make([]string, row.Len())
		for j := 0; j < row.Len(); j++ {
			cells[j] = tf.formatCell(row.Value(j).String())
		}
		out.Append(cells)
	}
	out.Render()

	tableString.WriteString(fmt.Sprintf("\n_%d rows_\n", t.Len()))
	return tableString.String()
}

func (tf *TableFormatter) formatCell(s string) string {
	if tf.MaxWidth > 0 && len(s) > tf.MaxWidth {
		return s[:tf.MaxWidth-len(tf.TruncateString)] + tf.TruncateString
	}
	return s
}
