package frame

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"
)

// WriteCSV renders the dataset with a header row. Nulls become empty
// cells and timestamps use RFC 3339
func (d *Dataset) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(d.ColumnNames()); err != nil {
		return err
	}
	row := make([]string, len(d.cols))
	for i := 0; i < d.NumRows(); i++ {
		for j, c := range d.cols {
			row[j] = formatCell(c.Values[i])
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatCell(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	default:
		return ""
	}
}
