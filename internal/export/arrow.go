package export

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"time"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/ipc"
	"github.com/apache/arrow/go/v17/arrow/memory"

	"github.com/nvandessel/rabbitsim/internal/simulation"
)

// intColumn maps one integer Result field to an Int64 column.
type intColumn struct {
	name string
	get  func(r *simulation.Result) int64
	set  func(r *simulation.Result, v int64)
}

var intColumns = []intColumn{
	{"run_index", func(r *simulation.Result) int64 { return int64(r.RunIndex) }, func(r *simulation.Result, v int64) { r.RunIndex = int(v) }},
	{"final_alive", func(r *simulation.Result) int64 { return int64(r.FinalAlive) }, func(r *simulation.Result, v int64) { r.FinalAlive = int(v) }},
	{"final_females", func(r *simulation.Result) int64 { return int64(r.FinalFemales) }, func(r *simulation.Result, v int64) { r.FinalFemales = int(v) }},
	{"final_males", func(r *simulation.Result) int64 { return int64(r.FinalMales) }, func(r *simulation.Result, v int64) { r.FinalMales = int(v) }},
	{"total_deaths", func(r *simulation.Result) int64 { return r.TotalDeaths }, func(r *simulation.Result, v int64) { r.TotalDeaths = v }},
	{"total_births", func(r *simulation.Result) int64 { return r.TotalBirths }, func(r *simulation.Result, v int64) { r.TotalBirths = v }},
	{"peak", func(r *simulation.Result) int64 { return int64(r.Peak) }, func(r *simulation.Result, v int64) { r.Peak = int(v) }},
	{"peak_month", func(r *simulation.Result) int64 { return int64(r.PeakMonth) }, func(r *simulation.Result, v int64) { r.PeakMonth = int(v) }},
	{"trough", func(r *simulation.Result) int64 { return int64(r.Trough) }, func(r *simulation.Result, v int64) { r.Trough = int(v) }},
	{"trough_month", func(r *simulation.Result) int64 { return int64(r.TroughMonth) }, func(r *simulation.Result, v int64) { r.TroughMonth = int(v) }},
	{"population_months", func(r *simulation.Result) int64 { return r.PopulationMonths }, func(r *simulation.Result, v int64) { r.PopulationMonths = v }},
	{"months_simulated", func(r *simulation.Result) int64 { return int64(r.MonthsSimulated) }, func(r *simulation.Result, v int64) { r.MonthsSimulated = int(v) }},
	{"extinction_month", func(r *simulation.Result) int64 { return int64(r.ExtinctionMonth) }, func(r *simulation.Result, v int64) { r.ExtinctionMonth = int(v) }},
	{"duration_ns", func(r *simulation.Result) int64 { return int64(r.Duration) }, func(r *simulation.Result, v int64) { r.Duration = time.Duration(v) }},
}

// RunsSchema is the Arrow schema of the run table. meta is attached as
// schema metadata.
func RunsSchema(meta map[string]string) *arrow.Schema {
	fields := make([]arrow.Field, 0, len(intColumns)+2)
	for _, c := range intColumns {
		fields = append(fields, arrow.Field{Name: c.name, Type: arrow.PrimitiveTypes.Int64})
	}
	fields = append(fields,
		arrow.Field{Name: "status", Type: arrow.BinaryTypes.String},
		arrow.Field{Name: "error", Type: arrow.BinaryTypes.String, Nullable: true},
	)

	var md *arrow.Metadata
	if len(meta) > 0 {
		keys := slices.Sorted(maps.Keys(meta))
		values := make([]string, len(keys))
		for i, k := range keys {
			values[i] = meta[k]
		}
		m := arrow.NewMetadata(keys, values)
		md = &m
	}
	return arrow.NewSchema(fields, md)
}

// WriteRunsArrow writes results as an Arrow IPC file holding one record batch.
func WriteRunsArrow(w io.Writer, results []simulation.Result, meta map[string]string) error {
	mem := memory.NewGoAllocator()
	schema := RunsSchema(meta)

	b := array.NewRecordBuilder(mem, schema)
	defer b.Release()

	for i := range results {
		r := &results[i]
		for j, c := range intColumns {
			b.Field(j).(*array.Int64Builder).Append(c.get(r))
		}
		b.Field(len(intColumns)).(*array.StringBuilder).Append(string(r.Status))
		errBuilder := b.Field(len(intColumns) + 1).(*array.StringBuilder)
		if r.Error == "" {
			errBuilder.AppendNull()
		} else {
			errBuilder.Append(r.Error)
		}
	}

	rec := b.NewRecord()
	defer rec.Release()

	fw, err := ipc.NewFileWriter(w, ipc.WithSchema(schema), ipc.WithAllocator(mem))
	if err != nil {
		return fmt.Errorf("creating arrow writer: %w", err)
	}
	if err := fw.Write(rec); err != nil {
		fw.Close()
		return fmt.Errorf("writing arrow record: %w", err)
	}
	if err := fw.Close(); err != nil {
		return fmt.Errorf("closing arrow writer: %w", err)
	}
	return nil
}

// ReadRunsArrow reads a file written by WriteRunsArrow. It returns the
// results and the schema metadata.
func ReadRunsArrow(r ipc.ReadAtSeeker) ([]simulation.Result, map[string]string, error) {
	mem := memory.NewGoAllocator()
	fr, err := ipc.NewFileReader(r, ipc.WithAllocator(mem))
	if err != nil {
		return nil, nil, fmt.Errorf("opening arrow file: %w", err)
	}
	defer fr.Close()

	schema := fr.Schema()
	want := RunsSchema(nil)
	if !schema.Equal(want) {
		return nil, nil, fmt.Errorf("unexpected arrow schema: %s", schema)
	}

	meta := make(map[string]string, schema.Metadata().Len())
	for i, k := range schema.Metadata().Keys() {
		meta[k] = schema.Metadata().Values()[i]
	}

	var results []simulation.Result
	for i := 0; i < fr.NumRecords(); i++ {
		rec, err := fr.Record(i)
		if err != nil {
			return nil, nil, fmt.Errorf("reading arrow record %d: %w", i, err)
		}
		results = appendRecord(results, rec)
	}
	return results, meta, nil
}

func appendRecord(results []simulation.Result, rec arrow.Record) []simulation.Result {
	n := int(rec.NumRows())
	status := rec.Column(len(intColumns)).(*array.String)
	errs := rec.Column(len(intColumns) + 1).(*array.String)

	for row := 0; row < n; row++ {
		var res simulation.Result
		for j, c := range intColumns {
			c.set(&res, rec.Column(j).(*array.Int64).Value(row))
		}
		res.Status = simulation.Status(status.Value(row))
		if errs.IsValid(row) {
			res.Error = errs.Value(row)
		}
		results = append(results, res)
	}
	return results
}
