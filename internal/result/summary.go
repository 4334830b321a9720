// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// ParaprobeManager - 原子探针分析任务管理工具

package result

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/ZSC714725/paraprobemanager/internal/logger"
)

// Unit labels every metric of a summary log (atomic weight percent).
const Unit = "at. wt%"

// Keys written by FlattenIntoStore next to the metrics.
const (
	KeyIonCount = "ion_count"
	KeyUnit     = "unit"
)

// Token positions of the reporter summary layout:
//
//	Total ions: 12345,
//	at. 11.2, wt% Fe,
const (
	countToken  = 2
	valueToken  = 1
	metricToken = 3
)

// LogLine is one whitespace-tokenized line of a captured log.
type LogLine []string

// Tokenize splits a complete log into lines of whitespace-delimited tokens.
// Blank lines are skipped.
func Tokenize(text string) []LogLine {
	var lines []LogLine
	for _, raw := range strings.Split(text, "\n") {
		fields := strings.Fields(raw)
		if len(fields) == 0 {
			continue
		}
		lines = append(lines, LogLine(fields))
	}
	return lines
}

// ReadLog reads a complete captured log. A missing file is reported as a
// MissingInputError.
func ReadLog(path string) (string, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- log paths are built by the job
	if err != nil {
		if os.IsNotExist(err) {
			return "", &MissingInputError{Path: path, Err: err}
		}
		return "", fmt.Errorf("reading log %s: %w", path, err)
	}
	return string(data), nil
}

// Metric is one named value of a summary record
type Metric struct {
	Key   string
	Value float64
}

// SummaryRecord is the parsed content of one summary log. It is immutable.
type SummaryRecord struct {
	count   int64
	metrics []Metric
}

// NewSummaryRecord builds a record from already parsed values. Duplicate keys
// keep their first position and the last value.
func NewSummaryRecord(count int64, metrics []Metric) SummaryRecord {
	r := SummaryRecord{count: count}
	for _, m := range metrics {
		r.metrics, _ = upsertMetric(r.metrics, m)
	}
	return r
}

// Count returns the total ion count
func (r SummaryRecord) Count() int64 { return r.count }

// Unit returns the unit label of the metrics
func (r SummaryRecord) Unit() string { return Unit }

// Len returns the number of metrics
func (r SummaryRecord) Len() int { return len(r.metrics) }

// Metrics returns a copy of the metrics in log order
func (r SummaryRecord) Metrics() []Metric {
	out := make([]Metric, len(r.metrics))
	copy(out, r.metrics)
	return out
}

// Metric looks up one metric by key
func (r SummaryRecord) Metric(key string) (float64, bool) {
	for _, m := range r.metrics {
		if m.Key == key {
			return m.Value, true
		}
	}
	return 0, false
}

// Values returns the metric values in log order
func (r SummaryRecord) Values() []float64 {
	out := make([]float64, len(r.metrics))
	for i, m := range r.metrics {
		out[i] = m.Value
	}
	return out
}

func upsertMetric(metrics []Metric, m Metric) ([]Metric, bool) {
	for i := range metrics {
		if metrics[i].Key == m.Key {
			metrics[i].Value = m.Value
			return metrics, true
		}
	}
	return append(metrics, m), false
}

// Parser turns summary logs into records. The zero value is not usable, use
// NewParser.
type Parser struct {
	logger logger.Logger
}

// NewParser creates a Parser. Duplicate metric keys are reported through log.
func NewParser(log logger.Logger) *Parser {
	if log == nil {
		log = logger.Nop()
	}
	return &Parser{logger: log}
}

// ParseSummary parses the tokenized reporter summary with a parser that
// discards warnings.
func ParseSummary(lines []LogLine) (SummaryRecord, error) {
	return NewParser(nil).ParseSummary(lines)
}

// ParseSummary reads the ion count from the third token of the first line (the
// token after it when the third token is a label ending in ':') and one metric
// per following line: the key is the fourth token, the value the second.
// Commas around tokens are stripped before conversion. Any shape
// mismatch is a *ParseError, there is no partial result.
func (p *Parser) ParseSummary(lines []LogLine) (SummaryRecord, error) {
	if len(lines) == 0 {
		return SummaryRecord{}, &ParseError{Line: -1, Reason: "no header line"}
	}

	header := lines[0]
	if len(header) <= countToken {
		return SummaryRecord{}, &ParseError{
			Line:   0,
			Raw:    header.String(),
			Reason: fmt.Sprintf("header has %d tokens, need at least %d", len(header), countToken+1),
		}
	}
	pos := countToken
	// "Total ion count: 12345," puts the label through the count position.
	if strings.HasSuffix(header[pos], ":") && len(header) > pos+1 {
		pos++
	}
	count, err := strconv.ParseInt(stripComma(header[pos]), 10, 64)
	if err != nil {
		return SummaryRecord{}, &ParseError{
			Line:   0,
			Raw:    header.String(),
			Token:  header[pos],
			Reason: "ion count is not an integer",
		}
	}

	rec := SummaryRecord{count: count}
	for i, line := range lines[1:] {
		idx := i + 1
		if len(line) <= metricToken {
			return SummaryRecord{}, &ParseError{
				Line:   idx,
				Raw:    line.String(),
				Reason: fmt.Sprintf("metric line has %d tokens, need at least %d", len(line), metricToken+1),
			}
		}
		key := stripComma(line[metricToken])
		if key == "" {
			return SummaryRecord{}, &ParseError{
				Line:   idx,
				Raw:    line.String(),
				Token:  line[metricToken],
				Reason: "empty metric key",
			}
		}
		if strings.Contains(key, "/") {
			return SummaryRecord{}, &ParseError{
				Line:   idx,
				Raw:    line.String(),
				Token:  line[metricToken],
				Reason: "metric key is not a path segment",
			}
		}
		if key == KeyIonCount || key == KeyUnit {
			return SummaryRecord{}, &ParseError{
				Line:   idx,
				Raw:    line.String(),
				Token:  line[metricToken],
				Reason: "reserved key",
			}
		}
		value, err := strconv.ParseFloat(stripComma(line[valueToken]), 64)
		if err != nil {
			return SummaryRecord{}, &ParseError{
				Line:   idx,
				Raw:    line.String(),
				Token:  line[valueToken],
				Reason: "metric value is not a number",
			}
		}

		var dup bool
		rec.metrics, dup = upsertMetric(rec.metrics, Metric{Key: key, Value: value})
		if dup {
			p.logger.Warn("summary line %d: duplicate metric %q, keeping last value %g", idx, key, value)
		}
	}

	return rec, nil
}

// FlattenIntoStore writes namespace/ion_count, namespace/unit and one
// namespace/<key> entry per metric.
func FlattenIntoStore(record SummaryRecord, store *Store, namespace string) error {
	if err := store.Set(Path(namespace, KeyIonCount), Int(record.Count())); err != nil {
		return err
	}
	if err := store.Set(Path(namespace, KeyUnit), String(record.Unit())); err != nil {
		return err
	}
	for _, m := range record.metrics {
		if err := store.Set(Path(namespace, m.Key), Float(m.Value)); err != nil {
			return err
		}
	}
	return nil
}

// RecordFromStore rebuilds the record flattened under namespace.
func RecordFromStore(store *Store, namespace string) (SummaryRecord, error) {
	namespace = strings.Trim(namespace, "/")

	count, ok := store.Get(Path(namespace, KeyIonCount))
	if !ok || count.Kind != KindInt {
		return SummaryRecord{}, fmt.Errorf("%s: no integer %s entry", namespace, KeyIonCount)
	}
	unit, ok := store.Get(Path(namespace, KeyUnit))
	if !ok || unit.Text != Unit {
		return SummaryRecord{}, fmt.Errorf("%s: unexpected %s entry", namespace, KeyUnit)
	}

	rec := SummaryRecord{count: count.Int}
	for _, e := range store.Entries(namespace) {
		if e.Path == namespace {
			continue
		}
		key := strings.TrimPrefix(e.Path, namespace+"/")
		if key == KeyIonCount || key == KeyUnit || strings.Contains(key, "/") {
			continue
		}
		if e.Value.Kind != KindFloat {
			continue
		}
		rec.metrics = append(rec.metrics, Metric{Key: key, Value: e.Value.Float})
	}
	return rec, nil
}

func (l LogLine) String() string {
	return strings.Join(l, " ")
}

func stripComma(tok string) string {
	return strings.Trim(tok, ",")
}
