// Package ingest reads metric samples from semicolon-delimited CSV files.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/savegress/basewatch/internal/baseline"
)

// TimestampLayout is the layout of the timestamp column.
const TimestampLayout = "2006-01-02 15:04:05"

const (
	delimiter = ';'
	minFields = 2
)

// ErrNonFiniteValue is returned for NaN or infinite values.
var ErrNonFiniteValue = errors.New("value is not a finite number")

// Parser converts `timestamp;value` rows into samples.
type Parser struct {
	logger   *zap.Logger
	location *time.Location
}

// Option configures a Parser.
type Option func(*Parser)

// WithLogger sets the logger that reports skipped rows.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Parser) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithLocation sets the location timestamps are interpreted in. Defaults to UTC.
func WithLocation(loc *time.Location) Option {
	return func(p *Parser) {
		if loc != nil {
			p.location = loc
		}
	}
}

// NewParser creates a parser.
func NewParser(opts ...Option) *Parser {
	p := &Parser{
		logger:   zap.NewNop(),
		location: time.UTC,
	}
	for _, opt := range opts {
		opt(p)
	}

	return p
}

// ParseFile parses the CSV file at path.
func (p *Parser) ParseFile(path string) ([]baseline.Sample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	samples, err := p.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	p.logger.Debug("parsed samples", zap.String("path", path), zap.Int("samples", len(samples)))

	return samples, nil
}

// Parse reads samples from r. Rows with fewer than two fields or an empty
// field are skipped; a malformed timestamp or a value that is not a finite
// number is an error. Errors name the file line the record starts on.
func (p *Parser) Parse(r io.Reader) ([]baseline.Sample, error) {
	reader := csv.NewReader(r)
	reader.Comma = delimiter
	reader.FieldsPerRecord = -1

	var samples []baseline.Sample

	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// csv.ParseError carries its own line number.
			return nil, fmt.Errorf("failed to read: %w", err)
		}

		line, _ := reader.FieldPos(0)

		if skip(row) {
			p.logger.Warn("skipping row", zap.Int("line", line), zap.Strings("row", row))
			continue
		}

		ts, err := time.ParseInLocation(TimestampLayout, row[0], p.location)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid timestamp %q: %w", line, row[0], err)
		}

		value, err := strconv.ParseFloat(strings.TrimSpace(row[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid value %q: %w", line, row[1], err)
		}
		if math.IsNaN(value) || math.IsInf(value, 0) {
			return nil, fmt.Errorf("line %d: %w: %q", line, ErrNonFiniteValue, row[1])
		}

		samples = append(samples, baseline.Sample{Timestamp: ts, Value: value})
	}

	return samples, nil
}

func skip(row []string) bool {
	if len(row) < minFields {
		return true
	}

	for _, field := range row {
		if field == "" {
			return true
		}
	}

	return false
}
