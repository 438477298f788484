package boundplot

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// A series file is read in two stages: a StringReader splits the raw text
// into rows of tokens, then a TextToPointReader turns the first two tokens of
// each row into a Point. LoadSeries drives both until EOF.

// When Read is called, return an array of strings which are the columns.
type StringReader interface {
	Read(context.Context) ([]string, error)

	// Line is the 1-based line number of the row most recently returned.
	Line() int
}

// This implements a StringReader and reads an io.Reader using the Golang csv
// module. This means the input data must strictly conform to CSV data. Used
// for series files with a .csv extension.
type CsvStringReader struct {
	input     io.Reader
	csvReader *csv.Reader

	lineCount int
}

func NewCsvStringReader(input io.Reader) *CsvStringReader {
	csvReader := csv.NewReader(input)
	csvReader.Comment = '#'
	csvReader.FieldsPerRecord = -1
	csvReader.TrimLeadingSpace = true

	return &CsvStringReader{
		input:     input,
		csvReader: csvReader,
		lineCount: 0,
	}
}

func (r *CsvStringReader) Read(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	line, err := r.csvReader.Read()
	if err == io.EOF {
		return nil, io.EOF
	}

	if err != nil {
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			r.lineCount = parseErr.Line
		}

		logrus.WithFields(logrus.Fields{
			"tag":     "CsvString",
			"lineNum": r.lineCount,
		}).WithError(err).Debug("unable to read CSV")
		return nil, err
	}

	r.lineCount, _ = r.csvReader.FieldPos(0)
	return line, nil
}

func (r *CsvStringReader) Line() int {
	return r.lineCount
}

// This is a more relaxed reader that can split on spaces or commas. However, it does not
// follow string CSV formatting. This is the default and matches the whitespace
// delimited tables written by the solver. Blank lines and lines starting with
// '#' are skipped.
type RelaxedStringReader struct {
	input   io.Reader
	scanner *bufio.Scanner

	lineCount int
}

func NewRelaxedStringReader(input io.Reader) *RelaxedStringReader {
	return &RelaxedStringReader{
		input:   input,
		scanner: bufio.NewScanner(input),

		lineCount: 0,
	}
}

// Split on either comma or any number of spaces or tabs
var relaxedSplitter = regexp.MustCompile("[ \t]+|,")

func (r *RelaxedStringReader) Read(ctx context.Context) ([]string, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if !r.scanner.Scan() {
			if err := r.scanner.Err(); err != nil {
				logrus.WithField("tag", "RelaxedString").WithError(err).Error("unable to read line")
				return nil, err
			}
			return nil, io.EOF
		}

		r.lineCount++

		line := strings.TrimSpace(r.scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Return only non-empty tokens
		return Filter(relaxedSplitter.Split(line, -1), func(value string) bool {
			return len(value) > 0
		}), nil
	}
}

func (r *RelaxedStringReader) Line() int {
	return r.lineCount
}

// Point is a single sample of a series.
type Point struct {
	X float64
	Y float64
}

// TextToPointReader converts token rows into points. Column 0 is x and column
// 1 is y; anything after that is ignored. Unlike a live stream, a file that
// fails to parse is fatal, so every bad row is reported as a
// MalformedInputError.
type TextToPointReader struct {
	// The input reader object (either CsvStringReader or RelaxedStringReader)
	Input StringReader

	// Name of the file being read, used in error messages.
	Name string
}

func (r *TextToPointReader) Read(ctx context.Context) (Point, error) {
	line, err := r.Input.Read(ctx)
	if err == io.EOF {
		return Point{}, io.EOF
	}

	if err != nil {
		return Point{}, &MalformedInputError{File: r.Name, Line: r.Input.Line(), Err: err}
	}

	if len(line) < 2 {
		return Point{}, &MalformedInputError{
			File: r.Name,
			Line: r.Input.Line(),
			Err:  fmt.Errorf("expected at least 2 columns, got %d", len(line)),
		}
	}

	var values [2]float64
	for i := range values {
		values[i], err = strconv.ParseFloat(strings.TrimSpace(line[i]), 64)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"tag":  "TextToPoint",
				"file": r.Name,
				"line": line,
			}).Debug("cannot parse float")

			return Point{}, &MalformedInputError{
				File:  r.Name,
				Line:  r.Input.Line(),
				Token: line[i],
				Err:   errors.Unwrap(err),
			}
		}

		// nan and inf parse fine but cannot be plotted or sent as JSON.
		if math.IsNaN(values[i]) || math.IsInf(values[i], 0) {
			return Point{}, &MalformedInputError{
				File:  r.Name,
				Line:  r.Input.Line(),
				Token: line[i],
				Err:   errors.New("value is not finite"),
			}
		}
	}

	return Point{X: values[0], Y: values[1]}, nil
}
