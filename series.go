package boundplot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// Series is one empirical data set loaded from a single file. It is not
// modified after LoadSeries returns.
type Series struct {
	// Label shown in the legend. Empty means the series is drawn but left out
	// of the legend.
	Label string
	Path  string

	Points []Point
}

func (s Series) Len() int {
	return len(s.Points)
}

func (s Series) Xs() []float64 {
	xs := make([]float64, len(s.Points))
	for i, p := range s.Points {
		xs[i] = p.X
	}
	return xs
}

func (s Series) Ys() []float64 {
	ys := make([]float64, len(s.Points))
	for i, p := range s.Points {
		ys[i] = p.Y
	}
	return ys
}

// ReadSeries reads every point from input. name is only used for error
// messages. Files ending in .csv are read as strict CSV, everything else as a
// whitespace delimited table.
func ReadSeries(ctx context.Context, name string, input io.Reader) ([]Point, error) {
	var stringReader StringReader
	if strings.EqualFold(filepath.Ext(name), ".csv") {
		stringReader = NewCsvStringReader(input)
	} else {
		stringReader = NewRelaxedStringReader(input)
	}

	reader := &TextToPointReader{Input: stringReader, Name: name}

	points := make([]Point, 0)
	for {
		point, err := reader.Read(ctx)
		if err == io.EOF {
			break
		}

		if err != nil {
			return nil, err
		}

		points = append(points, point)
	}

	if len(points) == 0 {
		return nil, &MalformedInputError{File: name, Err: errors.New("no data rows")}
	}

	return points, nil
}

// LoadSeries opens path and reads it as a series with the given label.
func LoadSeries(ctx context.Context, path string, label string) (Series, error) {
	f, err := os.Open(path)
	if err != nil {
		return Series{}, &MalformedInputError{File: path, Err: err}
	}
	defer f.Close()

	points, err := ReadSeries(ctx, path, f)
	if err != nil {
		return Series{}, err
	}

	logrus.WithFields(logrus.Fields{
		"tag":   "LoadSeries",
		"path":  path,
		"label": label,
		"rows":  len(points),
	}).Info("loaded series")

	return Series{Label: label, Path: path, Points: points}, nil
}

// LoadAllSeries loads one series per path. labels is either empty or has one
// entry per path; the count is checked before any file is opened.
func LoadAllSeries(ctx context.Context, paths []string, labels []string) ([]Series, error) {
	if len(paths) == 0 {
		return nil, &StartupValidationError{Arg: "--plot-data", Msg: "at least one file is required"}
	}

	if len(labels) != 0 && len(labels) != len(paths) {
		return nil, &StartupValidationError{
			Arg: "--labels",
			Msg: fmt.Sprintf("got %d labels for %d data files", len(labels), len(paths)),
		}
	}

	series := make([]Series, 0, len(paths))
	for i, path := range paths {
		label := ""
		if len(labels) != 0 {
			label = labels[i]
		}

		s, err := LoadSeries(ctx, path, label)
		if err != nil {
			return nil, err
		}

		series = append(series, s)
	}

	return series, nil
}

// MaxSeriesLen is the number of rows of the longest series.
func MaxSeriesLen(series []Series) int {
	maxLen := 0
	for _, s := range series {
		maxLen = Max(maxLen, s.Len())
	}
	return maxLen
}
