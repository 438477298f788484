package boundplot

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

// writeFile creates name under a temporary directory and returns its path.
func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func TestLoadSeries(t *testing.T) {
	t.Run("KeepsRowOrder", func(t *testing.T) {
		path := writeFile(t, "a.txt", "1 2\n2 4\n3 6\n")
		s, err := LoadSeries(context.Background(), path, "A")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if got, want := s.Ys(), []float64{2, 4, 6}; !reflect.DeepEqual(got, want) {
			t.Fatalf("Ys() = %v, want %v", got, want)
		}
		if got, want := s.Xs(), []float64{1, 2, 3}; !reflect.DeepEqual(got, want) {
			t.Fatalf("Xs() = %v, want %v", got, want)
		}
		if s.Label != "A" || s.Path != path || s.Len() != 3 {
			t.Fatalf("unexpected series: %+v", s)
		}
	})

	t.Run("CSVExtension", func(t *testing.T) {
		path := writeFile(t, "a.csv", "1,0.5\n2,0.25\n")
		s, err := LoadSeries(context.Background(), path, "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got, want := s.Ys(), []float64{0.5, 0.25}; !reflect.DeepEqual(got, want) {
			t.Fatalf("Ys() = %v, want %v", got, want)
		}
	})

	t.Run("MissingFile", func(t *testing.T) {
		_, err := LoadSeries(context.Background(), filepath.Join(t.TempDir(), "nope.txt"), "")
		var malformed *MalformedInputError
		if !errors.As(err, &malformed) {
			t.Fatalf("expected MalformedInputError, got %v", err)
		}
		if !errors.Is(err, os.ErrNotExist) {
			t.Fatalf("expected wrapped os.ErrNotExist, got %v", err)
		}
	})

	t.Run("EmptyFile", func(t *testing.T) {
		path := writeFile(t, "empty.txt", "\n# nothing here\n")
		_, err := LoadSeries(context.Background(), path, "")
		var malformed *MalformedInputError
		if !errors.As(err, &malformed) {
			t.Fatalf("expected MalformedInputError, got %v", err)
		}
		if malformed.File != path {
			t.Fatalf("File = %q, want %q", malformed.File, path)
		}
	})

	t.Run("NonFinite", func(t *testing.T) {
		path := writeFile(t, "nan.txt", "1 2\n2 nan\n3 inf\n")
		_, err := LoadSeries(context.Background(), path, "")
		var malformed *MalformedInputError
		if !errors.As(err, &malformed) {
			t.Fatalf("expected MalformedInputError, got %v", err)
		}
		if malformed.Line != 2 || malformed.Token != "nan" {
			t.Fatalf("unexpected error fields: %+v", malformed)
		}
	})

	t.Run("NonNumeric", func(t *testing.T) {
		path := writeFile(t, "bad.txt", "1 2\nx 3\n")
		_, err := LoadSeries(context.Background(), path, "")
		var malformed *MalformedInputError
		if !errors.As(err, &malformed) {
			t.Fatalf("expected MalformedInputError, got %v", err)
		}
		if malformed.Line != 2 {
			t.Fatalf("Line = %d, want 2", malformed.Line)
		}
	})
}

func TestLoadAllSeries(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.txt")
	b := filepath.Join(dir, "b.txt")
	os.WriteFile(a, []byte("1 1\n2 0.5\n3 0.3\n"), 0o644)
	os.WriteFile(b, []byte("1 1\n2 0.4\n3 0.2\n4 0.1\n5 0.05\n"), 0o644)

	t.Run("WithLabels", func(t *testing.T) {
		series, err := LoadAllSeries(context.Background(), []string{a, b}, []string{"A", "B"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(series) != 2 || series[0].Label != "A" || series[1].Label != "B" {
			t.Fatalf("unexpected series: %+v", series)
		}
		if MaxSeriesLen(series) != 5 {
			t.Fatalf("MaxSeriesLen = %d, want 5", MaxSeriesLen(series))
		}
	})

	t.Run("WithoutLabels", func(t *testing.T) {
		series, err := LoadAllSeries(context.Background(), []string{a, b}, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for _, s := range series {
			if s.Label != "" {
				t.Fatalf("expected empty label, got %q", s.Label)
			}
		}
	})

	t.Run("LabelCountMismatch", func(t *testing.T) {
		// The check happens before any file is opened, so a missing file
		// must not be what fails.
		_, err := LoadAllSeries(context.Background(), []string{a, filepath.Join(dir, "missing.txt")}, []string{"A"})
		var validation *StartupValidationError
		if !errors.As(err, &validation) {
			t.Fatalf("expected StartupValidationError, got %v", err)
		}
		if validation.Arg != "--labels" {
			t.Fatalf("Arg = %q, want --labels", validation.Arg)
		}
	})

	t.Run("NoFiles", func(t *testing.T) {
		_, err := LoadAllSeries(context.Background(), nil, nil)
		var validation *StartupValidationError
		if !errors.As(err, &validation) {
			t.Fatalf("expected StartupValidationError, got %v", err)
		}
	})

	t.Run("OneBadFileFailsAll", func(t *testing.T) {
		_, err := LoadAllSeries(context.Background(), []string{a, filepath.Join(dir, "missing.txt")}, nil)
		var malformed *MalformedInputError
		if !errors.As(err, &malformed) {
			t.Fatalf("expected MalformedInputError, got %v", err)
		}
	})
}
