package boundplot

import (
	"fmt"
	"math"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// ParameterSettings describes one slider.
type ParameterSettings struct {
	Init float64 `yaml:"init"`
	Min  float64 `yaml:"min"`
	Max  float64 `yaml:"max"`
}

// Settings holds everything that can be tuned from the optional YAML file.
// The zero-config defaults give the classic 0.9 to n+1 domain.
type Settings struct {
	Host        string `yaml:"host"`
	Port        uint16 `yaml:"port"`
	OpenBrowser bool   `yaml:"open_browser"`
	LogLevel    string `yaml:"log_level"`

	Figure FigureOptions `yaml:"figure"`

	// Number of samples of the bound curves.
	Resolution int `yaml:"resolution"`

	// First sample of the bound curve domain. The last one is always the
	// length of the longest series plus one.
	DomainStart float64 `yaml:"domain_start"`

	// Half-width of the square mesh viewport. Mesh coordinates are expected
	// to lie in [-1, 1].
	MeshViewport float64 `yaml:"mesh_viewport"`

	C1 ParameterSettings `yaml:"c1"`
	C2 ParameterSettings `yaml:"c2"`
	K  ParameterSettings `yaml:"k"`
}

func DefaultSettings() Settings {
	return Settings{
		Host:        "127.0.0.1",
		Port:        5275,
		OpenBrowser: true,
		LogLevel:    "info",

		Figure: FigureOptions{
			MeshTitle: "Mesh",
		},

		Resolution:   DefaultResolution,
		DomainStart:  DefaultDomainStart,
		MeshViewport: 1.01,

		C1: ParameterSettings{Init: 0.25, Min: 0.01, Max: 1},
		C2: ParameterSettings{Init: 0.05, Min: 0.01, Max: 1},
		K:  ParameterSettings{Init: 1, Min: 0.1, Max: 10},
	}
}

// LoadSettings reads a YAML file on top of DefaultSettings. Keys missing from
// the file keep their default value.
func LoadSettings(path string) (Settings, error) {
	settings := DefaultSettings()

	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("reading settings: %w", err)
	}

	if err := yaml.Unmarshal(data, &settings); err != nil {
		return Settings{}, fmt.Errorf("parsing settings %s: %w", path, err)
	}

	if err := settings.Validate(); err != nil {
		return Settings{}, fmt.Errorf("settings %s: %w", path, err)
	}

	logrus.WithFields(logrus.Fields{
		"tag":  "Settings",
		"path": path,
	}).Debug("loaded settings")

	return settings, nil
}

func (s Settings) Validate() error {
	if s.Resolution < 2 {
		return fmt.Errorf("resolution must be at least 2, got %d", s.Resolution)
	}

	if s.DomainStart <= 0 {
		return fmt.Errorf("domain_start must be positive, got %g", s.DomainStart)
	}

	if math.IsNaN(s.DomainStart) || math.IsInf(s.DomainStart, 0) {
		return fmt.Errorf("domain_start must be finite, got %g", s.DomainStart)
	}

	if !(s.MeshViewport > 0) || math.IsInf(s.MeshViewport, 0) {
		return fmt.Errorf("mesh_viewport must be positive, got %g", s.MeshViewport)
	}

	params := map[string]ParameterSettings{"c1": s.C1, "c2": s.C2, "k": s.K}
	for name, p := range params {
		for _, v := range []float64{p.Init, p.Min, p.Max} {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("%s: init, min and max must be finite, got %g", name, v)
			}
		}
		if p.Min >= p.Max {
			return fmt.Errorf("%s: min (%g) must be below max (%g)", name, p.Min, p.Max)
		}
	}

	if _, err := logrus.ParseLevel(s.LogLevel); err != nil {
		return err
	}

	return nil
}
