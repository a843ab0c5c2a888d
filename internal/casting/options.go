package casting

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
)

const (
	DefaultBatchSize = 4
	MaxBatchSize     = 8

	DefaultShot        = "Half-length portrait"
	DefaultLighting    = "Natural Lighting"
	DefaultFaceShape   = "Oval"
	DefaultEyesColor   = "Brown"
	DefaultNationality = "Korean"
)

var (
	Shots = []string{
		"Head portrait",
		"Head and shoulders portrait",
		"Half-length portrait",
		"Full-length portrait",
		"Close-up",
		"Profile",
	}
	LightingTypes = []string{
		"Natural Lighting",
		"Studio Lighting",
		"Rembrandt Lighting",
		"Butterfly Lighting",
		"Split Lighting",
		"Rim Lighting",
		"Low-key Lighting",
		"High-key Lighting",
		"Backlighting",
		"Golden Hour",
	}
	FaceShapes = []string{
		"Oval",
		"Round",
		"Square",
		"Heart-shaped",
		"Diamond",
		"Oblong",
	}
	EyesColors = []string{
		"Brown",
		"Black",
		"Blue",
		"Green",
		"Hazel",
		"Gray",
		"Amber",
	}
	Nationalities = []string{
		"Korean",
		"Japanese",
		"Chinese",
		"Vietnamese",
		"Indian",
		"American",
		"British",
		"French",
		"Italian",
		"Spanish",
		"German",
		"Swedish",
		"Russian",
		"Brazilian",
		"Mexican",
		"Nigerian",
	}
)

// Option lists the allowed values of one face attribute.
type Option struct {
	Values  []string `json:"values"`
	Default string   `json:"default"`
}

// Catalog is the set of choices a client can offer for a face request.
type Catalog struct {
	Shot             Option `json:"shot"`
	Lighting         Option `json:"lighting"`
	FaceShape        Option `json:"face_shape"`
	EyesColor        Option `json:"eyes_color"`
	Nationality      Option `json:"nationality"`
	DefaultBatchSize int    `json:"default_batch_size"`
	MaxBatchSize     int    `json:"max_batch_size"`
}

// Options returns the face attribute catalog with its defaults.
func Options() Catalog {
	return Catalog{
		Shot:             Option{Values: clone(Shots), Default: DefaultShot},
		Lighting:         Option{Values: clone(LightingTypes), Default: DefaultLighting},
		FaceShape:        Option{Values: clone(FaceShapes), Default: DefaultFaceShape},
		EyesColor:        Option{Values: clone(EyesColors), Default: DefaultEyesColor},
		Nationality:      Option{Values: clone(Nationalities), Default: DefaultNationality},
		DefaultBatchSize: DefaultBatchSize,
		MaxBatchSize:     MaxBatchSize,
	}
}

// canonical resolves value against allowed using Unicode case folding. Empty
// input resolves to fallback.
func canonical(field, value, fallback string, allowed []string) (string, error) {
	value = strings.Join(strings.Fields(value), " ")
	if value == "" {
		return fallback, nil
	}
	fold := cases.Fold()
	want := fold.String(value)
	for _, candidate := range allowed {
		if fold.String(candidate) == want {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: %s %q", ErrInvalidOption, field, value)
}

func clone(values []string) []string {
	out := make([]string, len(values))
	copy(out, values)
	return out
}
