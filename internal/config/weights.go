package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/perpsignal/crashwatch/internal/domain/factors"
)

// WeightsDocument is the on-disk shape of the factor weights file.
type WeightsDocument struct {
	Factors    factors.Weights   `yaml:"factors"`
	Validation WeightsValidation `yaml:"validation"`
}

// WeightsValidation bounds the acceptable weight values beyond the
// hard [0,1] contract.
type WeightsValidation struct {
	MinWeight    float64 `yaml:"min_weight"`
	MaxWeight    float64 `yaml:"max_weight"`
	MaxTotal     float64 `yaml:"max_total"`
	RequireTotal bool    `yaml:"require_total"`
}

// WeightsLoader handles loading and validation of factor weights.
type WeightsLoader struct {
	doc *WeightsDocument
}

// NewWeightsLoader creates an empty loader.
func NewWeightsLoader() *WeightsLoader {
	return &WeightsLoader{}
}

// LoadFromFile loads factor weights from a YAML file.
func (wl *WeightsLoader) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read weights file %s: %w", path, err)
	}

	var doc WeightsDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse weights file: %w", err)
	}
	if doc.Validation == (WeightsValidation{}) {
		doc.Validation = defaultWeightsValidation()
	}

	if err := wl.validateDoc(&doc); err != nil {
		return fmt.Errorf("weights validation failed: %w", err)
	}

	wl.doc = &doc
	return nil
}

// LoadDefault loads the built-in factor weights.
func (wl *WeightsLoader) LoadDefault() error {
	doc := &WeightsDocument{
		Factors:    factors.DefaultWeights(),
		Validation: defaultWeightsValidation(),
	}
	if err := wl.validateDoc(doc); err != nil {
		return fmt.Errorf("default weights validation failed: %w", err)
	}
	wl.doc = doc
	return nil
}

// Weights returns the loaded weight set. It panics if neither
// LoadFromFile nor LoadDefault has succeeded, which is a programming
// error, not a runtime condition.
func (wl *WeightsLoader) Weights() factors.Weights {
	if wl.doc == nil {
		panic("config: weights not loaded - call LoadFromFile or LoadDefault first")
	}
	return wl.doc.Factors
}

func defaultWeightsValidation() WeightsValidation {
	return WeightsValidation{
		MinWeight: 0.0,
		MaxWeight: 0.60,
		MaxTotal:  2.0,
	}
}

func (wl *WeightsLoader) validateDoc(doc *WeightsDocument) error {
	if err := doc.Factors.Validate(); err != nil {
		return err
	}

	v := doc.Validation
	var total float64
	for name, w := range doc.Factors.Named() {
		if w < v.MinWeight || w > v.MaxWeight {
			return fmt.Errorf("weight %s = %v outside [%v, %v]", name, w, v.MinWeight, v.MaxWeight)
		}
		total += w
	}
	if v.MaxTotal > 0 && total > v.MaxTotal {
		return fmt.Errorf("weights total %v exceeds maximum %v", total, v.MaxTotal)
	}
	if v.RequireTotal && total != 1 {
		return fmt.Errorf("weights total %v, want exactly 1", total)
	}
	return nil
}
