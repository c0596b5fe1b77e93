package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"waste-dispatch-service/internal/domain"
	"waste-dispatch-service/internal/services"
)

// scenario is one episode described in YAML: the fleet and rules, and
// either inline points or the forecast date to load them from the store.
type scenario struct {
	Episode services.EpisodeConfig `yaml:"episode"`
	Date    string                 `yaml:"date"`
	Points  []domain.PickupPoint   `yaml:"points"`
}

func loadScenario(path string) (scenario, error) {
	f, err := os.Open(path)
	if err != nil {
		return scenario{}, fmt.Errorf("load scenario: %w", err)
	}
	defer f.Close()

	return decodeScenario(f)
}

func decodeScenario(r io.Reader) (scenario, error) {
	var sc scenario

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&sc); err != nil {
		if errors.Is(err, io.EOF) {
			return scenario{}, fmt.Errorf("load scenario: empty document: %w", domain.ErrInvalidConfiguration)
		}
		return scenario{}, fmt.Errorf("load scenario: %w", err)
	}

	if len(sc.Points) == 0 && sc.Date == "" {
		return scenario{}, fmt.Errorf("load scenario: need points or a date: %w", domain.ErrInvalidConfiguration)
	}
	for i := range sc.Points {
		if sc.Points[i].Name == "" {
			sc.Points[i].Name = fmt.Sprintf("point-%d", sc.Points[i].ID)
		}
	}
	return sc, nil
}
