package topology

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

//go:embed seibu.yaml
var defaultNetwork []byte

// Parse decodes a YAML network document, validates its fields and builds a Topology from it
func Parse(data []byte) (*Topology, error) {
	var network Network
	if err := yaml.Unmarshal(data, &network); err != nil {
		return nil, fmt.Errorf("decoding network: %w", err)
	}
	v := validator.New()
	if err := v.Struct(network); err != nil {
		return nil, fmt.Errorf("validating network: %w", err)
	}
	return New(network)
}

// Load reads and parses the network file at path
func Load(path string) (*Topology, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading network file %s: %w", path, err)
	}
	return Parse(data)
}

// Default returns the built in network, the Seibu Ikebukuro line with the Yurakucho, Toshima and Sayama branches
func Default() (*Topology, error) {
	return Parse(defaultNetwork)
}
