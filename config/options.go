package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Options is the YAML options file. Every field is a default for the flag of
// the same name; flags given on the command line take precedence.
type Options struct {
	CorpusDatabase    string `yaml:"corpus_database"`
	ReproduceFindings bool   `yaml:"reproduce_findings"`
	ReplayCorpus      bool   `yaml:"replay_corpus"`
	FuzzFor           string `yaml:"fuzz_for"`
}

func ParseOptions(content []byte) (*Options, error) {
	var options Options
	if err := yaml.Unmarshal(content, &options); err != nil {
		return nil, fmt.Errorf("failed to parse options: %w", err)
	}
	return &options, nil
}

// LoadOptions reads the options file at path. An empty path yields empty
// options.
func LoadOptions(path string) (*Options, error) {
	if path == "" {
		return &Options{}, nil
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read options file: %w", err)
	}
	return ParseOptions(content)
}

// Defaults returns DefaultFlags overridden by the options.
func (o *Options) Defaults() (Flags, error) {
	flags := DefaultFlags()
	if o == nil {
		return flags, nil
	}
	flags.CorpusDatabase = o.CorpusDatabase
	flags.ReproduceFindings = o.ReproduceFindings
	flags.ReplayCorpus = o.ReplayCorpus
	if o.FuzzFor != "" {
		d, err := ParseFuzzFor(o.FuzzFor)
		if err != nil {
			return Flags{}, err
		}
		flags.FuzzFor = d
	}
	return flags, nil
}
