package scenario

import (
	"bytes"
	_ "embed"
	"io"
	"os"
	"strings"
	"unicode"

	"github.com/m-mizutani/goerr/v2"
	"gopkg.in/yaml.v3"
)

//go:embed builtin.yaml
var builtinYAML []byte

// Scenario is a named list of queries answered by one session
type Scenario struct {
	Name    string   `yaml:"name"`
	Queries []string `yaml:"queries"`
	// Output is the transcript key; derived from Name when empty
	Output string `yaml:"output"`
}

type document struct {
	Scenarios []Scenario `yaml:"scenarios"`
}

// Validate checks the scenario has a name and at least one non-blank query
func (s *Scenario) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return goerr.New("scenario name is required")
	}
	if len(s.Queries) == 0 {
		return goerr.New("scenario has no queries", goerr.V("name", s.Name))
	}
	for i, q := range s.Queries {
		if strings.TrimSpace(q) == "" {
			return goerr.New("scenario query is blank", goerr.V("name", s.Name), goerr.V("index", i))
		}
	}
	return nil
}

// OutputKey returns Output, or a file name derived from Name
func (s *Scenario) OutputKey() string {
	if s.Output != "" {
		return s.Output
	}

	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(s.Name)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case b.Len() > 0 && !strings.HasSuffix(b.String(), "_"):
			b.WriteByte('_')
		}
	}
	return strings.TrimSuffix(b.String(), "_") + ".txt"
}

// Builtin returns the five demonstration scenarios
func Builtin() []Scenario {
	scenarios, err := Load(bytes.NewReader(builtinYAML))
	if err != nil {
		panic("embedded scenarios are broken: " + err.Error())
	}
	return scenarios
}

// LoadFile reads scenarios from a YAML file
func LoadFile(path string) ([]Scenario, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open scenario file", goerr.V("path", path))
	}
	defer f.Close()

	scenarios, err := Load(f)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load scenario file", goerr.V("path", path))
	}
	return scenarios, nil
}

// Load parses and validates scenarios. Output keys must be unique.
func Load(r io.Reader) ([]Scenario, error) {
	var doc document
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, goerr.Wrap(err, "failed to parse scenarios")
	}
	if len(doc.Scenarios) == 0 {
		return nil, goerr.New("no scenarios defined")
	}

	seen := make(map[string]string)
	for i := range doc.Scenarios {
		s := &doc.Scenarios[i]
		if err := s.Validate(); err != nil {
			return nil, err
		}
		key := s.OutputKey()
		if prev, ok := seen[key]; ok {
			return nil, goerr.New("scenarios share an output",
				goerr.V("output", key),
				goerr.V("first", prev),
				goerr.V("second", s.Name))
		}
		seen[key] = s.Name
	}
	return doc.Scenarios, nil
}
