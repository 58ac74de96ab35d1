package knowledge

import (
	"bytes"
	_ "embed"
	"io"
	"os"
	"strings"

	"github.com/m-mizutani/convene/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

// Entry is one topic of the knowledge base
type Entry struct {
	Topic      string  `yaml:"topic"`
	Summary    string  `yaml:"summary"`
	Details    string  `yaml:"details"`
	Source     string  `yaml:"source"`
	Confidence float64 `yaml:"confidence"`
}

// Record converts the entry into a research record. Empty details fall back to the summary.
func (e Entry) Record() model.ResearchRecord {
	details := e.Details
	if details == "" {
		details = e.Summary
	}
	return model.ResearchRecord{
		Topic:      e.Topic,
		Summary:    e.Summary,
		Details:    details,
		Source:     e.Source,
		Confidence: e.Confidence,
	}
}

// TopicKeywords maps a research topic to the query phrases that select it
type TopicKeywords struct {
	Topic    string   `yaml:"topic"`
	Keywords []string `yaml:"keywords"`
}

// Base is a read-only topic table. Entries keep the order of the source file.
type Base struct {
	entries  []Entry
	byTopic  map[string]int
	keywords []TopicKeywords
}

type document struct {
	Entries       []Entry         `yaml:"entries"`
	TopicKeywords []TopicKeywords `yaml:"topic_keywords"`
}

// Default returns the built-in knowledge base
func Default() *Base {
	base, err := Load(bytes.NewReader(defaultYAML))
	if err != nil {
		panic("embedded knowledge base is broken: " + err.Error())
	}
	return base
}

// LoadFile reads a knowledge base from a YAML file
func LoadFile(path string) (*Base, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open knowledge file", goerr.V("path", path))
	}
	defer f.Close()

	base, err := Load(f)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load knowledge file", goerr.V("path", path))
	}
	return base, nil
}

// Load reads a knowledge base from YAML
func Load(r io.Reader) (*Base, error) {
	var doc document
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, goerr.Wrap(err, "failed to decode knowledge yaml")
	}
	return New(doc.Entries, doc.TopicKeywords)
}

// New builds a Base from entries and a topic keyword table. Topics are
// matched case-insensitively and must be unique.
func New(entries []Entry, keywords []TopicKeywords) (*Base, error) {
	base := &Base{
		byTopic: make(map[string]int, len(entries)),
	}

	for i, e := range entries {
		e.Topic = strings.ToLower(strings.TrimSpace(e.Topic))
		if e.Topic == "" {
			return nil, goerr.New("knowledge entry has no topic", goerr.V("index", i))
		}
		if e.Summary == "" {
			return nil, goerr.New("knowledge entry has no summary", goerr.V("topic", e.Topic))
		}
		if e.Confidence < 0 || e.Confidence > 1 {
			return nil, goerr.New("confidence must be in [0, 1]",
				goerr.V("topic", e.Topic),
				goerr.V("confidence", e.Confidence))
		}
		if _, exists := base.byTopic[e.Topic]; exists {
			return nil, goerr.New("duplicated knowledge topic", goerr.V("topic", e.Topic))
		}
		base.byTopic[e.Topic] = len(base.entries)
		base.entries = append(base.entries, e)
	}

	for _, tk := range keywords {
		if tk.Topic == "" || len(tk.Keywords) == 0 {
			return nil, goerr.New("topic keyword entry is incomplete", goerr.V("topic", tk.Topic))
		}
		lowered := make([]string, len(tk.Keywords))
		for i, kw := range tk.Keywords {
			lowered[i] = strings.ToLower(kw)
		}
		base.keywords = append(base.keywords, TopicKeywords{Topic: tk.Topic, Keywords: lowered})
	}

	return base, nil
}

// Entries returns all entries in source order
func (b *Base) Entries() []Entry {
	out := make([]Entry, len(b.entries))
	copy(out, b.entries)
	return out
}

// Get returns the entry of topic
func (b *Base) Get(topic string) (Entry, bool) {
	i, ok := b.byTopic[strings.ToLower(topic)]
	if !ok {
		return Entry{}, false
	}
	return b.entries[i], true
}

// TopicKeywords returns the keyword table in source order
func (b *Base) TopicKeywords() []TopicKeywords {
	out := make([]TopicKeywords, len(b.keywords))
	copy(out, b.keywords)
	return out
}

// Len returns the number of topics
func (b *Base) Len() int {
	return len(b.entries)
}
