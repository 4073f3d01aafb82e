// Package route maps item brands to notification channels using a
// static YAML table loaded once at startup.
package route

import (
	"fmt"
	"os"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"

	domain "github.com/ncoulthurst/VintBot/pkg/types"
)

// Entry is one row of the routing table.
type Entry struct {
	Name       string   `yaml:"name"`
	WebhookURL string   `yaml:"webhook_url"`
	Aliases    []string `yaml:"aliases"`
	// Substring also matches brands that merely contain this entry's
	// normalized name, e.g. a "Carhartt" entry picking up "Carhartt WIP".
	Substring bool `yaml:"substring"`
}

type tableFile struct {
	Channels []Entry `yaml:"channels"`
}

type substrRule struct {
	key     string
	channel domain.Channel
}

// Table resolves brand names to channels. Read-only after construction.
type Table struct {
	entries []Entry
	exact   map[string]domain.Channel
	byName  map[string]domain.Channel
	substr  []substrRule
}

// Load reads a routing table from a YAML file, expanding environment
// variables so webhook URLs can stay out of the file itself.
func Load(path string) (*Table, error) {
	data, err := os.ReadFile(path) //nolint:gosec // table path from trusted config
	if err != nil {
		return nil, fmt.Errorf("reading channel table: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var tf tableFile
	if err := yaml.Unmarshal([]byte(expanded), &tf); err != nil {
		return nil, fmt.Errorf("parsing channel table YAML: %w", err)
	}

	t, err := New(tf.Channels)
	if err != nil {
		return nil, fmt.Errorf("building channel table: %w", err)
	}
	return t, nil
}

// New builds a table from entries. Every entry needs a name and webhook
// URL; entry names and aliases must normalize to distinct keys.
func New(entries []Entry) (*Table, error) {
	t := &Table{
		entries: entries,
		exact:   make(map[string]domain.Channel),
		byName:  make(map[string]domain.Channel),
	}

	for i, e := range entries {
		if e.Name == "" {
			return nil, fmt.Errorf("channels[%d]: name is required", i)
		}
		if e.WebhookURL == "" {
			return nil, fmt.Errorf("channels[%d] (%s): webhook_url is required", i, e.Name)
		}

		ch := domain.Channel{Name: e.Name, WebhookURL: e.WebhookURL}
		t.byName[normalizeKey(e.Name)] = ch

		keys := append([]string{e.Name}, e.Aliases...)
		for _, raw := range keys {
			key := normalizeKey(raw)
			if key == "" {
				return nil, fmt.Errorf("channels[%d] (%s): empty brand key %q", i, e.Name, raw)
			}
			if prev, ok := t.exact[key]; ok && prev.Name != e.Name {
				return nil, fmt.Errorf(
					"brand key %q maps to both %s and %s", key, prev.Name, e.Name,
				)
			}
			t.exact[key] = ch
		}
		if e.Substring {
			t.substr = append(t.substr, substrRule{key: normalizeKey(e.Name), channel: ch})
		}
	}

	return t, nil
}

// Resolve returns the channel for a brand. Collaboration titles such as
// "Nike x Stüssy" are split and each half tried in order.
func (t *Table) Resolve(brand string) (domain.Channel, bool) {
	if ch, ok := t.lookup(brand); ok {
		return ch, true
	}
	for _, part := range splitCollab(brand) {
		if ch, ok := t.lookup(part); ok {
			return ch, true
		}
	}
	return domain.Channel{}, false
}

// Channel returns an entry's channel by its configured name.
func (t *Table) Channel(name string) (domain.Channel, bool) {
	ch, ok := t.byName[normalizeKey(name)]
	return ch, ok
}

// Entries returns the rows the table was built from.
func (t *Table) Entries() []Entry {
	return t.entries
}

// Len returns the number of configured channels.
func (t *Table) Len() int {
	return len(t.entries)
}

func (t *Table) lookup(brand string) (domain.Channel, bool) {
	key := normalizeKey(brand)
	if key == "" {
		return domain.Channel{}, false
	}
	if ch, ok := t.exact[key]; ok {
		return ch, true
	}
	for _, rule := range t.substr {
		if strings.Contains(key, rule.key) {
			return rule.channel, true
		}
	}
	return domain.Channel{}, false
}

// splitCollab breaks "A x B" collaboration names into their halves.
func splitCollab(brand string) []string {
	lower := strings.ToLower(brand)
	if !strings.Contains(lower, " x ") {
		return nil
	}
	parts := strings.Split(lower, " x ")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// normalizeKey folds a brand name to its comparison form: lower case,
// accents stripped, spaces, dots, hyphens and apostrophes removed.
func normalizeKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "ß", "ss")
	if folded, _, err := transform.String(stripMarks, s); err == nil {
		s = folded
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '.', '-', '\'', '’':
			return -1
		}
		return r
	}, s)
}
