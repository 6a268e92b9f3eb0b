// Package roles provides the curated identity-to-role fallback table.
package roles

import (
	"bytes"
	_ "embed"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/roster-cli/internal/model"
)

//go:embed roles.yaml
var defaultTable []byte

// Table maps identities to canonical roles. Lookups try the exact identity
// first, then a case-insensitive match.
type Table struct {
	exact  map[string]string
	folded map[string]string
}

type tableFile struct {
	Roles map[string]string `yaml:"roles"`
}

// Default returns the embedded curated table.
func Default() (*Table, error) {
	t, err := Parse(bytes.NewReader(defaultTable))
	if err != nil {
		return nil, eris.Wrap(err, "roles: parse embedded table")
	}
	return t, nil
}

// LoadFile reads a table from a YAML file with a top-level "roles" mapping.
func LoadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "roles: open %s", path)
	}
	defer func() { _ = f.Close() }()

	t, err := Parse(f)
	if err != nil {
		return nil, eris.Wrapf(err, "roles: parse %s", path)
	}
	return t, nil
}

// Load returns the table at path, or the embedded table when path is empty.
func Load(path string) (*Table, error) {
	if path == "" {
		return Default()
	}
	return LoadFile(path)
}

// Parse decodes a YAML table. Every role must belong to the taxonomy.
func Parse(r io.Reader) (*Table, error) {
	var tf tableFile
	if err := yaml.NewDecoder(r).Decode(&tf); err != nil && err != io.EOF {
		return nil, eris.Wrap(err, "roles: decode yaml")
	}
	entries := make(map[string]string, len(tf.Roles))
	for identity, role := range tf.Roles {
		canon, ok := model.CanonicalRole(role)
		if !ok {
			return nil, eris.Errorf("roles: %q has role %q outside the taxonomy", identity, role)
		}
		entries[identity] = canon
	}
	return New(entries), nil
}

// New builds a Table from identity -> canonical role entries.
func New(entries map[string]string) *Table {
	t := &Table{
		exact:  make(map[string]string, len(entries)),
		folded: make(map[string]string, len(entries)),
	}
	for identity, role := range entries {
		identity = strings.TrimSpace(identity)
		t.exact[identity] = role
		t.folded[strings.ToLower(identity)] = role
	}
	return t
}

// Lookup returns the curated role for identity.
func (t *Table) Lookup(identity string) (string, bool) {
	if t == nil {
		return "", false
	}
	if r, ok := t.exact[identity]; ok {
		return r, true
	}
	r, ok := t.folded[strings.ToLower(strings.TrimSpace(identity))]
	return r, ok
}

// Len returns the number of entries.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.exact)
}

// Identities returns the table's identities sorted.
func (t *Table) Identities() []string {
	out := make([]string, 0, t.Len())
	if t == nil {
		return out
	}
	for id := range t.exact {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
