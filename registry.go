package instrument

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/allbin/go-instrument/serial"
	"gopkg.in/yaml.v3"
)

// Category is the instrument family an identity belongs to.
type Category int

const (
	CategoryUnknown Category = iota
	CategoryMultimeter
	CategoryFunctionGenerator
	CategoryPowerSupply
)

func (c Category) String() string {
	switch c {
	case CategoryMultimeter:
		return "multimeter"
	case CategoryFunctionGenerator:
		return "function-generator"
	case CategoryPowerSupply:
		return "power-supply"
	default:
		return "unknown"
	}
}

// ParseCategory accepts the names String produces. Spaces and underscores
// are read as dashes.
func ParseCategory(s string) (Category, error) {
	norm := strings.NewReplacer(" ", "-", "_", "-").Replace(strings.ToLower(strings.TrimSpace(s)))
	switch norm {
	case "multimeter", "dmm":
		return CategoryMultimeter, nil
	case "function-generator", "funcgen":
		return CategoryFunctionGenerator, nil
	case "power-supply", "psu":
		return CategoryPowerSupply, nil
	case "unknown":
		return CategoryUnknown, nil
	default:
		return CategoryUnknown, fmt.Errorf("%w: unknown category %q", ErrInvalidOption, s)
	}
}

// Framing is the known-good serial framing and line terminator for a model.
type Framing struct {
	BaudRate   int
	Parity     serial.Parity
	StopBits   int
	DataBits   int
	Terminator string
}

func (f Framing) serialOptions() []serial.Option {
	var opts []serial.Option
	if f.BaudRate != 0 {
		opts = append(opts, serial.WithBaudRate(f.BaudRate))
	}
	if f.DataBits != 0 {
		opts = append(opts, serial.WithDataBits(f.DataBits))
	}
	if f.StopBits != 0 {
		opts = append(opts, serial.WithStopBits(f.StopBits))
	}
	return append(opts, serial.WithParity(f.Parity))
}

// String renders the framing in 9600 8N1 notation. Unset fields show the
// serial defaults they fall back to.
func (f Framing) String() string {
	c := serial.DefaultConfig()
	for _, opt := range f.serialOptions() {
		if err := opt(&c); err != nil {
			return fmt.Sprintf("invalid framing (%v)", err)
		}
	}
	return c.String()
}

// Signature ties an exact *IDN? response to its category.
type Signature struct {
	Identity string
	Category Category
	Framing  *Framing
}

// Registry maps identity strings to categories. A Registry is read-only
// once built and safe for concurrent lookups.
type Registry struct {
	byIdentity map[string]Signature
}

var builtinSignatures = []Signature{
	{
		Identity: "HEWLETT-PACKARD,34401A,0,11-5-2",
		Category: CategoryMultimeter,
		Framing: &Framing{
			BaudRate:   9600,
			Parity:     serial.ParityNone,
			StopBits:   1,
			DataBits:   8,
			Terminator: "\r\n",
		},
	},
	{Identity: "HEWLETT-PACKARD,34401A,0,10-5-2", Category: CategoryMultimeter},
	{Identity: "HEWLETT-PACKARD,33120A,0,10.0-5.0-1.0", Category: CategoryFunctionGenerator},
	{Identity: "Agilent Technologies,E3646A,0,1.4-5.0-1.0", Category: CategoryPowerSupply},
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// DefaultRegistry returns the built-in signature table.
func DefaultRegistry() *Registry {
	defaultOnce.Do(func() {
		r, err := NewRegistry(builtinSignatures...)
		if err != nil {
			panic(err)
		}
		defaultRegistry = r
	})
	return defaultRegistry
}

// NewRegistry builds a registry from sigs. An identity listed under two
// different categories is rejected with ErrConflictingSignature; exact
// duplicates are merged.
func NewRegistry(sigs ...Signature) (*Registry, error) {
	r := &Registry{byIdentity: make(map[string]Signature, len(sigs))}
	for _, s := range sigs {
		if err := r.add(s); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) add(s Signature) error {
	if s.Identity == "" || s.Category == CategoryUnknown {
		return fmt.Errorf("%w: signature %q needs an identity and a category", ErrInvalidOption, s.Identity)
	}
	if prev, ok := r.byIdentity[s.Identity]; ok && prev.Category != s.Category {
		return fmt.Errorf("%w: %q is both %s and %s", ErrConflictingSignature, s.Identity, prev.Category, s.Category)
	}
	if prev, ok := r.byIdentity[s.Identity]; ok && s.Framing == nil {
		s.Framing = prev.Framing
	}
	r.byIdentity[s.Identity] = s
	return nil
}

// Merge returns a new registry holding r's signatures plus extra. An extra
// signature may add framing to a known identity but may not move it to
// another category.
func (r *Registry) Merge(extra ...Signature) (*Registry, error) {
	out := &Registry{byIdentity: make(map[string]Signature, len(r.byIdentity)+len(extra))}
	for k, v := range r.byIdentity {
		out.byIdentity[k] = v
	}
	for _, s := range extra {
		if err := out.add(s); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Lookup returns the category for an exact identity, CategoryUnknown when
// the identity is not registered.
func (r *Registry) Lookup(identity string) Category {
	return r.byIdentity[identity].Category
}

// Framing returns the known-good framing for an identity, if one is
// registered.
func (r *Registry) Framing(identity string) (Framing, bool) {
	s, ok := r.byIdentity[identity]
	if !ok || s.Framing == nil {
		return Framing{}, false
	}
	return *s.Framing, true
}

// Signatures lists the identities registered under c, sorted.
func (r *Registry) Signatures(c Category) []string {
	var ids []string
	for id, s := range r.byIdentity {
		if s.Category == c {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

type registryFile struct {
	Signatures []struct {
		Identity string `yaml:"identity"`
		Category string `yaml:"category"`
		Framing  *struct {
			Baud       int    `yaml:"baud"`
			Parity     string `yaml:"parity"`
			StopBits   int    `yaml:"stop-bits"`
			DataBits   int    `yaml:"data-bits"`
			Terminator string `yaml:"terminator"`
		} `yaml:"framing"`
	} `yaml:"signatures"`
}

// LoadRegistry reads extra signatures from a YAML file and merges them over
// the built-in table.
//
//	signatures:
//	  - identity: "HEWLETT-PACKARD,34401A,0,11-5-2"
//	    category: multimeter
//	    framing: {baud: 9600, parity: none, stop-bits: 1, data-bits: 8}
func LoadRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read registry: %w", err)
	}
	sigs, err := parseRegistry(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return DefaultRegistry().Merge(sigs...)
}

func parseRegistry(data []byte) ([]Signature, error) {
	var f registryFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse registry: %w", err)
	}

	sigs := make([]Signature, 0, len(f.Signatures))
	for i, e := range f.Signatures {
		c, err := ParseCategory(e.Category)
		if err != nil {
			return nil, fmt.Errorf("signature %d: %w", i, err)
		}
		s := Signature{Identity: e.Identity, Category: c}
		if e.Framing != nil {
			p, err := serial.ParseParity(e.Framing.Parity)
			if err != nil {
				return nil, fmt.Errorf("signature %d: %w", i, err)
			}
			s.Framing = &Framing{
				BaudRate:   e.Framing.Baud,
				Parity:     p,
				StopBits:   e.Framing.StopBits,
				DataBits:   e.Framing.DataBits,
				Terminator: e.Framing.Terminator,
			}
		}
		sigs = append(sigs, s)
	}
	return sigs, nil
}

// Identity is a parsed *IDN? response.
type Identity struct {
	Vendor   string
	Model    string
	Serial   string
	Firmware string
}

func (id Identity) String() string {
	return strings.Join([]string{id.Vendor, id.Model, id.Serial, id.Firmware}, ",")
}

// ParseIdentity splits an identity of the form
// <vendor>,<model>,<serial>,<firmware>. Fields are trimmed of whitespace.
func ParseIdentity(s string) (Identity, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return Identity{}, fmt.Errorf("%w: %q", ErrMalformedIdentity, s)
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	if parts[0] == "" || parts[1] == "" {
		return Identity{}, fmt.Errorf("%w: %q", ErrMalformedIdentity, s)
	}
	return Identity{Vendor: parts[0], Model: parts[1], Serial: parts[2], Firmware: parts[3]}, nil
}
