// Package language holds the fixed table of languages the sandbox knows how
// to build and run.
//
// Each supported language is one immutable Profile: the runtime image, the
// source file extension and the argument vector that compiles or interprets
// the file inside the container. The table is built once at startup and only
// read afterwards, so a *Registry can be shared between goroutines freely.
package language

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/isdmx/codeide/config"
)

// ID identifies a supported language.
type ID string

// Supported language identifiers
const (
	Python ID = "python"
	CPP    ID = "cpp"
	NodeJS ID = "nodejs"
)

// ErrUnsupported is returned by Resolve for identifiers outside the registry.
var ErrUnsupported = errors.New("unsupported language")

// sourceBaseName is the file name, without extension, every submission is written to.
const sourceBaseName = "main"

// cppBuildAndRun compiles into /tmp because the workspace is mounted read-only.
const cppBuildAndRun = `g++ -O2 -o /tmp/main "$1" && exec /tmp/main`

// Profile describes how to launch one language.
type Profile struct {
	ID        ID     `json:"id" yaml:"id"`
	Image     string `json:"image" yaml:"image"`
	Extension string `json:"extension" yaml:"extension"`
}

// SourceFile returns the in-sandbox file name for a submission.
func (p Profile) SourceFile() string {
	return sourceBaseName + p.Extension
}

// Command returns the argv that builds and runs filename.
//
// Every command shape is spelled out here. The file name is passed as a
// separate argument, never spliced into a shell string.
func (p Profile) Command(filename string) []string {
	switch p.ID {
	case Python:
		return []string{"python3", filename}
	case NodeJS:
		return []string{"node", filename}
	case CPP:
		return []string{"sh", "-c", cppBuildAndRun, "sh", filename}
	default:
		return nil
	}
}

// defaults is the built-in table. Images can be overridden from config,
// extensions and commands cannot.
var defaults = []Profile{
	{ID: Python, Image: "python:3.11-slim", Extension: ".py"},
	{ID: CPP, Image: "gcc:13", Extension: ".cpp"},
	{ID: NodeJS, Image: "node:20-alpine", Extension: ".js"},
}

// Registry maps language identifiers to profiles. It is never mutated after New returns.
type Registry struct {
	profiles map[ID]Profile
	ids      []string
}

// New builds a registry from the built-in table, replacing images with the
// non-empty entries of images.
func New(images map[ID]string) (*Registry, error) {
	for id := range images {
		if !known(id) {
			return nil, fmt.Errorf("%w: %s", ErrUnsupported, id)
		}
	}

	r := &Registry{profiles: make(map[ID]Profile, len(defaults))}
	for _, p := range defaults {
		if img := strings.TrimSpace(images[p.ID]); img != "" {
			p.Image = img
		}
		if p.Image == "" {
			return nil, fmt.Errorf("language %s has no runtime image", p.ID)
		}
		r.profiles[p.ID] = p
		r.ids = append(r.ids, string(p.ID))
	}
	sort.Strings(r.ids)

	return r, nil
}

// Default returns the registry with the built-in images.
func Default() *Registry {
	r, err := New(nil)
	if err != nil {
		panic(err)
	}
	return r
}

// NewFromConfig builds the registry from the languages section of the configuration.
func NewFromConfig(cfg *config.Config) (*Registry, error) {
	images := make(map[ID]string, len(cfg.Languages))
	for name, lang := range cfg.Languages {
		images[ID(name)] = lang.Image
	}
	return New(images)
}

// Resolve returns the profile for id.
func (r *Registry) Resolve(id string) (Profile, error) {
	p, ok := r.profiles[ID(id)]
	if !ok {
		return Profile{}, fmt.Errorf("%w: %s", ErrUnsupported, id)
	}
	return p, nil
}

// Supports reports whether id is a registered language.
func (r *Registry) Supports(id string) bool {
	_, ok := r.profiles[ID(id)]
	return ok
}

// IDs returns the registered identifiers in sorted order.
func (r *Registry) IDs() []string {
	out := make([]string, len(r.ids))
	copy(out, r.ids)
	return out
}

// Profiles returns every profile ordered by identifier.
func (r *Registry) Profiles() []Profile {
	out := make([]Profile, 0, len(r.ids))
	for _, id := range r.ids {
		out = append(out, r.profiles[ID(id)])
	}
	return out
}

func known(id ID) bool {
	for _, p := range defaults {
		if p.ID == id {
			return true
		}
	}
	return false
}
