// Package policy loads the WS-Policy documents referenced by leg security
// configurations.
package policy

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/beevik/etree"
)

// ErrInvalidPolicy is returned when a policy reference cannot be turned into a policy
var ErrInvalidPolicy = errors.New("invalid security policy")

// NsWSPolicy is the WS-Policy 1.5 namespace
const NsWSPolicy = "http://www.w3.org/ns/ws-policy"

// Policy is a parsed WS-Policy document
type Policy struct {
	Name       string
	Path       string
	Assertions []string
	doc        *etree.Document
}

// HasAssertion reports whether the policy contains an assertion with the
// given local name anywhere below its root, e.g. "AsymmetricBinding".
func (p *Policy) HasAssertion(localName string) bool {
	for _, a := range p.Assertions {
		if a == localName {
			return true
		}
	}
	return false
}

// Document returns a copy of the policy document.
func (p *Policy) Document() *etree.Document {
	return p.doc.Copy()
}

// Resolver reads policies from a directory and caches them by reference
type Resolver struct {
	dir string

	mu    sync.RWMutex
	cache map[string]*Policy
}

// NewResolver creates a resolver over the policies in dir
func NewResolver(dir string) *Resolver {
	return &Resolver{dir: dir, cache: make(map[string]*Policy)}
}

// ParsePolicy returns the policy stored in the file named by ref.
func (r *Resolver) ParsePolicy(ref string) (*Policy, error) {
	if ref == "" {
		return nil, fmt.Errorf("%w: empty policy reference", ErrInvalidPolicy)
	}
	if filepath.Base(ref) != ref {
		return nil, fmt.Errorf("%w: reference %q must be a file name", ErrInvalidPolicy, ref)
	}

	r.mu.RLock()
	p, ok := r.cache[ref]
	r.mu.RUnlock()
	if ok {
		return p, nil
	}

	path := filepath.Join(r.dir, ref)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", ErrInvalidPolicy, path, err)
	}
	p, err = parse(ref, path, data)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.cache[ref] = p
	r.mu.Unlock()
	return p, nil
}

// Invalidate drops all cached policies, e.g. after a PMode upload.
func (r *Resolver) Invalidate() {
	r.mu.Lock()
	r.cache = make(map[string]*Policy)
	r.mu.Unlock()
}

func parse(name, path string, data []byte) (*Policy, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %v", ErrInvalidPolicy, path, err)
	}
	root := doc.Root()
	if root == nil || root.Tag != "Policy" {
		return nil, fmt.Errorf("%w: %s has no Policy root element", ErrInvalidPolicy, path)
	}

	p := &Policy{Name: name, Path: path, doc: doc}
	var walk func(e *etree.Element)
	walk = func(e *etree.Element) {
		for _, c := range e.ChildElements() {
			switch c.Tag {
			case "Policy", "ExactlyOne", "All":
			default:
				p.Assertions = append(p.Assertions, c.Tag)
			}
			walk(c)
		}
	}
	walk(root)
	return p, nil
}
