package kernel

import (
	"fmt"
	"regexp"
)

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// reserved names are emitted by the renderer itself.
var reserved = map[string]bool{
	"__x":                true,
	"__y":                true,
	"__z":                true,
	"__output":           true,
	"ThreadIds":          true,
	"Execute":            true,
	"__GroupSize__get_X": true,
	"__GroupSize__get_Y": true,
	"__GroupSize__get_Z": true,
}

// Validate reports the first contract violation in d. Rendering does not
// validate; callers that accept descriptions from untrusted sources should
// call Validate first.
func (d *Description) Validate() error {
	if !identifier.MatchString(d.Name) {
		return NewError(ErrInvalidName, fmt.Sprintf("kernel name %q is not an identifier", d.Name))
	}
	if d.Kind != ValueProducing && d.Kind != SideEffecting {
		return NewError(ErrInvalidKind, fmt.Sprintf("kernel %s has unknown kind %d", d.Name, d.Kind))
	}
	if d.Output != "" && d.Kind != SideEffecting {
		return NewError(ErrInvalidKind, fmt.Sprintf("kernel %s declares an output target but is not side-effecting", d.Name))
	}

	seen := make(map[string]bool)
	checkName := func(what, name string) error {
		if !identifier.MatchString(name) {
			return NewError(ErrInvalidName, fmt.Sprintf("%s name %q is not an identifier", what, name))
		}
		if reserved[name] {
			return NewError(ErrInvalidName, fmt.Sprintf("%s name %q is reserved", what, name))
		}
		if seen[name] {
			return NewError(ErrInvalidName, fmt.Sprintf("%s name %q is declared twice", what, name))
		}
		seen[name] = true
		return nil
	}

	for _, f := range d.Fields {
		if err := checkName("field", f.Name); err != nil {
			return err
		}
		if f.Type == "" {
			return NewError(ErrUnknownType, fmt.Sprintf("field %s has no type", f.Name))
		}
	}

	type slot struct {
		class ResourceClass
		index uint32
	}
	bound := make(map[slot]string)
	for _, r := range d.Resources {
		if err := checkName("resource", r.Name); err != nil {
			return err
		}
		if r.Class > ReadWrite {
			return NewError(ErrInvalidClass, fmt.Sprintf("resource %s has unknown class %d", r.Name, r.Class))
		}
		if r.Type == "" {
			return NewError(ErrUnknownType, fmt.Sprintf("resource %s has no type", r.Name))
		}
		s := slot{r.Class, r.Index}
		if other, ok := bound[s]; ok {
			return NewError(ErrDuplicateBinding,
				fmt.Sprintf("resources %s and %s both use %s index %d", other, r.Name, r.Class, r.Index))
		}
		bound[s] = r.Name
	}

	for _, b := range d.SharedBuffers {
		if err := checkName("groupshared buffer", b.Name); err != nil {
			return err
		}
		if b.Count != nil && *b.Count == 0 {
			return NewError(ErrInvalidName, fmt.Sprintf("groupshared buffer %s has zero length", b.Name))
		}
	}

	for _, def := range d.Defines {
		if !identifier.MatchString(def.Name) || reserved[def.Name] {
			return NewError(ErrInvalidName, fmt.Sprintf("define %q is not a usable macro name", def.Name))
		}
	}

	for _, s := range d.Statics {
		if err := checkName("static field", s.Name); err != nil {
			return err
		}
	}

	for _, t := range d.Types {
		if !identifier.MatchString(t.Name) {
			return NewError(ErrInvalidName, fmt.Sprintf("type name %q is not an identifier", t.Name))
		}
	}

	if _, err := Layout(d); err != nil {
		return err
	}
	return nil
}
