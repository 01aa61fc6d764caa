package validate

import "errors"

// ErrFormInvalid is returned by Submit when at least one field fails.
var ErrFormInvalid = errors.New("form has invalid fields")

// Form holds field values and their latest feedback.
//
// Set validates the changed field immediately; Submit re-validates every field
// and blocks submission while any of them fails.
type Form struct {
	rules  map[string]Rule
	order  []string
	values map[string]string
	errs   map[string]error
}

// NewForm creates a form over the given fields using the default rules.
// Field order is preserved for Errors().
func NewForm(fields ...string) *Form {
	return NewFormWithRules(DefaultRules(), fields...)
}

// NewFormWithRules is NewForm with explicit rules (fields without a rule always pass).
func NewFormWithRules(rules map[string]Rule, fields ...string) *Form {
	f := &Form{
		rules:  rules,
		order:  append([]string(nil), fields...),
		values: make(map[string]string, len(fields)),
		errs:   make(map[string]error, len(fields)),
	}
	for _, name := range fields {
		f.values[name] = ""
	}
	return f
}

// Set stores value and returns the field's feedback (nil when valid).
func (f *Form) Set(name, value string) error {
	if _, ok := f.values[name]; !ok {
		f.order = append(f.order, name)
	}
	f.values[name] = value

	err := f.check(name, value)
	if err != nil {
		f.errs[name] = err
	} else {
		delete(f.errs, name)
	}
	return err
}

// Value returns the stored value of name.
func (f *Form) Value(name string) string { return f.values[name] }

// Values returns a copy of all stored values.
func (f *Form) Values() map[string]string {
	out := make(map[string]string, len(f.values))
	for k, v := range f.values {
		out[k] = v
	}
	return out
}

// Submit validates every field. It returns ErrFormInvalid when any fails;
// the per-field feedback is then available via Errors.
func (f *Form) Submit() error {
	f.errs = make(map[string]error, len(f.values))
	for _, name := range f.order {
		if err := f.check(name, f.values[name]); err != nil {
			f.errs[name] = err
		}
	}
	if len(f.errs) > 0 {
		return ErrFormInvalid
	}
	return nil
}

// Errors returns current feedback keyed by field name.
func (f *Form) Errors() map[string]error {
	out := make(map[string]error, len(f.errs))
	for k, v := range f.errs {
		out[k] = v
	}
	return out
}

// InvalidFields lists failing field names in form order.
func (f *Form) InvalidFields() []string {
	out := make([]string, 0, len(f.errs))
	for _, name := range f.order {
		if _, ok := f.errs[name]; ok {
			out = append(out, name)
		}
	}
	return out
}

// Valid reports whether no field currently has feedback.
func (f *Form) Valid() bool { return len(f.errs) == 0 }

func (f *Form) check(name, value string) error {
	rule, ok := f.rules[name]
	if !ok || rule == nil {
		return nil
	}
	return rule(value)
}
