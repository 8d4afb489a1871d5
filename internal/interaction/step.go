// internal/interaction/step.go
package interaction

import (
	"math"
	"time"

	jsoniter "github.com/json-iterator/go"
)

// Kind is the wire tag of a step descriptor.
type Kind string

const (
	KindCSS     Kind = "css"
	KindAttr    Kind = "attr"
	KindText    Kind = "text"
	KindUnknown Kind = "unknown"
)

// Step is one interaction descriptor. The set of implementations is closed:
// CSSStep, AttrStep, TextStep and UnknownStep.
type Step interface {
	Kind() Kind
	// Wait returns the requested post-click settle delay, if one was given.
	Wait() (time.Duration, bool)
	// Raw returns the descriptor exactly as received, for diagnostics.
	Raw() []byte
	sealed()
}

// stepMeta carries the fields shared by every variant.
type stepMeta struct {
	wait time.Duration
	raw  []byte
}

func (m stepMeta) Wait() (time.Duration, bool) { return m.wait, m.wait > 0 }
func (m stepMeta) Raw() []byte                 { return m.raw }
func (stepMeta) sealed()                       {}

// CSSStep targets an element by CSS selector.
type CSSStep struct {
	stepMeta
	Selector string
}

// AttrStep targets an element by attribute name and value.
type AttrStep struct {
	stepMeta
	Name  string
	Value string
}

// TextStep targets a button whose text contains Value.
type TextStep struct {
	stepMeta
	Value string
}

// UnknownStep is any descriptor with a missing or unrecognised tag.
type UnknownStep struct {
	stepMeta
	Type string
}

func (CSSStep) Kind() Kind     { return KindCSS }
func (AttrStep) Kind() Kind    { return KindAttr }
func (TextStep) Kind() Kind    { return KindText }
func (UnknownStep) Kind() Kind { return KindUnknown }

// NewCSSStep builds a css step. A non-positive wait means "use the default".
func NewCSSStep(selector string, wait time.Duration) CSSStep {
	return CSSStep{stepMeta: stepMeta{wait: wait}, Selector: selector}
}

// NewAttrStep builds an attr step.
func NewAttrStep(name, value string, wait time.Duration) AttrStep {
	return AttrStep{stepMeta: stepMeta{wait: wait}, Name: name, Value: value}
}

// NewTextStep builds a text step.
func NewTextStep(value string, wait time.Duration) TextStep {
	return TextStep{stepMeta: stepMeta{wait: wait}, Value: value}
}

// DecodeSteps reads a JSON array of step descriptors. Decoding never fails on
// the shape of individual elements: anything that is not a recognisable step
// becomes an UnknownStep. A value that is not an array yields no steps.
func DecodeSteps(data []byte) []Step {
	return StepsFromAny(jsoniter.Get(data))
}

// StepsFromAny converts an already parsed value, such as the "clicks" field
// of a request body.
func StepsFromAny(v jsoniter.Any) []Step {
	if v.ValueType() != jsoniter.ArrayValue {
		return nil
	}
	n := v.Size()
	steps := make([]Step, 0, n)
	for i := 0; i < n; i++ {
		steps = append(steps, stepFromAny(v.Get(i)))
	}
	return steps
}

// DecodeStep reads a single descriptor.
func DecodeStep(data []byte) Step {
	return stepFromAny(jsoniter.Get(data))
}

func stepFromAny(v jsoniter.Any) Step {
	meta := stepMeta{raw: []byte(v.ToString())}
	if v.ValueType() != jsoniter.ObjectValue {
		return UnknownStep{stepMeta: meta}
	}
	meta.wait = waitFromAny(v.Get("wait"))

	tag := stringField(v, "type")
	switch Kind(tag) {
	case KindCSS:
		return CSSStep{stepMeta: meta, Selector: stringField(v, "selector")}
	case KindAttr:
		return AttrStep{stepMeta: meta, Name: stringField(v, "name"), Value: stringField(v, "value")}
	case KindText:
		return TextStep{stepMeta: meta, Value: stringField(v, "value")}
	default:
		return UnknownStep{stepMeta: meta, Type: tag}
	}
}

func stringField(v jsoniter.Any, key string) string {
	f := v.Get(key)
	if f.ValueType() != jsoniter.StringValue {
		return ""
	}
	return f.ToString()
}

// MaxWait caps a step's settle delay.
const MaxWait = 10 * time.Minute

// waitFromAny converts a millisecond count. Missing, non-numeric and
// non-positive values all mean "use the default". Larger values are capped
// at MaxWait.
func waitFromAny(v jsoniter.Any) time.Duration {
	if v.ValueType() != jsoniter.NumberValue {
		return 0
	}
	ms := v.ToFloat64()
	if ms <= 0 || math.IsNaN(ms) {
		return 0
	}
	if ms >= float64(MaxWait/time.Millisecond) {
		return MaxWait
	}
	return time.Duration(ms * float64(time.Millisecond))
}
