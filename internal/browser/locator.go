package browser

import (
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

// LocatorKind says how a Locator's Value addresses an element.
type LocatorKind int

const (
	// KindCSS is a CSS selector.
	KindCSS LocatorKind = iota
	// KindText is an XPath expression matching elements by text content.
	KindText
)

func (k LocatorKind) String() string {
	switch k {
	case KindCSS:
		return "css"
	case KindText:
		return "xpath"
	default:
		return fmt.Sprintf("LocatorKind(%d)", int(k))
	}
}

// Locator addresses an element within a page.
type Locator struct {
	Kind  LocatorKind
	Value string
}

// CSS returns a CSS selector locator.
func CSS(selector string) Locator {
	return Locator{Kind: KindCSS, Value: selector}
}

// XPath returns a text locator backed by an XPath expression.
func XPath(expr string) Locator {
	return Locator{Kind: KindText, Value: expr}
}

func (l Locator) String() string {
	return l.Kind.String() + "=" + l.Value
}

// XPathLiteral quotes s as an XPath 1.0 string literal. XPath has no escape
// sequences, so a value holding both quote kinds is built with concat().
func XPathLiteral(s string) string {
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	parts := strings.Split(s, `"`)
	args := make([]string, 0, len(parts)*2-1)
	for i, p := range parts {
		if i > 0 {
			args = append(args, `'"'`)
		}
		if p != "" {
			args = append(args, `"`+p+`"`)
		}
	}
	return "concat(" + strings.Join(args, ", ") + ")"
}

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// jsString encodes s as a JavaScript string literal.
func jsString(s string) string {
	out, err := jsonAPI.MarshalToString(s)
	if err != nil {
		// Strings always marshal.
		return `""`
	}
	return out
}

// QueryScript returns a JavaScript expression evaluating to the first element
// matching l, or null.
func (l Locator) QueryScript() string {
	if l.Kind == KindText {
		return fmt.Sprintf(
			"document.evaluate(%s, document, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue",
			jsString(l.Value))
	}
	return fmt.Sprintf("document.querySelector(%s)", jsString(l.Value))
}

// ForceClickFunction returns a zero-argument JavaScript function that clicks
// the first element matching l and throws if nothing matches.
func (l Locator) ForceClickFunction() string {
	return fmt.Sprintf(
		"() => { const el = %s; if (!el) { throw new Error(%s); } el.click(); return true; }",
		l.QueryScript(), jsString("no element matches "+l.String()))
}

// DoctypeFunction returns the serialized doctype of the current document, or
// an empty string when it has none.
const DoctypeFunction = `() => document.doctype ? new XMLSerializer().serializeToString(document.doctype) : ""`
