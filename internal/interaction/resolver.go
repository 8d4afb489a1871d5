// internal/interaction/resolver.go
package interaction

import (
	"fmt"

	"github.com/xkilldash9x/clickrender/internal/browser"
)

// Resolve maps a step descriptor to the locator that addresses its target, or
// nil when the step has nothing to click. It is pure and total.
//
// Attribute values are interpolated verbatim. A value containing a double
// quote yields a selector that fails at the page, which only fails that step.
func Resolve(step Step) *browser.Locator {
	var loc browser.Locator
	switch s := step.(type) {
	case CSSStep:
		if s.Selector == "" {
			return nil
		}
		loc = browser.CSS(s.Selector)
	case AttrStep:
		loc = browser.CSS(fmt.Sprintf(`[%s="%s"]`, s.Name, s.Value))
	case TextStep:
		loc = browser.XPath(fmt.Sprintf("//button[contains(., %s)]", browser.XPathLiteral(s.Value)))
	default:
		return nil
	}
	return &loc
}
