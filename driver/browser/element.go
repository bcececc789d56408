package browser

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/hazyhaar/boardsnap/driver"
)

// element wraps a rod element handle. Valid only while the session's
// page is alive.
type element struct {
	el *rod.Element
}

var _ driver.Element = (*element)(nil)

func wrapElements(els rod.Elements) []driver.Element {
	out := make([]driver.Element, 0, len(els))
	for _, el := range els {
		out = append(out, &element{el: el})
	}
	return out
}

func (e *element) Text(ctx context.Context) (string, error) {
	txt, err := e.el.Context(ctx).Text()
	if err != nil {
		return "", fmt.Errorf("browser: element text: %w", err)
	}
	return strings.TrimSpace(txt), nil
}

func (e *element) Attr(ctx context.Context, name string) (string, error) {
	v, err := e.el.Context(ctx).Attribute(name)
	if err != nil {
		return "", fmt.Errorf("browser: attribute %q: %w", name, err)
	}
	if v == nil {
		return "", nil
	}
	return *v, nil
}

func (e *element) HTML(ctx context.Context) (string, error) {
	res, err := e.el.Context(ctx).Eval(`() => this.innerHTML`)
	if err != nil {
		return "", fmt.Errorf("browser: inner html: %w", err)
	}
	return res.Value.Str(), nil
}

func (e *element) Tag(ctx context.Context) (string, error) {
	res, err := e.el.Context(ctx).Eval(`() => this.tagName.toLowerCase()`)
	if err != nil {
		return "", fmt.Errorf("browser: tag name: %w", err)
	}
	return res.Value.Str(), nil
}

func (e *element) Query(ctx context.Context, selector string) ([]driver.Element, error) {
	els, err := e.el.Context(ctx).Elements(selector)
	if err != nil {
		return nil, fmt.Errorf("browser: scoped query %q: %w", selector, err)
	}
	return wrapElements(els), nil
}

func (e *element) ScrollIntoView(ctx context.Context) error {
	if err := e.el.Context(ctx).ScrollIntoView(); err != nil {
		return fmt.Errorf("browser: scroll into view: %w", err)
	}
	return nil
}

func (e *element) Click(ctx context.Context) error {
	if err := e.el.Context(ctx).Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("browser: click: %w", err)
	}
	return nil
}
