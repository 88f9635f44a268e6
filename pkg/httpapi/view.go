package httpapi

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// ErrUnresolvedPath is returned when a redirect path names an attribute that was never added.
var ErrUnresolvedPath = errors.New("redirect path has unresolved placeholder")

// Model is the data handed to a view template.
type Model map[string]any

// Result is what a controller action asks the server to do next: render a view or redirect.
type Result struct {
	View     string
	Model    Model
	Redirect *Redirect
}

// Render asks the server to execute the named template with model.
func Render(view string, model Model) Result {
	return Result{View: view, Model: model}
}

// IsRedirect reports whether the result sends the client elsewhere.
func (r Result) IsRedirect() bool {
	return r.Redirect != nil
}

// placeholder matches {name} segments in a redirect path.
var placeholder = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Redirect is a path template plus the attributes that fill it.
// Attributes named in the path become escaped path segments; the rest become
// query parameters, so incidental state such as status never lands in the path.
type Redirect struct {
	Path  string
	attrs []attribute
}

type attribute struct {
	name  string
	value string
}

// RedirectTo starts a redirect to path, e.g. "/items/{itemId}".
func RedirectTo(path string) *Redirect {
	return &Redirect{Path: path}
}

// With adds an attribute; adding the same name again replaces its value.
func (r *Redirect) With(name string, value any) *Redirect {
	v := fmt.Sprint(value)
	for i := range r.attrs {
		if r.attrs[i].name == name {
			r.attrs[i].value = v
			return r
		}
	}
	r.attrs = append(r.attrs, attribute{name: name, value: v})
	return r
}

// Result wraps the redirect for returning from a controller action.
func (r *Redirect) Result() Result {
	return Result{Redirect: r}
}

// Location expands the path and appends unused attributes as a query string in insertion order.
func (r *Redirect) Location() (string, error) {
	used := make(map[string]bool, len(r.attrs))
	var missing []string
	path := placeholder.ReplaceAllStringFunc(r.Path, func(m string) string {
		name := m[1 : len(m)-1]
		for _, a := range r.attrs {
			if a.name == name {
				used[name] = true
				return url.PathEscape(a.value)
			}
		}
		missing = append(missing, name)
		return m
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("%w: %s in %q", ErrUnresolvedPath, strings.Join(missing, ", "), r.Path)
	}

	var query []string
	for _, a := range r.attrs {
		if used[a.name] {
			continue
		}
		query = append(query, url.QueryEscape(a.name)+"="+url.QueryEscape(a.value))
	}
	if len(query) == 0 {
		return path, nil
	}
	return path + "?" + strings.Join(query, "&"), nil
}
