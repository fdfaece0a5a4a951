package accelade

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/a-h/templ"

	"github.com/pthm/accelade/lib/extension"
)

// Props describes a component root for server-side rendering.
type Props struct {
	// ID is the component id. Empty ids are assigned at hydration.
	ID    string
	State map[string]any
	// Sync lists the properties pushed to the backend on change.
	Sync []string
	// Sealed is a blob from Seal, merged over State.
	Sealed    string
	Framework string
	// Store names a global store shared with other components.
	Store string
	// Session and Local are persistence keys.
	Session string
	Local   string
	// Features are extension markers (toggle, defer, flash, ...). A value
	// becomes the marker's attribute value.
	Features map[string]string
	// Extra attributes are copied onto the root.
	Extra templ.Attributes
}

// Attrs builds the root attribute contract:
//
//	<div { accelade.Props{State: state, Sync: []string{"count"}}.MustAttrs()... }>
func (p Props) Attrs() (templ.Attributes, error) {
	attrs := templ.Attributes{}
	for k, v := range p.Extra {
		attrs[k] = v
	}
	attrs[AttrRoot] = true
	if p.ID != "" {
		attrs["id"] = p.ID
	}
	if p.State != nil {
		raw, err := json.Marshal(p.State)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidState, err)
		}
		attrs[AttrState] = string(raw)
	}
	if len(p.Sync) > 0 {
		attrs[AttrSync] = strings.Join(p.Sync, ",")
	}
	set := func(name, value string) {
		if value != "" {
			attrs[name] = value
		}
	}
	set(AttrSealed, p.Sealed)
	set(AttrFramework, p.Framework)
	set(AttrStore, p.Store)
	set(AttrSession, p.Session)
	set(AttrLocal, p.Local)
	for name, value := range p.Features {
		if value == "" {
			attrs[extension.MarkerPrefix+name] = true
		} else {
			attrs[extension.MarkerPrefix+name] = value
		}
	}
	return attrs, nil
}

// MustAttrs is Attrs for templates, panicking on unencodable state.
func (p Props) MustAttrs() templ.Attributes {
	attrs, err := p.Attrs()
	if err != nil {
		panic(err)
	}
	return attrs
}

// Root renders a component root element around children.
//
//	@accelade.Root("section", props, body())
func Root(tag string, p Props, children templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		attrs, err := p.Attrs()
		if err != nil {
			return err
		}
		if tag == "" {
			tag = "div"
		}
		if _, err := io.WriteString(w, "<"+tag+renderAttrs(attrs)+">"); err != nil {
			return err
		}
		if children != nil {
			if err := children.Render(ctx, w); err != nil {
				return err
			}
		}
		_, err = io.WriteString(w, "</"+tag+">")
		return err
	})
}

// Script renders an inline component script.
func Script(src string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, `<script type="`+ScriptType+`">`+src+`</script>`)
		return err
	})
}

// renderAttrs writes attributes in sorted order. true renders a bare
// attribute; false and nil are omitted.
func renderAttrs(attrs templ.Attributes) string {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, k := range keys {
		switch v := attrs[k].(type) {
		case nil:
		case bool:
			if v {
				sb.WriteString(" " + templ.EscapeString(k))
			}
		case string:
			sb.WriteString(" " + templ.EscapeString(k) + `="` + templ.EscapeString(v) + `"`)
		default:
			sb.WriteString(" " + templ.EscapeString(k) + `="` + templ.EscapeString(fmt.Sprint(v)) + `"`)
		}
	}
	return sb.String()
}
