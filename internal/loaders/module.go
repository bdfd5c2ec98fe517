package loaders

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Kind describes what a Module's content currently is.
type Kind int

const (
	// KindRaw is the untouched source file
	KindRaw Kind = iota
	// KindCSS is stylesheet text
	KindCSS
	// KindScript is a JS module, see Module.Script
	KindScript
)

func (k Kind) String() string {
	switch k {
	case KindRaw:
		return "raw"
	case KindCSS:
		return "css"
	case KindScript:
		return "script"
	default:
		return "unknown"
	}
}

// Module is a single source file flowing through a pipeline.
type Module struct {
	// Absolute source path
	Path string
	// Content while Kind is KindRaw or KindCSS
	Content []byte
	Kind    Kind
	// Script while Kind is KindScript
	Script Script
}

// SetScript replaces the content with a JS module.
func (m *Module) SetScript(s Script) {
	m.Content = nil
	m.Kind = KindScript
	m.Script = s
}

// Import is a default import of another module.
type Import struct {
	Name string
	Path string
}

// Script is a JS module with a single default export.
type Script struct {
	Imports []Import
	Body    []string
	// JS expression for the default export
	Export string
}

// AddImport returns the binding name for path, adding the import once.
func (s *Script) AddImport(path string) string {
	for _, imp := range s.Imports {
		if imp.Path == path {
			return imp.Name
		}
	}
	name := "__packer_asset_" + strconv.Itoa(len(s.Imports))
	s.Imports = append(s.Imports, Import{Name: name, Path: path})
	return name
}

// Render returns the module source.
func (s Script) Render() string {
	var b strings.Builder
	for _, imp := range s.Imports {
		fmt.Fprintf(&b, "import %s from %s;\n", imp.Name, jsString(imp.Path))
	}
	for _, stmt := range s.Body {
		b.WriteString(stmt)
		b.WriteString("\n")
	}
	export := s.Export
	if export == "" {
		export = "undefined"
	}
	fmt.Fprintf(&b, "export default %s;\n", export)
	return b.String()
}

// Literal returns the exported string when the module is nothing more than
// a string constant, as url-loader and file-loader produce.
func (s Script) Literal() (string, bool) {
	if len(s.Imports) > 0 || len(s.Body) > 0 || !strings.HasPrefix(s.Export, `"`) {
		return "", false
	}
	var v string
	if err := json.Unmarshal([]byte(s.Export), &v); err != nil {
		return "", false
	}
	return v, true
}

// jsString quotes s as a JS string literal. Markup stays readable, JSON
// string escaping is otherwise valid JS.
func jsString(s string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	// encoding a string cannot fail
	_ = enc.Encode(s)
	return strings.TrimSuffix(buf.String(), "\n")
}

var markerPattern = regexp.MustCompile("\x00(\\d+)\x00")

func marker(i int) string {
	return "\x00" + strconv.Itoa(i) + "\x00"
}

// concat turns text containing markers into a JS expression joining the
// literal parts with exprs[i] in place of marker(i).
func concat(text string, exprs []string) string {
	var parts []string
	last := 0
	for _, loc := range markerPattern.FindAllStringSubmatchIndex(text, -1) {
		if loc[0] > last {
			parts = append(parts, jsString(text[last:loc[0]]))
		}
		i, _ := strconv.Atoi(text[loc[2]:loc[3]])
		parts = append(parts, exprs[i])
		last = loc[1]
	}
	if last < len(text) || len(parts) == 0 {
		parts = append(parts, jsString(text[last:]))
	}
	return strings.Join(parts, " + ")
}

// isLocalRef reports whether ref names a file relative to the importing module.
func isLocalRef(ref string) bool {
	ref = strings.TrimSpace(ref)
	switch {
	case ref == "",
		strings.HasPrefix(ref, "#"),
		strings.HasPrefix(ref, "/"),
		strings.HasPrefix(ref, "data:"),
		strings.Contains(ref, "://"),
		strings.Contains(ref, "{{"):
		return false
	}
	return true
}

// importPath turns a relative reference into an import specifier the
// bundler resolves against the importing file rather than node_modules.
func importPath(ref string) string {
	ref = strings.TrimSpace(ref)
	if strings.HasPrefix(ref, "./") || strings.HasPrefix(ref, "../") {
		return ref
	}
	return "./" + ref
}
