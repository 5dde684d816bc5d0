package prompt

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	placeholderRe = regexp.MustCompile(`\{\{([a-zA-Z_][a-zA-Z0-9_]*)\}\}`)
	ifTagRe       = regexp.MustCompile(`^\{\{#if\s+([a-zA-Z_][a-zA-Z0-9_]*)\s*\}\}`)
)

const (
	tagStart   = "{{"
	ifCloseTag = "{{/if}}"
)

// Vars holds the values substituted into a prompt template.
type Vars map[string]string

// Render fills in a template. {{name}} expands to vars["name"], and a
// {{#if name}}...{{/if}} section survives only when the variable is set
// to a non-empty value. Sections nest. Placeholders that survive with no
// value are an error, reported together.
func Render(tmpl string, vars Vars) (string, error) {
	flat, err := evalSections(tmpl, vars)
	if err != nil {
		return "", err
	}
	return expand(flat, vars)
}

// section is one open {{#if}} while scanning. emit folds in the
// enclosing sections, so text is copied iff the top of the stack emits.
type section struct {
	name string
	emit bool
}

// evalSections resolves conditional sections in one left-to-right scan.
// Text inside a suppressed section is dropped before placeholder
// expansion, so its placeholders never count as missing.
func evalSections(tmpl string, vars Vars) (string, error) {
	var out strings.Builder
	stack := []section{{emit: true}}

	rest := tmpl
	for {
		i := strings.Index(rest, tagStart)
		if i == -1 {
			break
		}
		if stack[len(stack)-1].emit {
			out.WriteString(rest[:i])
		}
		rest = rest[i:]

		if strings.HasPrefix(rest, ifCloseTag) {
			if len(stack) == 1 {
				return "", fmt.Errorf("dangling {{/if}} without matching {{#if}}")
			}
			stack = stack[:len(stack)-1]
			rest = rest[len(ifCloseTag):]
			continue
		}
		if m := ifTagRe.FindStringSubmatchIndex(rest); m != nil {
			name := rest[m[2]:m[3]]
			stack = append(stack, section{
				name: name,
				emit: stack[len(stack)-1].emit && vars[name] != "",
			})
			rest = rest[m[1]:]
			continue
		}
		// Plain placeholder or stray braces; leave for expand.
		if stack[len(stack)-1].emit {
			out.WriteString(tagStart)
		}
		rest = rest[len(tagStart):]
	}

	if len(stack) > 1 {
		return "", fmt.Errorf("unclosed {{#if %s}}", stack[len(stack)-1].name)
	}
	out.WriteString(rest)
	return out.String(), nil
}

// expand substitutes {{name}} placeholders, collecting every name that
// has no value so the caller sees them all at once.
func expand(s string, vars Vars) (string, error) {
	locs := placeholderRe.FindAllStringSubmatchIndex(s, -1)
	if locs == nil {
		return s, nil
	}

	var out strings.Builder
	var missing []string
	seen := make(map[string]bool)
	prev := 0
	for _, loc := range locs {
		out.WriteString(s[prev:loc[0]])
		name := s[loc[2]:loc[3]]
		if val, ok := vars[name]; ok {
			out.WriteString(val)
		} else if !seen[name] {
			seen[name] = true
			missing = append(missing, name)
		}
		prev = loc[1]
	}
	out.WriteString(s[prev:])

	if len(missing) > 0 {
		return "", fmt.Errorf("missing template variables: %s", strings.Join(missing, ", "))
	}
	return out.String(), nil
}

// Load returns the template with the given name. A file in
// ~/.codepilot/templates/ overrides the built-in of the same name, so
// prompts can be tuned without rebuilding.
func Load(name string) (string, error) {
	if dir := Dir(); dir != "" {
		if data, err := os.ReadFile(filepath.Join(dir, name)); err == nil {
			return string(data), nil
		}
	}
	if content, ok := builtinTemplates[name]; ok {
		return content, nil
	}
	return "", fmt.Errorf("unknown template %q", name)
}

// Dir returns the template override directory, or "" if the home
// directory cannot be determined.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".codepilot", "templates")
}

// Install writes the built-in templates to the override directory so they
// can be edited. Existing files are left alone.
func Install() error {
	dir := Dir()
	if dir == "" {
		return fmt.Errorf("could not determine home directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create templates dir: %w", err)
	}

	for name, content := range builtinTemplates {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			continue // don't overwrite existing
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return fmt.Errorf("write template %q: %w", name, err)
		}
	}
	return nil
}
