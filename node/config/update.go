package config

import (
	"bytes"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"unicode"

	"github.com/BurntSushi/toml"
)

var sectionRx = regexp.MustCompile(`^\[\[?([^\]]+)\]\]?$`)

// ConfigUpdate renders cur as TOML. With comment set, every key is
// preceded by its documentation and env var name, and keys that still hold
// their default value are commented out. With diff set, only keys that
// differ from def are written.
func ConfigUpdate(cur, def *Dealbot, comment bool, diff bool) ([]byte, error) {
	curToml, err := encode(cur)
	if err != nil {
		return nil, fmt.Errorf("encoding config: %w", err)
	}
	if !comment && !diff {
		return []byte(curToml), nil
	}

	defToml, err := encode(def)
	if err != nil {
		return nil, fmt.Errorf("encoding default config: %w", err)
	}
	defaults := make(map[string]bool)
	for _, l := range strings.Split(defToml, "\n") {
		l = strings.TrimSpace(l)
		if l != "" && l[0] != '#' && l[0] != '[' {
			defaults[l] = true
		}
	}

	var out []string
	var section string
	for i, line := range strings.Split(curToml, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "[") {
			m := sectionRx.FindStringSubmatch(trimmed)
			if m == nil {
				return nil, fmt.Errorf("malformed section header on line %d: %s", i, trimmed)
			}
			section = m[1]
			out = append(out, line)
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 2 {
			if !diff {
				out = append(out, line)
			}
			continue
		}
		key := fields[0]
		isDefault := defaults[trimmed]
		if diff && isDefault {
			continue
		}

		indent := line[:len(line)-len(strings.TrimLeftFunc(line, unicode.IsSpace))]
		if comment {
			out = append(out, docLines(indent, section, key)...)
		}
		if !diff && isDefault {
			line = indent + "#" + trimmed
		}
		out = append(out, line, "")
	}
	rendered := strings.Join(out, "\n")

	// the rendered file must read back as the same config
	check := *def
	if _, err := toml.Decode(rendered, &check); err != nil {
		return nil, fmt.Errorf("parsing rendered config: %w", err)
	}
	if !reflect.DeepEqual(*cur, check) {
		return nil, fmt.Errorf("rendered config does not match the current config")
	}

	return []byte(rendered), nil
}

func docLines(indent string, section string, key string) []string {
	var lines []string
	if doc := findDoc(section, key); doc != nil {
		if doc.Comment != "" {
			for _, l := range strings.Split(doc.Comment, "\n") {
				lines = append(lines, indent+"# "+l)
			}
			lines = append(lines, indent+"#")
		}
		lines = append(lines, indent+"# type: "+doc.Type)
	}
	return append(lines, indent+"# env var: "+envVar(section, key))
}

func encode(v interface{}) (string, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(v); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// envVar is the name of the environment variable that overrides key
func envVar(section, key string) string {
	name := envPrefix + "_"
	if section != "" {
		name += strings.ReplaceAll(section, ".", "_") + "_"
	}
	return strings.ToUpper(name + key)
}
