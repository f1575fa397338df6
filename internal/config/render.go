package config

import (
	"fmt"
	"strings"
	"time"
)

// RenderDefaultTOML renders a commented config.toml with every default from
// GetConfigOptions, grouping dotted keys into sections.
func RenderDefaultTOML() string {
	var b strings.Builder
	b.WriteString("# serialbus configuration (TOML)\n\n")

	var section string
	for _, o := range GetConfigOptions() {
		key := o.Key
		if i := strings.IndexByte(o.Key, '.'); i >= 0 {
			if s := o.Key[:i]; s != section {
				b.WriteString("\n[" + s + "]\n")
				section = s
			}
			key = o.Key[i+1:]
		}
		if o.Comment != "" {
			b.WriteString("# " + o.Comment + "\n")
		}
		b.WriteString(key + " = " + tomlValue(o.Default) + "\n")
	}
	return b.String()
}

func tomlValue(v any) string {
	switch t := v.(type) {
	case string:
		return fmt.Sprintf("%q", t)
	case bool:
		return fmt.Sprintf("%t", t)
	case time.Duration:
		return fmt.Sprintf("%q", t.String())
	default:
		return fmt.Sprintf("%v", t)
	}
}
