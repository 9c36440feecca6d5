package plugins

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/opik/tudu/pkg/pluginapi"
)

// LoadPluginConfig obtains the plugin's schema, reads and validates its
// config file at path, and delivers the resulting values through the
// plugin's OnConfigLoaded callback. Validation failures come back as
// *ConfigError; panics inside the plugin as *PanicError.
func LoadPluginConfig(lp *LoadedPlugin, path string) (map[string]pluginapi.ConfigValue, error) {
	schema, err := lp.ConfigSchema()
	if err != nil {
		return nil, err
	}

	values, err := ReadConfigFile(lp.Name, schema, path)
	if err != nil {
		return nil, err
	}

	if err := lp.OnConfigLoaded(values); err != nil {
		return nil, err
	}
	return values, nil
}

// ReadConfigFile validates a plugin config file against a schema and
// returns the value map with defaults injected. The callback is not
// invoked; callers that only validate (CLI) use this directly.
func ReadConfigFile(pluginName string, schema pluginapi.ConfigSchema, path string) (map[string]pluginapi.ConfigValue, error) {
	raw := make(map[string]any)
	_, err := toml.DecodeFile(path, &raw)
	switch {
	case err == nil:
	case os.IsNotExist(err):
		if schema.ConfigRequired || anyRequired(schema) {
			return nil, &ConfigError{Plugin: pluginName,
				Message: fmt.Sprintf("configuration file %s is missing", path)}
		}
		return defaultsOnly(schema), nil
	default:
		return nil, &ConfigError{Plugin: pluginName, Message: err.Error()}
	}

	values := make(map[string]pluginapi.ConfigValue)
	for _, field := range schema.Fields {
		rawValue, present := raw[field.Name]
		if !present {
			if field.Required {
				return nil, &ConfigError{Plugin: pluginName,
					Message: fmt.Sprintf("%s: required field is missing", field.Name)}
			}
			if field.Default != nil {
				values[field.Name] = *field.Default
			}
			continue
		}
		value, ok := coerce(rawValue, field.Kind)
		if !ok {
			return nil, &ConfigError{Plugin: pluginName,
				Message: fmt.Sprintf("%s: expected %s, got %s", field.Name, field.Kind, tomlTypeName(rawValue))}
		}
		values[field.Name] = value
	}
	// Fields outside the schema are ignored.
	return values, nil
}

func anyRequired(schema pluginapi.ConfigSchema) bool {
	for _, f := range schema.Fields {
		if f.Required {
			return true
		}
	}
	return false
}

func defaultsOnly(schema pluginapi.ConfigSchema) map[string]pluginapi.ConfigValue {
	values := make(map[string]pluginapi.ConfigValue)
	for _, f := range schema.Fields {
		if f.Default != nil {
			values[f.Name] = *f.Default
		}
	}
	return values
}

// coerce converts a decoded TOML value to the declared shape.
func coerce(raw any, kind pluginapi.ConfigValueKind) (pluginapi.ConfigValue, bool) {
	switch kind {
	case pluginapi.KindText:
		if s, ok := raw.(string); ok {
			return pluginapi.Text(s), true
		}
	case pluginapi.KindInt:
		if i, ok := raw.(int64); ok {
			return pluginapi.Int(i), true
		}
	case pluginapi.KindBool:
		if b, ok := raw.(bool); ok {
			return pluginapi.Bool(b), true
		}
	case pluginapi.KindTextList:
		switch list := raw.(type) {
		case []string:
			return pluginapi.TextList(list), true
		case []any:
			out := make([]string, 0, len(list))
			for _, item := range list {
				s, ok := item.(string)
				if !ok {
					return pluginapi.ConfigValue{}, false
				}
				out = append(out, s)
			}
			return pluginapi.TextList(out), true
		}
	}
	return pluginapi.ConfigValue{}, false
}

// tomlTypeName names a decoded TOML value for error messages.
func tomlTypeName(v any) string {
	switch v.(type) {
	case string:
		return "text"
	case int64:
		return "integer"
	case bool:
		return "boolean"
	case float64:
		return "float"
	case []any, []string:
		return "list"
	case map[string]any:
		return "table"
	case time.Time:
		return "datetime"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// GenerateTemplate renders a commented TOML template from a schema: field
// descriptions as header comments, required fields uncommented, optional
// fields commented out with their defaults.
func GenerateTemplate(pluginName string, schema pluginapi.ConfigSchema) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Configuration for the %s plugin.\n", pluginName)
	if schema.ConfigRequired {
		b.WriteString("# This plugin requires configuration before it can run.\n")
	}
	for _, field := range schema.Fields {
		b.WriteString("\n")
		if field.Description != nil {
			for _, line := range strings.Split(*field.Description, "\n") {
				fmt.Fprintf(&b, "# %s\n", line)
			}
		}
		value := templateValue(field)
		if field.Required {
			fmt.Fprintf(&b, "%s = %s\n", field.Name, value)
		} else {
			fmt.Fprintf(&b, "# %s = %s\n", field.Name, value)
		}
	}
	return b.String()
}

func templateValue(field pluginapi.ConfigField) string {
	v := field.Default
	if v == nil {
		zero := zeroValue(field.Kind)
		v = &zero
	}
	switch v.Kind {
	case pluginapi.KindText:
		return fmt.Sprintf("%q", v.Text)
	case pluginapi.KindInt:
		return fmt.Sprintf("%d", v.Int)
	case pluginapi.KindBool:
		return fmt.Sprintf("%t", v.Bool)
	case pluginapi.KindTextList:
		parts := make([]string, 0, len(v.TextList))
		for _, s := range v.TextList {
			parts = append(parts, fmt.Sprintf("%q", s))
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return `""`
	}
}

func zeroValue(kind pluginapi.ConfigValueKind) pluginapi.ConfigValue {
	switch kind {
	case pluginapi.KindInt:
		return pluginapi.Int(0)
	case pluginapi.KindBool:
		return pluginapi.Bool(false)
	case pluginapi.KindTextList:
		return pluginapi.TextList(nil)
	default:
		return pluginapi.Text("")
	}
}

// WriteTemplate creates the plugin config directory and writes a
// schema-derived template, refusing to overwrite an existing file.
func WriteTemplate(pluginName string, schema pluginapi.ConfigSchema, path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file %s already exists", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return os.WriteFile(path, []byte(GenerateTemplate(pluginName, schema)), 0600)
}
