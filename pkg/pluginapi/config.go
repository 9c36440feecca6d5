package pluginapi

// ConfigValueKind tags the shape of a ConfigValue.
type ConfigValueKind uint8

const (
	KindText ConfigValueKind = iota
	KindInt
	KindBool
	KindTextList
)

func (k ConfigValueKind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindInt:
		return "integer"
	case KindBool:
		return "boolean"
	case KindTextList:
		return "list of text"
	default:
		return "unknown"
	}
}

// ConfigValue is a tagged union over exactly four shapes. Only the field
// matching Kind is meaningful.
type ConfigValue struct {
	Kind     ConfigValueKind
	Text     string
	Int      int64
	Bool     bool
	TextList []string
}

func Text(s string) ConfigValue       { return ConfigValue{Kind: KindText, Text: s} }
func Int(i int64) ConfigValue         { return ConfigValue{Kind: KindInt, Int: i} }
func Bool(b bool) ConfigValue         { return ConfigValue{Kind: KindBool, Bool: b} }
func TextList(l []string) ConfigValue { return ConfigValue{Kind: KindTextList, TextList: l} }

// ConfigField describes one settable field in a plugin's configuration.
type ConfigField struct {
	Name        string
	Kind        ConfigValueKind
	Required    bool
	Default     *ConfigValue
	Description *string
}

// ConfigSchema is the full set of fields a plugin accepts. ConfigRequired
// marks plugins that cannot run without a config file on disk.
type ConfigSchema struct {
	Fields         []ConfigField
	ConfigRequired bool
}

// Field returns the schema field with the given name, or nil.
func (s ConfigSchema) Field(name string) *ConfigField {
	for i := range s.Fields {
		if s.Fields[i].Name == name {
			return &s.Fields[i]
		}
	}
	return nil
}
