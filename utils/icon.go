package utils

import (
	"strings"
	"unicode"
)

const (
	ExtensionKey = "form_consent"
	iconPath     = "EXT:" + ExtensionKey + "/Resources/Public/Icons/"
	defaultIcon  = "svg"

	ErrCodeEmptyTableName    = 1580308459
	ErrCodeInvalidPluginName = 1587655457
	ErrCodeInvalidWidgetName = 1632850400

	pluginIdentifierPrefix = "content-plugin-"
	widgetIdentifierPrefix = "content-widget-"
	pluginFilePrefix       = "plugin."
	widgetFilePrefix       = "widget."
)

// IconForTable returns the icon path of a table record. The optional type is
// trimmed and defaults to "svg"; its case is preserved.
func IconForTable(tableName string, typ ...string) (string, error) {
	name := strings.TrimSpace(tableName)
	if name == "" {
		return "", NewArgumentError(ErrCodeEmptyTableName, "no table name given")
	}
	return iconPath + name + "." + iconType(typ), nil
}

func IconForPlugin(pluginName string, typ ...string) (string, error) {
	name := strings.TrimSpace(pluginName)
	if name == "" {
		return "", NewArgumentError(ErrCodeEmptyTableName, "no plugin name given")
	}
	return IconForTable(pluginFilePrefix+name, typ...)
}

func IconForWidget(widgetName string, typ ...string) (string, error) {
	name := strings.TrimSpace(widgetName)
	if name == "" {
		return "", NewArgumentError(ErrCodeEmptyTableName, "no widget name given")
	}
	return IconForTable(widgetFilePrefix+name, typ...)
}

// IconForPluginIdentifier builds the icon identifier of a plugin,
// e.g. "FooBaz" -> "content-plugin-foo-baz".
func IconForPluginIdentifier(pluginName string) (string, error) {
	name := strings.TrimSpace(pluginName)
	if name == "" {
		return "", NewArgumentError(ErrCodeInvalidPluginName, "plugin name must not be empty")
	}
	return pluginIdentifierPrefix + kebab(name), nil
}

func IconForWidgetIdentifier(widgetName string) (string, error) {
	name := strings.TrimSpace(widgetName)
	if name == "" {
		return "", NewArgumentError(ErrCodeInvalidWidgetName, "widget name must not be empty")
	}
	return widgetIdentifierPrefix + kebab(name), nil
}

func iconType(typ []string) string {
	if len(typ) == 0 {
		return defaultIcon
	}
	t := strings.TrimSpace(typ[0])
	if t == "" {
		return defaultIcon
	}
	return t
}

// kebab lower-cases an UpperCamelCase name, separating words with dashes.
func kebab(s string) string {
	var b strings.Builder
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
