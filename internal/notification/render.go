package notification

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	placeholderOpen  = "{{"
	placeholderClose = "}}"
	missingValue     = "unknown"
)

type Message struct {
	Title string
	Body  string
}

type defaultMessage struct {
	title  string
	format func(data map[string]interface{}) string
}

var defaultMessages = map[string]defaultMessage{
	EventTypePackageUpdate: {
		title: "Package Update Available",
		format: func(d map[string]interface{}) string {
			return fmt.Sprintf("Package %s update available: %s -> %s",
				field(d, "package_name"), field(d, "package_version"), field(d, "available_version"))
		},
	},
	EventTypeSecurityUpdate: {
		title: "Security Update Available",
		format: func(d map[string]interface{}) string {
			return fmt.Sprintf("Security update for %s: %s -> %s",
				field(d, "package_name"), field(d, "package_version"), field(d, "available_version"))
		},
	},
	EventTypeHostStatusChange: {
		title: "Host Status Changed",
		format: func(d map[string]interface{}) string {
			return fmt.Sprintf("Host %s status changed to %s", field(d, "hostname"), field(d, "status"))
		},
	},
	EventTypeAgentUpdate: {
		title: "Agent Update Available",
		format: func(d map[string]interface{}) string {
			return fmt.Sprintf("Agent update available: version %s", field(d, "agent_version"))
		},
	},
}

const genericTitle = "PatchMon Notification"

// Render builds the title and body sent for rule when an event carrying data
// is dispatched. It never fails.
func Render(rule Rule, data map[string]interface{}) Message {
	def, known := defaultMessages[rule.EventType]

	msg := Message{Title: rule.MessageTitle}
	if msg.Title == "" {
		if known {
			msg.Title = def.title
		} else {
			msg.Title = genericTitle
		}
	}

	switch {
	case rule.MessageTemplate != "":
		msg.Body = RenderTemplate(rule.MessageTemplate, data)
	case known:
		msg.Body = def.format(data)
	default:
		msg.Body = "Event: " + rule.EventType
	}

	return msg
}

// RenderTemplate replaces each {{key}} whose key is present in data with the
// value's string form. Placeholders for absent keys are kept verbatim.
func RenderTemplate(template string, data map[string]interface{}) string {
	var pairs []string
	for _, key := range TemplateKeys(template) {
		if value, ok := data[key]; ok {
			pairs = append(pairs, placeholderOpen+key+placeholderClose, stringify(value))
		}
	}
	if len(pairs) == 0 {
		return template
	}
	return strings.NewReplacer(pairs...).Replace(template)
}

// TemplateKeys lists placeholder keys in order of first appearance.
func TemplateKeys(template string) []string {
	var keys []string
	seen := make(map[string]bool)

	rest := template
	for {
		start := strings.Index(rest, placeholderOpen)
		if start < 0 {
			return keys
		}
		rest = rest[start+len(placeholderOpen):]
		end := strings.Index(rest, placeholderClose)
		if end < 0 {
			return keys
		}
		if key := rest[:end]; !seen[key] {
			seen[key] = true
			keys = append(keys, key)
		}
		rest = rest[end+len(placeholderClose):]
	}
}

func field(data map[string]interface{}, key string) string {
	value, ok := data[key]
	if !ok || value == nil {
		return missingValue
	}
	return stringify(value)
}

// stringify formats an event value the way the event producers print it:
// whole numbers without exponent, arrays joined by commas and objects as
// "[object Object]".
func stringify(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return formatNumber(v)
	case float32:
		return formatNumber(float64(v))
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return formatNumber(f)
		}
		return v.String()
	case fmt.Stringer:
		return v.String()
	case []interface{}:
		parts := make([]string, len(v))
		for i, item := range v {
			parts[i] = stringify(item)
		}
		return strings.Join(parts, ",")
	case map[string]interface{}:
		return "[object Object]"
	default:
		return fmt.Sprint(v)
	}
}

func formatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == 0:
		return "0"
	}

	abs := math.Abs(f)
	if abs >= 1e-6 && abs < 1e21 {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}

	// Exponent form without zero padding: 1e+21, 1.5e-7.
	s := strconv.FormatFloat(f, 'e', -1, 64)
	mantissa, exp, _ := strings.Cut(s, "e")
	sign, digits := exp[:1], strings.TrimLeft(exp[1:], "0")
	return mantissa + "e" + sign + digits
}
