package handlers

import (
	"fmt"
	"strings"
)

// SubstituteTemplate performs the `%(key)s`-style substitution the source
// handler strings use. Unknown placeholders are left as an error rather
// than silently dropped, matching the source's KeyError-on-bad-template
// behaviour (spec §7: "template substitution failure ... logged at error;
// that handler is skipped").
func SubstituteTemplate(handler string, data map[string]string) (string, error) {
	var b strings.Builder
	i := 0
	for i < len(handler) {
		if handler[i] == '%' && i+1 < len(handler) && handler[i+1] == '(' {
			end := strings.IndexByte(handler[i+2:], ')')
			if end == -1 {
				return "", fmt.Errorf("bad template: unterminated %%( in %q", handler)
			}
			key := handler[i+2 : i+2+end]
			rest := i + 2 + end + 1
			if rest >= len(handler) || handler[rest] != 's' {
				return "", fmt.Errorf("bad template: missing trailing s after %%(%s) in %q", key, handler)
			}
			value, ok := data[key]
			if !ok {
				return "", fmt.Errorf("bad template: %s", key)
			}
			b.WriteString(value)
			i = rest + 1
			continue
		}
		b.WriteByte(handler[i])
		i++
	}
	return b.String(), nil
}

// BuildCustomHandlerCmd implements the Design Notes' template-or-classic
// rule: if substitution changes the string, it is a template; if
// substitution leaves it byte-identical (no placeholders present), treat it
// as a classic callable invoked with four shell-quoted positional args.
func BuildCustomHandlerCmd(handler, event, suite, taskID, message string, data map[string]string) (string, error) {
	cmd, err := SubstituteTemplate(handler, data)
	if err != nil {
		return "", err
	}
	if cmd == handler {
		return fmt.Sprintf("%s %s %s %s %s",
			handler,
			quoteSingle(event),
			quoteSingle(suite),
			quoteSingle(taskID),
			quoteSingle(message),
		), nil
	}
	return cmd, nil
}

// quoteSingle wraps a classic-interface positional argument in single
// quotes, matching the source's "%s '%s' '%s' '%s' '%s'" literal form.
func quoteSingle(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
