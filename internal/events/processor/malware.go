package processor

import (
	"encoding/json"
	"regexp"
	"strings"
)

// MalwareInfo is what could be extracted from a malware report's free-form
// data. Either field may be empty when extraction fails.
type MalwareInfo struct {
	Package string `json:"malwarePackage,omitempty"`
	Type    string `json:"malwareType,omitempty"`
}

// apkPathPattern matches agent reports of the form
// "/data/app/<package>-<suffix>/base.apk,<type>".
var apkPathPattern = regexp.MustCompile(`/([a-zA-Z0-9_]+(?:\.[a-zA-Z0-9_]+)+)(?:-[^/]+)?/base\.apk(?:\s*,\s*([^\r\n,]+))?`)

// packageTokenPattern finds a bare Android package token anywhere in text.
var packageTokenPattern = regexp.MustCompile(`\b[a-zA-Z][a-zA-Z0-9_]*(?:\.[a-zA-Z0-9_]+){2,}\b`)

// ExtractMalwareInfo pulls a malware package and type out of the raw data
// reported by a device. Three strategies run in order: named JSON fields,
// the apk path pattern, then a loose token search. Each later strategy only
// fills fields the earlier ones left empty.
func ExtractMalwareInfo(raw string) MalwareInfo {
	info := extractNamedFields(raw)
	if info.Package != "" && info.Type != "" {
		return info
	}

	if m := apkPathPattern.FindStringSubmatch(raw); m != nil {
		if info.Package == "" {
			info.Package = m[1]
		}
		if info.Type == "" && len(m) > 2 {
			info.Type = strings.TrimSpace(m[2])
		}
	}
	if info.Package != "" && info.Type != "" {
		return info
	}

	if info.Package == "" {
		for _, token := range packageTokenPattern.FindAllString(raw, -1) {
			if strings.HasPrefix(token, "com.") {
				info.Package = token
				break
			}
		}
	}
	if info.Type == "" {
		if idx := strings.LastIndex(raw, ","); idx >= 0 && idx < len(raw)-1 {
			candidate := strings.TrimSpace(raw[idx+1:])
			if candidate != "" && !strings.ContainsAny(candidate, "/{}") {
				info.Type = candidate
			}
		}
	}
	return info
}

func extractNamedFields(raw string) MalwareInfo {
	var fields map[string]any
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return MalwareInfo{}
	}
	info := MalwareInfo{}
	for _, key := range []string{"malwarePackage", "pkg", "packageName"} {
		if v, ok := fields[key].(string); ok && strings.TrimSpace(v) != "" {
			info.Package = strings.TrimSpace(v)
			break
		}
	}
	for _, key := range []string{"malwareType", "type"} {
		if v, ok := fields[key].(string); ok && strings.TrimSpace(v) != "" {
			info.Type = strings.TrimSpace(v)
			break
		}
	}
	return info
}
