package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	nicehttp "github.com/abdul-hamid-achik/nicehttp/packages/http"
)

// Environment variable helpers
func getEnvString(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		return val == "true" || val == "1" || val == "yes"
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

// parsePairs splits "key<sep>value" arguments into a map. Later keys win.
func parsePairs(values []string, sep string) (map[string]string, error) {
	if len(values) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(values))
	for _, v := range values {
		key, val, ok := strings.Cut(v, sep)
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid value %q, expected key%svalue", v, sep)
		}
		out[key] = strings.TrimSpace(val)
	}
	return out, nil
}

// parseFormParts turns -F arguments into multipart parts. "name=@path"
// attaches a file, "name=value" adds a plain field.
func parseFormParts(values []string) ([]nicehttp.File, error) {
	parts := make([]nicehttp.File, 0, len(values))
	for _, v := range values {
		name, val, ok := strings.Cut(v, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid form part %q, expected name=value or name=@path", v)
		}
		if path, isFile := strings.CutPrefix(val, "@"); isFile {
			f, err := nicehttp.OpenFile(name, path)
			if err != nil {
				return nil, err
			}
			parts = append(parts, f)
			continue
		}
		parts = append(parts, nicehttp.Field(name, val))
	}
	return parts, nil
}
