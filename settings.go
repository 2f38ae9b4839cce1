package trainconfig

import (
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/gomlx/trainconfig/internal/fsutil"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// ApplySettings applies command-line style overrides to an already parsed
// configuration. The settings are a list separated by ";", e.g.:
// "tokens.micro_batch_size=4;optimizer.learning_rate_scheduler.learning_rate=3e-4".
//
// Each setting addresses a field by its YAML path. List sections take a
// numeric segment: "data_stages.0.data.seed=12". Setting a nullable field to
// "null" clears it. For integer fields "_" is removed, so large numbers can be
// written 1_000_000 as in Go.
//
// An entry of the form "file:overrides.txt" reads settings from the file:
// new lines work as ";" and lines starting with "#" are comments.
//
// It returns the paths that were set, and an error if a path is unknown or a
// value doesn't parse. Callers should Validate afterwards: overrides are
// applied without re-checking cross-field constraints.
func ApplySettings(cfg *Config, settings string) (applied []string, err error) {
	for _, setting := range strings.Split(settings, ";") {
		applied, err = applySetting(cfg, setting, applied)
		if err != nil {
			return
		}
	}
	return
}

func applySetting(cfg *Config, setting string, applied []string) ([]string, error) {
	setting = strings.TrimSpace(setting)
	if setting == "" {
		return applied, nil
	}
	if fileName, ok := strings.CutPrefix(setting, "file:"); ok {
		fileName = fsutil.ExpandTilde(fileName)
		contents, err := os.ReadFile(fileName)
		if err != nil {
			return applied, errors.Wrapf(err, "failed to read settings from file %q", fileName)
		}
		for _, line := range strings.Split(string(contents), "\n") {
			line = strings.TrimSpace(line)
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			for _, lineSetting := range strings.Split(line, ";") {
				applied, err = applySetting(cfg, lineSetting, applied)
				if err != nil {
					return applied, err
				}
			}
		}
		return applied, nil
	}

	path, valueStr, ok := strings.Cut(setting, "=")
	if !ok {
		return applied, errors.Errorf(
			"can't parse setting %q: each setting requires the format \"<path>=<value>\"", setting)
	}
	field, err := fieldByPath(cfg, path)
	if err != nil {
		return applied, err
	}
	if err = setField(field, path, valueStr); err != nil {
		return applied, err
	}
	return append(applied, path), nil
}

// fieldByPath resolves a dotted YAML path ("optimizer.clip_grad") to the
// addressable field of cfg it names, allocating nil pointers along the way.
func fieldByPath(cfg *Config, path string) (reflect.Value, error) {
	v := reflect.ValueOf(cfg).Elem()
	for _, segment := range strings.Split(path, ".") {
		for v.Kind() == reflect.Pointer {
			if v.IsNil() {
				v.Set(reflect.New(v.Type().Elem()))
			}
			v = v.Elem()
		}
		switch v.Kind() {
		case reflect.Struct:
			field, found := fieldByYAMLName(v, segment)
			if !found {
				return reflect.Value{}, errors.Errorf(
					"unknown configuration field %q (no %q in %s)", path, segment, v.Type())
			}
			v = field
		case reflect.Slice:
			index, err := strconv.Atoi(segment)
			if err != nil {
				return reflect.Value{}, errors.Errorf(
					"configuration field %q: %q should be a list index", path, segment)
			}
			if index < 0 || index >= v.Len() {
				return reflect.Value{}, errors.Errorf(
					"configuration field %q: index %d out of range (list has %d entries)",
					path, index, v.Len())
			}
			v = v.Index(index)
		default:
			return reflect.Value{}, errors.Errorf(
				"configuration field %q: cannot descend into a %s with %q", path, v.Kind(), segment)
		}
	}
	return v, nil
}

func fieldByYAMLName(structValue reflect.Value, name string) (reflect.Value, bool) {
	t := structValue.Type()
	for i := 0; i < t.NumField(); i++ {
		tag := t.Field(i).Tag.Get("yaml")
		tagName, _, _ := strings.Cut(tag, ",")
		if tagName == name {
			return structValue.Field(i), true
		}
	}
	return reflect.Value{}, false
}

func setField(field reflect.Value, path, valueStr string) error {
	if field.Kind() == reflect.Pointer && valueStr == "null" {
		field.SetZero()
		return nil
	}
	for field.Kind() == reflect.Pointer {
		if field.IsNil() {
			field.Set(reflect.New(field.Type().Elem()))
		}
		field = field.Elem()
	}
	if field.Kind() == reflect.String {
		// Strings are taken verbatim, not run through the YAML parser.
		field.SetString(valueStr)
		return nil
	}
	target := field.Addr().Interface()
	if _, isEnum := target.(yaml.Unmarshaler); !isEnum && isIntKind(field.Kind()) {
		valueStr = strings.ReplaceAll(valueStr, "_", "")
	}
	if err := yaml.Unmarshal([]byte(valueStr), target); err != nil {
		return errors.WithMessagef(err, "failed to parse value %q for configuration field %q", valueStr, path)
	}
	return nil
}

func isIntKind(kind reflect.Kind) bool {
	switch kind {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	}
	return false
}
