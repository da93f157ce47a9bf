package config

import (
	"flag"
	"fmt"
	"reflect"
	"slices"
	"strings"
)

// skippedConfigFlags is the list of command line flags on which the config schema check is disabled.
var skippedConfigFlags = []string{"print_version", "config_file"}

// collectFlags collects all the flags set in the given config struct `value` into `flags`.
// Struct fields without a `flag` tag are recursed into; tagged fields must be pointers so that "unset" is nil.
func collectFlags(flags map[ /*flagName*/ string] /*flagValue*/ string, value reflect.Value) error {
	for fieldIdx := 0; fieldIdx < value.NumField(); fieldIdx++ {
		field := value.Type().Field(fieldIdx)
		fieldValue := value.Field(fieldIdx)
		flagName, hasFlagName := field.Tag.Lookup("flag")
		if !hasFlagName {
			if field.Type.Kind() == reflect.Struct {
				if err := collectFlags(flags, fieldValue); err != nil {
					return err
				}
			}
			continue
		}
		if fieldValue.Kind() != reflect.Pointer {
			return fmt.Errorf("config field '%s' must be a pointer", field.Name)
		}
		if fieldValue.IsNil() {
			continue
		}
		// Check for duplicate flag entries.
		if _, alreadyExists := flags[flagName]; alreadyExists {
			return fmt.Errorf("flag '%s' has multiple entries in config: '%s'", flagName, field.Name)
		}
		// time.Duration and friends print in a form their flag parses back.
		flags[flagName] = fmt.Sprint(fieldValue.Elem().Interface())
	}
	return nil
}

// setConfigFlags sets all the filled flags in the given `conf` to the global flag variables.
func setConfigFlags(conf *Config) error {
	registeredFlags := make(map[ /*flagName*/ string] /*flagValue*/ string)
	if err := collectFlags(registeredFlags, reflect.ValueOf(conf).Elem()); err != nil {
		return fmt.Errorf("failed to collect flags: %w", err)
	}
	for flagName, flagValue := range registeredFlags {
		if setErr := flag.Set(flagName, flagValue); setErr != nil {
			return fmt.Errorf("failed to set flag %s: %w", flagName, setErr)
		}
	}
	return nil
}

// getDefinedFlags returns the set of flags named inside the given config struct type.
func getDefinedFlags(configType reflect.Type) (map[ /*flagName*/ string]struct{}, error) {
	flagSet := make(map[ /*flagName*/ string]struct{})
	var walkFields func(structType reflect.Type) error
	walkFields = func(structType reflect.Type) error {
		for fieldIdx := 0; fieldIdx < structType.NumField(); fieldIdx++ {
			field := structType.Field(fieldIdx)
			if flagName, ok := field.Tag.Lookup("flag"); ok && flagName != "" {
				if _, exists := flagSet[flagName]; exists {
					return fmt.Errorf("duplicate flag name '%s' in config: %s", flagName, field.Name)
				}
				flagSet[flagName] = struct{}{}
				continue
			}
			if field.Type.Kind() == reflect.Struct {
				if err := walkFields(field.Type); err != nil {
					return err
				}
			}
		}
		return nil
	}
	if err := walkFields(configType); err != nil {
		return nil, err
	}
	return flagSet, nil
}

// CollectUnregisteredFlags collects all flags that haven't been registered in the config schema.
// An error exists in the results corresponding to each unregistered flag.
func CollectUnregisteredFlags() []error {
	definedFlags, err := getDefinedFlags(reflect.TypeFor[Config]())
	if err != nil {
		return []error{err}
	}
	errs := make([]error, 0)
	flag.VisitAll(func(f *flag.Flag) {
		if strings.HasPrefix(f.Name, "test.") { // Skip test flags.
			return
		}
		if slices.Contains(skippedConfigFlags, f.Name) {
			return
		}
		if _, flagHasConfigEntry := definedFlags[f.Name]; !flagHasConfigEntry {
			errs = append(errs, fmt.Errorf("flag '%s' has not been defined in config schema", f.Name))
		}
	})
	return errs
}
