package feeders

import (
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/golobby/cast"
)

// EnvFeeder reads environment variables named after `env` struct tags.
// Nested structs extend the name with their own tag, so with prefix
// UNITROUTER a field tagged MILLIS inside a struct field tagged MOUNT inside
// one tagged TIMEOUTS reads UNITROUTER_TIMEOUTS_MOUNT_MILLIS. Unset and empty
// variables leave the field alone.
type EnvFeeder struct {
	Prefix string

	// Lookup defaults to os.LookupEnv.
	Lookup func(string) (string, bool)
}

// NewEnvFeeder creates a new EnvFeeder with the given prefix.
func NewEnvFeeder(prefix string) EnvFeeder {
	return EnvFeeder{Prefix: prefix}
}

// Feed fills structure from the environment.
func (f EnvFeeder) Feed(structure any) error {
	if err := checkStructure(structure); err != nil {
		return err
	}
	lookup := f.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	return f.processStruct(reflect.ValueOf(structure).Elem(), strings.ToUpper(f.Prefix), lookup)
}

func (f EnvFeeder) processStruct(rv reflect.Value, prefix string, lookup func(string) (string, bool)) error {
	for i := 0; i < rv.NumField(); i++ {
		field := rv.Field(i)
		fieldType := rv.Type().Field(i)
		if !fieldType.IsExported() {
			continue
		}
		tag, ok := fieldType.Tag.Lookup("env")
		if !ok || tag == "-" {
			continue
		}
		name := joinEnv(prefix, strings.ToUpper(tag))

		if field.Kind() == reflect.Struct && field.Type() != reflect.TypeOf(time.Time{}) {
			if err := f.processStruct(field, name, lookup); err != nil {
				return err
			}
			continue
		}

		value, ok := lookup(name)
		if !ok || value == "" {
			continue
		}
		if err := setFieldValue(field, value); err != nil {
			return fmt.Errorf("env %s: %w", name, err)
		}
	}
	return nil
}

func joinEnv(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "_" + name
}

// setFieldValue converts and sets a field value
func setFieldValue(field reflect.Value, strValue string) error {
	if !field.CanSet() {
		return ErrFieldCannotBeSet
	}

	switch {
	case field.Type() == reflect.TypeOf(time.Duration(0)):
		d, err := time.ParseDuration(strValue)
		if err != nil {
			return fmt.Errorf("cannot convert value to duration: %w", err)
		}
		field.SetInt(int64(d))
		return nil
	case field.Kind() == reflect.Slice && field.Type().Elem().Kind() == reflect.String:
		parts := strings.Split(strValue, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		field.Set(reflect.ValueOf(parts).Convert(field.Type()))
		return nil
	}

	convertedValue, err := cast.FromType(strValue, field.Type())
	if err != nil {
		return fmt.Errorf("cannot convert value to type %v: %w", field.Type(), err)
	}
	field.Set(reflect.ValueOf(convertedValue).Convert(field.Type()))
	return nil
}

func checkStructure(structure any) error {
	rv := reflect.ValueOf(structure)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return ErrInvalidStructure
	}
	return nil
}
