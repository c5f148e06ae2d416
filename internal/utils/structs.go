package utils

import (
	"fmt"
	"reflect"
)

var ColumnTag = "db"

func structValue(input any) reflect.Value {
	value := reflect.ValueOf(input)
	if value.Kind() == reflect.Ptr {
		value = value.Elem()
	}

	if value.Kind() != reflect.Struct {
		panic("input must be a pointer to a struct or a struct")
	}

	return value
}

// StructTagValues returns the column names of input in field order.
// Untagged embedded structs are flattened into their parent.
func StructTagValues(input any) []string {

	targetValue := structValue(input)
	targetType := targetValue.Type()

	result := make([]string, 0, targetValue.NumField())

	for i := 0; i < targetValue.NumField(); i++ {
		field := targetType.Field(i)

		tagValue := field.Tag.Get(ColumnTag)
		if field.Anonymous && tagValue == "" && field.Type.Kind() == reflect.Struct {
			result = append(result, StructTagValues(targetValue.Field(i).Interface())...)
			continue
		}

		if field.PkgPath != "" {
			continue
		}

		if tagValue == "" || tagValue == "-" {
			continue
		}

		result = append(result, tagValue)

	}

	return result

}

func StructToMap(input any) map[string]any {

	result := make(map[string]any)

	itemValue := structValue(input)
	itemType := itemValue.Type()

	for i := 0; i < itemValue.NumField(); i++ {
		field := itemType.Field(i)

		tagValue := field.Tag.Get(ColumnTag)
		if field.Anonymous && tagValue == "" && field.Type.Kind() == reflect.Struct {
			for k, v := range StructToMap(itemValue.Field(i).Interface()) {
				result[k] = v
			}
			continue
		}

		if field.PkgPath != "" {
			continue
		}

		if tagValue == "" || tagValue == "-" {
			continue
		}

		result[tagValue] = itemValue.Field(i).Interface()

	}

	return result

}

func ErrorWrapOrNil(err error, msg string) error {
	if err == nil {
		return nil
	}

	if msg == "" {
		return err
	}

	return fmt.Errorf("%s: %w", msg, err)

}
