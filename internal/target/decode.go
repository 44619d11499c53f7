package target

import (
	"reflect"

	"github.com/go-viper/mapstructure/v2"
)

var valueType = reflect.TypeOf(Value{})

// DecodeHook lets mapstructure fill Value fields from strings and lists.
func DecodeHook() mapstructure.DecodeHookFuncType {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if to != valueType {
			return data, nil
		}
		return FromAny(data), nil
	}
}
