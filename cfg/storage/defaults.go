package storage

import (
	"reflect"

	"github.com/pkg/errors"
)

// SetDefaults 为结构体中零值字段设置 def tag 指定的默认值
func SetDefaults(object any) error {
	rv := reflect.ValueOf(object)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return errors.New("object must be a non-nil pointer")
	}
	return setDefaults(rv.Elem())
}

func setDefaults(rv reflect.Value) error {
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct || rv.Type() == timeType {
		return nil
	}

	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		fv := rv.Field(i)
		if !fv.CanSet() {
			continue
		}

		if tag, ok := field.Tag.Lookup("def"); ok && fv.IsZero() {
			target := fv
			if fv.Kind() == reflect.Ptr && isLeaf(fv.Type().Elem()) {
				fv.Set(reflect.New(fv.Type().Elem()))
				target = fv.Elem()
			}
			if err := convertBasic(tag, target); err != nil {
				return errors.WithMessagef(err, "invalid default for field %s", field.Name)
			}
			continue
		}

		if err := setDefaults(fv); err != nil {
			return errors.WithMessagef(err, "failed to set defaults for field %s", field.Name)
		}
	}
	return nil
}
