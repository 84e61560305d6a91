package storage

import (
	"reflect"
	"strconv"

	"github.com/pkg/errors"
)

// MapStorage 基于 map 和 slice 的存储实现
// JSON/YAML/TOML/INI 解码后的数据都以这种形式保存
type MapStorage struct {
	data any
}

func NewMapStorage(data any) *MapStorage {
	return &MapStorage{data: data}
}

// Data 获取存储的原始数据
func (ms *MapStorage) Data() any {
	return ms.data
}

func (ms *MapStorage) Sub(key string) Storage {
	if key == "" {
		return ms
	}

	current := ms.data
	for _, k := range parseKey(key) {
		current = child(current, k)
		if current == nil {
			break
		}
	}
	return NewMapStorage(current)
}

func child(data any, key string) any {
	switch v := data.(type) {
	case map[string]any:
		return v[key]
	case map[any]any:
		return v[key]
	case []any:
		index, err := strconv.Atoi(key)
		if err != nil || index < 0 || index >= len(v) {
			return nil
		}
		return v[index]
	}
	return nil
}

func (ms *MapStorage) ConvertTo(object any) error {
	rv := reflect.ValueOf(object)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return errors.New("object must be a non-nil pointer")
	}
	return convertMapValue(ms.data, rv.Elem())
}

func convertMapValue(src any, dst reflect.Value) error {
	if src == nil {
		return nil
	}

	if dst.Type() == typeOptionsType {
		return convertMapTypeOptions(src, dst)
	}

	switch dst.Kind() {
	case reflect.Ptr:
		if dst.IsNil() {
			dst.Set(reflect.New(dst.Type().Elem()))
			if err := setDefaults(dst); err != nil {
				return err
			}
		}
		return convertMapValue(src, dst.Elem())
	case reflect.Interface:
		if dst.Type().NumMethod() == 0 {
			dst.Set(reflect.ValueOf(src))
			return nil
		}
		return errors.Errorf("cannot convert to non-empty interface %v", dst.Type())
	case reflect.Struct:
		if dst.Type() != timeType {
			return convertMapStruct(src, dst)
		}
	case reflect.Map:
		return convertMapMap(src, dst)
	case reflect.Slice:
		return convertMapSlice(src, dst)
	}
	return convertBasic(src, dst)
}

func convertMapStruct(src any, dst reflect.Value) error {
	m, ok := asStringMap(src)
	if !ok {
		return errors.Errorf("cannot convert %T to %v", src, dst.Type())
	}

	rt := dst.Type()
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		fv := dst.Field(i)
		if !fv.CanSet() {
			continue
		}
		name, ok := fieldName(field)
		if !ok {
			continue
		}
		value, ok := m[name]
		if !ok {
			continue
		}
		if err := convertMapValue(value, fv); err != nil {
			return errors.WithMessagef(err, "field %s", name)
		}
	}
	return nil
}

// convertMapTypeOptions Options 字段保留为子存储，由 ref 按构造函数参数类型转换
func convertMapTypeOptions(src any, dst reflect.Value) error {
	m, ok := asStringMap(src)
	if !ok {
		return errors.Errorf("cannot convert %T to TypeOptions", src)
	}
	if err := convertBasic(m["namespace"], dst.FieldByName("Namespace")); err != nil {
		return errors.WithMessage(err, "field namespace")
	}
	if err := convertBasic(m["type"], dst.FieldByName("Type")); err != nil {
		return errors.WithMessage(err, "field type")
	}
	if options, ok := m["options"]; ok && options != nil {
		dst.FieldByName("Options").Set(reflect.ValueOf(NewValidateStorage(NewMapStorage(options))))
	}
	return nil
}

func convertMapMap(src any, dst reflect.Value) error {
	m, ok := asStringMap(src)
	if !ok {
		return errors.Errorf("cannot convert %T to %v", src, dst.Type())
	}
	if dst.Type().Key().Kind() != reflect.String {
		return errors.Errorf("unsupported map key type %v", dst.Type().Key())
	}
	if dst.IsNil() {
		dst.Set(reflect.MakeMapWithSize(dst.Type(), len(m)))
	}
	for k, v := range m {
		elem := reflect.New(dst.Type().Elem()).Elem()
		if err := convertMapValue(v, elem); err != nil {
			return errors.WithMessagef(err, "key %s", k)
		}
		dst.SetMapIndex(reflect.ValueOf(k).Convert(dst.Type().Key()), elem)
	}
	return nil
}

func convertMapSlice(src any, dst reflect.Value) error {
	items, ok := src.([]any)
	if !ok {
		return errors.Errorf("cannot convert %T to %v", src, dst.Type())
	}
	slice := reflect.MakeSlice(dst.Type(), len(items), len(items))
	for i, item := range items {
		if err := convertMapValue(item, slice.Index(i)); err != nil {
			return errors.WithMessagef(err, "index %d", i)
		}
	}
	dst.Set(slice)
	return nil
}

func asStringMap(src any) (map[string]any, bool) {
	switch v := src.(type) {
	case map[string]any:
		return v, true
	case map[any]any:
		m := make(map[string]any, len(v))
		for k, val := range v {
			s, ok := k.(string)
			if !ok {
				return nil, false
			}
			m[s] = val
		}
		return m, true
	}
	return nil, false
}
