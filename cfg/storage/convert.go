package storage

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/ZacharyGroff/kodawari/ref"
	"github.com/pkg/errors"
)

var (
	durationType    = reflect.TypeOf(time.Duration(0))
	timeType        = reflect.TypeOf(time.Time{})
	typeOptionsType = reflect.TypeOf(ref.TypeOptions{})
)

// fieldName 获取字段名，优先使用 cfg tag，然后是 json/yaml/toml/ini tag
// 返回 false 表示字段被忽略
func fieldName(field reflect.StructField) (string, bool) {
	for _, tagKey := range []string{"cfg", "json", "yaml", "toml", "ini"} {
		tag, ok := field.Tag.Lookup(tagKey)
		if !ok {
			continue
		}
		name := strings.Split(tag, ",")[0]
		if name == "-" {
			return "", false
		}
		if name != "" {
			return name, true
		}
	}
	return field.Name, true
}

// parseKey 解析 key 字符串，支持点号和数组索引
// "a.b[0].c" -> ["a", "b", "0", "c"]
func parseKey(key string) []string {
	var keys []string
	var current strings.Builder
	flush := func() {
		if current.Len() > 0 {
			keys = append(keys, current.String())
			current.Reset()
		}
	}

	for _, char := range key {
		switch char {
		case '.', '[', ']':
			flush()
		default:
			current.WriteRune(char)
		}
	}
	flush()
	return keys
}

// convertBasic 转换基本类型的值
// 字符串会按目标类型解析，环境变量和 ini 中的值都是字符串
func convertBasic(src any, dst reflect.Value) error {
	if src == nil {
		return nil
	}
	sv := reflect.ValueOf(src)
	for sv.Kind() == reflect.Ptr {
		if sv.IsNil() {
			return nil
		}
		sv = sv.Elem()
	}

	if dst.Type() == durationType {
		return convertDuration(sv, dst)
	}
	if dst.Type() == timeType {
		return convertTime(sv, dst)
	}

	if sv.Kind() == reflect.String && dst.Kind() != reflect.String {
		return parseString(sv.String(), dst)
	}

	switch dst.Kind() {
	case reflect.String:
		// 避免 int -> string 按 rune 转换
		dst.SetString(fmt.Sprint(sv.Interface()))
		return nil
	case reflect.Bool:
		if sv.Kind() != reflect.Bool {
			return errors.Errorf("cannot convert %v to bool", sv.Type())
		}
		dst.SetBool(sv.Bool())
		return nil
	}

	if sv.Type().AssignableTo(dst.Type()) {
		dst.Set(sv)
		return nil
	}
	if isNumber(sv.Kind()) && isNumber(dst.Kind()) {
		dst.Set(sv.Convert(dst.Type()))
		return nil
	}
	return errors.Errorf("cannot convert %v to %v", sv.Type(), dst.Type())
}

func parseString(s string, dst reflect.Value) error {
	s = strings.TrimSpace(s)
	switch dst.Kind() {
	case reflect.Bool:
		v, err := strconv.ParseBool(s)
		if err != nil {
			return errors.Wrapf(err, "cannot parse %q as bool", s)
		}
		dst.SetBool(v)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		v, err := strconv.ParseInt(s, 10, dst.Type().Bits())
		if err != nil {
			return errors.Wrapf(err, "cannot parse %q as %v", s, dst.Type())
		}
		dst.SetInt(v)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		v, err := strconv.ParseUint(s, 10, dst.Type().Bits())
		if err != nil {
			return errors.Wrapf(err, "cannot parse %q as %v", s, dst.Type())
		}
		dst.SetUint(v)
	case reflect.Float32, reflect.Float64:
		v, err := strconv.ParseFloat(s, dst.Type().Bits())
		if err != nil {
			return errors.Wrapf(err, "cannot parse %q as %v", s, dst.Type())
		}
		dst.SetFloat(v)
	default:
		return errors.Errorf("cannot convert string to %v", dst.Type())
	}
	return nil
}

func convertDuration(sv reflect.Value, dst reflect.Value) error {
	switch {
	case sv.Kind() == reflect.String:
		d, err := time.ParseDuration(strings.TrimSpace(sv.String()))
		if err != nil {
			return errors.Wrapf(err, "cannot parse %q as duration", sv.String())
		}
		dst.SetInt(int64(d))
	case sv.Type() == durationType:
		dst.Set(sv)
	case isNumber(sv.Kind()):
		// 数字按纳秒处理，与 time.Duration 的定义一致
		dst.SetInt(sv.Convert(reflect.TypeOf(int64(0))).Int())
	default:
		return errors.Errorf("cannot convert %v to duration", sv.Type())
	}
	return nil
}

func convertTime(sv reflect.Value, dst reflect.Value) error {
	switch {
	case sv.Type() == timeType:
		dst.Set(sv)
	case sv.Kind() == reflect.String:
		t, err := time.Parse(time.RFC3339, strings.TrimSpace(sv.String()))
		if err != nil {
			return errors.Wrapf(err, "cannot parse %q as RFC3339 time", sv.String())
		}
		dst.Set(reflect.ValueOf(t))
	default:
		return errors.Errorf("cannot convert %v to time", sv.Type())
	}
	return nil
}

func isNumber(kind reflect.Kind) bool {
	switch kind {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

// isLeaf 判断目标类型是否按基本值处理
func isLeaf(t reflect.Type) bool {
	return t == durationType || t == timeType ||
		(t.Kind() != reflect.Struct && t.Kind() != reflect.Map && t.Kind() != reflect.Slice &&
			t.Kind() != reflect.Ptr && t.Kind() != reflect.Interface)
}
