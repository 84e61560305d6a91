package storage

import (
	"reflect"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/pkg/errors"
)

// FlatStorage 扁平 key-value 存储，用于环境变量和命令行参数等没有层级结构的数据
// 字段路径按 separator 拼接，uppercase 时路径中的驼峰名转换为大写下划线形式，kebab 时转换为小写中划线形式
//
//	data := map[string]any{
//		"MACHINE_INSTANCE_IDENTIFIER": "1",
//		"UID_OVERFLOW_WAIT":           "1s",
//	}
type FlatStorage struct {
	data      map[string]any
	separator string
	uppercase bool
	kebab     bool

	prefix []string
}

func NewFlatStorage(data map[string]any) *FlatStorage {
	return &FlatStorage{
		data:      data,
		separator: ".",
	}
}

func (fs *FlatStorage) WithSeparator(sep string) *FlatStorage {
	fs.separator = sep
	return fs
}

func (fs *FlatStorage) WithUppercase(enable bool) *FlatStorage {
	fs.uppercase = enable
	return fs
}

// WithKebab machineInstanceIdentifier -> machine-instance-identifier
func (fs *FlatStorage) WithKebab(enable bool) *FlatStorage {
	fs.kebab = enable
	return fs
}

func (fs *FlatStorage) Data() map[string]any {
	return fs.data
}

func (fs *FlatStorage) Sub(key string) Storage {
	if key == "" {
		return fs
	}
	return fs.derive(append(append([]string{}, fs.prefix...), parseKey(key)...))
}

func (fs *FlatStorage) derive(prefix []string) *FlatStorage {
	return &FlatStorage{
		data:      fs.data,
		separator: fs.separator,
		uppercase: fs.uppercase,
		kebab:     fs.kebab,
		prefix:    prefix,
	}
}

func (fs *FlatStorage) ConvertTo(object any) error {
	rv := reflect.ValueOf(object)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return errors.New("object must be a non-nil pointer")
	}
	return fs.convertValue(fs.prefix, rv.Elem())
}

// key 将路径转换为实际存储的 key
func (fs *FlatStorage) key(path []string) string {
	parts := make([]string, len(path))
	for i, p := range path {
		if fs.uppercase {
			p = toUpperSnake(p)
		} else if fs.kebab {
			p = toLowerKebab(p)
		}
		parts[i] = p
	}
	return strings.Join(parts, fs.separator)
}

// exists 判断路径本身或路径下的任意子路径是否存在
func (fs *FlatStorage) exists(path []string) bool {
	if len(path) == 0 {
		return len(fs.data) > 0
	}
	key := fs.key(path)
	if _, ok := fs.data[key]; ok {
		return true
	}
	for k := range fs.data {
		if strings.HasPrefix(k, key+fs.separator) {
			return true
		}
	}
	return false
}

func (fs *FlatStorage) convertValue(path []string, dst reflect.Value) error {
	if dst.Type() == typeOptionsType {
		return fs.convertTypeOptions(path, dst)
	}

	switch dst.Kind() {
	case reflect.Ptr:
		// 基本类型只看 key 本身，MACHINE_INSTANCE_IDENTIFIER_BACKUP 不代表 MACHINE_INSTANCE_IDENTIFIER 存在
		if isLeaf(dst.Type().Elem()) {
			if _, ok := fs.data[fs.key(path)]; !ok || len(path) == 0 {
				return nil
			}
		} else if !fs.exists(path) {
			return nil
		}
		if dst.IsNil() {
			dst.Set(reflect.New(dst.Type().Elem()))
			if err := setDefaults(dst); err != nil {
				return err
			}
		}
		return fs.convertValue(path, dst.Elem())
	case reflect.Struct:
		if dst.Type() != timeType {
			return fs.convertStruct(path, dst)
		}
	case reflect.Slice:
		return fs.convertSlice(path, dst)
	case reflect.Map:
		return fs.convertMap(path, dst)
	case reflect.Interface:
		if dst.Type().NumMethod() != 0 {
			return errors.Errorf("cannot convert to non-empty interface %v", dst.Type())
		}
		if value, ok := fs.data[fs.key(path)]; ok {
			dst.Set(reflect.ValueOf(value))
		}
		return nil
	}

	if len(path) == 0 {
		return errors.Errorf("cannot convert root of flat storage to %v", dst.Type())
	}
	value, ok := fs.data[fs.key(path)]
	if !ok {
		return nil
	}
	if err := convertBasic(value, dst); err != nil {
		return errors.WithMessagef(err, "key %s", fs.key(path))
	}
	return nil
}

func (fs *FlatStorage) convertStruct(path []string, dst reflect.Value) error {
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
		if err := fs.convertValue(append(append([]string{}, path...), name), fv); err != nil {
			return err
		}
	}
	return nil
}

func (fs *FlatStorage) convertTypeOptions(path []string, dst reflect.Value) error {
	sub := func(name string) []string { return append(append([]string{}, path...), name) }
	if err := fs.convertValue(sub("namespace"), dst.FieldByName("Namespace")); err != nil {
		return err
	}
	if err := fs.convertValue(sub("type"), dst.FieldByName("Type")); err != nil {
		return err
	}
	if fs.exists(sub("options")) {
		dst.FieldByName("Options").Set(reflect.ValueOf(NewValidateStorage(fs.derive(sub("options")))))
	}
	return nil
}

// convertSlice 数组元素以 _0、_1 形式的下标存储，遇到第一个缺失的下标结束
func (fs *FlatStorage) convertSlice(path []string, dst reflect.Value) error {
	var items []reflect.Value
	for i := 0; ; i++ {
		elemPath := append(append([]string{}, path...), strconv.Itoa(i))
		if !fs.exists(elemPath) {
			break
		}
		elem := reflect.New(dst.Type().Elem()).Elem()
		if err := fs.convertValue(elemPath, elem); err != nil {
			return err
		}
		items = append(items, elem)
	}
	if len(items) == 0 {
		return nil
	}
	slice := reflect.MakeSlice(dst.Type(), len(items), len(items))
	for i, item := range items {
		slice.Index(i).Set(item)
	}
	dst.Set(slice)
	return nil
}

// convertMap 只支持值为基本类型的 map，前缀之后的剩余部分作为 map 的 key
func (fs *FlatStorage) convertMap(path []string, dst reflect.Value) error {
	if dst.Type().Key().Kind() != reflect.String || !isLeaf(dst.Type().Elem()) {
		return errors.Errorf("unsupported map type %v in flat storage", dst.Type())
	}

	prefix := ""
	if len(path) > 0 {
		prefix = fs.key(path) + fs.separator
	}
	keys := make([]string, 0, len(fs.data))
	for k := range fs.data {
		if strings.HasPrefix(k, prefix) && len(k) > len(prefix) {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return nil
	}
	sort.Strings(keys)

	if dst.IsNil() {
		dst.Set(reflect.MakeMapWithSize(dst.Type(), len(keys)))
	}
	for _, k := range keys {
		elem := reflect.New(dst.Type().Elem()).Elem()
		if err := convertBasic(fs.data[k], elem); err != nil {
			return errors.WithMessagef(err, "key %s", k)
		}
		dst.SetMapIndex(reflect.ValueOf(k[len(prefix):]).Convert(dst.Type().Key()), elem)
	}
	return nil
}

// toUpperSnake machineInstanceIdentifier -> MACHINE_INSTANCE_IDENTIFIER
// 已经是大写或下划线形式的名字保持不变
func toUpperSnake(name string) string {
	return splitWords(name, '_', unicode.ToUpper)
}

// toLowerKebab machineInstanceIdentifier -> machine-instance-identifier
func toLowerKebab(name string) string {
	return splitWords(name, '-', unicode.ToLower)
}

func splitWords(name string, sep byte, mapping func(rune) rune) string {
	var b strings.Builder
	runes := []rune(name)
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) && (unicode.IsLower(runes[i-1]) ||
			(i+1 < len(runes) && unicode.IsLower(runes[i+1]) && unicode.IsUpper(runes[i-1]))) {
			b.WriteByte(sep)
		}
		b.WriteRune(mapping(r))
	}
	return b.String()
}
