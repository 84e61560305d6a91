package ref

import (
	"fmt"
	"reflect"
	"sync"
)

// TypeOptions 描述一个可以通过注册表构建的组件
// Namespace 通常是包路径，Type 是类型名，Options 是构造函数的参数
type TypeOptions struct {
	Namespace string `cfg:"namespace"`
	Type      string `cfg:"type"`
	Options   any    `cfg:"options"`
}

// Convertable 可以转换成构造函数参数类型的配置数据
// cfg 的 Storage 实现了此接口，因此可以直接把配置子树作为 Options 传入
type Convertable interface {
	ConvertTo(object any) error
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()

type constructor struct {
	fn           reflect.Value
	paramType    reflect.Type // nil 表示无参构造函数
	returnsError bool
}

func newConstructor(newFunc any) (*constructor, error) {
	fn := reflect.ValueOf(newFunc)
	if fn.Kind() != reflect.Func {
		return nil, fmt.Errorf("newFunc must be a function, got %T", newFunc)
	}

	ft := fn.Type()
	if ft.NumIn() > 1 {
		return nil, fmt.Errorf("newFunc must have 0 or 1 input parameters, got %d", ft.NumIn())
	}
	if ft.NumOut() != 1 && ft.NumOut() != 2 {
		return nil, fmt.Errorf("newFunc must have 1 or 2 return values, got %d", ft.NumOut())
	}
	if ft.NumOut() == 2 && !ft.Out(1).Implements(errorType) {
		return nil, fmt.Errorf("second return value must be error type")
	}

	c := &constructor{fn: fn, returnsError: ft.NumOut() == 2}
	if ft.NumIn() == 1 {
		c.paramType = ft.In(0)
	}
	return c, nil
}

func (c *constructor) call(options any) (any, error) {
	var args []reflect.Value
	if c.paramType != nil {
		arg, err := c.prepareArg(options)
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
	}

	results := c.fn.Call(args)
	if c.returnsError && !results[1].IsNil() {
		return nil, results[1].Interface().(error)
	}
	if isNilValue(results[0]) {
		return nil, nil
	}
	return results[0].Interface(), nil
}

// prepareArg 准备构造函数参数
// nil 对指针参数传零值指针，Convertable 按参数类型转换，其余要求类型可赋值
func (c *constructor) prepareArg(options any) (reflect.Value, error) {
	if options == nil {
		if c.paramType.Kind() == reflect.Ptr {
			return reflect.Zero(c.paramType), nil
		}
		return reflect.Value{}, fmt.Errorf("constructor requires options of type %v but got nil", c.paramType)
	}

	if convertable, ok := options.(Convertable); ok && !reflect.TypeOf(options).AssignableTo(c.paramType) {
		if c.paramType.Kind() == reflect.Ptr {
			target := reflect.New(c.paramType.Elem())
			if err := convertable.ConvertTo(target.Interface()); err != nil {
				return reflect.Value{}, fmt.Errorf("failed to convert options to %v: %w", c.paramType, err)
			}
			return target, nil
		}
		target := reflect.New(c.paramType)
		if err := convertable.ConvertTo(target.Interface()); err != nil {
			return reflect.Value{}, fmt.Errorf("failed to convert options to %v: %w", c.paramType, err)
		}
		return target.Elem(), nil
	}

	value := reflect.ValueOf(options)
	if !value.Type().AssignableTo(c.paramType) {
		return reflect.Value{}, fmt.Errorf("options of type %T is not assignable to %v", options, c.paramType)
	}
	return value, nil
}

func isNilValue(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return v.IsNil()
	}
	return false
}

var registry sync.Map // namespace:type -> *constructor

func registryKey(namespace, type_ string) string {
	return namespace + ":" + type_
}

// Register 注册构造函数
// 构造函数形如 func() T、func(options) T、func() (T, error) 或 func(options) (T, error)
// 同一个 key 重复注册同一个函数会被忽略，注册不同函数返回错误
func Register(namespace string, type_ string, newFunc any) error {
	c, err := newConstructor(newFunc)
	if err != nil {
		return fmt.Errorf("failed to create constructor for %s: %w", registryKey(namespace, type_), err)
	}

	existing, loaded := registry.LoadOrStore(registryKey(namespace, type_), c)
	if loaded && existing.(*constructor).fn.Pointer() != c.fn.Pointer() {
		return fmt.Errorf("constructor for %s already registered with different function", registryKey(namespace, type_))
	}
	return nil
}

// RegisterT 以 T 的包路径和类型名注册构造函数
func RegisterT[T any](newFunc any) error {
	namespace, type_, err := typeKey[T]()
	if err != nil {
		return err
	}
	return Register(namespace, type_, newFunc)
}

func MustRegister(namespace string, type_ string, newFunc any) {
	if err := Register(namespace, type_, newFunc); err != nil {
		panic(err)
	}
}

func MustRegisterT[T any](newFunc any) {
	if err := RegisterT[T](newFunc); err != nil {
		panic(err)
	}
}

// New 调用已注册的构造函数创建对象
func New(namespace string, type_ string, options any) (any, error) {
	value, ok := registry.Load(registryKey(namespace, type_))
	if !ok {
		return nil, fmt.Errorf("constructor not found for %s", registryKey(namespace, type_))
	}
	return value.(*constructor).call(options)
}

// NewT 以 T 的包路径和类型名查找构造函数，并把结果断言为 T
func NewT[T any](options any) (T, error) {
	var zero T
	namespace, type_, err := typeKey[T]()
	if err != nil {
		return zero, err
	}

	obj, err := New(namespace, type_, options)
	if err != nil {
		return zero, err
	}
	result, ok := obj.(T)
	if !ok {
		return zero, fmt.Errorf("created object %T is not of type %T", obj, zero)
	}
	return result, nil
}

func typeKey[T any]() (string, string, error) {
	t := reflect.TypeOf((*T)(nil)).Elem()
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.PkgPath() == "" || t.Name() == "" {
		return "", "", fmt.Errorf("cannot determine package path or type name for type %v", t)
	}
	return t.PkgPath(), t.Name(), nil
}
