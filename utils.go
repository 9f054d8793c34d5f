package vfields

import (
	"context"
	"reflect"
	"strings"

	"www.velocidex.com/golang/vfilter"
)

// to_int64 accepts any integer, float or bool, or a pointer to one.
func to_int64(x interface{}) (int64, bool) {
	value := reflect.ValueOf(x)
	if value.Kind() == reflect.Ptr {
		if value.IsNil() {
			return 0, false
		}
		value = value.Elem()
	}

	switch value.Kind() {
	case reflect.Bool:
		if value.Bool() {
			return 1, true
		}
		return 0, true

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return value.Int(), true

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32,
		reflect.Uint64, reflect.Uintptr:
		return int64(value.Uint()), true

	case reflect.Float32, reflect.Float64:
		return int64(value.Float()), true
	}
	return 0, false
}

// Some helpers, all in bytes.

func SizeOf(obj interface{}) int {
	switch t := obj.(type) {
	case Field:
		size, err := t.Size()
		if err != nil {
			return 0
		}
		return int(size / 8)

	case Sizer:
		return t.Size()
	}
	return 0
}

func StartOf(obj interface{}) int64 {
	field, ok := obj.(Field)
	if ok {
		return field.AbsoluteAddress() / 8
	}
	return 0
}

func EndOf(obj interface{}) int64 {
	field, ok := obj.(Field)
	if ok {
		return StartOf(field) + int64(SizeOf(field))
	}
	return 0
}

func Associative(scope vfilter.Scope, a vfilter.Any, field string) vfilter.Any {
	var result vfilter.Any = a
	var ok bool

	for _, item := range strings.Split(field, ".") {
		result, ok = scope.Associative(result, item)
		if !ok {
			return vfilter.Null{}
		}
	}
	return result
}

// IsNil is true for nil interfaces and typed nil pointers.
func IsNil(v interface{}) bool {
	if v == nil {
		return true
	}
	value := reflect.ValueOf(v)
	return value.Kind() == reflect.Ptr && value.IsNil()
}

func EvalLambda(expression *vfilter.Lambda, scope vfilter.Scope) vfilter.Any {
	this_obj, pres := scope.Resolve("this")
	if !pres {
		return vfilter.Null{}
	}

	return expression.Reduce(context.Background(), scope, []vfilter.Any{this_obj})
}

func EvalLambdaAsInt64(expression *vfilter.Lambda, scope vfilter.Scope) int64 {
	result_int, _ := to_int64(EvalLambda(expression, scope))
	return result_int
}
