package config

import (
	"fmt"
	"reflect"
)

// MergeConfig 将 src 中的非零值覆盖到 dst 上并返回 dst
// dst 为 nil 时返回 src，src 为 nil 时返回 dst，两者都为 nil 时报错
// 组件构造函数统一用 MergeConfig(DefaultConfig(), cfg) 补齐默认值
func MergeConfig[T any](dst, src *T) (*T, error) {
	switch {
	case dst == nil && src == nil:
		return nil, ErrNilConfig
	case dst == nil:
		return src, nil
	case src == nil:
		return dst, nil
	}

	if err := mergeValue(reflect.ValueOf(dst).Elem(), reflect.ValueOf(src).Elem()); err != nil {
		return nil, err
	}
	return dst, nil
}

func mergeValue(dst, src reflect.Value) error {
	if !src.IsValid() || src.IsZero() {
		return nil
	}

	switch dst.Kind() {
	case reflect.Struct:
		t := src.Type()
		for i := 0; i < src.NumField(); i++ {
			field := t.Field(i)
			if !field.IsExported() {
				continue
			}
			df := dst.FieldByName(field.Name)
			if !df.IsValid() || !df.CanSet() {
				continue
			}
			if err := mergeValue(df, src.Field(i)); err != nil {
				return fmt.Errorf("failed to merge field %s: %w", field.Name, err)
			}
		}
	case reflect.Map:
		if dst.IsNil() {
			dst.Set(reflect.MakeMap(dst.Type()))
		}
		iter := src.MapRange()
		for iter.Next() {
			key, sv := iter.Key(), iter.Value()
			dv := dst.MapIndex(key)
			if !dv.IsValid() {
				dst.SetMapIndex(key, sv)
				continue
			}
			merged := reflect.New(dst.Type().Elem()).Elem()
			merged.Set(dv)
			if err := mergeValue(merged, sv); err != nil {
				return err
			}
			dst.SetMapIndex(key, merged)
		}
	case reflect.Ptr:
		if dst.IsNil() {
			dst.Set(reflect.New(dst.Type().Elem()))
		}
		return mergeValue(dst.Elem(), src.Elem())
	default:
		// 基本类型与切片整体覆盖
		if dst.CanSet() {
			dst.Set(src)
		}
	}
	return nil
}
