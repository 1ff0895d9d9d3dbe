// Package gameconfig 从数据目录加载 JSON 配置表
//
// 每张表是一个 JSON 数组文件 <table>.json，每行解码为一个结构体，
// 解码使用 mapstructure（支持 "1.5s" 形式的时长），随后做 validator 校验。
package gameconfig

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"

	"github.com/lk2023060901/xdooria-combat/pkg/config"
	"github.com/lk2023060901/xdooria-combat/pkg/logger"
)

// ErrDuplicateKey 表内主键重复
var ErrDuplicateKey = errors.New("gameconfig: duplicate key")

// JsonLoader 按表名返回原始行
type JsonLoader func(table string) ([]map[string]any, error)

// NewFileJsonLoader 创建本地文件 JSON 加载器，缺失的表视为空表
func NewFileJsonLoader(dataDir string, l logger.Logger) JsonLoader {
	if l == nil {
		l = logger.NewNoop()
	}

	return func(table string) ([]map[string]any, error) {
		path := filepath.Join(dataDir, table+".json")

		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				l.Warn("optional config file not found, initializing as empty", "table", table, "path", path)
				return nil, nil
			}
			return nil, errors.Wrapf(err, "failed to read config file %s", path)
		}

		var rows []map[string]any
		if err := json.Unmarshal(data, &rows); err != nil {
			return nil, errors.Wrapf(err, "failed to unmarshal config file %s", path)
		}
		return rows, nil
	}
}

// Table 已解码的配置表，保留声明顺序
type Table[T any] struct {
	Name  string
	Rows  []*T
	index map[string]*T
}

// Get 按主键查找
func (t *Table[T]) Get(key string) (*T, bool) {
	v, ok := t.index[key]
	return v, ok
}

// Len 行数
func (t *Table[T]) Len() int {
	return len(t.Rows)
}

// LoadTable 加载并校验一张表，key 返回行主键
func LoadTable[T any](load JsonLoader, name string, key func(*T) string) (*Table[T], error) {
	raw, err := load(name)
	if err != nil {
		return nil, err
	}

	t := &Table[T]{
		Name:  name,
		Rows:  make([]*T, 0, len(raw)),
		index: make(map[string]*T, len(raw)),
	}
	for i, row := range raw {
		v := new(T)
		if err := config.Decode(row, v); err != nil {
			return nil, errors.Wrapf(err, "%s[%d]", name, i)
		}
		if err := config.Validate(v); err != nil {
			return nil, errors.Wrapf(err, "%s[%d]", name, i)
		}

		k := key(v)
		if _, dup := t.index[k]; dup {
			return nil, errors.Wrapf(ErrDuplicateKey, "%s[%d] %q", name, i, k)
		}
		t.index[k] = v
		t.Rows = append(t.Rows, v)
	}
	return t, nil
}
