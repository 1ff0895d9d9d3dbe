package entity

import "fmt"

// Handle 实体弱引用：槽位索引 + 代数
// 零值表示无效句柄，代数从 1 开始
type Handle struct {
	Index uint32 `json:"index" codec:"index"`
	Gen   uint32 `json:"gen" codec:"gen"`
}

// Nil 无效句柄
var Nil = Handle{}

// IsNil 是否为无效句柄
func (h Handle) IsNil() bool {
	return h.Gen == 0
}

func (h Handle) String() string {
	if h.IsNil() {
		return "nil"
	}
	return fmt.Sprintf("%d:%d", h.Index, h.Gen)
}
