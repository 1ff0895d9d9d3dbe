package idgen

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/sony/sonyflake"
)

// Config 生成器配置
type Config struct {
	// 机器ID (0-65535)，同一集群内各节点不得重复
	MachineID uint16 `mapstructure:"machine_id" json:"machine_id"`

	// 纪元起点
	StartTime time.Time `mapstructure:"start_time" json:"start_time"`
}

// DefaultEpoch 默认纪元
var DefaultEpoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

type sonyflakeGenerator struct {
	sf *sonyflake.Sonyflake
}

// NewSonyflake 创建基于 Sonyflake 的ID生成器
func NewSonyflake(cfg Config) (Generator, error) {
	start := cfg.StartTime
	if start.IsZero() {
		start = DefaultEpoch
	}
	if start.After(time.Now()) {
		return nil, errors.Newf("start time %s is in the future", start.Format(time.RFC3339))
	}

	machineID := cfg.MachineID
	sf := sonyflake.NewSonyflake(sonyflake.Settings{
		StartTime: start,
		MachineID: func() (uint16, error) {
			return machineID, nil
		},
	})
	if sf == nil {
		return nil, errors.New("failed to create sonyflake generator")
	}

	return &sonyflakeGenerator{sf: sf}, nil
}

func (g *sonyflakeGenerator) NextID() (uint64, error) {
	id, err := g.sf.NextID()
	if err != nil {
		return 0, errors.Wrap(err, "failed to generate id")
	}
	return id, nil
}

// MachineOf 解析ID中的机器号
func MachineOf(id uint64) uint16 {
	return uint16(sonyflake.Decompose(id)["machine-id"])
}
