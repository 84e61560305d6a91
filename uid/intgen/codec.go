package intgen

import "time"

// Epoch 时间戳字段的起始纪元（毫秒）
const Epoch int64 = 1674484829053

const (
	sequenceBits  = 12
	instanceBits  = 10
	timestampBits = 41

	maxSequence  = (1 << sequenceBits) - 1  // 4095
	maxInstance  = (1 << instanceBits) - 1  // 1023
	maxTimestamp = (1 << timestampBits) - 1 // 约 69.7 年

	instanceShift  = sequenceBits
	timestampShift = sequenceBits + instanceBits
)

// 以下函数只处理 Next 生成的 ID，不做任何校验

// RelativeTimestamp 返回相对 Epoch 的毫秒数
func RelativeTimestamp(id int64) int64 {
	return id >> timestampShift
}

// Timestamp 返回 Unix 毫秒时间戳
func Timestamp(id int64) int64 {
	return RelativeTimestamp(id) + Epoch
}

// Instance 返回生成该 ID 的实例编号
func Instance(id int64) int64 {
	return (id >> instanceShift) & maxInstance
}

// Sequence 返回同一毫秒内的序列号
func Sequence(id int64) int64 {
	return id & maxSequence
}

// Time 返回 ID 的生成时间
func Time(id int64) time.Time {
	return time.UnixMilli(Timestamp(id))
}

// Components ID 拆解后的各个字段
type Components struct {
	RelativeTimestamp int64 `json:"relativeTimestamp"`
	Timestamp         int64 `json:"timestamp"`
	Instance          int64 `json:"instance"`
	Sequence          int64 `json:"sequence"`
}

func Decompose(id int64) Components {
	return Components{
		RelativeTimestamp: RelativeTimestamp(id),
		Timestamp:         Timestamp(id),
		Instance:          Instance(id),
		Sequence:          Sequence(id),
	}
}

// Compose 按 1 位符号 + 41 位时间戳 + 10 位实例 + 12 位序列号 组装 ID
func Compose(relativeTimestamp, instance, sequence int64) int64 {
	return (relativeTimestamp << timestampShift) | (instance << instanceShift) | sequence
}
