package debate

import "time"

// Config 编排器配置
type Config struct {
	// GlobalTimeout 整场辩论的总预算,0 表示不限
	GlobalTimeout time.Duration `yaml:"global_timeout" json:"global_timeout"`

	// StageTimeout 提案与改进阶段的扇出预算
	StageTimeout time.Duration `yaml:"stage_timeout" json:"stage_timeout"`

	// Quorum 有效共识所需的最少存活 Agent 数;计划本身小于该值时
	// 以计划规模为准
	Quorum int `yaml:"quorum" json:"quorum"`

	// ConfidenceThreshold 低于此置信度的结果不写缓存,0 表示全部缓存
	ConfidenceThreshold float64 `yaml:"confidence_threshold" json:"confidence_threshold"`

	// EventBuffer 进度事件缓冲大小,满时丢最旧
	EventBuffer int `yaml:"event_buffer" json:"event_buffer"`
}

// DefaultConfig 返回默认编排配置
func DefaultConfig() Config {
	return Config{
		GlobalTimeout: 10 * time.Minute,
		StageTimeout:  2 * time.Minute,
		Quorum:        3,
		EventBuffer:   256,
	}
}
