package rembg

import (
	"context"
	"errors"
)

// ErrRemovalFailed 统一包装外部抠图模型的一切失败（加载、不支持的输入、内部错误）
var ErrRemovalFailed = errors.New("background removal failed")

// Config 抠图调用的固定配置，不暴露给用户修改
type Config struct {
	Format  string // 输出编码，无损
	Quality int    // 最高质量
	Device  string // cpu 推理
	Rescale bool   // 是否允许模型内部缩放
}

func DefaultConfig() Config {
	return Config{
		Format:  "png",
		Quality: 100,
		Device:  "cpu",
		Rescale: false,
	}
}

//go:generate mockgen -destination=mocks/remover.go -package=mocks . Remover
type Remover interface {
	Remove(ctx context.Context, blob []byte, cfg Config) ([]byte, error)
}
