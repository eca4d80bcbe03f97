package pipeline

import "errors"

var (
	// ErrInvalidInputType 非图片文件，在任何处理开始前拒绝
	ErrInvalidInputType = errors.New("input is not an image")

	// ErrDecode 字节流无法按图片解码/测量
	ErrDecode = errors.New("image decode failed")

	// ErrSurfaceUnavailable 无法分配目标尺寸的绘制表面
	ErrSurfaceUnavailable = errors.New("drawing surface unavailable")

	// ErrEncode 导出编码失败
	ErrEncode = errors.New("image encode failed")

	// ErrUnknownRef 句柄不存在或已释放
	ErrUnknownRef = errors.New("unknown preview reference")

	// ErrNotReady 当前状态没有可下载的结果
	ErrNotReady = errors.New("no processed result available")
)
