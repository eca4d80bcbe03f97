package pipeline

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"sync"
	"time"

	_ "image/gif"
	_ "image/jpeg"

	"github.com/nfnt/resize"
	"github.com/segmentio/ksuid"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// Preview 一张已解码测量过的图片：句柄 + 原始像素尺寸
type Preview struct {
	Ref    string `json:"ref"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type previewEntry struct {
	data    []byte
	touched time.Time
}

// PreviewManager 显式的二进制句柄表（浏览器 object-URL 注册表的等价物）
// 每次 Create 必须配对恰好一次 Release，包括错误路径
type PreviewManager struct {
	mu       sync.Mutex
	entries  map[string]*previewEntry
	created  uint64
	released uint64
}

func NewPreviewManager() *PreviewManager {
	return &PreviewManager{entries: make(map[string]*previewEntry)}
}

// Create 为 blob 分配句柄并解码出原始宽高
// 解码失败时先释放本次分配的句柄再返回错误，不留悬挂引用
func (m *PreviewManager) Create(blob []byte) (*Preview, error) {
	ref := m.acquire(blob)

	cfg, _, err := image.DecodeConfig(bytes.NewReader(blob))
	if err != nil {
		m.Release(ref)
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	return &Preview{Ref: ref, Width: cfg.Width, Height: cfg.Height}, nil
}

// Release 幂等释放；空句柄为 no-op
func (m *PreviewManager) Release(ref string) {
	if ref == "" {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[ref]; ok {
		delete(m.entries, ref)
		m.released++
	}
}

// Get 取句柄对应的原始字节
func (m *PreviewManager) Get(ref string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[ref]
	if !ok {
		return nil, false
	}
	e.touched = time.Now()
	return e.data, true
}

// Thumbnail 生成展示用缩略图（最长边 <= maxSize），PNG 编码
func (m *PreviewManager) Thumbnail(ref string, maxSize int) ([]byte, error) {
	blob, ok := m.Get(ref)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRef, ref)
	}

	img, _, err := image.Decode(bytes.NewReader(blob))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	if longest := max(w, h); maxSize > 0 && longest > maxSize {
		scale := float64(maxSize) / float64(longest)
		img = resize.Resize(uint(float64(w)*scale), uint(float64(h)*scale), img, resize.Lanczos3)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncode, err)
	}
	return buf.Bytes(), nil
}

// Stats 累计的分配/释放次数，用于泄漏检查
func (m *PreviewManager) Stats() (created, released uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.created, m.released
}

// Live 仍存活的句柄数
func (m *PreviewManager) Live() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// SweepOlderThan 释放超过 age 未被访问的句柄，返回释放个数
// age <= 0 表示全部释放
func (m *PreviewManager) SweepOlderThan(age time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	now := time.Now()
	for ref, e := range m.entries {
		if age <= 0 || now.Sub(e.touched) > age {
			delete(m.entries, ref)
			m.released++
			n++
		}
	}
	return n
}

func (m *PreviewManager) acquire(blob []byte) string {
	ref := ksuid.New().String()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[ref] = &previewEntry{data: blob, touched: time.Now()}
	m.created++
	return ref
}
