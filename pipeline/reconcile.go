package pipeline

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"golang.org/x/image/draw"
)

// maxSurfacePixels 单次导出允许的最大像素面积，异常目标尺寸直接拒绝
const maxSurfacePixels = 64 << 20

// Reconciler 把模型输出的尺寸拉回原图尺寸
// 模型推理时可能内部缩放，输出分辨率不保证等于输入，
// 对外承诺的"输出尺寸 == 输入尺寸"由这里兜底
type Reconciler struct {
	previews *PreviewManager
}

func NewReconciler(previews *PreviewManager) *Reconciler {
	return &Reconciler{previews: previews}
}

// Reconcile 保证返回的 blob 解码后恰好是 targetW x targetH
// 尺寸已一致时原样返回（不重新编码）；
// 否则在全透明表面上拉伸铺满后重新导出 PNG（不保纵横比）
func (r *Reconciler) Reconcile(outputBlob []byte, targetW, targetH int) ([]byte, error) {
	if targetW <= 0 || targetH <= 0 || targetW*targetH > maxSurfacePixels {
		return nil, fmt.Errorf("%w: target %dx%d", ErrSurfaceUnavailable, targetW, targetH)
	}

	// 测量用的临时句柄，成功失败都要释放
	p, err := r.previews.Create(outputBlob)
	if err != nil {
		return nil, err
	}
	defer r.previews.Release(p.Ref)

	if p.Width == targetW && p.Height == targetH {
		return outputBlob, nil
	}

	src, _, err := image.Decode(bytes.NewReader(outputBlob))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	// NRGBA 零值即全透明
	dst := image.NewNRGBA(image.Rect(0, 0, targetW, targetH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncode, err)
	}
	return buf.Bytes(), nil
}
