package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/chaos-io/bgstrip/pipeline/rembg"
	"github.com/chaos-io/bgstrip/util"
)

type State string

const (
	StateIdle        State = "idle"
	StatePreviewing  State = "previewing"
	StateRemoving    State = "removing"
	StateReconciling State = "reconciling"
	StateDone        State = "done"
	StateErrored     State = "errored"
)

// 统一的用户可见失败文案，与类型校验的提示区分开；细节只进日志
const genericErrorMessage = "processing failed, please try a different image"

// Snapshot 对外只读的处理器状态
type Snapshot struct {
	State     State    `json:"state"`
	Original  *Preview `json:"original,omitempty"`
	Processed *Preview `json:"processed,omitempty"`
	BaseName  string   `json:"baseName,omitempty"`
	Error     string   `json:"error,omitempty"`
}

// Processor 串起一次"上传 -> 抠图 -> 尺寸归一 -> 结果"的完整生命周期
// 单飞：后发起的周期取代先发起的；外部抠图调用无法真正取消，
// 靠单调递增的 cycle 令牌在提交点拦截过期结果
type Processor struct {
	mu         sync.Mutex
	previews   *PreviewManager
	reconciler *Reconciler
	remover    rembg.Remover
	cfg        rembg.Config

	cycle         uint64
	state         State
	original      *Preview
	processed     *Preview
	processedData []byte
	baseName      string
	errMsg        string
	touched       time.Time
}

func NewProcessor(previews *PreviewManager, remover rembg.Remover) *Processor {
	return &Processor{
		previews:   previews,
		reconciler: NewReconciler(previews),
		remover:    remover,
		cfg:        rembg.DefaultConfig(),
		state:      StateIdle,
		touched:    time.Now(),
	}
}

// SelectFile 处理一次用户选择的文件
// 类型不对立即拒绝且不改状态；其余失败统一进 Errored 并释放本周期的全部句柄
// 状态只在三个原子点提交：重置 / 原图预览就绪 / 全流程完成
func (p *Processor) SelectFile(ctx context.Context, name, declaredType string, blob []byte) error {
	defer util.Trace("process image")()

	if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(declaredType)), "image/") {
		return fmt.Errorf("%w: %q", ErrInvalidInputType, declaredType)
	}

	p.mu.Lock()
	p.cycle++
	token := p.cycle
	p.releaseLocked()
	p.state = StatePreviewing
	p.errMsg = ""
	p.baseName = deriveBaseName(name)
	p.touched = time.Now()
	p.mu.Unlock()

	original, err := p.previews.Create(blob)
	if err != nil {
		p.fail(token, err)
		return err
	}
	if !p.commitOriginal(token, original) {
		// 已被更新的周期取代，丢弃本次成果
		p.previews.Release(original.Ref)
		return nil
	}

	removed, err := p.remover.Remove(ctx, blob, p.cfg)
	if err != nil {
		p.fail(token, err)
		return err
	}
	if !p.setState(token, StateReconciling) {
		return nil
	}

	reconciled, err := p.reconciler.Reconcile(removed, original.Width, original.Height)
	if err != nil {
		p.fail(token, err)
		return err
	}

	processed, err := p.previews.Create(reconciled)
	if err != nil {
		p.fail(token, err)
		return err
	}
	if !p.commitDone(token, processed, reconciled) {
		p.previews.Release(processed.Ref)
	}
	return nil
}

// Reset 释放当前全部句柄回到 Idle；在飞的周期会因令牌失效被丢弃
func (p *Processor) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.cycle++
	p.releaseLocked()
	p.state = StateIdle
	p.errMsg = ""
	p.baseName = ""
	p.touched = time.Now()
}

// Download 只在 Done 状态有效
func (p *Processor) Download() (string, []byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != StateDone || p.processedData == nil {
		return "", nil, ErrNotReady
	}

	base := p.baseName
	if base == "" {
		base = "image"
	}
	p.touched = time.Now()
	return base + "-transparent.png", p.processedData, nil
}

func (p *Processor) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Snapshot{
		State:     p.state,
		Original:  p.original,
		Processed: p.processed,
		BaseName:  p.baseName,
		Error:     p.errMsg,
	}
}

func (p *Processor) LastActive() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.touched
}

func (p *Processor) commitOriginal(token uint64, original *Preview) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if token != p.cycle {
		return false
	}
	p.original = original
	p.state = StateRemoving
	return true
}

func (p *Processor) setState(token uint64, s State) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if token != p.cycle {
		return false
	}
	p.state = s
	return true
}

func (p *Processor) commitDone(token uint64, processed *Preview, data []byte) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if token != p.cycle {
		return false
	}
	p.processed = processed
	p.processedData = data
	p.state = StateDone
	p.touched = time.Now()
	return true
}

// fail 过期周期的失败不落地；当前周期的失败释放所有部分成果再进 Errored
func (p *Processor) fail(token uint64, cause error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if token != p.cycle {
		slog.Debug("superseded cycle failed, dropped", "cycle", token, "error", cause)
		return
	}

	slog.Error("processing cycle failed", "cycle", token, "baseName", p.baseName, "error", cause)
	p.releaseLocked()
	p.state = StateErrored
	p.errMsg = genericErrorMessage
}

// releaseLocked 释放当前持有的两张预览，须持锁调用
// 不变式：processedData 与 processed 同生共死
func (p *Processor) releaseLocked() {
	if p.original != nil {
		p.previews.Release(p.original.Ref)
		p.original = nil
	}
	if p.processed != nil {
		p.previews.Release(p.processed.Ref)
		p.processed = nil
	}
	p.processedData = nil
}

// deriveBaseName 去掉扩展名；没有可用文件名时回退到时间戳
func deriveBaseName(name string) string {
	name = strings.TrimSpace(filepath.Base(name))
	if ext := filepath.Ext(name); ext != "" {
		name = strings.TrimSuffix(name, ext)
	}
	if name == "" || name == "." || name == string(filepath.Separator) {
		return fmt.Sprintf("image-%d", time.Now().UnixMilli())
	}
	return name
}
