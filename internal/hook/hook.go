// Package hook 提供记录保存后的同步副作用分发。
//
// 约定：
//   - Fire 在保存请求内联执行，全部处理器跑完才返回。
//   - 单个处理器的错误或 panic 只记录日志，不影响其他处理器，也不影响已完成的保存。
package hook

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	"go.uber.org/zap"
)

// Event 事件名
type Event string

const (
	MemberCreated   Event = "member.created"
	ClaimSaved      Event = "claim.saved"
	VisitSaved      Event = "visit.saved"
	WorkSaved       Event = "work.saved"
	MembershipSaved Event = "membership.saved"
	PlayLogSaved    Event = "playlog.saved"
)

// Handler 事件处理器，payload 为刚保存的模型指针
type Handler func(ctx context.Context, payload any) error

type registration struct {
	name string
	fn   Handler
}

// Dispatcher 同步事件分发器，可并发使用
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[Event][]registration
	logger   *zap.Logger
}

// NewDispatcher 创建分发器
func NewDispatcher(logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		handlers: make(map[Event][]registration),
		logger:   logger,
	}
}

// On 注册处理器，按注册顺序执行
func (d *Dispatcher) On(ev Event, name string, fn Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[ev] = append(d.handlers[ev], registration{name: name, fn: fn})
}

// Fire 依次执行事件的全部处理器，返回失败的处理器数量
func (d *Dispatcher) Fire(ctx context.Context, ev Event, payload any) int {
	if d == nil {
		return 0
	}

	d.mu.RLock()
	regs := make([]registration, len(d.handlers[ev]))
	copy(regs, d.handlers[ev])
	d.mu.RUnlock()

	failed := 0
	for _, r := range regs {
		if err := d.run(ctx, r, payload); err != nil {
			failed++
			d.logger.Error("副作用处理失败",
				zap.String("event", string(ev)),
				zap.String("handler", r.name),
				zap.Error(err),
			)
		}
	}
	return failed
}

func (d *Dispatcher) run(ctx context.Context, r registration, payload any) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v\n%s", p, debug.Stack())
		}
	}()
	return r.fn(ctx, payload)
}
