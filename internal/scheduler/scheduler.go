// Package scheduler 周期后台任务：每日按模板补齐志愿任务。
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"bzwops/config"
)

// defaultJobTimeout 单次生成任务的超时时间
const defaultJobTimeout = 5 * time.Minute

// Generator 按模板补齐任务，由 service.TemplateService 实现
type Generator interface {
	GenerateAll(ctx context.Context, horizonDays int) (int, error)
}

// Scheduler 基于 cron 表达式的后台任务调度器
type Scheduler struct {
	mu      sync.Mutex
	cron    *cron.Cron
	spec    string
	horizon int
	timeout time.Duration
	gen     Generator
	logger  *zap.Logger

	entryID cron.EntryID
	running bool
}

// New 创建调度器，时区与任务模块一致
func New(cfg *config.TasksConfig, gen Generator, logger *zap.Logger) *Scheduler {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	return &Scheduler{
		cron:    cron.New(cron.WithParser(parser), cron.WithLocation(cfg.Location())),
		spec:    cfg.GenerateCron,
		horizon: cfg.HorizonDays,
		timeout: defaultJobTimeout,
		gen:     gen,
		logger:  logger,
	}
}

// Start 注册生成任务并启动调度；runNow 为 true 时先同步执行一次
func (s *Scheduler) Start(runNow bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	id, err := s.cron.AddFunc(s.spec, s.RunGenerate)
	if err != nil {
		return fmt.Errorf("注册任务生成计划失败 (%s): %w", s.spec, err)
	}
	s.entryID = id

	if runNow {
		s.RunGenerate()
	}

	s.cron.Start()
	s.running = true
	s.logger.Info("任务生成调度已启动", zap.String("cron", s.spec), zap.Int("horizon_days", s.horizon))
	return nil
}

// Stop 停止调度并等待正在执行的任务结束，或直到 ctx 超时
func (s *Scheduler) Stop(ctx context.Context) {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.logger.Info("任务生成调度已停止")
	case <-ctx.Done():
		s.logger.Warn("等待生成任务结束超时", zap.Error(ctx.Err()))
	}
}

// Next 下一次计划执行时间，未启动时为零值
func (s *Scheduler) Next() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.entryID == 0 {
		return time.Time{}
	}
	return s.cron.Entry(s.entryID).Next
}

// RunGenerate 执行一次任务生成，错误只记录日志
func (s *Scheduler) RunGenerate() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	start := time.Now()
	created, err := s.gen.GenerateAll(ctx, s.horizon)
	if err != nil {
		s.logger.Error("定时生成任务失败",
			zap.Int("created", created),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return
	}
	s.logger.Info("定时生成任务完成",
		zap.Int("created", created),
		zap.Duration("elapsed", time.Since(start)),
	)
}
