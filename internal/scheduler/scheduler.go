package scheduler

import (
	"context"
	stderrors "errors"
	"fashion-backend/internal/lock"
	"fashion-backend/internal/util"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// JobFunc 定时任务主体
type JobFunc func(ctx context.Context) error

// Scheduler 基于 cron 的后台任务调度。
// 同一任务不会并发执行；多实例部署时通过分布式锁保证同一时刻只有一个实例执行。
type Scheduler struct {
	cron   *cron.Cron
	locker lock.Locker
}

func New(locker lock.Locker) *Scheduler {
	logger := cronLogger{}
	return &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		locker: locker,
	}
}

// AddCron 按 cron 表达式（含秒）注册任务
func (s *Scheduler) AddCron(name, spec string, timeout time.Duration, fn JobFunc) error {
	_, err := s.cron.AddFunc(spec, func() { s.Run(name, timeout, fn) })
	if err != nil {
		return fmt.Errorf("invalid schedule for %s: %w", name, err)
	}
	util.Logger.Info("定时任务已注册", zap.String("job", name), zap.String("spec", spec))
	return nil
}

// AddInterval 按固定间隔注册任务
func (s *Scheduler) AddInterval(name string, interval, timeout time.Duration, fn JobFunc) {
	s.cron.Schedule(cron.Every(interval), cron.FuncJob(func() { s.Run(name, timeout, fn) }))
	util.Logger.Info("定时任务已注册", zap.String("job", name), zap.Duration("interval", interval))
}

// Run 在分布式锁保护下执行一次任务，错误只记录日志
func (s *Scheduler) Run(name string, timeout time.Duration, fn JobFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	unlock, err := s.locker.Acquire(ctx, "sweep:"+name, timeout)
	if err != nil {
		if stderrors.Is(err, lock.ErrLockBusy) {
			util.Logger.Info("其他实例正在执行，跳过本次任务", zap.String("job", name))
		} else {
			util.Logger.Error("获取任务锁失败", zap.String("job", name), zap.Error(err))
		}
		return
	}
	defer unlock()

	start := time.Now()
	util.Logger.Info("[CRON] 开始执行任务", zap.String("job", name))
	if err := fn(ctx); err != nil {
		util.Logger.Error("[CRON] 任务执行失败", zap.String("job", name), zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		return
	}
	util.Logger.Info("[CRON] 任务执行完成", zap.String("job", name), zap.Duration("elapsed", time.Since(start)))
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop 停止调度并等待正在执行的任务结束
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		util.Logger.Warn("等待定时任务结束超时")
	}
}

// cronLogger 将 cron 日志输出到 zap
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	util.Logger.Sugar().Debugw(msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	util.Logger.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
