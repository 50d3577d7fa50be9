package event

import (
	"context"
	"fmt"
	"sync"

	"github.com/blues/cfledger/internal/ledger"
	"github.com/blues/cfledger/internal/logger"
	"github.com/panjf2000/ants/v2"
)

// Processor 事件处理器
type Processor interface {
	Process(ctx context.Context, ev ledger.Event) error
}

// ProcessorFunc 函数适配器
type ProcessorFunc func(ctx context.Context, ev ledger.Event) error

func (f ProcessorFunc) Process(ctx context.Context, ev ledger.Event) error {
	return f(ctx, ev)
}

// Dispatcher 账本事件分发器，实现 ledger.EventSink
//
// 事件按序号恢复全局顺序后进入各活动的队列；同一活动的事件串行处理，
// 不同活动之间在协程池中并发处理。
type Dispatcher struct {
	pool       *ants.Pool
	processors map[ledger.EventType][]Processor
	ctx        context.Context
	cancel     context.CancelFunc

	mu      sync.Mutex
	nextSeq uint64
	pending map[uint64]ledger.Event   // 等待前序事件的乱序事件
	queues  map[uint64][]ledger.Event // 按活动分组的待处理事件
	running map[uint64]bool
	wg      sync.WaitGroup
}

// NewDispatcher 创建事件分发器，poolSize 为协程池大小
func NewDispatcher(poolSize int) (*Dispatcher, error) {
	if poolSize <= 0 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create event pool of size %d: %w", poolSize, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		pool:       pool,
		processors: make(map[ledger.EventType][]Processor),
		ctx:        ctx,
		cancel:     cancel,
		nextSeq:    1,
		pending:    make(map[uint64]ledger.Event),
		queues:     make(map[uint64][]ledger.Event),
		running:    make(map[uint64]bool),
	}, nil
}

// Register 注册处理器，types 为空时处理所有事件
func (d *Dispatcher) Register(p Processor, types ...ledger.EventType) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(types) == 0 {
		types = []ledger.EventType{
			ledger.EventCampaignCreated,
			ledger.EventContributed,
			ledger.EventWithdrawn,
			ledger.EventRefunded,
			ledger.EventCampaignClosed,
			ledger.EventFeesCollected,
		}
	}
	for _, t := range types {
		d.processors[t] = append(d.processors[t], p)
	}
}

// Resume 账本从事件日志恢复后，从 lastSeq 之后继续分发
func (d *Dispatcher) Resume(lastSeq uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.nextSeq = lastSeq + 1
	for seq := range d.pending {
		if seq < d.nextSeq {
			delete(d.pending, seq)
		}
	}
}

// Publish 实现 ledger.EventSink
func (d *Dispatcher) Publish(_ context.Context, ev ledger.Event) {
	d.mu.Lock()
	if ev.Seq < d.nextSeq {
		d.mu.Unlock()
		logger.Warn("Dropping stale event %s seq=%d", ev.Type, ev.Seq)
		return
	}
	d.pending[ev.Seq] = ev
	var start []uint64
	for {
		next, ok := d.pending[d.nextSeq]
		if !ok {
			break
		}
		delete(d.pending, d.nextSeq)
		d.nextSeq++
		if d.enqueue(next) {
			start = append(start, next.CampaignID)
		}
	}
	d.mu.Unlock()

	// 协程池满时 Submit 会阻塞，不能持锁提交
	for _, id := range start {
		id := id
		if err := d.pool.Submit(func() { d.drain(id) }); err != nil {
			logger.Warn("Failed to submit event task to pool, processing inline: %v", err)
			d.drain(id)
		}
	}
}

// enqueue 调用方持有 mu，返回是否需要启动该活动的处理协程
func (d *Dispatcher) enqueue(ev ledger.Event) bool {
	id := ev.CampaignID
	d.queues[id] = append(d.queues[id], ev)
	if d.running[id] {
		return false
	}
	d.running[id] = true
	d.wg.Add(1)
	return true
}

func (d *Dispatcher) drain(id uint64) {
	defer d.wg.Done()

	for {
		d.mu.Lock()
		batch := d.queues[id]
		if len(batch) == 0 {
			delete(d.queues, id)
			delete(d.running, id)
			d.mu.Unlock()
			return
		}
		d.queues[id] = nil
		d.mu.Unlock()

		for _, ev := range batch {
			d.process(ev)
		}
	}
}

func (d *Dispatcher) process(ev ledger.Event) {
	d.mu.Lock()
	processors := d.processors[ev.Type]
	d.mu.Unlock()

	for _, p := range processors {
		if err := p.Process(d.ctx, ev); err != nil {
			logger.Error("Error processing event %s seq=%d campaign=%d: %v", ev.Type, ev.Seq, ev.CampaignID, err)
		}
	}
}

// Flush 等待已入队事件处理完成
func (d *Dispatcher) Flush() {
	d.wg.Wait()
}

// Stop 处理完剩余事件后释放协程池
func (d *Dispatcher) Stop() {
	d.Flush()
	d.cancel()
	d.pool.Release()
	logger.Info("Event dispatcher stopped")
}
