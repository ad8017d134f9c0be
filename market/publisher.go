package market

import "sync"

// Publisher 一个轻量事件分发器。
// 由行情摄入 goroutine 同步调用，订阅者来不及消费时丢弃（非阻塞发送）。
type Publisher struct {
	mu        sync.RWMutex
	bookSubs  []chan BookTop
	tradeSubs []chan Trade
}

func NewPublisher() *Publisher {
	return &Publisher{
		bookSubs:  make([]chan BookTop, 0),
		tradeSubs: make([]chan Trade, 0),
	}
}

func (p *Publisher) SubscribeBook() <-chan BookTop {
	ch := make(chan BookTop, 1)
	p.mu.Lock()
	p.bookSubs = append(p.bookSubs, ch)
	p.mu.Unlock()
	return ch
}

func (p *Publisher) SubscribeTrade() <-chan Trade {
	ch := make(chan Trade, 16)
	p.mu.Lock()
	p.tradeSubs = append(p.tradeSubs, ch)
	p.mu.Unlock()
	return ch
}

func (p *Publisher) PublishBook(b BookTop) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, ch := range p.bookSubs {
		select {
		case ch <- b:
		default:
		}
	}
}

func (p *Publisher) PublishTrade(t Trade) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, ch := range p.tradeSubs {
		select {
		case ch <- t:
		default:
		}
	}
}
