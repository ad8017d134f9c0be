package market

import (
	"sync"
	"testing"
)

func TestPublisher(t *testing.T) {
	p := NewPublisher()
	ch := p.SubscribeBook()
	p.PublishBook(BookTop{BidPx: 1, AskPx: 2})
	if got := <-ch; got.BidPx != 1 || got.AskPx != 2 {
		t.Fatalf("unexpected book %+v", got)
	}

	tc := p.SubscribeTrade()
	p.PublishTrade(Trade{Px: 10, Sz: 2, Side: Buy})
	if got := <-tc; got.Px != 10 || got.Side != Buy {
		t.Fatalf("unexpected trade %+v", got)
	}
}

func TestPublisherDropsWhenFull(t *testing.T) {
	p := NewPublisher()
	ch := p.SubscribeBook()
	p.PublishBook(BookTop{BidPx: 1, AskPx: 2})
	p.PublishBook(BookTop{BidPx: 3, AskPx: 4}) // 不阻塞
	if got := <-ch; got.BidPx != 1 {
		t.Fatalf("expected first book retained, got %+v", got)
	}
}

func TestEstimatorsConcurrentReaders(t *testing.T) {
	e := NewEstimators(50, 10, 1000)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			e.OnTrade(Trade{Px: 100 + float64(i%7), Sz: 1, Side: Buy})
		}
	}()
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				s := e.Snapshot()
				if s.HasVWAP && (s.VWAP < 100 || s.VWAP > 106) {
					t.Errorf("torn vwap %f", s.VWAP)
					return
				}
			}
		}()
	}
	wg.Wait()

	s := e.Snapshot()
	if s.Trades != 50 || s.Returns != 10 {
		t.Fatalf("unexpected window sizes %+v", s)
	}
}
