package orchestrator

import (
	"sync"

	"github.com/DuckBuck-Studios/DuckBuck-AI-Walkie-Talkie-sub006/internal/services/callsession/domain"
)

// Presenter shows and hides the in-call UI.
type Presenter interface {
	ShowCallUI(ui domain.CallUI)
	HideCallUI(channelName string)
}

type uiRequest struct {
	show        bool
	ui          domain.CallUI
	channelName string
}

// UIBridge forwards UI signals to one presenter from a single dispatch
// goroutine, so presenter calls never run concurrently and keep their order.
type UIBridge struct {
	presenter Presenter
	requests  chan uiRequest
	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
}

// NewUIBridge starts the dispatch goroutine for presenter.
func NewUIBridge(presenter Presenter) *UIBridge {
	b := &UIBridge{
		presenter: presenter,
		requests:  make(chan uiRequest, 16),
		done:      make(chan struct{}),
		stopped:   make(chan struct{}),
	}
	go b.loop()
	return b
}

// ShowCallUI queues a request to show the in-call UI.
func (b *UIBridge) ShowCallUI(ui domain.CallUI) {
	b.enqueue(uiRequest{show: true, ui: ui, channelName: ui.ChannelName})
}

// HideCallUI queues a request to hide the in-call UI.
func (b *UIBridge) HideCallUI(channelName string) {
	b.enqueue(uiRequest{channelName: channelName})
}

// Close stops the dispatch goroutine. Queued requests are delivered first.
func (b *UIBridge) Close() {
	if b == nil {
		return
	}
	b.closeOnce.Do(func() { close(b.done) })
	<-b.stopped
}

func (b *UIBridge) enqueue(req uiRequest) {
	if b == nil {
		return
	}
	select {
	case <-b.done:
		return
	default:
	}
	select {
	case b.requests <- req:
	case <-b.done:
	}
}

func (b *UIBridge) loop() {
	defer close(b.stopped)
	for {
		select {
		case req := <-b.requests:
			b.dispatch(req)
		case <-b.done:
			for {
				select {
				case req := <-b.requests:
					b.dispatch(req)
				default:
					return
				}
			}
		}
	}
}

func (b *UIBridge) dispatch(req uiRequest) {
	if b.presenter == nil {
		return
	}
	if req.show {
		b.presenter.ShowCallUI(req.ui)
		return
	}
	b.presenter.HideCallUI(req.channelName)
}
