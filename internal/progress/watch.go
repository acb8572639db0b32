package progress

import (
	"errors"
	"sync"

	"github.com/rescale/archive-uploader/internal/events"
	"github.com/rescale/archive-uploader/internal/transfer"
)

// Watch feeds bus events to r from a single goroutine until stop is called.
// stop drains what is already buffered, calls Finish if the run never
// completed, and waits for the goroutine to exit.
func Watch(bus *events.EventBus, r Reporter) (stop func()) {
	ch := bus.Subscribe(events.EventRunStarted, events.EventFileState, events.EventTransferFailed, events.EventComplete)
	quit := make(chan struct{})
	var wg sync.WaitGroup

	w := &watcher{r: r, done: make(map[string]bool)}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case ev, ok := <-ch:
				if !ok {
					w.finish()
					return
				}
				w.handle(ev)
			case <-quit:
				for {
					select {
					case ev, ok := <-ch:
						if !ok {
							w.finish()
							return
						}
						w.handle(ev)
					default:
						w.finish()
						return
					}
				}
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(quit)
			wg.Wait()
			bus.Unsubscribe(ch)
		})
	}
}

type watcher struct {
	r        Reporter
	done     map[string]bool
	finished bool
}

func (w *watcher) handle(ev events.Event) {
	switch e := ev.(type) {
	case *events.RunStartedEvent:
		w.r.Start(e.Total)
	case *events.FileStateEvent:
		switch e.State {
		case events.FileUploading:
			w.r.FileStarted(e.Path)
		case events.FileSuccess, events.FileSkipped:
			w.fileFinished(e.Path, true, e.Detail)
		case events.FileFailed:
			w.fileFinished(e.Path, false, e.Detail)
		}
	case *events.TransferEvent:
		if e.Type() == events.EventTransferFailed && errors.Is(e.Error, transfer.ErrStepTimeout) {
			w.fileFinished(e.Path, false, e.Error.Error())
		}
	case *events.CompleteEvent:
		w.finish()
	}
}

func (w *watcher) fileFinished(path string, ok bool, detail string) {
	if w.done[path] {
		return
	}
	w.done[path] = true
	w.r.FileFinished(path, ok, detail)
}

func (w *watcher) finish() {
	if w.finished {
		return
	}
	w.finished = true
	w.r.Finish()
}
