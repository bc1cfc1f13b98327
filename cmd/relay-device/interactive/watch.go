package interactive

import (
	"fmt"
	"io"
	"sync"

	"github.com/smartrelay/relay-go/pkg/document"
	"github.com/smartrelay/relay-go/pkg/inspect"
	"github.com/smartrelay/relay-go/pkg/wire"
)

const watchQueueSize = 32

// watcher prints update notifications. Notify runs under the service lock,
// so it only copies and queues; printing happens on its own goroutine.
type watcher struct {
	queue  chan *document.Object
	done   chan struct{}
	remove func()
	wg     sync.WaitGroup
}

func startWatcher(backend Backend, out io.Writer, f *inspect.Formatter) *watcher {
	w := &watcher{
		queue: make(chan *document.Object, watchQueueSize),
		done:  make(chan struct{}),
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for {
			select {
			case <-w.done:
				return
			case doc := <-w.queue:
				fmt.Fprintf(out, "[update]\n%s", f.FormatDocument(doc))
			}
		}
	}()

	w.remove = backend.AddSink(w)
	return w
}

// Notify implements service.Sink.
func (w *watcher) Notify(n *wire.Notification) {
	if n.Method != wire.MethodUpdate {
		return
	}
	doc, err := document.Clone(document.NewBuilder(0), n.Params)
	if err != nil {
		return
	}
	select {
	case w.queue <- doc:
	default:
		// The console is behind; skip rather than stall the service.
	}
}

func (w *watcher) stop() {
	w.remove()
	close(w.done)
	w.wg.Wait()
}
