package websocket

import (
	"context"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ItamarWilf/PipeRT/errors"
	"github.com/ItamarWilf/PipeRT/queue"
	"github.com/ItamarWilf/PipeRT/routine"
)

// TypeName is the routine type registered by Register.
const TypeName = "Display"

// Defaults used when the topology leaves a parameter out.
const (
	DefaultAddress = ":8090"
	DefaultPath    = "/video"
)

const (
	writeTimeout    = 2 * time.Second
	shutdownTimeout = 5 * time.Second
)

type viewer struct {
	conn      *websocket.Conn
	writeMu   sync.Mutex
	closeOnce sync.Once
}

func (v *viewer) close() {
	v.closeOnce.Do(func() { _ = v.conn.Close() })
}

// Display is a terminal routine. It takes messages from its queue, records
// their exit from the owning component, reports their latency to the metrics
// collector and broadcasts the encoded message to every connected websocket
// viewer. Slow or gone viewers are dropped.
type Display struct {
	*routine.Base

	queue   *queue.Queue
	address string
	path    string

	upgrader websocket.Upgrader
	server   *http.Server
	listener net.Listener
	serveWG  sync.WaitGroup

	viewersMu sync.RWMutex
	viewers   map[*viewer]struct{}

	frames atomic.Uint64
}

// New creates a detached Display draining q and serving viewers on address.
func New(name string, q *queue.Queue, address, path string) *Display {
	if address == "" {
		address = DefaultAddress
	}
	if path == "" {
		path = DefaultPath
	}
	return &Display{
		Base:    routine.NewBase(name),
		queue:   q,
		address: address,
		path:    path,
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(*http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 64 * 1024,
		},
		viewers: make(map[*viewer]struct{}),
	}
}

// Setup starts the viewer endpoint.
func (d *Display) Setup(context.Context) error {
	ln, err := net.Listen("tcp", d.address)
	if err != nil {
		return errors.WrapFatal(err, "Display", "Setup", "listen on "+d.address)
	}

	mux := http.NewServeMux()
	mux.HandleFunc(d.path, d.handleViewer)
	d.listener = ln
	d.server = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	server := d.server
	d.serveWG.Add(1)
	go func() {
		defer d.serveWG.Done()
		if err := server.Serve(ln); err != nil && err != http.ErrServerClosed {
			d.Logger().Error("Display server error", "error", err)
		}
	}()

	d.Logger().Info("Display serving viewers", "addr", ln.Addr().String(), "path", d.path)
	return nil
}

// MainLogic shows one message. It reports no work when the queue is empty.
func (d *Display) MainLogic(context.Context) (bool, error) {
	msg, ok := d.queue.Get()
	if !ok {
		return false, nil
	}

	component := d.ComponentName()
	msg.RecordExit(component)
	if latency, ok := msg.PipelineLatency(component); ok {
		d.Collector().CollectLatency(latency, component)
	} else if latency, ok := msg.Latency(component); ok {
		d.Collector().CollectLatency(latency, component)
	}

	data, err := msg.Encode()
	if err != nil {
		return false, err
	}
	d.broadcast(data)
	d.frames.Add(1)
	return true, nil
}

// Cleanup disconnects every viewer and stops the endpoint.
func (d *Display) Cleanup(ctx context.Context) error {
	d.viewersMu.Lock()
	for v := range d.viewers {
		v.close()
	}
	clear(d.viewers)
	d.viewersMu.Unlock()

	if d.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	err := d.server.Shutdown(ctx)
	d.serveWG.Wait()
	d.server = nil
	d.listener = nil
	return err
}

// UsesQueue implements routine.Routine.
func (d *Display) UsesQueue(name string) bool {
	return d.queue != nil && d.queue.Name() == name
}

// Addr returns the bound address while the routine runs, and the configured
// address otherwise.
func (d *Display) Addr() string {
	if d.listener == nil {
		return d.address
	}
	return d.listener.Addr().String()
}

// Path returns the websocket endpoint path.
func (d *Display) Path() string { return d.path }

// Viewers returns the number of connected viewers.
func (d *Display) Viewers() int {
	d.viewersMu.RLock()
	defer d.viewersMu.RUnlock()
	return len(d.viewers)
}

// Frames returns how many messages were shown.
func (d *Display) Frames() uint64 { return d.frames.Load() }

func (d *Display) handleViewer(w http.ResponseWriter, r *http.Request) {
	conn, err := d.upgrader.Upgrade(w, r, nil)
	if err != nil {
		d.Logger().Debug("Viewer upgrade failed", "error", err)
		return
	}

	v := &viewer{conn: conn}
	d.viewersMu.Lock()
	d.viewers[v] = struct{}{}
	count := len(d.viewers)
	d.viewersMu.Unlock()
	d.Logger().Debug("Viewer connected", "remote", r.RemoteAddr, "viewers", count)

	// Viewers never send data; reading only detects the close.
	go func() {
		defer d.removeViewer(v)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (d *Display) removeViewer(v *viewer) {
	d.viewersMu.Lock()
	delete(d.viewers, v)
	d.viewersMu.Unlock()
	v.close()
}

func (d *Display) broadcast(data []byte) {
	d.viewersMu.RLock()
	targets := make([]*viewer, 0, len(d.viewers))
	for v := range d.viewers {
		targets = append(targets, v)
	}
	d.viewersMu.RUnlock()

	for _, v := range targets {
		v.writeMu.Lock()
		_ = v.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		err := v.conn.WriteMessage(websocket.TextMessage, data)
		v.writeMu.Unlock()
		if err != nil {
			d.Logger().Debug("Dropping viewer", "error", err)
			d.removeViewer(v)
		}
	}
}
