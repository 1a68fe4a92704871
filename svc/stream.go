package svc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/domotik/hubms/device"
	"github.com/domotik/hubms/log"
)

type (
	// StreamServiceCfg is used to initialize an instance of streamService.
	StreamServiceCfg struct {
		Log      log.Logger
		Ctrl     Ctrl
		Registry *device.Registry
		PortWS   uint64
	}

	// streamService pushes device state updates to the web clients
	// (dashboard) over websocket connections, one endpoint per device.
	streamService struct {
		log      log.Logger
		ctrl     Ctrl
		registry *device.Registry
		portWS   uint64
		conns    streamConns
		upgrader websocket.Upgrader
	}
)

// NewStreamService creates and initializes a new instance of streamService.
func NewStreamService(c *StreamServiceCfg) *streamService { // nolint
	return &streamService{
		log:      c.Log.With("component", "stream"),
		ctrl:     c.Ctrl,
		registry: c.Registry,
		portWS:   c.PortWS,
		conns:    *newStreamConns(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Run launches the service by running goroutines for listening the service
// termination, registry state updates, closed web client connections and
// serving the websocket endpoint.
func (s *streamService) Run() {
	s.log.With("event", log.EventComponentStarted).
		Infof("is running on websocket port [%d]", s.portWS)

	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		if r := recover(); r != nil {
			s.log.With("event", log.EventPanic).Errorf("%s", r)
			cancel()
			s.terminate()
		}
	}()

	go s.listenTermination()
	go s.listenUpdates(ctx)
	go s.listenClosedConns(ctx)

	r := mux.NewRouter()
	r.HandleFunc("/devices/{id}", s.addConnHandler)

	srv := &http.Server{
		Handler: r,
		Addr:    fmt.Sprintf(":%d", s.portWS),
	}
	s.log.Fatal(srv.ListenAndServe())
}

func (s *streamService) listenTermination() {
	<-s.ctrl.StopChan
	s.terminate()
}

func (s *streamService) terminate() {
	s.log.With("event", log.EventComponentShutdown).Info("is down")
	_ = s.log.Flush()
	s.ctrl.Terminate()
}

func (s *streamService) addConnHandler(w http.ResponseWriter, r *http.Request) {
	id := device.ID(mux.Vars(r)["id"])
	if id == "" {
		s.log.Errorf("addConnHandler(): empty device id")
		return
	}

	s.conns.Lock()
	if _, ok := s.conns.idConns[id]; !ok {
		s.conns.idConns[id] = new(connList)
	}
	s.conns.Unlock()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Errorf("addConnHandler(): Upgrade() failed %s", err)
		return
	}
	s.conns.idConns[id].addConn(conn)
	s.log.With("event", log.EventWSConnAdded).Infof("addConnHandler(): addr: %v", conn.RemoteAddr())
}

func (s *streamService) listenUpdates(ctx context.Context) {
	sub := s.registry.Subscribe()

	for {
		select {
		case u := <-sub:
			go s.stream(ctx, u)
		case <-ctx.Done():
			return
		}
	}
}

func (s *streamService) stream(ctx context.Context, u device.Update) {
	defer func() {
		if r := recover(); r != nil {
			s.log.With("event", log.EventPanic).Errorf("stream(): %s", r)
			s.terminate()
		}
	}()

	msg, err := json.Marshal(u)
	if err != nil {
		s.log.Errorf("stream(): Marshal() failed: %s", err)
		return
	}

	s.conns.RLock()
	list, ok := s.conns.idConns[u.Device.ID]
	s.conns.RUnlock()
	if !ok {
		return
	}

	for _, conn := range list.Conns {
		select {
		case <-ctx.Done():
			return
		default:
			list.Lock()
			err := conn.WriteMessage(websocket.TextMessage, msg)
			list.Unlock()
			if err != nil {
				s.log.With("event", log.EventWSConnRemoved).
					Infof("stream(): addr: %v", conn.RemoteAddr())
				s.conns.closedConns <- conn
				return
			}
		}
	}
}

func (s *streamService) listenClosedConns(ctx context.Context) {
	for {
		select {
		case conn := <-s.conns.closedConns:
			for id, list := range s.conns.idConns {
				if ok := list.removeConn(conn); ok {
					s.conns.checkIDConns(id)
					break
				}
			}
		case <-ctx.Done():
			return
		}
	}
}

type streamConns struct {
	sync.RWMutex
	closedConns chan *websocket.Conn
	idConns     map[device.ID]*connList
}

func newStreamConns() *streamConns {
	return &streamConns{
		closedConns: make(chan *websocket.Conn),
		idConns:     make(map[device.ID]*connList),
	}
}

func (c *streamConns) checkIDConns(id device.ID) {
	c.Lock()
	if len(c.idConns[id].Conns) == 0 {
		delete(c.idConns, id)
	}
	c.Unlock()
}

type connList struct {
	sync.RWMutex
	Conns []*websocket.Conn
}

func (l *connList) addConn(c *websocket.Conn) {
	l.Lock()
	l.Conns = append(l.Conns, c)
	l.Unlock()
}

func (l *connList) removeConn(conn *websocket.Conn) bool {
	l.Lock()
	defer l.Unlock()
	for i, c := range l.Conns {
		if conn == c {
			l.Conns = append(l.Conns[:i], l.Conns[i+1:]...)
			return true
		}
	}
	return false
}
