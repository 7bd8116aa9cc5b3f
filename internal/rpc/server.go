package rpc

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"
	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/handler"
	"github.com/creachadair/jrpc2/jhttp"

	"github.com/sandeepkv93/medremind/internal/message"
	"github.com/sandeepkv93/medremind/internal/model"
)

const (
	codeInvalidParams = jrpc2.Code(-32602)
	codeStoreFailed   = jrpc2.Code(-32010)
)

// Service is what the background context does for its surfaces.
type Service interface {
	ShowNow(ctx context.Context, ref message.MedicineRef) bool
	Register(ctx context.Context, s model.Schedule) error
	Remove(ctx context.Context, id string) error
	RemoveAll(ctx context.Context) (int, error)
	Check(ctx context.Context) message.CheckResult
	Ping(ctx context.Context) message.DebugResponse
}

type Server struct {
	svc     Service
	hub     *Hub
	log     *slog.Logger
	methods handler.Map
	bridge  jhttp.Bridge
}

func NewServer(svc Service, hub *Hub, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{svc: svc, hub: hub, log: logger}
	s.methods = handler.Map{
		string(message.TypeScheduleNotification): handler.New(s.scheduleNotification),
		string(message.TypeRegisterSchedule):     handler.New(s.registerSchedule),
		string(message.TypeRemoveSchedule):       handler.New(s.removeSchedule),
		string(message.TypeRemoveAllSchedules):   handler.New(s.removeAllSchedules),
		string(message.TypeCheckSchedules):       handler.New(s.checkSchedules),
		string(message.TypeDebugTest):            handler.New(s.debugTest),
	}
	s.bridge = jhttp.NewBridge(s.methods, nil)
	return s
}

// ServeWS upgrades to a websocket and serves one surface until it leaves.
func (s *Server) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.log.Warn("websocket accept failed", "err", err)
		return
	}
	ch := &wsChannel{conn: conn, ctx: r.Context()}
	srv := jrpc2.NewServer(s.methods, &jrpc2.ServerOptions{AllowPush: true})
	srv.Start(ch)
	s.hub.Register(srv)
	defer s.hub.Unregister(srv)
	if err := srv.Wait(); err != nil && !isClosed(err) {
		s.log.Debug("surface session ended", "err", err)
	}
}

// ServeHTTP answers single JSON-RPC requests posted over plain HTTP.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.bridge.ServeHTTP(w, r)
}

func (s *Server) Close() error {
	return s.bridge.Close()
}

func (s *Server) scheduleNotification(ctx context.Context, p *message.ScheduleNotification) (message.Ack, error) {
	if err := validate(*p); err != nil {
		return message.Ack{}, err
	}
	return message.Ack{OK: s.svc.ShowNow(ctx, p.Medicine)}, nil
}

func (s *Server) registerSchedule(ctx context.Context, p *message.RegisterSchedule) (message.Ack, error) {
	if err := validate(*p); err != nil {
		return message.Ack{}, err
	}
	if err := s.svc.Register(ctx, p.Medicine.Schedule()); err != nil {
		return message.Ack{}, storeError(err)
	}
	return message.Ack{OK: true}, nil
}

func (s *Server) removeSchedule(ctx context.Context, p *message.RemoveSchedule) (message.Ack, error) {
	if err := validate(*p); err != nil {
		return message.Ack{}, err
	}
	if err := s.svc.Remove(ctx, p.MedicineID); err != nil {
		return message.Ack{}, storeError(err)
	}
	return message.Ack{OK: true}, nil
}

func (s *Server) removeAllSchedules(ctx context.Context, _ *message.RemoveAllSchedules) (message.Ack, error) {
	n, err := s.svc.RemoveAll(ctx)
	if err != nil {
		return message.Ack{}, storeError(err)
	}
	return message.Ack{OK: true, Removed: n}, nil
}

func (s *Server) checkSchedules(ctx context.Context, _ *message.CheckSchedules) (message.CheckResult, error) {
	return s.svc.Check(ctx), nil
}

func (s *Server) debugTest(ctx context.Context, _ *message.DebugTest) (message.DebugResponse, error) {
	return s.svc.Ping(ctx), nil
}

func validate(m message.Message) error {
	if err := message.Validate(m); err != nil {
		return &jrpc2.Error{Code: codeInvalidParams, Message: err.Error()}
	}
	return nil
}

func storeError(err error) error {
	var rpcErr *jrpc2.Error
	if errors.As(err, &rpcErr) {
		return err
	}
	if errors.Is(err, model.ErrInvalidTime) {
		return &jrpc2.Error{Code: codeInvalidParams, Message: err.Error()}
	}
	return &jrpc2.Error{Code: codeStoreFailed, Message: err.Error()}
}

func isClosed(err error) bool {
	return errors.Is(err, context.Canceled) || websocket.CloseStatus(err) == websocket.StatusNormalClosure
}
