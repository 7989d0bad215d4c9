package handler

import (
	"context"
	"net/http"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/structpb"
)

// SessionServiceName is the fully-qualified name of the admin session service.
const SessionServiceName = "ussd.admin.v1.SessionService"

// Procedure paths of the admin session service.
const (
	StartSessionProcedure = "/" + SessionServiceName + "/StartSession"
	NotifyProcedure       = "/" + SessionServiceName + "/Notify"
	ListHandlersProcedure = "/" + SessionServiceName + "/ListHandlers"
	StreamEventsProcedure = "/" + SessionServiceName + "/StreamEvents"
)

// SessionServiceHandler is implemented by the admin session service.
type SessionServiceHandler interface {
	StartSession(context.Context, *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error)
	Notify(context.Context, *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error)
	ListHandlers(context.Context, *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error)
	StreamEvents(context.Context, *connect.Request[structpb.Struct], *connect.ServerStream[structpb.Struct]) error
}

// NewSessionServiceHandler builds an HTTP handler serving svc, returning the
// path to mount it on.
func NewSessionServiceHandler(svc SessionServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	mux := http.NewServeMux()
	mux.Handle(StartSessionProcedure, connect.NewUnaryHandler(StartSessionProcedure, svc.StartSession, opts...))
	mux.Handle(NotifyProcedure, connect.NewUnaryHandler(NotifyProcedure, svc.Notify, opts...))
	mux.Handle(ListHandlersProcedure, connect.NewUnaryHandler(ListHandlersProcedure, svc.ListHandlers, opts...))
	mux.Handle(StreamEventsProcedure, connect.NewServerStreamHandler(StreamEventsProcedure, svc.StreamEvents, opts...))
	return "/" + SessionServiceName + "/", mux
}

// SessionServiceClient calls the admin session service.
type SessionServiceClient struct {
	startSession *connect.Client[structpb.Struct, structpb.Struct]
	notify       *connect.Client[structpb.Struct, structpb.Struct]
	listHandlers *connect.Client[structpb.Struct, structpb.Struct]
	streamEvents *connect.Client[structpb.Struct, structpb.Struct]
}

// NewSessionServiceClient creates a client for the service at baseURL.
func NewSessionServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *SessionServiceClient {
	return &SessionServiceClient{
		startSession: connect.NewClient[structpb.Struct, structpb.Struct](httpClient, baseURL+StartSessionProcedure, opts...),
		notify:       connect.NewClient[structpb.Struct, structpb.Struct](httpClient, baseURL+NotifyProcedure, opts...),
		listHandlers: connect.NewClient[structpb.Struct, structpb.Struct](httpClient, baseURL+ListHandlersProcedure, opts...),
		streamEvents: connect.NewClient[structpb.Struct, structpb.Struct](httpClient, baseURL+StreamEventsProcedure, opts...),
	}
}

func (c *SessionServiceClient) StartSession(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	return c.startSession.CallUnary(ctx, req)
}

func (c *SessionServiceClient) Notify(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	return c.notify.CallUnary(ctx, req)
}

func (c *SessionServiceClient) ListHandlers(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	return c.listHandlers.CallUnary(ctx, req)
}

func (c *SessionServiceClient) StreamEvents(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.ServerStreamForClient[structpb.Struct], error) {
	return c.streamEvents.CallServerStream(ctx, req)
}
