// Package broadcast serves visualisation updates — the
// AttachVisualisation/ModifyVisualisation stream — to external watchers
// over gRPC, using dynamically-built messages rather than generated
// protobuf code — the same jhump/protoreflect + dynamic.Message technique
// a hand-rolled grpcServer/grpcRegister builtin pair would use to expose a
// caller-defined service without a compiled .pb.go file.
package broadcast

import (
	"encoding/json"
	"fmt"
	"net"
	"sync"

	"github.com/jhump/protoreflect/desc"
	"github.com/jhump/protoreflect/dynamic"
	"google.golang.org/grpc"

	"github.com/driftlang/drift/internal/values"
)

// Update is one visualisation observation, the payload of an
// OnFunctionReturn or a watched expression's OnReturnValue.
type Update struct {
	VisID        string
	ExpressionID string
	Value        values.Value
	IsPanic      bool
}

// Broadcaster fans out Updates published for a vis id to every subscriber
// currently watching it. Subscribers are plain buffered channels; a slow
// subscriber drops updates rather than backpressuring the publisher, since
// publishing happens on the ExecutionContext's single job-queue goroutine
// and must never block on a remote reader.
type Broadcaster struct {
	mu          sync.Mutex
	subscribers map[string]map[chan Update]struct{} // vis id -> set of subscriber channels
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subscribers: make(map[string]map[chan Update]struct{})}
}

// Subscribe registers a new channel for visID and returns an unsubscribe
// function.
func (b *Broadcaster) Subscribe(visID string) (ch chan Update, unsubscribe func()) {
	ch = make(chan Update, 16)
	b.mu.Lock()
	if b.subscribers[visID] == nil {
		b.subscribers[visID] = make(map[chan Update]struct{})
	}
	b.subscribers[visID][ch] = struct{}{}
	b.mu.Unlock()

	return ch, func() {
		b.mu.Lock()
		delete(b.subscribers[visID], ch)
		if len(b.subscribers[visID]) == 0 {
			delete(b.subscribers, visID)
		}
		b.mu.Unlock()
		close(ch)
	}
}

// Publish fans Update out to every current subscriber of its VisID,
// dropping it for any subscriber whose buffer is full.
func (b *Broadcaster) Publish(u Update) {
	b.mu.Lock()
	subs := b.subscribers[u.VisID]
	chans := make([]chan Update, 0, len(subs))
	for ch := range subs {
		chans = append(chans, ch)
	}
	b.mu.Unlock()

	for _, ch := range chans {
		select {
		case ch <- u:
		default:
		}
	}
}

// Server exposes a Broadcaster's updates over gRPC: VisualisationService's
// Subscribe RPC streams VisualisationUpdate messages for one vis id.
type Server struct {
	grpcServer *grpc.Server
	bcast      *Broadcaster

	updateMD    *desc.MessageDescriptor
	subscribeMD *desc.MessageDescriptor
}

// NewServer builds a gRPC server wired to bcast. The service descriptor is
// parsed from the package's embedded schema at construction time, the
// dynamic-message analogue of loading a generated .pb.go at import time.
func NewServer(bcast *Broadcaster) (*Server, error) {
	fd, err := loadSchema()
	if err != nil {
		return nil, err
	}
	updateMD, err := findMessage(fd, "VisualisationUpdate")
	if err != nil {
		return nil, err
	}
	subscribeMD, err := findMessage(fd, "SubscribeRequest")
	if err != nil {
		return nil, err
	}

	s := &Server{bcast: bcast, updateMD: updateMD, subscribeMD: subscribeMD}

	sd := &grpc.ServiceDesc{
		ServiceName: "driftvis.VisualisationService",
		HandlerType: (*any)(nil),
		Streams: []grpc.StreamDesc{
			{
				StreamName:    "Subscribe",
				Handler:       s.handleSubscribe,
				ServerStreams: true,
			},
		},
		Metadata: schemaFilename,
	}

	gs := grpc.NewServer()
	gs.RegisterService(sd, s)
	s.grpcServer = gs
	return s, nil
}

// Serve listens on addr and blocks serving RPCs until the server is
// stopped.
func (s *Server) Serve(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("broadcast: listen %s: %w", addr, err)
	}
	return s.grpcServer.Serve(lis)
}

// ServeAsync starts Serve on a background goroutine, the streaming
// counterpart of grpcServeAsync.
func (s *Server) ServeAsync(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("broadcast: listen %s: %w", addr, err)
	}
	go func() {
		_ = s.grpcServer.Serve(lis)
	}()
	return nil
}

// Stop gracefully stops the gRPC server.
func (s *Server) Stop() { s.grpcServer.GracefulStop() }

func (s *Server) handleSubscribe(srv any, stream grpc.ServerStream) error {
	reqMsg := dynamic.NewMessage(s.subscribeMD)
	if err := stream.RecvMsg(reqMsg); err != nil {
		return err
	}
	visID, _ := reqMsg.TryGetFieldByName("vis_id")
	visIDStr, _ := visID.(string)

	ch, unsubscribe := s.bcast.Subscribe(visIDStr)
	defer unsubscribe()

	ctx := stream.Context()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case u, ok := <-ch:
			if !ok {
				return nil
			}
			msg, err := updateToDynamicMessage(s.updateMD, u)
			if err != nil {
				return err
			}
			if err := stream.SendMsg(msg); err != nil {
				return err
			}
		}
	}
}

func updateToDynamicMessage(md *desc.MessageDescriptor, u Update) (*dynamic.Message, error) {
	msg := dynamic.NewMessage(md)
	msg.SetFieldByName("vis_id", u.VisID)
	msg.SetFieldByName("expression_id", u.ExpressionID)
	msg.SetFieldByName("is_panic", u.IsPanic)

	valueJSON, err := json.Marshal(describeValue(u.Value))
	if err != nil {
		return nil, fmt.Errorf("broadcast: encode value: %w", err)
	}
	msg.SetFieldByName("value_json", string(valueJSON))
	return msg, nil
}

// describeValue renders v using the same serialization shape the engine's
// public boundary uses: primitives verbatim, atoms as type+fields,
// functions/symbols as an opaque handle, errors as type+content+message.
func describeValue(v values.Value) any {
	switch t := v.(type) {
	case nil:
		return nil
	case values.UnitValue:
		return nil
	case values.Long:
		return t.V
	case values.Double:
		return t.V
	case values.Boolean:
		return t.V
	case values.Text:
		return t.Rope
	case *values.Atom:
		fields := make(map[string]any, len(t.Fields))
		for i, f := range t.Fields {
			name := fmt.Sprintf("f%d", i)
			if i < len(t.Constructor.FieldNames) {
				name = t.Constructor.FieldNames[i].String()
			}
			fields[name] = describeValue(f)
		}
		return map[string]any{"type": t.Constructor.Name.String(), "fields": fields}
	case *values.Function:
		return map[string]any{"type": "Function", "handle": t.Target.Name()}
	case *values.UnresolvedSymbol:
		return map[string]any{"type": "Symbol", "name": t.Name.String()}
	case *values.DataflowError:
		return map[string]any{"type": "Error", "content": describeValue(t.Payload), "message": t.Kind}
	case *values.Panic:
		return map[string]any{"type": "Error", "content": describeValue(t.Payload), "message": "panic"}
	case *values.PanicSentinel:
		return map[string]any{"type": "Error", "content": describeValue(t.Inner.Payload), "message": "panic", "origin": t.OriginExpressionID}
	default:
		return fmt.Sprintf("%v", v)
	}
}
