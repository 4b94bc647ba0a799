// Package userservice is an in-memory user backend that serves the same lookup
// over REST (GET /api/users/{id}) and gRPC (userservice.UserService/GetUser).
// It backs the sample servers and the end-to-end tests.
package userservice

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/jhump/protoreflect/desc"
	"github.com/jhump/protoreflect/dynamic"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/torosent/protoduel/internal/grpcclient"
)

// User mirrors the userservice.User message.
type User struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	IsActive  bool   `json:"is_active"`
	CreatedAt string `json:"created_at"`
}

// Store holds users 1..Count. It is read-only and safe for concurrent use.
type Store struct {
	count   int64
	created time.Time
}

func NewStore(count int) *Store {
	if count < 0 {
		count = 0
	}
	return &Store{
		count:   int64(count),
		created: time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
	}
}

// Get returns the user with id, if it exists.
func (s *Store) Get(id int64) (User, bool) {
	if id < 1 || id > s.count {
		return User{}, false
	}
	return User{
		ID:        id,
		Username:  fmt.Sprintf("user%d", id),
		Email:     fmt.Sprintf("user%d@example.com", id),
		FirstName: "First" + strconv.FormatInt(id, 10),
		LastName:  "Last" + strconv.FormatInt(id, 10),
		IsActive:  id%10 != 0,
		CreatedAt: s.created.Add(time.Duration(id) * time.Minute).Format(time.RFC3339),
	}, true
}

// HTTPHandler serves GET /api/users/{id}.
func (s *Store) HTTPHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/users/{id}", func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
		if err != nil {
			respondJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid id"})
			return
		}
		user, ok := s.Get(id)
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		respondJSON(w, http.StatusOK, user)
	})
	return mux
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// Responder answers one dynamic unary call.
type Responder func(ctx context.Context, method *desc.MethodDescriptor, req *dynamic.Message) (*dynamic.Message, error)

// Responder returns the gRPC handler backed by s.
func (s *Store) Responder() Responder {
	return func(ctx context.Context, method *desc.MethodDescriptor, req *dynamic.Message) (*dynamic.Message, error) {
		if method.GetName() != grpcclient.DefaultMethod {
			return nil, status.Errorf(codes.Unimplemented, "method %s not supported", method.GetFullyQualifiedName())
		}
		raw, err := req.TryGetFieldByName("user_id")
		if err != nil {
			return nil, status.Errorf(codes.InvalidArgument, "user_id: %v", err)
		}
		id, _ := raw.(int64)
		user, ok := s.Get(id)
		if !ok {
			return nil, status.Errorf(codes.NotFound, "User not found: %d", id)
		}

		out := method.GetOutputType()
		userField := out.FindFieldByName("user")
		if userField == nil {
			return nil, status.Errorf(codes.Internal, "%s has no user field", out.GetFullyQualifiedName())
		}
		msg := dynamic.NewMessage(userField.GetMessageType())
		_ = msg.TrySetFieldByName("id", user.ID)
		_ = msg.TrySetFieldByName("username", user.Username)
		_ = msg.TrySetFieldByName("email", user.Email)
		_ = msg.TrySetFieldByName("first_name", user.FirstName)
		_ = msg.TrySetFieldByName("last_name", user.LastName)
		_ = msg.TrySetFieldByName("is_active", user.IsActive)
		_ = msg.TrySetFieldByName("created_at", user.CreatedAt)

		resp := dynamic.NewMessage(out)
		if err := resp.TrySetField(userField, msg); err != nil {
			return nil, status.Errorf(codes.Internal, "build response: %v", err)
		}
		return resp, nil
	}
}

// RegisterGRPC registers the bundled UserService on server, answered by responder.
func RegisterGRPC(server *grpc.Server, responder Responder) error {
	files, err := grpcclient.ParseProto("")
	if err != nil {
		return err
	}
	svc, err := grpcclient.FindService(files, grpcclient.DefaultService)
	if err != nil {
		return err
	}
	RegisterDynamicService(server, svc, responder)
	return nil
}

type dynamicService interface{}

type dynamicHandler struct{}

// RegisterDynamicService serves every unary method of svc through responder.
func RegisterDynamicService(server *grpc.Server, svc *desc.ServiceDescriptor, responder Responder) {
	serviceDesc := grpc.ServiceDesc{
		ServiceName: svc.GetFullyQualifiedName(),
		HandlerType: (*dynamicService)(nil),
	}

	for _, method := range svc.GetMethods() {
		m := method
		serviceDesc.Methods = append(serviceDesc.Methods, grpc.MethodDesc{
			MethodName: m.GetName(),
			Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
				req := dynamic.NewMessage(m.GetInputType())
				if err := dec(req); err != nil {
					return nil, err
				}
				invoke := func(ctx context.Context, req interface{}) (interface{}, error) {
					return responder(ctx, m, req.(*dynamic.Message))
				}
				if interceptor == nil {
					return invoke(ctx, req)
				}
				info := &grpc.UnaryServerInfo{
					Server:     srv,
					FullMethod: fmt.Sprintf("/%s/%s", svc.GetFullyQualifiedName(), m.GetName()),
				}
				return interceptor(ctx, req, info, invoke)
			},
		})
	}

	server.RegisterService(&serviceDesc, &dynamicHandler{})
}
