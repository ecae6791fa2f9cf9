package auth

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/NordCoder/Gatekeeper/internal/domain/user"
	"github.com/NordCoder/Gatekeeper/internal/obs"
	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Service is the part of Usecase the HTTP layer talks to.
type Service interface {
	Register(ctx context.Context, username, email, password string) (int64, error)
	Login(ctx context.Context, email, password string) (*Session, error)
	CurrentIdentity(ctx context.Context, token string) (*Identity, error)
	Logout(ctx context.Context, token string) (bool, error)
}

type UserAccess interface {
	GetUser(ctx context.Context, token string, target int64) (*user.User, error)
	UpdateUser(ctx context.Context, token string, target int64, p user.Patch) (*user.User, error)
	DeleteUser(ctx context.Context, token string, target int64) error
	ListUsers(ctx context.Context, token string) ([]*user.User, error)
}

type Controller struct {
	svc       Service
	access    UserAccess
	log       *zap.Logger
	marshaler *runtime.JSONBuiltin
}

func NewController(svc Service, access UserAccess, log *zap.Logger) *Controller {
	if log == nil {
		log = zap.NewNop()
	}
	return &Controller{svc: svc, access: access, log: log, marshaler: &runtime.JSONBuiltin{}}
}

func (c *Controller) Register(mux *runtime.ServeMux) error {
	routes := []struct {
		method, path string
		h            runtime.HandlerFunc
	}{
		{http.MethodPost, "/api/auth/register", c.register},
		{http.MethodPost, "/api/auth/login", c.login},
		{http.MethodGet, "/api/auth/me", c.me},
		{http.MethodPost, "/api/auth/logout", c.logout},
		{http.MethodGet, "/api/users", c.listUsers},
		{http.MethodGet, "/api/users/{id}", c.getUser},
		{http.MethodPut, "/api/users/{id}", c.updateUser},
		{http.MethodDelete, "/api/users/{id}", c.deleteUser},
	}
	for _, rt := range routes {
		if err := mux.HandlePath(rt.method, rt.path, rt.h); err != nil {
			return err
		}
	}
	return nil
}

func (c *Controller) register(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	var req registerRequest
	if !c.decode(w, r, &req) {
		return
	}
	c.log.Info("auth.register", zap.String("email", req.Email))

	id, err := c.svc.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		c.fail(w, r, err)
		return
	}
	c.write(w, http.StatusCreated, registerResponse{Message: "user registered", UserID: id})
}

func (c *Controller) login(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	var req loginRequest
	if !c.decode(w, r, &req) {
		return
	}
	c.log.Info("auth.login", zap.String("email", req.Email))

	s, err := c.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		c.fail(w, r, err)
		return
	}
	c.write(w, http.StatusOK, loginResponse{Token: s.Token, UserID: s.UserID, Username: s.Username, ExpiresAt: s.ExpiresAt})
}

func (c *Controller) me(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	id, err := c.svc.CurrentIdentity(r.Context(), bearer(r))
	if err != nil {
		c.fail(w, r, err)
		return
	}
	c.write(w, http.StatusOK, userView{UserID: id.UserID, Username: id.Username, Email: id.Email, Role: string(id.Role)})
}

func (c *Controller) logout(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	ok, err := c.svc.Logout(r.Context(), bearer(r))
	if err != nil {
		c.fail(w, r, err)
		return
	}
	c.write(w, http.StatusOK, logoutResponse{Success: ok})
}

func (c *Controller) listUsers(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	all, err := c.access.ListUsers(r.Context(), bearer(r))
	if err != nil {
		c.fail(w, r, err)
		return
	}
	resp := listUsersResponse{Users: make([]userView, 0, len(all))}
	for _, u := range all {
		resp.Users = append(resp.Users, toUserView(u))
	}
	c.write(w, http.StatusOK, resp)
}

func (c *Controller) getUser(w http.ResponseWriter, r *http.Request, params map[string]string) {
	id, ok := c.pathID(w, params)
	if !ok {
		return
	}
	u, err := c.access.GetUser(r.Context(), bearer(r), id)
	if err != nil {
		c.fail(w, r, err)
		return
	}
	c.write(w, http.StatusOK, toUserView(u))
}

func (c *Controller) updateUser(w http.ResponseWriter, r *http.Request, params map[string]string) {
	id, ok := c.pathID(w, params)
	if !ok {
		return
	}
	var req updateUserRequest
	if !c.decode(w, r, &req) {
		return
	}
	u, err := c.access.UpdateUser(r.Context(), bearer(r), id, req.patch())
	if err != nil {
		c.fail(w, r, err)
		return
	}
	c.write(w, http.StatusOK, toUserView(u))
}

func (c *Controller) deleteUser(w http.ResponseWriter, r *http.Request, params map[string]string) {
	id, ok := c.pathID(w, params)
	if !ok {
		return
	}
	if err := c.access.DeleteUser(r.Context(), bearer(r), id); err != nil {
		c.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type validatable interface {
	Validate() error
}

func (c *Controller) decode(w http.ResponseWriter, r *http.Request, dst validatable) bool {
	if err := c.marshaler.NewDecoder(r.Body).Decode(dst); err != nil {
		c.writeStatus(w, status.New(codes.InvalidArgument, "malformed request body"))
		return false
	}
	if err := dst.Validate(); err != nil {
		c.writeStatus(w, status.New(codes.InvalidArgument, err.Error()))
		return false
	}
	return true
}

func (c *Controller) pathID(w http.ResponseWriter, params map[string]string) (int64, bool) {
	id, err := strconv.ParseInt(params["id"], 10, 64)
	if err != nil || id <= 0 {
		c.writeStatus(w, status.New(codes.InvalidArgument, "invalid user id"))
		return 0, false
	}
	return id, true
}

func (c *Controller) fail(w http.ResponseWriter, r *http.Request, err error) {
	st := mapErr(err)
	if st.Code() != codes.Internal {
		c.writeStatus(w, st)
		return
	}
	obs.WithTrace(r.Context(), c.log).Error("request failed",
		zap.String("method", r.Method), zap.String("path", r.URL.Path), zap.Error(err))
	c.write(w, http.StatusInternalServerError, errorResponse{
		Error:   st.Message(),
		Code:    st.Code().String(),
		TraceID: obs.TraceID(r.Context()),
	})
}

// mapErr turns a service error into the status shown to clients. Anything not
// in the taxonomy is reported as an opaque internal error.
func mapErr(err error) *status.Status {
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return status.New(codes.Unauthenticated, ErrInvalidCredentials.Error())
	case errors.Is(err, ErrUnauthenticated):
		return status.New(codes.Unauthenticated, ErrUnauthenticated.Error())
	case errors.Is(err, ErrDuplicateIdentity):
		return status.New(codes.AlreadyExists, ErrDuplicateIdentity.Error())
	case errors.Is(err, ErrWeakCredential):
		return status.New(codes.InvalidArgument, err.Error())
	case errors.Is(err, ErrForbidden):
		return status.New(codes.PermissionDenied, ErrForbidden.Error())
	case errors.Is(err, ErrNotFound):
		return status.New(codes.NotFound, ErrNotFound.Error())
	default:
		return status.New(codes.Internal, "internal error")
	}
}

func (c *Controller) writeStatus(w http.ResponseWriter, st *status.Status) {
	c.write(w, runtime.HTTPStatusFromCode(st.Code()), errorResponse{Error: st.Message(), Code: st.Code().String()})
}

func (c *Controller) write(w http.ResponseWriter, code int, v any) {
	body, err := c.marshaler.Marshal(v)
	if err != nil {
		c.log.Error("marshal response", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", c.marshaler.ContentType(v))
	w.WriteHeader(code)
	_, _ = w.Write(body)
}
