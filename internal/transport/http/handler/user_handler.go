package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"user-api/internal/core/apperr"
	"user-api/internal/domain"
	"user-api/internal/service"
	"user-api/internal/transport/http/ez"
	"user-api/internal/transport/http/middleware"
)

// UserHandler serves /users. Every route needs a token; all but PATCH
// also need the admin role.
type UserHandler struct {
	svc   *service.UserService
	authn gin.HandlerFunc
}

func NewUserHandler(svc *service.UserService, authn gin.HandlerFunc) *UserHandler {
	return &UserHandler{svc: svc, authn: authn}
}

func (h *UserHandler) Mount(e ez.EZ) {
	g := e.Group("/users")
	signedIn := []gin.HandlerFunc{h.authn}
	adminOnly := []gin.HandlerFunc{h.authn, middleware.RequireRole(domain.RoleAdmin)}

	ez.RegisterAction(g, ez.Action[createUserReq, UserResp]{
		Method: http.MethodPost, Path: "", Binder: ez.BindJSON, Guards: adminOnly,
		Status: http.StatusCreated, Handler: h.create,
	})
	ez.RegisterAction(g, ez.Action[listQuery, listResp]{
		Method: http.MethodGet, Path: "", Binder: ez.BindQuery, Guards: adminOnly,
		Handler: h.list,
	})
	ez.RegisterAction(g, ez.Action[struct{}, UserResp]{
		Method: http.MethodGet, Path: "/:id", Binder: ez.BindNone, Guards: adminOnly,
		Handler: h.get,
	})
	ez.RegisterAction(g, ez.Action[updateUserReq, UserResp]{
		Method: http.MethodPatch, Path: "/:id", Binder: ez.BindJSON, Guards: signedIn,
		Handler: h.update,
	})
	ez.RegisterAction(g, ez.Action[struct{}, struct{}]{
		Method: http.MethodDelete, Path: "/:id", Binder: ez.BindNone, Guards: adminOnly,
		Status: http.StatusNoContent, Handler: h.remove,
	})
}

func (h *UserHandler) create(c *gin.Context, in *createUserReq) (UserResp, error) {
	u, err := h.svc.Create(c.Request.Context(), service.CreateUserInput{
		Name:     string(in.Name),
		Email:    in.Email,
		Password: in.Password,
		Role:     domain.Role(in.Role),
		IsActive: in.IsActive,
	})
	if err != nil {
		return UserResp{}, err
	}
	return toUserResp(u), nil
}

func (h *UserHandler) list(c *gin.Context, in *listQuery) (listResp, error) {
	page, err := h.svc.FindAll(c.Request.Context(), in.Limit, in.Offset)
	if err != nil {
		return listResp{}, err
	}
	out := listResp{Data: make([]UserResp, 0, len(page.Data)), Total: page.Total}
	for i := range page.Data {
		out.Data = append(out.Data, toUserResp(&page.Data[i]))
	}
	return out, nil
}

func (h *UserHandler) get(c *gin.Context, _ *struct{}) (UserResp, error) {
	id, err := ez.ParamUUID(c, "id")
	if err != nil {
		return UserResp{}, err
	}
	u, err := h.svc.FindOne(c.Request.Context(), id)
	if err != nil {
		return UserResp{}, err
	}
	return toUserResp(u), nil
}

func (h *UserHandler) update(c *gin.Context, in *updateUserReq) (UserResp, error) {
	id, err := ez.ParamUUID(c, "id")
	if err != nil {
		return UserResp{}, err
	}
	actor, ok := middleware.IdentityFrom(c)
	if !ok {
		return UserResp{}, apperr.Unauthorized("")
	}

	upd := service.UpdateUserInput{
		Email:    in.Email,
		Password: in.Password,
		IsActive: in.IsActive,
	}
	if in.Name != nil {
		n := string(*in.Name)
		upd.Name = &n
	}
	if in.Role != nil {
		r := domain.Role(*in.Role)
		upd.Role = &r
	}
	u, err := h.svc.Update(c.Request.Context(), id, upd, actor)
	if err != nil {
		return UserResp{}, err
	}
	return toUserResp(u), nil
}

func (h *UserHandler) remove(c *gin.Context, _ *struct{}) (struct{}, error) {
	id, err := ez.ParamUUID(c, "id")
	if err != nil {
		return struct{}{}, err
	}
	return struct{}{}, h.svc.Remove(c.Request.Context(), id)
}
