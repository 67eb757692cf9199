package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"user-api/internal/service"
	"user-api/internal/transport/http/ez"
)

type AuthHandler struct {
	svc    *service.AuthService
	guards []gin.HandlerFunc // e.g. a rate limiter
}

func NewAuthHandler(svc *service.AuthService, guards ...gin.HandlerFunc) *AuthHandler {
	return &AuthHandler{svc: svc, guards: guards}
}

func (h *AuthHandler) Priority() int { return 10 }

func (h *AuthHandler) Mount(e ez.EZ) {
	g := e.Group("/auth")

	ez.RegisterAction(g, ez.Action[signupReq, signupResp]{
		Method:  http.MethodPost,
		Path:    "/signup",
		Binder:  ez.BindJSON,
		Guards:  h.guards,
		Status:  http.StatusCreated,
		Handler: h.signup,
	})
	ez.RegisterAction(g, ez.Action[loginReq, loginResp]{
		Method:  http.MethodPost,
		Path:    "/login",
		Binder:  ez.BindJSON,
		Guards:  h.guards,
		Handler: h.login,
	})
}

func (h *AuthHandler) signup(c *gin.Context, in *signupReq) (signupResp, error) {
	u, err := h.svc.Signup(c.Request.Context(), string(in.Name), in.Email, in.Password)
	if err != nil {
		return signupResp{}, err
	}
	return signupResp{Message: "User signed up successfully", UserID: u.ID}, nil
}

func (h *AuthHandler) login(c *gin.Context, in *loginReq) (loginResp, error) {
	u, token, err := h.svc.Login(c.Request.Context(), in.Email, in.Password)
	if err != nil {
		return loginResp{}, err
	}
	return loginResp{
		Message: "User logged in successfully",
		User:    loginUser{ID: u.ID, Name: u.Name, Email: u.Email},
		Token:   token,
	}, nil
}
