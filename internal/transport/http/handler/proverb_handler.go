package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"user-api/internal/core/apperr"
	"user-api/internal/proverb"
	"user-api/internal/transport/http/ez"
)

type Quoter interface {
	Random(ctx context.Context) (proverb.Quote, error)
}

type ProverbHandler struct{ q Quoter }

func NewProverbHandler(q Quoter) *ProverbHandler { return &ProverbHandler{q: q} }

func (h *ProverbHandler) Mount(e ez.EZ) {
	ez.RegisterAction(e, ez.Action[struct{}, proverbResp]{
		Method: http.MethodGet,
		Path:   "/",
		Binder: ez.BindNone,
		Handler: func(c *gin.Context, _ *struct{}) (proverbResp, error) {
			q, err := h.q.Random(c.Request.Context())
			if err != nil {
				return proverbResp{}, apperr.Internal("Failed to fetch a proverb.", err)
			}
			return proverbResp{Content: q.Content}, nil
		},
	})
}
