package controller

import (
	"lms_backend/internal/service"
	"lms_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type CertificateController struct {
	Certificates *service.CertificateService
}

func NewCertificateController(certificates *service.CertificateService) *CertificateController {
	return &CertificateController{Certificates: certificates}
}

func (c *CertificateController) List(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	certs, err := c.Certificates.ListForStudent(ctx.Request.Context(), actor.ID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, certs)
}

func (c *CertificateController) Get(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	cert, err := c.Certificates.GetForStudent(ctx.Request.Context(), actor.ID, ctx.Param("id"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, cert)
}

// Verify godoc
// @Summary 公开校验证书
// @Tags 证书
// @Produce json
// @Param certificateId path string true "证书编号"
// @Success 200 {object} util.Response{data=object}
// @Failure 404 {object} util.Response "证书不存在"
// @Router /api/certificates/verify/{certificateId} [get]
func (c *CertificateController) Verify(ctx *gin.Context) {
	v, err := c.Certificates.Verify(ctx.Request.Context(), ctx.Param("certificateId"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{
		"message":     "certificate is valid",
		"certificate": v,
	})
}
