package mockbackend

import (
	"net/http"

	"github.com/MarkoPoloResearchLab/srquick/pkg/envelope"
	"github.com/gin-gonic/gin"
)

func taggedSuccess(ctx *gin.Context, data any) {
	ctx.JSON(http.StatusOK, gin.H{"status": envelope.StatusSuccess, "data": data})
}

func taggedFail(ctx *gin.Context, httpStatus int, message string, code string) {
	data := gin.H{"error": message}
	if code != "" {
		data["code"] = code
	}
	ctx.JSON(httpStatus, gin.H{"status": envelope.StatusFail, "data": data})
}

func taggedError(ctx *gin.Context, httpStatus int, message string, code string) {
	body := gin.H{"status": envelope.StatusError, "message": message}
	if code != "" {
		body["code"] = code
	}
	ctx.JSON(httpStatus, body)
}

func legacySuccess(ctx *gin.Context, data any) {
	ctx.JSON(http.StatusOK, gin.H{"success": true, "data": data})
}

func legacyFail(ctx *gin.Context, httpStatus int, message string, code string) {
	body := gin.H{"success": false, "error": message}
	if code != "" {
		body["code"] = code
	}
	ctx.JSON(httpStatus, body)
}
