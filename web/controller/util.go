package controller

import (
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/pwless/pwless/logger"
	"github.com/pwless/pwless/util/common"
	"github.com/pwless/pwless/web/entity"
)

// getRemoteIp extracts the real IP address from the request headers or remote address.
func getRemoteIp(c *gin.Context) string {
	value := c.GetHeader("X-Real-IP")
	if value != "" {
		return value
	}
	value = c.GetHeader("X-Forwarded-For")
	if value != "" {
		ips := strings.Split(value, ",")
		return ips[0]
	}
	addr := c.Request.RemoteAddr
	ip, _, _ := net.SplitHostPort(addr)
	return ip
}

// jsonMsg sends a JSON response with a message and error status.
func jsonMsg(c *gin.Context, msg string, err error) {
	jsonMsgObj(c, msg, nil, err)
}

// jsonObj sends a JSON response with an object and error status.
func jsonObj(c *gin.Context, obj any, err error) {
	jsonMsgObj(c, "", obj, err)
}

// jsonMsgObj sends a JSON response with a message, object, and error status.
func jsonMsgObj(c *gin.Context, msg string, obj any, err error) {
	m := entity.Msg{
		Obj: obj,
	}
	if err == nil {
		m.Success = true
		if msg != "" {
			m.Msg = msg
		}
	} else {
		m.Success = false
		m.Msg = msg + " (" + err.Error() + ")"
		logger.Warning(msg+" failed: ", err)
	}
	c.JSON(http.StatusOK, m)
}

// pureJsonMsg sends a pure JSON message response with custom status code.
func pureJsonMsg(c *gin.Context, statusCode int, success bool, msg string) {
	c.JSON(statusCode, entity.Msg{
		Success: success,
		Msg:     msg,
	})
}

// bannerError renders err as a non-fatal banner. Validation, provider and
// not-pre-authorized errors answer 200 with a banner payload so the host page
// stays alive; plain database failures answer 500.
func bannerError(c *gin.Context, err error) {
	kind := common.KindOf(err)
	if kind == "" {
		jsonMsg(c, "operation", err)
		return
	}
	var ae *common.AppError
	errors.As(err, &ae)
	status := http.StatusOK
	if kind == common.KindDatabase {
		status = http.StatusInternalServerError
	}
	logger.Warningf("%s error: %v", kind, err)
	c.JSON(status, entity.Msg{
		Success: false,
		Msg:     ae.Error(),
		Obj: entity.Banner{
			Kind:  kind,
			Field: ae.Field(),
			Msg:   ae.Error(),
		},
	})
}
