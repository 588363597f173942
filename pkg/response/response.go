package response

import (
	"net/http"

	"bankcore/internal/apperr"

	"github.com/gin-gonic/gin"
)

const (
	CodeSuccess       = 0
	CodeParamError    = 400
	CodeUnauthorized  = 401
	CodeForbidden     = 403
	CodeNotFound      = 404
	CodeServerError   = 500
	CodeBusinessError = 1000
)

const (
	CodeAccountNotFound         = 1001
	CodeSameAccountTransfer     = 1002
	CodeAccountFrozenOrInactive = 1003
	CodeInvalidAmount           = 1004
	CodeInsufficientFunds       = 1005
	CodeDuplicateAccountType    = 1006
	CodeInvalidStatusTransition = 1007
	CodeOwnerNotFound           = 1008
	CodeIdempotencyConflict     = 1009
)

type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Side    string      `json:"side,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

type mapping struct {
	status int
	code   int
}

// errorTable is the only place where error kinds meet HTTP.
var errorTable = map[apperr.Kind]mapping{
	apperr.KindAccountNotFound:         {http.StatusNotFound, CodeAccountNotFound},
	apperr.KindSameAccountTransfer:     {http.StatusBadRequest, CodeSameAccountTransfer},
	apperr.KindAccountFrozenOrInactive: {http.StatusForbidden, CodeAccountFrozenOrInactive},
	apperr.KindInvalidAmount:           {http.StatusBadRequest, CodeInvalidAmount},
	apperr.KindInsufficientFunds:       {http.StatusUnprocessableEntity, CodeInsufficientFunds},
	apperr.KindStorage:                 {http.StatusInternalServerError, CodeServerError},
	apperr.KindInvalidArgument:         {http.StatusBadRequest, CodeParamError},
	apperr.KindDuplicateAccountType:    {http.StatusConflict, CodeDuplicateAccountType},
	apperr.KindInvalidStatusTransition: {http.StatusConflict, CodeInvalidStatusTransition},
	apperr.KindOwnerNotFound:           {http.StatusNotFound, CodeOwnerNotFound},
	apperr.KindIdempotencyConflict:     {http.StatusConflict, CodeIdempotencyConflict},
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    CodeSuccess,
		Message: "success",
		Data:    data,
	})
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Code:    CodeSuccess,
		Message: "success",
		Data:    data,
	})
}

func Error(c *gin.Context, status, code int, message string) {
	c.AbortWithStatusJSON(status, Response{
		Code:    code,
		Message: message,
	})
}

func ParamError(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, CodeParamError, message)
}

func Unauthorized(c *gin.Context, message string) {
	Error(c, http.StatusUnauthorized, CodeUnauthorized, message)
}

func Forbidden(c *gin.Context, message string) {
	Error(c, http.StatusForbidden, CodeForbidden, message)
}

func ServerError(c *gin.Context, message string) {
	Error(c, http.StatusInternalServerError, CodeServerError, message)
}

// Fail writes the response for a service error. Storage failures never
// expose their cause to the client.
func Fail(c *gin.Context, err error) {
	status, code := StatusOf(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal server error"
	}
	c.AbortWithStatusJSON(status, Response{
		Code:    code,
		Message: message,
		Side:    string(apperr.SideOf(err)),
	})
}

// StatusOf returns the HTTP status and business code for err.
func StatusOf(err error) (int, int) {
	if m, ok := errorTable[apperr.KindOf(err)]; ok {
		return m.status, m.code
	}
	return http.StatusInternalServerError, CodeServerError
}
