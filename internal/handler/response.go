package handler

import (
	"errors"
	"math/big"
	"net/http"
	"strconv"

	"github.com/blues/cfledger/internal/ledger"
	"github.com/blues/cfledger/internal/logger"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
)

// CallerHeader 调用方地址请求头
const CallerHeader = "X-Caller-Address"

var errBadRequest = errors.New("bad request")

// SuccessResponse 成功响应
func SuccessResponse(c *gin.Context, statusCode int, message string, data interface{}) {
	c.JSON(statusCode, Response{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// ErrorResponse 错误响应
func ErrorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, Response{
		Success: false,
		Message: message,
		Data:    nil,
	})
}

// PagedResponse 分页响应
func PagedResponse(c *gin.Context, items interface{}, page, pageSize int, total int64) {
	if pageSize < 1 {
		pageSize = 10
	}
	SuccessResponse(c, http.StatusOK, "ok", PagedData{
		Items: items,
		Pagination: Pagination{
			Page:      page,
			PageSize:  pageSize,
			Total:     total,
			TotalPage: (total + int64(pageSize) - 1) / int64(pageSize),
		},
	})
}

// LedgerErrorResponse 按账本错误类型返回对应状态码
func LedgerErrorResponse(c *gin.Context, err error) {
	status := StatusOf(err)
	if status == http.StatusInternalServerError || status == http.StatusBadGateway {
		logger.Error("%s %s failed: %v", c.Request.Method, c.FullPath(), err)
	}
	ErrorResponse(c, status, ledger.Message(err))
}

// StatusOf 账本错误类型到 HTTP 状态码
func StatusOf(err error) int {
	switch ledger.CodeOf(err) {
	case ledger.CodeAccessDenied:
		return http.StatusForbidden
	case ledger.CodeNotFound:
		return http.StatusNotFound
	case ledger.CodeInvalidArgument, ledger.CodeZeroAmount:
		return http.StatusBadRequest
	case ledger.CodePaymentRejected:
		return http.StatusPaymentRequired
	case ledger.CodeTransferFailure:
		return http.StatusBadGateway
	case ledger.CodeUnknown:
		return http.StatusInternalServerError
	default:
		return http.StatusConflict
	}
}

// callerAddress 解析调用方地址，失败时已写入响应
func callerAddress(c *gin.Context) (common.Address, error) {
	raw := c.GetHeader(CallerHeader)
	if !common.IsHexAddress(raw) {
		ErrorResponse(c, http.StatusBadRequest, "无效的调用方地址")
		return common.Address{}, errBadRequest
	}
	return common.HexToAddress(raw), nil
}

// campaignID 解析路径中的活动ID，失败时已写入响应
func campaignID(c *gin.Context) (uint64, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		ErrorResponse(c, http.StatusBadRequest, "无效的活动ID")
		return 0, errBadRequest
	}
	return id, nil
}

// parseAmount 解析十进制金额，负数和非法格式返回 false
func parseAmount(s string) (*big.Int, bool) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		return nil, false
	}
	return v, true
}

func pageParams(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 10
	}
	return page, pageSize
}
