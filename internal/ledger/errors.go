package ledger

import (
	"errors"
	"fmt"
)

// Code 账本错误类型
type Code string

const (
	CodeUnknown            Code = "UNKNOWN"
	CodeAccessDenied       Code = "ACCESS_DENIED"
	CodeNotFound           Code = "NOT_FOUND"
	CodeInvalidArgument    Code = "INVALID_ARGUMENT"
	CodeDeadlinePassed     Code = "DEADLINE_PASSED"
	CodeDeadlineNotReached Code = "DEADLINE_NOT_REACHED"
	CodeCampaignClosed     Code = "CAMPAIGN_CLOSED"
	CodeAlreadyClosed      Code = "ALREADY_CLOSED"
	CodeNotClosed          Code = "NOT_CLOSED"
	CodeGoalReached        Code = "GOAL_REACHED"
	CodeGoalNotReached     Code = "GOAL_NOT_REACHED"
	CodeZeroAmount         Code = "ZERO_AMOUNT"
	CodeNothingToWithdraw  Code = "NOTHING_TO_WITHDRAW"
	CodeNothingToRefund    Code = "NOTHING_TO_REFUND"
	CodeNothingToCollect   Code = "NOTHING_TO_COLLECT"
	CodeTransferFailure    Code = "TRANSFER_FAILURE"
	CodePaymentRejected    Code = "PAYMENT_REJECTED"
)

// 默认的用户可见提示
var defaultMessages = map[Code]string{
	CodeAccessDenied:       "Access denied",
	CodeNotFound:           "Campaign not found",
	CodeInvalidArgument:    "Invalid argument",
	CodeDeadlinePassed:     "Campaign has ended",
	CodeDeadlineNotReached: "Campaign has not ended yet",
	CodeCampaignClosed:     "Campaign is closed",
	CodeAlreadyClosed:      "Campaign already closed",
	CodeNotClosed:          "Campaign must be closed to collect fees",
	CodeGoalReached:        "Campaign reached its goal",
	CodeGoalNotReached:     "Campaign has not reached its goal",
	CodeZeroAmount:         "Amount must be greater than zero",
	CodeNothingToWithdraw:  "Nothing to withdraw",
	CodeNothingToRefund:    "Nothing to refund",
	CodeNothingToCollect:   "No fees to collect",
	CodeTransferFailure:    "Transfer failed",
	CodePaymentRejected:    "Payment could not be verified",
}

// Error 账本操作错误，Code 表示错误类型
type Error struct {
	Code       Code
	Message    string
	CampaignID uint64
	Err        error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = defaultMessages[e.Code]
	}
	if e.CampaignID != 0 {
		msg = fmt.Sprintf("campaign %d: %s", e.CampaignID, msg)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is 按错误类型匹配，errors.Is(err, ErrAccessDenied) 即可判断
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

var (
	ErrAccessDenied       = &Error{Code: CodeAccessDenied}
	ErrNotFound           = &Error{Code: CodeNotFound}
	ErrInvalidArgument    = &Error{Code: CodeInvalidArgument}
	ErrDeadlinePassed     = &Error{Code: CodeDeadlinePassed}
	ErrDeadlineNotReached = &Error{Code: CodeDeadlineNotReached}
	ErrCampaignClosed     = &Error{Code: CodeCampaignClosed}
	ErrAlreadyClosed      = &Error{Code: CodeAlreadyClosed}
	ErrNotClosed          = &Error{Code: CodeNotClosed}
	ErrGoalReached        = &Error{Code: CodeGoalReached}
	ErrGoalNotReached     = &Error{Code: CodeGoalNotReached}
	ErrZeroAmount         = &Error{Code: CodeZeroAmount}
	ErrNothingToWithdraw  = &Error{Code: CodeNothingToWithdraw}
	ErrNothingToRefund    = &Error{Code: CodeNothingToRefund}
	ErrNothingToCollect   = &Error{Code: CodeNothingToCollect}
	ErrTransferFailure    = &Error{Code: CodeTransferFailure}
	ErrPaymentRejected    = &Error{Code: CodePaymentRejected}
)

func newError(code Code, id uint64, message string) *Error {
	return &Error{Code: code, CampaignID: id, Message: message}
}

// Message 返回面向用户的提示信息，不含内部细节
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if e.Message != "" {
			return e.Message
		}
		return defaultMessages[e.Code]
	}
	return "Internal error"
}

// CodeOf 提取错误类型，非账本错误返回 CodeUnknown
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

// IsCode 判断错误是否为指定类型
func IsCode(err error, code Code) bool {
	return CodeOf(err) == code
}
