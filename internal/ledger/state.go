package ledger

import (
	"time"
)

// State 活动的有效状态，由存储状态、截止时间和筹款额共同推导
type State string

const (
	StateActive     State = "active"
	StateSuccessful State = "successful"
	StateFailed     State = "failed" // 截止且未达标，从不写入存储
	StateClosed     State = "closed"
)

// EffectiveState 推导活动在 now 时刻的有效状态
func EffectiveState(c Campaign, now time.Time) State {
	switch {
	case c.Status == StatusClosed:
		return StateClosed
	case c.GoalReached():
		return StateSuccessful
	case !now.Before(c.Deadline):
		return StateFailed
	default:
		return StateActive
	}
}

// stateMachine 负责所有状态迁移与资金操作前置校验
type stateMachine struct{}

// checkContribution 贡献前置校验
func (stateMachine) checkContribution(c *Campaign, now time.Time) error {
	if c.Status == StatusClosed {
		return newError(CodeCampaignClosed, c.ID, "")
	}
	if !now.Before(c.Deadline) {
		return newError(CodeDeadlinePassed, c.ID, "")
	}
	return nil
}

// afterContribution 达标时 ACTIVE -> SUCCESSFUL
func (stateMachine) afterContribution(c *Campaign) {
	if c.Status == StatusActive && c.GoalReached() {
		c.Status = StatusSuccessful
	}
}

// checkRefund 退款前置校验：已截止且未达标
func (stateMachine) checkRefund(c *Campaign, now time.Time) error {
	if now.Before(c.Deadline) {
		return newError(CodeDeadlineNotReached, c.ID, "")
	}
	if c.GoalReached() {
		return newError(CodeGoalReached, c.ID, "Refunds are not available for successful campaigns")
	}
	return nil
}

// checkWithdraw 提现前置校验
//
// 未达标的活动返回 GoalNotReached，提现与退款因此互斥。
// 提现由 withdrawn 标志防重而不看 status，创建者手动关闭活动后仍可提现一次。
func (stateMachine) checkWithdraw(c *Campaign) error {
	if c.Withdrawn {
		return newError(CodeAlreadyClosed, c.ID, "Funds already withdrawn")
	}
	if c.TotalFunded.Sign() == 0 {
		return newError(CodeNothingToWithdraw, c.ID, "")
	}
	if !c.GoalReached() {
		return newError(CodeGoalNotReached, c.ID, "")
	}
	return nil
}

// close 迁移到终态
func (stateMachine) close(c *Campaign, now time.Time) {
	if c.Status == StatusClosed {
		return
	}
	c.Status = StatusClosed
	t := now
	c.ClosedAt = &t
}
