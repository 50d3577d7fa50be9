package logic

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/blues/cfledger/internal/ledger"
	"github.com/blues/cfledger/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrCampaignNotFound 镜像中不存在该活动
	ErrCampaignNotFound = errors.New("活动不存在")
	// ErrEventOutOfOrder 同一活动存在更早的未应用事件，当前事件留待重放
	ErrEventOutOfOrder = errors.New("存在未应用的前序事件")
)

// CampaignLogic 活动镜像业务逻辑
type CampaignLogic struct {
	db *gorm.DB
}

// NewCampaignLogic 创建活动镜像业务逻辑
func NewCampaignLogic(db *gorm.DB) *CampaignLogic {
	return &CampaignLogic{db: db}
}

// Apply 将账本事件应用到镜像
//
// 事件以活动的 last_seq 认领，已应用的事件直接跳过；
// 镜像变更与事件日志的 processed 标记在同一事务内提交，重放任意次结果相同。
func (l *CampaignLogic) Apply(ev ledger.Event) error {
	return l.db.Transaction(func(tx *gorm.DB) error {
		var earlier int64
		if err := tx.Model(&model.EventModel{}).
			Where("campaign_id = ? AND seq < ? AND processed = ?", int64(ev.CampaignID), ev.Seq, false).
			Count(&earlier).Error; err != nil {
			return fmt.Errorf("检查前序事件失败: %w", err)
		}
		if earlier > 0 {
			return fmt.Errorf("%w: campaign=%d seq=%d", ErrEventOutOfOrder, ev.CampaignID, ev.Seq)
		}

		fresh, err := claim(tx, ev)
		if err != nil {
			return err
		}
		if fresh {
			switch ev.Type {
			case ledger.EventCampaignCreated:
				// claim 已写入
			case ledger.EventContributed:
				err = applyContributed(tx, ev)
			case ledger.EventRefunded:
				err = applyRefunded(tx, ev)
			case ledger.EventWithdrawn:
				err = applyWithdrawn(tx, ev)
			case ledger.EventCampaignClosed:
				err = applyClosed(tx, ev)
			case ledger.EventFeesCollected:
				err = applyFeesCollected(tx, ev)
			}
			if err != nil {
				return err
			}
		}

		if err := tx.Model(&model.EventModel{}).Where("seq = ?", ev.Seq).Update("processed", true).Error; err != nil {
			return fmt.Errorf("更新事件处理状态失败: %w", err)
		}
		return nil
	})
}

// claim 推进活动的 last_seq，返回事件是否首次应用
func claim(tx *gorm.DB, ev ledger.Event) (bool, error) {
	if ev.Type == ledger.EventCampaignCreated {
		campaign := model.CampaignModel{
			Id:             int64(ev.CampaignID),
			CreatorAddress: ev.Actor.Hex(),
			MetadataCID:    ev.MetadataCID,
			GoalAmount:     amountString(ev.Goal),
			CurrentAmount:  "0",
			FeeWithheld:    "0",
			FeeCollected:   "0",
			Deadline:       ev.Deadline,
			Status:         model.CampaignStatusActive,
			LastSeq:        ev.Seq,
		}
		result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&campaign)
		if result.Error != nil {
			return false, fmt.Errorf("创建活动镜像失败: %w", result.Error)
		}
		return result.RowsAffected > 0, nil
	}

	result := tx.Model(&model.CampaignModel{}).
		Where("id = ? AND last_seq < ?", int64(ev.CampaignID), ev.Seq).
		Update("last_seq", ev.Seq)
	if result.Error != nil {
		return false, fmt.Errorf("更新活动序号失败: %w", result.Error)
	}
	if result.RowsAffected > 0 {
		return true, nil
	}
	if _, err := findCampaign(tx, ev.CampaignID); err != nil {
		return false, err
	}
	return false, nil
}

// applyContributed 累加筹款金额并写入贡献记录
func applyContributed(tx *gorm.DB, ev ledger.Event) error {
	campaign, err := findCampaign(tx, ev.CampaignID)
	if err != nil {
		return err
	}

	current := parseAmount(campaign.CurrentAmount)
	current.Add(current, ev.Amount)
	updates := map[string]interface{}{
		"current_amount": current.String(),
	}
	if campaign.Status == model.CampaignStatusActive && current.Cmp(parseAmount(campaign.GoalAmount)) >= 0 {
		updates["status"] = model.CampaignStatusSuccess
	}
	if err := tx.Model(campaign).Updates(updates).Error; err != nil {
		return fmt.Errorf("更新活动金额失败: %w", err)
	}

	record := model.ContributeRecordModel{
		CampaignId: int64(ev.CampaignID),
		Amount:     amountString(ev.Amount),
		Total:      amountString(ev.Total),
		Address:    ev.Actor.Hex(),
		PaymentTx:  ev.PaymentRef,
		Seq:        ev.Seq,
	}
	if err := tx.Create(&record).Error; err != nil {
		return fmt.Errorf("创建贡献记录失败: %w", err)
	}
	return nil
}

// applyRefunded 写入退款记录
func applyRefunded(tx *gorm.DB, ev ledger.Event) error {
	record := model.RefundRecordModel{
		CampaignId: int64(ev.CampaignID),
		Amount:     amountString(ev.Amount),
		Address:    ev.Actor.Hex(),
		Seq:        ev.Seq,
	}
	if err := tx.Create(&record).Error; err != nil {
		return fmt.Errorf("创建退款记录失败: %w", err)
	}
	return nil
}

// applyWithdrawn 标记已提款并关闭活动，写入结算记录
func applyWithdrawn(tx *gorm.DB, ev ledger.Event) error {
	closedAt := ev.OccurredAt
	if err := tx.Model(&model.CampaignModel{}).Where("id = ?", int64(ev.CampaignID)).Updates(map[string]interface{}{
		"withdrawn":    true,
		"fee_withheld": amountString(ev.Fee),
		"status":       model.CampaignStatusClosed,
		"closed_at":    &closedAt,
	}).Error; err != nil {
		return fmt.Errorf("更新提款状态失败: %w", err)
	}

	return tx.Create(&model.SettlementRecordModel{
		CampaignId:     int64(ev.CampaignID),
		Recipient:      ev.Actor.Hex(),
		Amount:         amountString(ev.Amount),
		PlatformFee:    amountString(ev.Fee),
		SettlementType: model.SettlementTypeWithdraw,
		Seq:            ev.Seq,
		SettlementTime: ev.OccurredAt,
	}).Error
}

// applyClosed 标记活动关闭
func applyClosed(tx *gorm.DB, ev ledger.Event) error {
	closedAt := ev.OccurredAt
	if err := tx.Model(&model.CampaignModel{}).
		Where("id = ?", int64(ev.CampaignID)).
		Updates(map[string]interface{}{
			"status":    model.CampaignStatusClosed,
			"closed_at": &closedAt,
		}).Error; err != nil {
		return fmt.Errorf("更新活动状态失败: %w", err)
	}
	return nil
}

// applyFeesCollected 清零待领手续费并写入结算记录
func applyFeesCollected(tx *gorm.DB, ev ledger.Event) error {
	campaign, err := findCampaign(tx, ev.CampaignID)
	if err != nil {
		return err
	}

	collected := parseAmount(campaign.FeeCollected)
	collected.Add(collected, ev.Amount)
	if err := tx.Model(campaign).Updates(map[string]interface{}{
		"fee_withheld":  "0",
		"fee_collected": collected.String(),
	}).Error; err != nil {
		return fmt.Errorf("更新手续费失败: %w", err)
	}

	return tx.Create(&model.SettlementRecordModel{
		CampaignId:     int64(ev.CampaignID),
		Recipient:      ev.Actor.Hex(),
		Amount:         amountString(ev.Amount),
		PlatformFee:    "0",
		SettlementType: model.SettlementTypeFee,
		Seq:            ev.Seq,
		SettlementTime: ev.OccurredAt,
	}).Error
}

// MarkFailed 将已过期未达标的活动标记为失败，返回更新条数
func (l *CampaignLogic) MarkFailed(ids []uint64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	keys := make([]int64, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, int64(id))
	}

	result := l.db.Model(&model.CampaignModel{}).
		Where("id IN ? AND status = ?", keys, model.CampaignStatusActive).
		Update("status", model.CampaignStatusFailed)
	if result.Error != nil {
		return 0, fmt.Errorf("标记失败活动失败: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// GetCampaign 获取活动镜像
func (l *CampaignLogic) GetCampaign(id uint64) (*model.CampaignModel, error) {
	return findCampaign(l.db, id)
}

// GetCampaigns 分页获取活动列表，status 为空时不过滤
func (l *CampaignLogic) GetCampaigns(status model.CampaignStatus, page, pageSize int) ([]model.CampaignModel, int64, error) {
	var campaigns []model.CampaignModel
	var total int64

	query := l.db.Model(&model.CampaignModel{})
	if status != "" {
		query = query.Where("status = ?", status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("获取活动总数失败: %w", err)
	}

	page, pageSize = normalizePage(page, pageSize)
	if err := query.Offset((page - 1) * pageSize).Limit(pageSize).Order("id ASC").Find(&campaigns).Error; err != nil {
		return nil, 0, fmt.Errorf("获取活动列表失败: %w", err)
	}

	return campaigns, total, nil
}

func findCampaign(db *gorm.DB, id uint64) (*model.CampaignModel, error) {
	var campaign model.CampaignModel
	if err := db.First(&campaign, int64(id)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCampaignNotFound
		}
		return nil, fmt.Errorf("获取活动失败: %w", err)
	}
	return &campaign, nil
}

// normalizePage 页码从1开始，每页最多100条
func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}
	if pageSize > 100 {
		pageSize = 100
	}
	return page, pageSize
}

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func parseAmount(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return new(big.Int)
	}
	return v
}
