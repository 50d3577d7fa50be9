package ledger

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Registry 活动登记表，按自增 ID 持有全部活动
type Registry struct {
	journal   *journal
	campaigns map[uint64]*Campaign
	nextID    uint64
}

// newRegistry 创建活动登记表
func newRegistry(j *journal) *Registry {
	return &Registry{
		journal:   j,
		campaigns: make(map[uint64]*Campaign),
	}
}

// create 分配下一个 ID 并登记活动，ID 从 1 开始
func (r *Registry) create(creator common.Address, goal *big.Int, deadline time.Time, cid string, now time.Time) *Campaign {
	r.nextID++
	id := r.nextID
	c := newCampaign(id, creator, goal, deadline, cid, now)
	r.campaigns[id] = c

	r.journal.append(func() {
		delete(r.campaigns, id)
		r.nextID--
	})
	return c
}

func (r *Registry) get(id uint64) (*Campaign, error) {
	c, ok := r.campaigns[id]
	if !ok {
		return nil, newError(CodeNotFound, id, "")
	}
	return c, nil
}

// touch 在修改活动前保存一份副本，回滚时原地恢复
func (r *Registry) touch(c *Campaign) {
	prev := c.Clone()
	r.journal.append(func() {
		*c = prev
	})
}

func (r *Registry) count() uint64 {
	return r.nextID
}

func (r *Registry) list() []Campaign {
	out := make([]Campaign, 0, len(r.campaigns))
	for id := uint64(1); id <= r.nextID; id++ {
		if c, ok := r.campaigns[id]; ok {
			out = append(out, c.Clone())
		}
	}
	return out
}
