package ledger

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// ContributionLedger 记录每个 (活动, 贡献者) 的累计贡献金额，以及已入账的付款凭证
type ContributionLedger struct {
	journal *journal
	entries map[uint64]map[common.Address]*big.Int
	refs    map[string]uint64
}

func newContributionLedger(j *journal) *ContributionLedger {
	return &ContributionLedger{
		journal: j,
		entries: make(map[uint64]map[common.Address]*big.Int),
		refs:    make(map[string]uint64),
	}
}

func normalizeRef(ref string) string {
	return strings.ToLower(strings.TrimSpace(ref))
}

// refUsed 付款凭证是否已入账
func (l *ContributionLedger) refUsed(ref string) bool {
	_, ok := l.refs[normalizeRef(ref)]
	return ok
}

// claimRef 登记付款凭证，空凭证忽略
func (l *ContributionLedger) claimRef(ref string, id uint64) {
	key := normalizeRef(ref)
	if key == "" {
		return
	}
	l.refs[key] = id
	l.journal.append(func() {
		delete(l.refs, key)
	})
}

// add 累加贡献金额，返回该贡献者的新累计值
func (l *ContributionLedger) add(id uint64, who common.Address, amount *big.Int) *big.Int {
	byAddr, ok := l.entries[id]
	if !ok {
		byAddr = make(map[common.Address]*big.Int)
		l.entries[id] = byAddr
	}

	prev, existed := byAddr[who]
	next := new(big.Int).Set(amount)
	if existed {
		next.Add(next, prev)
	}
	byAddr[who] = next

	l.journal.append(func() {
		if existed {
			byAddr[who] = prev
		} else {
			delete(byAddr, who)
		}
	})
	return new(big.Int).Set(next)
}

// amountOf 查询累计贡献，未贡献返回 0
func (l *ContributionLedger) amountOf(id uint64, who common.Address) *big.Int {
	if v, ok := l.entries[id][who]; ok {
		return new(big.Int).Set(v)
	}
	return new(big.Int)
}

// zero 清零贡献记录并返回原金额，退款前调用
func (l *ContributionLedger) zero(id uint64, who common.Address) *big.Int {
	byAddr := l.entries[id]
	prev, ok := byAddr[who]
	if !ok || prev.Sign() == 0 {
		return new(big.Int)
	}
	byAddr[who] = new(big.Int)

	l.journal.append(func() {
		byAddr[who] = prev
	})
	return new(big.Int).Set(prev)
}

// sum 汇总某活动的贡献余额，等于总筹款减去已退款
func (l *ContributionLedger) sum(id uint64) *big.Int {
	total := new(big.Int)
	for _, v := range l.entries[id] {
		total.Add(total, v)
	}
	return total
}

func (l *ContributionLedger) contributors(id uint64) int {
	n := 0
	for _, v := range l.entries[id] {
		if v.Sign() > 0 {
			n++
		}
	}
	return n
}
