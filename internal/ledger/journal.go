package ledger

// journal 记录每次状态修改的撤销函数，用于整笔回滚或嵌套调用的局部回滚
type journal struct {
	entries []func()
}

func (j *journal) append(undo func()) {
	j.entries = append(j.entries, undo)
}

// snapshot 返回当前版本号
func (j *journal) snapshot() int {
	return len(j.entries)
}

// revertTo 逆序撤销 rev 之后的所有修改
func (j *journal) revertTo(rev int) {
	for i := len(j.entries) - 1; i >= rev; i-- {
		j.entries[i]()
	}
	j.entries = j.entries[:rev]
}

// reset 提交后丢弃撤销记录
func (j *journal) reset() {
	j.entries = j.entries[:0]
}
