// Package domain 账户聚合。余额只通过 AccountState 快照事件更新：
// 快照是幂等的全量替换而不是增量，重复应用同一快照不会重复记账。
package domain

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/pkg/eventsourcing"

	"github.com/wyfcoding/tradingengine/internal/model"
)

var (
	// ErrStaleSnapshot 快照时间早于已应用的快照，丢弃不应用
	ErrStaleSnapshot = errors.New("stale account state snapshot")
	// ErrUnbalanced total ≠ locked + free
	ErrUnbalanced = errors.New("balance total != locked + free")
)

// Balance 单币种余额
type Balance struct {
	Currency model.Currency  `json:"currency"`
	Total    decimal.Decimal `json:"total"`
	Locked   decimal.Decimal `json:"locked"`
	Free     decimal.Decimal `json:"free"`
}

// Validate 余额自洽性检查
func (b Balance) Validate() error {
	if !b.Total.Equal(b.Locked.Add(b.Free)) {
		return fmt.Errorf("%w: %s total=%s locked=%s free=%s",
			ErrUnbalanced, b.Currency, b.Total, b.Locked, b.Free)
	}
	return nil
}

// MarginBalance 单合约保证金
type MarginBalance struct {
	InstrumentID model.InstrumentID `json:"instrument_id"`
	Initial      decimal.Decimal    `json:"initial"`
	Maintenance  decimal.Decimal    `json:"maintenance"`
	Currency     model.Currency     `json:"currency"`
}

const AccountStateEventType = "AccountState"

// AccountState 账户状态快照事件
type AccountState struct {
	eventsourcing.BaseEvent
	AccountID model.AccountID `json:"account_id"`
	Balances  []Balance       `json:"balances"`
	Margins   []MarginBalance `json:"margins,omitempty"`
	Reported  bool            `json:"reported"` // true=场所回报，false=引擎推算
	TsEvent   time.Time       `json:"ts_event"`
}

func (e *AccountState) EventType() string   { return AccountStateEventType }
func (e *AccountState) AggregateID() string { return string(e.AccountID) }
func (e *AccountState) Version() int64      { return e.Ver }
func (e *AccountState) SetVersion(v int64)  { e.Ver = v }

// Account 账户聚合根
type Account struct {
	ID       model.AccountID
	balances map[model.Currency]Balance
	margins  map[model.InstrumentID]MarginBalance
	lastTs   time.Time
}

// NewAccount 创建空账户
func NewAccount(id model.AccountID) *Account {
	return &Account{
		ID:       id,
		balances: make(map[model.Currency]Balance),
		margins:  make(map[model.InstrumentID]MarginBalance),
	}
}

// ApplyState 应用账户快照：全量替换余额与保证金。
// 时间早于当前状态的快照被拒绝；同一快照重复应用结果不变。
func (a *Account) ApplyState(s *AccountState) error {
	if s.AccountID != a.ID {
		return fmt.Errorf("account %s: snapshot for %s", a.ID, s.AccountID)
	}
	if s.TsEvent.Before(a.lastTs) {
		return fmt.Errorf("%w: account %s at %s, snapshot %s",
			ErrStaleSnapshot, a.ID, a.lastTs, s.TsEvent)
	}
	for _, b := range s.Balances {
		if err := b.Validate(); err != nil {
			return err
		}
	}

	balances := make(map[model.Currency]Balance, len(s.Balances))
	for _, b := range s.Balances {
		balances[b.Currency] = b
	}
	margins := make(map[model.InstrumentID]MarginBalance, len(s.Margins))
	for _, m := range s.Margins {
		margins[m.InstrumentID] = m
	}
	a.balances = balances
	a.margins = margins
	a.lastTs = s.TsEvent
	return nil
}

// Balance 指定币种余额
func (a *Account) Balance(c model.Currency) (Balance, bool) {
	b, ok := a.balances[c]
	return b, ok
}

// FreeBalance 可用余额，无该币种时为零
func (a *Account) FreeBalance(c model.Currency) decimal.Decimal {
	return a.balances[c].Free
}

// TotalBalance 总余额
func (a *Account) TotalBalance(c model.Currency) decimal.Decimal {
	return a.balances[c].Total
}

// Balances 全部余额，按币种排序
func (a *Account) Balances() []Balance {
	out := make([]Balance, 0, len(a.balances))
	for _, b := range a.balances {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Currency < out[j].Currency })
	return out
}

// Margins 全部合约保证金，按合约排序
func (a *Account) Margins() []MarginBalance {
	out := make([]MarginBalance, 0, len(a.margins))
	for _, m := range a.margins {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].InstrumentID.String() < out[j].InstrumentID.String() })
	return out
}

// Margin 指定合约保证金
func (a *Account) Margin(id model.InstrumentID) (MarginBalance, bool) {
	m, ok := a.margins[id]
	return m, ok
}

// MarginsInit 各合约初始保证金合计（按币种）
func (a *Account) MarginsInit() map[model.Currency]decimal.Decimal {
	out := make(map[model.Currency]decimal.Decimal)
	for _, m := range a.margins {
		out[m.Currency] = out[m.Currency].Add(m.Initial)
	}
	return out
}

// MarginsMaint 各合约维持保证金合计（按币种）
func (a *Account) MarginsMaint() map[model.Currency]decimal.Decimal {
	out := make(map[model.Currency]decimal.Decimal)
	for _, m := range a.margins {
		out[m.Currency] = out[m.Currency].Add(m.Maintenance)
	}
	return out
}

// LastUpdated 最近快照时间
func (a *Account) LastUpdated() time.Time { return a.lastTs }
