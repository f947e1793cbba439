package model

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrPrecisionMismatch 不同精度的价格/数量不允许直接运算
var ErrPrecisionMismatch = errors.New("precision mismatch")

// Price 定点价格。内部使用 decimal 存储，precision 表示小数位数。
// 同一合约的所有价格运算要求精度一致，跨精度运算返回错误而不是静默舍入。
type Price struct {
	value     decimal.Decimal
	precision int32
}

// NewPrice 从 decimal 构造价格，按 precision 舍入到固定小数位
func NewPrice(value decimal.Decimal, precision int32) Price {
	return Price{value: value.Round(precision), precision: precision}
}

// NewPriceFromString 从字符串构造价格
func NewPriceFromString(s string, precision int32) (Price, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Price{}, fmt.Errorf("invalid price %q: %w", s, err)
	}
	return NewPrice(d, precision), nil
}

// NewPriceFromFloat 从浮点数构造价格（仅用于测试与行情模拟入口）
func NewPriceFromFloat(v float64, precision int32) Price {
	return NewPrice(decimal.NewFromFloat(v), precision)
}

// Decimal 返回底层 decimal 值
func (p Price) Decimal() decimal.Decimal { return p.value }

// Precision 返回小数位数
func (p Price) Precision() int32 { return p.precision }

// Add 同精度相加
func (p Price) Add(other Price) (Price, error) {
	if p.precision != other.precision {
		return Price{}, fmt.Errorf("%w: %d vs %d", ErrPrecisionMismatch, p.precision, other.precision)
	}
	return Price{value: p.value.Add(other.value), precision: p.precision}, nil
}

// Sub 同精度相减
func (p Price) Sub(other Price) (Price, error) {
	if p.precision != other.precision {
		return Price{}, fmt.Errorf("%w: %d vs %d", ErrPrecisionMismatch, p.precision, other.precision)
	}
	return Price{value: p.value.Sub(other.value), precision: p.precision}, nil
}

// Cmp 比较大小：-1 / 0 / +1
func (p Price) Cmp(other Price) int { return p.value.Cmp(other.value) }

// LessThan p < other
func (p Price) LessThan(other Price) bool { return p.value.LessThan(other.value) }

// GreaterThan p > other
func (p Price) GreaterThan(other Price) bool { return p.value.GreaterThan(other.value) }

// Equal 数值相等（精度也须一致）
func (p Price) Equal(other Price) bool {
	return p.precision == other.precision && p.value.Equal(other.value)
}

// IsZero 是否为零值
func (p Price) IsZero() bool { return p.value.IsZero() }

// IsPositive 是否为正
func (p Price) IsPositive() bool { return p.value.IsPositive() }

// Float64 转浮点（用于 SkipList 的排序键，不参与金额计算）
func (p Price) Float64() float64 { return p.value.InexactFloat64() }

// String 按固定精度输出，如 precision=5 时 "0.80010"
func (p Price) String() string { return p.value.StringFixed(p.precision) }

func (p Price) MarshalJSON() ([]byte, error) {
	return []byte(`"` + p.String() + `"`), nil
}

func (p *Price) UnmarshalJSON(b []byte) error {
	s, err := unquote(b)
	if err != nil {
		return fmt.Errorf("invalid price json %s: %w", b, err)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("invalid price %q: %w", s, err)
	}
	*p = Price{value: d, precision: decimalPlaces(s)}
	return nil
}

// Quantity 定点数量，非负
type Quantity struct {
	value     decimal.Decimal
	precision int32
}

// NewQuantity 从 decimal 构造数量，负值会被钳制为零
func NewQuantity(value decimal.Decimal, precision int32) Quantity {
	v := value.Round(precision)
	if v.IsNegative() {
		v = decimal.Zero
	}
	return Quantity{value: v, precision: precision}
}

// NewQuantityFromString 从字符串构造数量
func NewQuantityFromString(s string, precision int32) (Quantity, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Quantity{}, fmt.Errorf("invalid quantity %q: %w", s, err)
	}
	if d.IsNegative() {
		return Quantity{}, fmt.Errorf("negative quantity %q", s)
	}
	return NewQuantity(d, precision), nil
}

// NewQuantityFromFloat 从浮点数构造数量
func NewQuantityFromFloat(v float64, precision int32) Quantity {
	return NewQuantity(decimal.NewFromFloat(v), precision)
}

// Decimal 返回底层 decimal 值
func (q Quantity) Decimal() decimal.Decimal { return q.value }

// Precision 返回小数位数
func (q Quantity) Precision() int32 { return q.precision }

// Add 同精度相加
func (q Quantity) Add(other Quantity) (Quantity, error) {
	if q.precision != other.precision {
		return Quantity{}, fmt.Errorf("%w: %d vs %d", ErrPrecisionMismatch, q.precision, other.precision)
	}
	return Quantity{value: q.value.Add(other.value), precision: q.precision}, nil
}

// Sub 同精度相减，结果不允许为负
func (q Quantity) Sub(other Quantity) (Quantity, error) {
	if q.precision != other.precision {
		return Quantity{}, fmt.Errorf("%w: %d vs %d", ErrPrecisionMismatch, q.precision, other.precision)
	}
	v := q.value.Sub(other.value)
	if v.IsNegative() {
		return Quantity{}, fmt.Errorf("quantity underflow: %s - %s", q.String(), other.String())
	}
	return Quantity{value: v, precision: q.precision}, nil
}

// Min 两者中较小的一个
func (q Quantity) Min(other Quantity) Quantity {
	if other.value.LessThan(q.value) {
		return other
	}
	return q
}

// Cmp 比较大小
func (q Quantity) Cmp(other Quantity) int { return q.value.Cmp(other.value) }

// LessThan q < other
func (q Quantity) LessThan(other Quantity) bool { return q.value.LessThan(other.value) }

// Equal 数值相等
func (q Quantity) Equal(other Quantity) bool {
	return q.precision == other.precision && q.value.Equal(other.value)
}

// IsZero 是否为零
func (q Quantity) IsZero() bool { return q.value.IsZero() }

// IsPositive 是否为正
func (q Quantity) IsPositive() bool { return q.value.IsPositive() }

// String 按固定精度输出
func (q Quantity) String() string { return q.value.StringFixed(q.precision) }

func (q Quantity) MarshalJSON() ([]byte, error) {
	return []byte(`"` + q.String() + `"`), nil
}

func (q *Quantity) UnmarshalJSON(b []byte) error {
	s, err := unquote(b)
	if err != nil {
		return fmt.Errorf("invalid quantity json %s: %w", b, err)
	}
	qty, err := NewQuantityFromString(s, decimalPlaces(s))
	if err != nil {
		return err
	}
	*q = qty
	return nil
}

// unquote 去掉 JSON 字符串的双引号
func unquote(b []byte) (string, error) {
	if len(b) < 2 || b[0] != '"' || b[len(b)-1] != '"' {
		return "", errors.New("not a json string")
	}
	return string(b[1 : len(b)-1]), nil
}

// decimalPlaces 字符串字面量的小数位数，定长输出反推精度
func decimalPlaces(s string) int32 {
	for i := 0; i < len(s); i++ {
		if s[i] == '.' {
			return int32(len(s) - i - 1)
		}
	}
	return 0
}
