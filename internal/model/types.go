package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

// ID is a numeric identifier that also accepts quoted numbers on decode.
type ID int64

func (id ID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	if len(b) == 0 || string(b) == "null" {
		*id = 0
		return nil
	}
	v, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid id %q: %w", b, err)
	}
	*id = ID(v)
	return nil
}

func ParseID(s string) (ID, error) {
	var id ID
	if err := id.UnmarshalJSON([]byte(s)); err != nil {
		return 0, err
	}
	return id, nil
}

// MinorUnits is the number of decimal places money is kept to.
const MinorUnits = 2

// Money is a decimal amount encoded as a plain JSON number.
type Money struct {
	decimal.Decimal
}

func NewMoney(d decimal.Decimal) Money {
	return Money{Decimal: d.Round(MinorUnits)}
}

func ParseMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return NewMoney(d), nil
}

func MustMoney(s string) Money {
	m, err := ParseMoney(s)
	if err != nil {
		panic(err)
	}
	return m
}

// Times returns the amount multiplied by a unit count.
func (m Money) Times(n int) Money {
	return NewMoney(m.Decimal.Mul(decimal.NewFromInt(int64(n))))
}

func (m Money) Add(o Money) Money {
	return NewMoney(m.Decimal.Add(o.Decimal))
}

func (m Money) Sub(o Money) Money {
	return NewMoney(m.Decimal.Sub(o.Decimal))
}

func (m Money) Equal(o Money) bool {
	return m.Decimal.Equal(o.Decimal)
}

func (m Money) LessThan(o Money) bool {
	return m.Decimal.LessThan(o.Decimal)
}

func (m Money) String() string {
	return m.Decimal.StringFixed(MinorUnits)
}

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Money) UnmarshalJSON(b []byte) error {
	var d decimal.Decimal
	if err := json.Unmarshal(b, &d); err != nil {
		return err
	}
	*m = NewMoney(d)
	return nil
}
