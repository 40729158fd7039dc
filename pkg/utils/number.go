package utils

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// FlexInt aceita inteiros enviados como número, string, decimal com parte zero ou null
type FlexInt int64

func (f *FlexInt) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(bytes.Trim(data, `"`)))
	if raw == "" || raw == "null" {
		*f = 0
		return nil
	}

	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		*f = FlexInt(n)
		return nil
	}

	d, err := decimal.NewFromString(raw)
	if err != nil {
		return fmt.Errorf("valor inteiro inválido %q: %w", raw, err)
	}
	*f = FlexInt(d.IntPart())
	return nil
}

func (f FlexInt) Int64() int64 {
	return int64(f)
}

// FlexDecimal aceita valores monetários como número, string ou null
type FlexDecimal struct {
	decimal.Decimal
}

func (f *FlexDecimal) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(bytes.Trim(data, `"`)))
	if raw == "" || raw == "null" {
		f.Decimal = decimal.Zero
		return nil
	}

	d, err := decimal.NewFromString(raw)
	if err != nil {
		return fmt.Errorf("valor decimal inválido %q: %w", raw, err)
	}
	f.Decimal = d
	return nil
}

// FlexString aceita identificadores enviados como string ou número
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		*f = ""
		return nil
	}
	*f = FlexString(strings.Trim(raw, `"`))
	return nil
}

func (f FlexString) String() string {
	return string(f)
}
