package lifecycle

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-asset-lifecycle/internal/assets"
)

// Money columns are NUMERIC(14,2).
const moneyScale = 2

var moneyLimit = decimal.New(1, 12)

// validMoney rejects amounts the database would round or refuse. Trailing
// zeros beyond two places are fine.
func validMoney(field string, d *decimal.Decimal) error {
	if d == nil {
		return nil
	}
	if d.IsNegative() {
		return fmt.Errorf("%w: %s must not be negative", assets.ErrValidation, field)
	}
	if !d.Equal(d.Truncate(moneyScale)) {
		return fmt.Errorf("%w: %s allows at most %d decimal places, got %s", assets.ErrValidation, field, moneyScale, d.String())
	}
	if d.Cmp(moneyLimit) >= 0 {
		return fmt.Errorf("%w: %s must be below %s", assets.ErrValidation, field, moneyLimit.String())
	}
	return nil
}
