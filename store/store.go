package store

import (
	"fmt"
	"strconv"

	"github.com/jbelanger/exitbook/internal/decimal"
	"github.com/jbelanger/exitbook/internal/xerrors"
)

func idFor(n int) string {
	return strconv.Itoa(n)
}

func parseDecimal(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, xerrors.New(xerrors.KindDataIntegrity, "store.parseDecimal", err)
	}
	return d, nil
}

func errLotNotFound(lotID string) error {
	return xerrors.New(xerrors.KindDataIntegrity, "store.LotStore.SetRemaining", fmt.Errorf("lot not found: %s", lotID))
}
