package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTotalWithFee(t *testing.T) {
	buy := Trade{Side: TradeSideBuy, Total: 10000, Fee: 5}
	assert.Equal(t, 10005.0, buy.TotalWithFee())

	sell := Trade{Side: TradeSideSell, Total: 10000, Fee: 5}
	assert.Equal(t, 9995.0, sell.TotalWithFee())
}
