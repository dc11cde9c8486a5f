package oracle

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	lp   = common.HexToAddress("0x1111111111111111111111111111111111111111")
	usdc = common.HexToAddress("0x2222222222222222222222222222222222222222")
	elk  = common.HexToAddress("0x3333333333333333333333333333333333333333")
)

func TestStaticConsult(t *testing.T) {
	o := NewStatic()
	require.NoError(t, o.SetPrice(lp, usdc, big.NewInt(3), big.NewInt(2)))
	ctx := context.Background()

	out, err := o.Consult(ctx, lp, big.NewInt(1000), usdc)
	require.NoError(t, err)
	assert.Equal(t, "1500", out.String())

	back, err := o.Consult(ctx, usdc, big.NewInt(1500), lp)
	require.NoError(t, err)
	assert.Equal(t, "1000", back.String())

	same, err := o.Consult(ctx, elk, big.NewInt(7), elk)
	require.NoError(t, err)
	assert.Equal(t, "7", same.String())

	_, err = o.Consult(ctx, elk, big.NewInt(7), usdc)
	assert.True(t, errors.Is(err, ErrNoPrice))
}

func TestStaticRejectsBadPrice(t *testing.T) {
	o := NewStatic()
	assert.Error(t, o.SetPrice(lp, usdc, big.NewInt(1), big.NewInt(0)))
	assert.Error(t, o.SetPrice(lp, usdc, big.NewInt(-1), big.NewInt(1)))
}
