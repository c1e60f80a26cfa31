package main

import (
	"testing"

	"github.com/skip2/go-qrcode"
	"github.com/stretchr/testify/require"
)

func Test_RenderQR(t *testing.T) {
	bitmap := [][]bool{
		{true, false, true},
		{true, false, false},
		{false, true, false},
	}
	require.Equal(t, " █▄\n█▄█\n", renderQR(bitmap))

	qr, err := qrcode.New("list-id", qrcode.Medium)
	require.NoError(t, err)
	out := renderQR(qr.Bitmap())
	require.NotEmpty(t, out)
}
