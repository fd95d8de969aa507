package names

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseName_ComputerForm(t *testing.T) {
	n, err := ParseName("shop.comp1234.rednet")
	require.NoError(t, err)
	assert.Equal(t, KindComputer, n.Kind)
	assert.Equal(t, "shop", n.Subdomain)
	assert.Equal(t, 1234, n.NodeID)
}

func TestParseName_AliasForm(t *testing.T) {
	n, err := ParseName("news")
	require.NoError(t, err)
	assert.Equal(t, KindAlias, n.Kind)
	assert.Equal(t, "news", n.Alias)
}

func TestParseName_CaseInsensitive(t *testing.T) {
	n, err := ParseName("SHOP.COMP1234.RedNet")
	require.NoError(t, err)
	assert.Equal(t, "shop", n.Subdomain)
}

func TestParseName_RejectsReservedAlias(t *testing.T) {
	_, err := ParseName("admin")
	assert.ErrorIs(t, err, ErrInvalidName)
}

func TestParseName_RejectsInvalidCharacters(t *testing.T) {
	_, err := ParseName("sh op")
	assert.ErrorIs(t, err, ErrInvalidName)
}

func TestParseName_RejectsHyphenBoundary(t *testing.T) {
	_, err := ParseName("-shop")
	assert.ErrorIs(t, err, ErrInvalidName)
}

func TestParseName_RejectsMalformedDotted(t *testing.T) {
	_, err := ParseName("shop.example.com")
	assert.ErrorIs(t, err, ErrInvalidName)
}

func TestParseName_RejectsEmpty(t *testing.T) {
	_, err := ParseName("")
	assert.ErrorIs(t, err, ErrInvalidName)
}

func TestComputerName_Roundtrip(t *testing.T) {
	raw := ComputerName("shop", 1234)
	n, err := ParseName(raw)
	require.NoError(t, err)
	assert.Equal(t, "shop", n.Subdomain)
	assert.Equal(t, 1234, n.NodeID)
}
