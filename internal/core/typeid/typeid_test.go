package typeid

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type alpha struct{}
type beta struct{}

func TestOfIsStable(t *testing.T) {
	a1 := Of[alpha]()
	a2 := Of[alpha]()
	b := Of[*beta]()

	assert.Equal(t, a1, a2)
	assert.NotEqual(t, a1, b)
	assert.NotZero(t, a1)
	assert.Equal(t, "typeid.alpha", a1.String())
	assert.Equal(t, "*typeid.beta", b.String())
}

func TestNamedDoesNotCollideWithTypes(t *testing.T) {
	n := Named("typeid.alpha")
	assert.NotEqual(t, Of[alpha](), n)
	assert.Equal(t, n, Named("typeid.alpha"))
	assert.Equal(t, "typeid.alpha", n.String())
}

func TestUnknownIDString(t *testing.T) {
	assert.Equal(t, "typeid(4000000000)", ID(4000000000).String())
}
