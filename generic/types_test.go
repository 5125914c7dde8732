package generic_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/warp/shift-engine/generic"
)

func TestAmount_DisplayRoundsHalfEven(t *testing.T) {
	assert.Equal(t, "2.12", generic.Money("2.125").Display())
	assert.Equal(t, "2.14", generic.Money("2.135").Display())
	assert.Equal(t, "-7.50", generic.Money("-7.5").Display())
}

func TestAmount_SerializeOptional(t *testing.T) {
	assert.Equal(t, "", generic.SerializeOptional(nil))
	assert.Equal(t, "12.5", generic.SerializeOptional(generic.Money("12.50").Ptr()))
}
