package request

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKey(t *testing.T) {
	tests := []struct {
		raw       string
		state     string
		subsector string
		all       bool
	}{
		{"tx,trucking", "tx", "trucking", false},
		{"  TX , Residential Heating ", "tx", "Residential Heating", false},
		{"__ALL_STATES__,transit bus", "__ALL_STATES__", "transit bus", true},
		{"__all_states__,transit bus", "__ALL_STATES__", "transit bus", true},
		{"ca,electrical equip., appliances, and components", "ca", "electrical equip., appliances, and components", false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			k, err := ParseKey(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.state, k.State)
			assert.Equal(t, tt.subsector, k.Subsector)
			assert.Equal(t, tt.all, k.AllStates())
		})
	}
}

func TestParseKey_Invalid(t *testing.T) {
	for _, raw := range []string{"", "tx", "trucking", ",trucking", "tx,", "tx,   "} {
		t.Run(raw, func(t *testing.T) {
			_, err := ParseKey(raw)
			require.Error(t, err)

			var kpe *KeyParseError
			require.True(t, errors.As(err, &kpe))
			assert.Equal(t, raw, kpe.Raw)
		})
	}
}

func TestOverrideKey_String(t *testing.T) {
	assert.Equal(t, "tx,passenger car", StateKey("TX", "passenger car").String())
	assert.Equal(t, "__ALL_STATES__,passenger car", AllStatesKey(" passenger car ").String())
}

func TestOverrideKey_OrderPutsAllStatesFirst(t *testing.T) {
	all := AllStatesKey("b")
	ak := StateKey("ak", "a")
	tx := StateKey("tx", "a")

	assert.True(t, all.less(ak))
	assert.False(t, ak.less(all))
	assert.True(t, ak.less(tx))
}
