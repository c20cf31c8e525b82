package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stressgo/stressgo/internal/errs"
)

func TestRegisterAndLookup(t *testing.T) {
	r := NewRegistry()
	r.Register(Descriptor{Name: "cpu", Class: ClassCPU})

	d, ok := r.Lookup("cpu")
	require.True(t, ok)
	assert.Equal(t, "cpu", d.Name)

	_, ok = r.Lookup("missing")
	assert.False(t, ok)
}

func TestRegisterDuplicatePanics(t *testing.T) {
	r := NewRegistry()
	r.Register(Descriptor{Name: "cpu"})
	assert.Panics(t, func() {
		r.Register(Descriptor{Name: "cpu"})
	})
}

func TestNamesSorted(t *testing.T) {
	r := NewRegistry()
	r.Register(Descriptor{Name: "vm"})
	r.Register(Descriptor{Name: "cpu"})
	assert.Equal(t, []string{"cpu", "vm"}, r.Names())
}

func TestFromIntCoercesUnknownToFailure(t *testing.T) {
	assert.Equal(t, StatusSuccess, FromInt(0))
	assert.Equal(t, StatusFailure, FromInt(1))
	assert.Equal(t, StatusNoResource, FromInt(2))
	assert.Equal(t, StatusNotImplemented, FromInt(3))
	assert.Equal(t, StatusFailure, FromInt(99))
	assert.Equal(t, StatusFailure, FromInt(-1))
}

func TestCheckCapabilityMissing(t *testing.T) {
	d := Descriptor{Name: "vm", Capability: "CAP_SYS_ADMIN"}
	err := CheckCapability(d, func(string) bool { return false })
	require.Error(t, err)
	var capErr *errs.CapabilityError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, "CAP_SYS_ADMIN", capErr.Capability)
}

func TestCheckCapabilityHeld(t *testing.T) {
	d := Descriptor{Name: "vm", Capability: "CAP_SYS_ADMIN"}
	err := CheckCapability(d, func(string) bool { return true })
	assert.NoError(t, err)
}

func TestCheckCapabilityNoneRequired(t *testing.T) {
	d := Descriptor{Name: "cpu"}
	err := CheckCapability(d, nil)
	assert.NoError(t, err)
}

func TestVerificationModeString(t *testing.T) {
	assert.Equal(t, "NONE", VerificationNone.String())
	assert.Equal(t, "ALWAYS", VerificationAlways.String())
	assert.Equal(t, "OPTIONAL", VerificationOptional.String())
}
