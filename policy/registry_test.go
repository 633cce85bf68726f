package policy_test

import (
	"errors"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-telnetd/api"
	"github.com/momentics/hioload-telnetd/control"
	"github.com/momentics/hioload-telnetd/fake"
	"github.com/momentics/hioload-telnetd/policy"
)

func TestResolveNone(t *testing.T) {
	for _, id := range []string{"", "none", " NONE "} {
		p, err := policy.Resolve(id, nil)
		require.NoError(t, err)
		assert.Nil(t, p, "id %q", id)
	}
}

func TestResolveUnknown(t *testing.T) {
	_, err := policy.Resolve("com.example.NoSuchFilter", nil)
	assert.ErrorIs(t, err, policy.ErrUnknownPolicy)
}

func TestResolveBuiltins(t *testing.T) {
	assert.Subset(t, policy.Registered(), []string{"cidr", "ratelimit", "redis"})

	p, err := policy.Resolve("CIDR", control.NewSettings(map[string]string{"deny": "10.0.0.1"}))
	require.NoError(t, err)
	assert.False(t, p.IsAllowed(netip.MustParseAddr("10.0.0.1")))
}

func TestResolveCustomPolicyAndInitFailure(t *testing.T) {
	stub := fake.NewPolicy("192.0.2.1")
	policy.Register("test-static", func() api.AdmissionPolicy { return stub })

	scoped := control.NewSettings(map[string]string{"k": "v"})
	p, err := policy.Resolve("test-static", scoped)
	require.NoError(t, err)
	assert.Same(t, stub, p)
	assert.Same(t, scoped, stub.Settings())

	boom := errors.New("boom")
	policy.Register("test-broken", func() api.AdmissionPolicy { return fake.NewPolicy().FailInitialize(boom) })
	_, err = policy.Resolve("test-broken", nil)
	assert.ErrorIs(t, err, boom)
}
