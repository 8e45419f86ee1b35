package address

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveIsPermutationInvariant(t *testing.T) {
	signers := []string{"alice", "bob", "carol", "dave", "erin"}
	expected := Derive(signers, 3)

	r := rand.New(rand.NewSource(42))
	for i := 0; i < 50; i++ {
		shuffled := append([]string(nil), signers...)
		r.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		assert.Equal(t, expected, Derive(shuffled, 3))
	}
}

func TestDeriveDoesNotMutateInput(t *testing.T) {
	signers := []string{"carol", "alice", "bob"}
	Derive(signers, 2)
	assert.Equal(t, []string{"carol", "alice", "bob"}, signers)
}

func TestDeriveDistinguishesInputs(t *testing.T) {
	testCases := []struct {
		name string
		a, b func() string
	}{
		{
			name: "different threshold",
			a:    func() string { return Derive([]string{"alice", "bob", "carol"}, 2) },
			b:    func() string { return Derive([]string{"alice", "bob", "carol"}, 3) },
		},
		{
			name: "different signer",
			a:    func() string { return Derive([]string{"alice", "bob"}, 2) },
			b:    func() string { return Derive([]string{"alice", "bobby"}, 2) },
		},
		{
			name: "ambiguous concatenation",
			a:    func() string { return Derive([]string{"ab", "c"}, 1) },
			b:    func() string { return Derive([]string{"a", "bc"}, 1) },
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.NotEqual(t, tc.a(), tc.b())
		})
	}
}

func TestDeriveFormat(t *testing.T) {
	addr := Derive([]string{"alice", "bob"}, 1)
	assert.True(t, strings.HasPrefix(addr, Prefix))
	assert.True(t, IsValid(addr))
	assert.Equal(t, addr, Derive([]string{"bob", "alice"}, 1))
}

func TestIsValid(t *testing.T) {
	valid := Derive([]string{"alice", "bob"}, 2)

	assert.False(t, IsValid(""))
	assert.False(t, IsValid("msig"))
	assert.False(t, IsValid(strings.TrimPrefix(valid, Prefix)))
	assert.False(t, IsValid(valid[:len(valid)-1]+"1"))
	assert.False(t, IsValid("0x52908400098527886E0F7030069857D2E4169EE7"))
}
