package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAuthorize(t *testing.T) {
	for balance := int64(-3); balance <= 10; balance++ {
		want := Deny
		if balance >= GenerationCost {
			want = Permit
		}
		assert.Equal(t, want, Authorize(balance, GenerationCost), "balance %d", balance)
	}

	assert.Equal(t, Permit, Authorize(5, 5), "exact balance is permitted")
	assert.Equal(t, Deny, Authorize(4, 5))
	assert.Equal(t, "permit", Permit.String())
	assert.Equal(t, "deny", Deny.String())
}
