package credit_test

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/warp/gym-credit/credit"
	"github.com/warp/gym-credit/gym"
)

func TestValidatePolicy(t *testing.T) {
	valid := *monthlyPolicy()
	assert.NoError(t, credit.ValidatePolicy(valid))

	free := valid
	free.Price = decimal.Zero
	assert.NoError(t, credit.ValidatePolicy(free), "free trial policies are allowed")

	tests := map[string]func(p *gym.PricePolicy){
		"empty name":     func(p *gym.PricePolicy) { p.Name = "" },
		"long name":      func(p *gym.PricePolicy) { p.Name = strings.Repeat("x", 33) },
		"zero credits":   func(p *gym.PricePolicy) { p.CreditCount = 0 },
		"zero period":    func(p *gym.PricePolicy) { p.Period = 0 },
		"negative price": func(p *gym.PricePolicy) { p.Price = decimal.NewFromInt(-1) },
	}

	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			p := valid
			mutate(&p)
			assert.ErrorIs(t, credit.ValidatePolicy(p), gym.ErrInvalidPolicy)
		})
	}
}
