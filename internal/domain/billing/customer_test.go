package billing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCustomer(t *testing.T) {
	t.Run("creates an active account", func(t *testing.T) {
		c, err := NewCustomer("SOC-0042", "María Pérez", "Camino Los Aromos 12")
		require.NoError(t, err)
		assert.True(t, c.Active)
		assert.Equal(t, "SOC-0042", c.Code)
	})

	t.Run("trims and rejects blank code or name", func(t *testing.T) {
		_, err := NewCustomer("   ", "María Pérez", "")
		assert.Error(t, err)
		_, err = NewCustomer("SOC-0042", "   ", "")
		assert.Error(t, err)
	})
}

func TestResolveIdentity(t *testing.T) {
	c, err := NewCustomer("SOC-0100", "Juan Soto", "")
	require.NoError(t, err)

	renamed := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, c.AddAlias(IdentityAlias{
		Code:          "SOC-0017",
		EffectiveFrom: time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC),
		EffectiveTo:   &renamed,
	}))

	t.Run("dates inside an alias range resolve to the alias code", func(t *testing.T) {
		got := c.ResolveIdentity(time.Date(2022, 3, 15, 0, 0, 0, 0, time.UTC))
		assert.Equal(t, "SOC-0017", got)
	})

	t.Run("dates outside every alias resolve to the current code", func(t *testing.T) {
		got := c.ResolveIdentity(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
		assert.Equal(t, "SOC-0100", got)

		got = c.ResolveIdentity(time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC))
		assert.Equal(t, "SOC-0100", got)
	})

	t.Run("the alias end date itself belongs to the new identity", func(t *testing.T) {
		assert.Equal(t, "SOC-0100", c.ResolveIdentity(renamed))
	})
}

func TestAddAlias(t *testing.T) {
	jan2019 := time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC)
	jan2022 := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	jan2024 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("rejects a blank code", func(t *testing.T) {
		c, _ := NewCustomer("SOC-0001", "x", "")
		assert.Error(t, c.AddAlias(IdentityAlias{Code: " ", EffectiveFrom: jan2019}))
	})

	t.Run("rejects an empty effective range", func(t *testing.T) {
		c, _ := NewCustomer("SOC-0001", "x", "")
		assert.Error(t, c.AddAlias(IdentityAlias{
			Code: "SOC-0002", EffectiveFrom: jan2022, EffectiveTo: &jan2019,
		}))
	})

	t.Run("rejects overlapping alias ranges", func(t *testing.T) {
		c, _ := NewCustomer("SOC-0001", "x", "")
		require.NoError(t, c.AddAlias(IdentityAlias{
			Code: "SOC-0002", EffectiveFrom: jan2019, EffectiveTo: &jan2024,
		}))
		assert.Error(t, c.AddAlias(IdentityAlias{
			Code: "SOC-0003", EffectiveFrom: jan2022,
		}))
	})

	t.Run("accepts adjacent alias ranges", func(t *testing.T) {
		c, _ := NewCustomer("SOC-0001", "x", "")
		require.NoError(t, c.AddAlias(IdentityAlias{
			Code: "SOC-0002", EffectiveFrom: jan2019, EffectiveTo: &jan2022,
		}))
		assert.NoError(t, c.AddAlias(IdentityAlias{
			Code: "SOC-0003", EffectiveFrom: jan2022, EffectiveTo: &jan2024,
		}))
	})
}
