package billing

import (
	"strings"
	"time"

	"github.com/coopaguas/backend/internal/domain/shared"
)

// IdentityAlias is a time-ranged identity record for a customer account.
// Renamed or transferred accounts keep their invoice history under the code
// that was effective when each invoice was issued, so historical documents
// always resolve to the right identity by date.
type IdentityAlias struct {
	Code          string     `json:"code"`
	EffectiveFrom time.Time  `json:"effective_from"`
	EffectiveTo   *time.Time `json:"effective_to,omitempty"`
}

// ActiveOn reports whether the alias was the customer's identity on the date
func (a IdentityAlias) ActiveOn(d time.Time) bool {
	if d.Before(a.EffectiveFrom) {
		return false
	}
	return a.EffectiveTo == nil || d.Before(*a.EffectiveTo)
}

// Customer is a member account of the cooperative
type Customer struct {
	shared.BaseAggregateRoot
	Code           string
	Name           string
	ServiceAddress string
	Active         bool
	Aliases        []IdentityAlias
}

// NewCustomer creates an active customer account
func NewCustomer(code, name, serviceAddress string) (*Customer, error) {
	code = strings.TrimSpace(code)
	name = strings.TrimSpace(name)
	if code == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "Customer code is required")
	}
	if name == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "Customer name is required")
	}
	return &Customer{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Code:              code,
		Name:              name,
		ServiceAddress:    serviceAddress,
		Active:            true,
	}, nil
}

// Deactivate marks the account inactive. History is kept; accounts are
// never physically merged or deleted.
func (c *Customer) Deactivate() {
	c.Active = false
	c.UpdatedAt = time.Now()
}

// Activate re-enables the account
func (c *Customer) Activate() {
	c.Active = true
	c.UpdatedAt = time.Now()
}

// AddAlias records a prior identity with its effective range. Overlapping
// ranges are rejected so that ResolveIdentity stays unambiguous.
func (c *Customer) AddAlias(alias IdentityAlias) error {
	if strings.TrimSpace(alias.Code) == "" {
		return shared.NewDomainError("INVALID_INPUT", "Alias code is required")
	}
	if alias.EffectiveTo != nil && !alias.EffectiveTo.After(alias.EffectiveFrom) {
		return shared.NewDomainError("INVALID_INPUT", "Alias effective range is empty")
	}
	for _, existing := range c.Aliases {
		if aliasRangesOverlap(existing, alias) {
			return shared.NewDomainError("ALIAS_OVERLAP",
				"Alias effective range overlaps an existing alias")
		}
	}
	c.Aliases = append(c.Aliases, alias)
	c.UpdatedAt = time.Now()
	return nil
}

// ResolveIdentity returns the customer code that was effective on the given
// date: a matching alias if one covers the date, otherwise the current code.
func (c *Customer) ResolveIdentity(d time.Time) string {
	for _, alias := range c.Aliases {
		if alias.ActiveOn(d) {
			return alias.Code
		}
	}
	return c.Code
}

func aliasRangesOverlap(a, b IdentityAlias) bool {
	aOpen := a.EffectiveTo == nil
	bOpen := b.EffectiveTo == nil
	if aOpen && bOpen {
		return true
	}
	if aOpen {
		return b.EffectiveTo.After(a.EffectiveFrom)
	}
	if bOpen {
		return a.EffectiveTo.After(b.EffectiveFrom)
	}
	return a.EffectiveFrom.Before(*b.EffectiveTo) && b.EffectiveFrom.Before(*a.EffectiveTo)
}
