package model

import "time"

// Item is a product identified by (category, product_id).
type Item struct {
	ID        string        `json:"id"` // surrogate key, internal to the store
	Category  string        `json:"category"`
	ProductID string        `json:"product_id"`
	Identity  ItemIdentity  `json:"identity"`
	Lifecycle ItemLifecycle `json:"lifecycle"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// ItemIdentity is the brand/model/variant identity record for an item.
type ItemIdentity struct {
	Brand   string `json:"brand"`
	Model   string `json:"model"`
	Variant string `json:"variant,omitempty"`
}

// IdentityContext describes the identity-lock state consumed by the NeedSet
// engine's identity gating.
type IdentityContext struct {
	Status IdentityLockStatus `json:"status"`
}

// IdentityLockStatus is whether an item's identity fields are locked (resolved)
// or still unlocked (open to revision).
type IdentityLockStatus string

const (
	IdentityLocked   IdentityLockStatus = "locked"
	IdentityUnlocked IdentityLockStatus = "unlocked"
)
