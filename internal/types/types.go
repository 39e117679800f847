// Package types provides common type definitions for the anchor indexer.
package types

import "time"

// MillisPerDay is the width of a daily statistics bucket in epoch milliseconds
const MillisPerDay int64 = 86400000

// Transfer represents a single payout inside a (mass) transfer transaction
type Transfer struct {
	Recipient string `json:"recipient"`
	Amount    int64  `json:"amount,omitempty"`
}

// Transaction is a classified blockchain transaction as delivered by the node client.
// The indexer never mutates it.
type Transaction struct {
	ID        string     `json:"id"`
	Type      int        `json:"type"`
	Sender    string     `json:"sender,omitempty"`
	Recipient string     `json:"recipient,omitempty"`
	Party     string     `json:"party,omitempty"` // counterparty of an association
	Timestamp int64      `json:"timestamp"`       // epoch milliseconds
	Transfers []Transfer `json:"transfers,omitempty"`
	Anchors   []string   `json:"anchors,omitempty"` // hashes anchored by the transaction
	Height    int64      `json:"height,omitempty"`
	Position  int        `json:"position,omitempty"`
}

// Day returns the daily statistics bucket the transaction falls into
func (tx *Transaction) Day() int64 {
	return DayOf(tx.Timestamp)
}

// Counterparty returns the party of an association, or the recipient when the
// node client did not set one
func (tx *Transaction) Counterparty() string {
	if tx.Party != "" {
		return tx.Party
	}
	return tx.Recipient
}

// AnchorRecord locates the transaction that anchored a hash
type AnchorRecord struct {
	ID          string `json:"id"`
	BlockHeight int64  `json:"blockHeight"`
	Position    int    `json:"position"`
}

// IndexEvent is one unit of work handed to the indexing pipeline
type IndexEvent struct {
	Transaction *Transaction `json:"transaction"`
	BlockHeight int64        `json:"blockHeight"`
	Position    int          `json:"position"`
}

// DayOf returns floor(timestampMs / MillisPerDay), rounding towards negative infinity
func DayOf(timestampMs int64) int64 {
	day := timestampMs / MillisPerDay
	if timestampMs%MillisPerDay < 0 {
		day--
	}
	return day
}

// DayStart returns the UTC midnight that opens the given day bucket
func DayStart(day int64) time.Time {
	return time.UnixMilli(day * MillisPerDay).UTC()
}

// StatPeriod is one row of a statistics range query
type StatPeriod struct {
	Period string `json:"period"`
	Count  int64  `json:"count"`
}

// Associations is a snapshot of an address's position in the association graph
type Associations struct {
	Children []string `json:"children"`
	Parents  []string `json:"parents"`
}

// Relationship flags of a verification method
const (
	RelationshipAuthentication       = 0x0101
	RelationshipAssertionMethod      = 0x0102
	RelationshipKeyAgreement         = 0x0104
	RelationshipCapabilityInvocation = 0x0108
	RelationshipCapabilityDelegation = 0x0110
)

var relationshipNames = []struct {
	flag int
	name string
}{
	{RelationshipAuthentication, "authentication"},
	{RelationshipAssertionMethod, "assertionMethod"},
	{RelationshipKeyAgreement, "keyAgreement"},
	{RelationshipCapabilityInvocation, "capabilityInvocation"},
	{RelationshipCapabilityDelegation, "capabilityDelegation"},
}

// VerificationMethod links a recipient key to a sender identity with a relationships bitmask
type VerificationMethod struct {
	Relationships int    `json:"relationships"`
	Sender        string `json:"sender"`
	Recipient     string `json:"recipient"`
	CreatedAt     int64  `json:"createdAt"`
	RevokedAt     *int64 `json:"revokedAt,omitempty"`
}

// IsRevoked reports whether the method carries a revocation timestamp
func (m *VerificationMethod) IsRevoked() bool {
	return m.RevokedAt != nil && *m.RevokedAt != 0
}

// Has reports whether every bit of relationship is set on the method
func (m *VerificationMethod) Has(relationship int) bool {
	return m.Relationships&relationship == relationship
}

// RelationshipNames lists the named relationships present in the bitmask
func (m *VerificationMethod) RelationshipNames() []string {
	names := make([]string, 0, len(relationshipNames))
	for _, r := range relationshipNames {
		if m.Has(r.flag) {
			names = append(names, r.name)
		}
	}
	return names
}

// Role is a trust-network role issued to a party
type Role struct {
	Role string `json:"role"`
	Type int    `json:"type"`
}

// RoleAssociation is the stored form of a role: who issued it and with which tx type
type RoleAssociation struct {
	Sender string `json:"sender"`
	Type   int    `json:"type"`
}
