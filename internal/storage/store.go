package storage

import (
	"context"
	"strconv"
	"strings"
)

// Key categories
const (
	CategoryAnchor           = "anchor"
	CategoryPublicKey        = "pubkey"
	CategoryVerification     = "verification"
	CategoryRoles            = "roles"
	CategoryAssociation      = "assoc"
	CategoryTxStats          = "txstats"
	CategorySupply           = "supply"
	CategoryProcessingHeight = "processing-height"
)

// Store builds canonical keys under one namespace and dispatches to the driver
// chosen at startup.
type Store struct {
	Driver
	namespace string
}

// NewStore binds a driver to a namespace
func NewStore(driver Driver, namespace string) *Store {
	return &Store{Driver: driver, namespace: namespace}
}

// Namespace returns the key prefix
func (s *Store) Namespace() string {
	return s.namespace
}

// Key returns <namespace>:<category>[:<part>...]
func (s *Store) Key(category string, parts ...string) string {
	var b strings.Builder
	b.WriteString(s.namespace)
	b.WriteByte(':')
	b.WriteString(category)
	for _, p := range parts {
		b.WriteByte(':')
		b.WriteString(p)
	}
	return b.String()
}

// AnchorKey lower-cases the hash so lookups are case-insensitive
func (s *Store) AnchorKey(hash string) string {
	return s.Key(CategoryAnchor, strings.ToLower(hash))
}

func (s *Store) PublicKeyKey(address string) string {
	return s.Key(CategoryPublicKey, address)
}

func (s *Store) VerificationKey(address string) string {
	return s.Key(CategoryVerification, address)
}

func (s *Store) RolesKey(address string) string {
	return s.Key(CategoryRoles, address)
}

func (s *Store) ChildrenKey(address string) string {
	return s.Key(CategoryAssociation, address, "childs")
}

func (s *Store) ParentsKey(address string) string {
	return s.Key(CategoryAssociation, address, "parents")
}

func (s *Store) StatsKey(identifier string, day int64) string {
	return s.Key(CategoryTxStats, identifier, strconv.FormatInt(day, 10))
}

func (s *Store) FeeBurnedKey() string {
	return s.Key(CategorySupply, "txfeeburned")
}

func (s *Store) FeeBurnHeightKey() string {
	return s.Key(CategorySupply, "feeburnheight")
}

func (s *Store) ProcessingHeightKey() string {
	return s.Key(CategoryProcessingHeight)
}

// SaveAnchor stores the transaction metadata proving the hash was anchored
func (s *Store) SaveAnchor(ctx context.Context, hash string, tx interface{}) error {
	return s.AddObject(ctx, s.AnchorKey(hash), tx)
}

// GetAnchor decodes the metadata stored for hash into out
func (s *Store) GetAnchor(ctx context.Context, hash string, out interface{}) error {
	return s.GetObject(ctx, s.AnchorKey(hash), out)
}

func (s *Store) SavePublicKey(ctx context.Context, address string, publicKey string) error {
	return s.SetValue(ctx, s.PublicKeyKey(address), publicKey)
}

func (s *Store) GetPublicKey(ctx context.Context, address string) (string, error) {
	return s.GetValue(ctx, s.PublicKeyKey(address))
}
