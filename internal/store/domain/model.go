package domain

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrInvalidStoreName = errors.New("invalid_store_name")
	ErrInvalidGSTIN     = errors.New("invalid_gstin")
	ErrStoreExists      = errors.New("store_already_exists")
	ErrStoreNotFound    = errors.New("store_not_found")
)

// GSTIN layout: 2-digit state code, 10-char PAN, entity number, default Z,
// check character. Unregistered stores may leave it empty.
var gstinPattern = regexp.MustCompile(`^[0-9]{2}[A-Z]{5}[0-9]{4}[A-Z][1-9A-Z]Z[0-9A-Z]$`)

// Store is a tenant. Every customer, khata entry and tax calculation hangs
// off exactly one store.
type Store struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	Code      string       `gorm:"type:text;not null;uniqueIndex" json:"code"`
	Name      string       `gorm:"type:text;not null" json:"name"`
	GSTIN     string       `gorm:"type:text" json:"gstin,omitempty"`
	StateCode string       `gorm:"column:state_code;type:text;not null" json:"state_code"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Store) TableName() string { return "stores" }

func (s *Store) Validate() error {
	s.Name = strings.TrimSpace(s.Name)
	s.GSTIN = strings.ToUpper(strings.TrimSpace(s.GSTIN))
	if s.Name == "" {
		return ErrInvalidStoreName
	}
	if s.GSTIN != "" {
		if !gstinPattern.MatchString(s.GSTIN) {
			return ErrInvalidGSTIN
		}
		// the GSTIN prefix is authoritative for the state of supply
		s.StateCode = s.GSTIN[:2]
	}
	if s.StateCode == "" {
		return ErrInvalidGSTIN
	}
	return nil
}

// InterState reports whether a supply to buyerStateCode leaves the store's
// state, which switches the tax split from CGST+SGST to IGST.
func (s *Store) InterState(buyerStateCode string) bool {
	buyerStateCode = strings.TrimSpace(buyerStateCode)
	if buyerStateCode == "" {
		return false
	}
	return buyerStateCode != s.StateCode
}

type Repository interface {
	Create(ctx context.Context, store *Store) error
	FindByID(ctx context.Context, id snowflake.ID) (*Store, error)
	FindByCode(ctx context.Context, code string) (*Store, error)
	List(ctx context.Context) ([]*Store, error)
}

type CreateRequest struct {
	Name      string `json:"name"`
	GSTIN     string `json:"gstin"`
	StateCode string `json:"state_code"`
}

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Store, error)
	Get(ctx context.Context, id snowflake.ID) (*Store, error)
	GetByCode(ctx context.Context, code string) (*Store, error)
	List(ctx context.Context) ([]*Store, error)
}
