package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/palletledger/backend/internal/domain/credit"
)

// CreditModel is the persistence model for the Credit aggregate root.
type CreditModel struct {
	AggregateModel
	SourceDocumentID     *uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_credits_source_document,where:deleted_at IS NULL"`
	SourceDocumentNumber string     `gorm:"type:varchar(50)"`
	OriginalQuantity     int        `gorm:"not null"`
	RemainingBalance     int        `gorm:"not null"`
	CounterpartyKind     string     `gorm:"type:varchar(20);not null"`
	CounterpartyID       string     `gorm:"type:varchar(20);not null;index"`
	CounterpartyName     string     `gorm:"type:varchar(200)"`
	Region               string     `gorm:"type:varchar(10)"`
	DueInDays            int        `gorm:"not null;default:0"`
	DueDate              time.Time  `gorm:"not null;index"`
	Status               string     `gorm:"type:varchar(20);not null;index"`
	DeletedAt            *time.Time `gorm:"index"`
}

// TableName returns the table name for GORM
func (CreditModel) TableName() string {
	return "credits"
}

// ToDomain converts the persistence model to a domain Credit entity.
func (m *CreditModel) ToDomain() *credit.Credit {
	return &credit.Credit{
		BaseAggregateRoot:    m.AggregateRoot(),
		Audited:              m.Audited(),
		SourceDocumentID:     m.SourceDocumentID,
		SourceDocumentNumber: m.SourceDocumentNumber,
		OriginalQuantity:     m.OriginalQuantity,
		RemainingBalance:     m.RemainingBalance,
		CounterpartyKind:     credit.CounterpartyKind(m.CounterpartyKind),
		CounterpartyID:       m.CounterpartyID,
		CounterpartyName:     m.CounterpartyName,
		Region:               m.Region,
		DueInDays:            m.DueInDays,
		DueDate:              m.DueDate,
		Status:               credit.Status(m.Status),
		DeletedAt:            m.DeletedAt,
	}
}

// FromDomain populates the persistence model from a domain Credit entity.
func (m *CreditModel) FromDomain(c *credit.Credit) {
	m.FromDomainAggregateRoot(c.BaseAggregateRoot, c.Audited)
	m.SourceDocumentID = c.SourceDocumentID
	m.SourceDocumentNumber = c.SourceDocumentNumber
	m.OriginalQuantity = c.OriginalQuantity
	m.RemainingBalance = c.RemainingBalance
	m.CounterpartyKind = string(c.CounterpartyKind)
	m.CounterpartyID = c.CounterpartyID
	m.CounterpartyName = c.CounterpartyName
	m.Region = c.Region
	m.DueInDays = c.DueInDays
	m.DueDate = c.DueDate
	m.Status = string(c.Status)
	m.DeletedAt = c.DeletedAt
}

// CreditModelFromDomain creates a new persistence model from a domain Credit entity.
func CreditModelFromDomain(c *credit.Credit) *CreditModel {
	m := &CreditModel{}
	m.FromDomain(c)
	return m
}

// CreditSolutionModel is the persistence model for the append-only CreditSolution log.
// The payload is stored as JSON next to its kind; destination and sale number are
// copied out of it so they can be queried.
type CreditSolutionModel struct {
	BaseModel
	CreditID            uuid.UUID  `gorm:"type:uuid;not null;index"`
	Kind                string     `gorm:"type:varchar(20);not null;index"`
	Quantity            int        `gorm:"not null"`
	BalanceBefore       int        `gorm:"not null"`
	BalanceAfter        int        `gorm:"not null"`
	Payload             []byte     `gorm:"type:text;not null"`
	DestinationCreditID *uuid.UUID `gorm:"type:uuid;index"`
	SaleDocumentNumber  string     `gorm:"type:varchar(50);index"`
	CreatedBy           string     `gorm:"type:varchar(100)"`
}

// TableName returns the table name for GORM
func (CreditSolutionModel) TableName() string {
	return "credit_solutions"
}

// ToDomain converts the persistence model to a domain CreditSolution entity.
func (m *CreditSolutionModel) ToDomain() (*credit.CreditSolution, error) {
	kind := credit.SolutionKind(m.Kind)
	payload, err := credit.DecodePayload(kind, m.Payload)
	if err != nil {
		return nil, fmt.Errorf("decode solution %s payload: %w", m.ID, err)
	}
	return &credit.CreditSolution{
		BaseEntity:    m.BaseModel.ToDomain(),
		CreditID:      m.CreditID,
		Kind:          kind,
		Quantity:      m.Quantity,
		BalanceBefore: m.BalanceBefore,
		BalanceAfter:  m.BalanceAfter,
		Payload:       payload,
		CreatedBy:     m.CreatedBy,
	}, nil
}

// CreditSolutionModelFromDomain creates a new persistence model from a domain CreditSolution entity.
func CreditSolutionModelFromDomain(s *credit.CreditSolution) (*CreditSolutionModel, error) {
	payload, err := credit.EncodePayload(s.Payload)
	if err != nil {
		return nil, err
	}
	m := &CreditSolutionModel{
		CreditID:      s.CreditID,
		Kind:          string(s.Kind),
		Quantity:      s.Quantity,
		BalanceBefore: s.BalanceBefore,
		BalanceAfter:  s.BalanceAfter,
		Payload:       payload,
		CreatedBy:     s.CreatedBy,
	}
	m.FromDomainBaseEntity(s.BaseEntity)
	if dest, ok := s.DestinationCreditID(); ok {
		m.DestinationCreditID = &dest
	}
	if sale, ok := s.Payload.(credit.SalePayload); ok {
		m.SaleDocumentNumber = sale.SaleDocumentNumber
	}
	return m, nil
}
