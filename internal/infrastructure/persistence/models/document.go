package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/palletledger/backend/internal/domain/credit"
	"github.com/palletledger/backend/internal/domain/document"
	"github.com/shopspring/decimal"
)

// OutboundDocumentModel is the persistence model for the OutboundDocument aggregate root.
type OutboundDocumentModel struct {
	AggregateModel
	DocumentNumber   string          `gorm:"type:varchar(50);not null"`
	NumberKey        string          `gorm:"type:varchar(50);not null;index:idx_outbound_number_counterparty,priority:1;uniqueIndex:idx_outbound_natural_key,priority:1,where:fiscal_key IS NULL AND deleted_at IS NULL"`
	Series           string          `gorm:"type:varchar(10);not null;default:'';uniqueIndex:idx_outbound_natural_key,priority:2"`
	FiscalKey        *string         `gorm:"type:varchar(44);uniqueIndex"`
	EmissionDate     time.Time       `gorm:"not null;index"`
	IssuingEntity    string          `gorm:"type:varchar(20);not null"`
	CounterpartyKind string          `gorm:"type:varchar(20);not null"`
	CounterpartyID   string          `gorm:"type:varchar(20);not null;index:idx_outbound_number_counterparty,priority:2;uniqueIndex:idx_outbound_natural_key,priority:3"`
	CounterpartyName string          `gorm:"type:varchar(200)"`
	CarrierID        string          `gorm:"type:varchar(20)"`
	CarrierName      string          `gorm:"type:varchar(200)"`
	Region           string          `gorm:"type:varchar(10)"`
	RouteFlag        bool            `gorm:"not null;default:false"`
	Quantity         int             `gorm:"not null"`
	UnitValue        decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	TotalValue       decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	Status           string          `gorm:"type:varchar(20);not null;index"`
	ResolvedQuantity int             `gorm:"not null;default:0"`
	CancelReason     string          `gorm:"type:varchar(500)"`
	CancelledBy      string          `gorm:"type:varchar(100)"`
	CancelledAt      *time.Time
	DeletedAt        *time.Time `gorm:"index"`
}

// TableName returns the table name for GORM
func (OutboundDocumentModel) TableName() string {
	return "outbound_documents"
}

// ToDomain converts the persistence model to a domain OutboundDocument entity.
func (m *OutboundDocumentModel) ToDomain() *document.OutboundDocument {
	d := &document.OutboundDocument{
		BaseAggregateRoot: m.AggregateRoot(),
		Audited:           m.Audited(),
		DocumentNumber:    m.DocumentNumber,
		NumberKey:         m.NumberKey,
		Series:            m.Series,
		EmissionDate:      m.EmissionDate,
		IssuingEntity:     document.IssuingEntity(m.IssuingEntity),
		CounterpartyKind:  credit.CounterpartyKind(m.CounterpartyKind),
		CounterpartyID:    m.CounterpartyID,
		CounterpartyName:  m.CounterpartyName,
		CarrierID:         m.CarrierID,
		CarrierName:       m.CarrierName,
		Region:            m.Region,
		RouteFlag:         m.RouteFlag,
		Quantity:          m.Quantity,
		UnitValue:         m.UnitValue,
		TotalValue:        m.TotalValue,
		Status:            document.Status(m.Status),
		ResolvedQuantity:  m.ResolvedQuantity,
		CancelReason:      m.CancelReason,
		CancelledBy:       m.CancelledBy,
		CancelledAt:       m.CancelledAt,
		DeletedAt:         m.DeletedAt,
	}
	if m.FiscalKey != nil {
		d.FiscalKey = *m.FiscalKey
	}
	return d
}

// FromDomain populates the persistence model from a domain OutboundDocument entity.
func (m *OutboundDocumentModel) FromDomain(d *document.OutboundDocument) {
	m.FromDomainAggregateRoot(d.BaseAggregateRoot, d.Audited)
	m.DocumentNumber = d.DocumentNumber
	m.NumberKey = d.NumberKey
	m.Series = d.Series
	m.FiscalKey = nil
	if d.FiscalKey != "" {
		key := d.FiscalKey
		m.FiscalKey = &key
	}
	m.EmissionDate = d.EmissionDate
	m.IssuingEntity = string(d.IssuingEntity)
	m.CounterpartyKind = string(d.CounterpartyKind)
	m.CounterpartyID = d.CounterpartyID
	m.CounterpartyName = d.CounterpartyName
	m.CarrierID = d.CarrierID
	m.CarrierName = d.CarrierName
	m.Region = d.Region
	m.RouteFlag = d.RouteFlag
	m.Quantity = d.Quantity
	m.UnitValue = d.UnitValue
	m.TotalValue = d.TotalValue
	m.Status = string(d.Status)
	m.ResolvedQuantity = d.ResolvedQuantity
	m.CancelReason = d.CancelReason
	m.CancelledBy = d.CancelledBy
	m.CancelledAt = d.CancelledAt
	m.DeletedAt = d.DeletedAt
}

// OutboundDocumentModelFromDomain creates a new persistence model from a domain OutboundDocument entity.
func OutboundDocumentModelFromDomain(d *document.OutboundDocument) *OutboundDocumentModel {
	m := &OutboundDocumentModel{}
	m.FromDomain(d)
	return m
}

// DocumentSettlementModel is the persistence model for DocumentSettlement records.
// DocNumberKey and DocIssuerCNPJ identify the inbound document a settlement came from.
type DocumentSettlementModel struct {
	AggregateModel
	OutboundDocumentID uuid.UUID  `gorm:"type:uuid;not null;index"`
	Kind               string     `gorm:"type:varchar(20);not null"`
	Quantity           int        `gorm:"not null"`
	DocNumber          string     `gorm:"type:varchar(50)"`
	DocNumberKey       string     `gorm:"type:varchar(50);index:idx_settlement_source,priority:1"`
	DocSeries          string     `gorm:"type:varchar(10)"`
	DocFiscalKey       string     `gorm:"type:varchar(44)"`
	DocDate            *time.Time `gorm:"type:date"`
	DocIssuerCNPJ      string     `gorm:"type:varchar(20);index:idx_settlement_source,priority:2"`
	DocIssuerName      string     `gorm:"type:varchar(200)"`
	LinkageMode        string     `gorm:"type:varchar(20);not null;index"`
	MatchScore         int        `gorm:"not null;default:0"`
	Confirmed          bool       `gorm:"not null;default:false"`
	ConfirmedBy        string     `gorm:"type:varchar(100)"`
	ConfirmedAt        *time.Time
	Rejected           bool   `gorm:"not null;default:false"`
	RejectReason       string `gorm:"type:varchar(500)"`
	RejectedBy         string `gorm:"type:varchar(100)"`
	RejectedAt         *time.Time
	ExternalRefID      string `gorm:"type:varchar(100)"`
}

// TableName returns the table name for GORM
func (DocumentSettlementModel) TableName() string {
	return "document_settlements"
}

// ToDomain converts the persistence model to a domain DocumentSettlement entity.
func (m *DocumentSettlementModel) ToDomain() *document.DocumentSettlement {
	return &document.DocumentSettlement{
		BaseAggregateRoot:  m.AggregateRoot(),
		Audited:            m.Audited(),
		OutboundDocumentID: m.OutboundDocumentID,
		Kind:               document.SettlementKind(m.Kind),
		Quantity:           m.Quantity,
		Document: document.SettlementDocument{
			Number:     m.DocNumber,
			Series:     m.DocSeries,
			FiscalKey:  m.DocFiscalKey,
			Date:       m.DocDate,
			IssuerCNPJ: m.DocIssuerCNPJ,
			IssuerName: m.DocIssuerName,
		},
		LinkageMode:   document.LinkageMode(m.LinkageMode),
		MatchScore:    m.MatchScore,
		Confirmed:     m.Confirmed,
		ConfirmedBy:   m.ConfirmedBy,
		ConfirmedAt:   m.ConfirmedAt,
		Rejected:      m.Rejected,
		RejectReason:  m.RejectReason,
		RejectedBy:    m.RejectedBy,
		RejectedAt:    m.RejectedAt,
		ExternalRefID: m.ExternalRefID,
	}
}

// FromDomain populates the persistence model from a domain DocumentSettlement entity.
func (m *DocumentSettlementModel) FromDomain(s *document.DocumentSettlement) {
	m.FromDomainAggregateRoot(s.BaseAggregateRoot, s.Audited)
	m.OutboundDocumentID = s.OutboundDocumentID
	m.Kind = string(s.Kind)
	m.Quantity = s.Quantity
	m.DocNumber = s.Document.Number
	m.DocNumberKey = ""
	if s.Document.Number != "" {
		m.DocNumberKey = document.NormalizeNumber(s.Document.Number)
	}
	m.DocSeries = s.Document.Series
	m.DocFiscalKey = s.Document.FiscalKey
	m.DocDate = s.Document.Date
	m.DocIssuerCNPJ = s.Document.IssuerCNPJ
	m.DocIssuerName = s.Document.IssuerName
	m.LinkageMode = string(s.LinkageMode)
	m.MatchScore = s.MatchScore
	m.Confirmed = s.Confirmed
	m.ConfirmedBy = s.ConfirmedBy
	m.ConfirmedAt = s.ConfirmedAt
	m.Rejected = s.Rejected
	m.RejectReason = s.RejectReason
	m.RejectedBy = s.RejectedBy
	m.RejectedAt = s.RejectedAt
	m.ExternalRefID = s.ExternalRefID
}

// DocumentSettlementModelFromDomain creates a new persistence model from a domain DocumentSettlement entity.
func DocumentSettlementModelFromDomain(s *document.DocumentSettlement) *DocumentSettlementModel {
	m := &DocumentSettlementModel{}
	m.FromDomain(s)
	return m
}
