package models

import "time"

// Company - клиентская компания, сообщающая об инцидентах
type Company struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	WalletAddress *string   `json:"wallet_address"`
	CreatedAt     time.Time `json:"created_at"`
}

// CompanySummary - сводка инцидентов компании по состояниям
type CompanySummary struct {
	CompanyID string        `json:"company_id"`
	Total     int           `json:"total"`
	ByStatus  []StatusCount `json:"by_status"`
}
