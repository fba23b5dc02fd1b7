package dto

type CreatePurchaseRequest struct {
	SKU      string `json:"sku"`
	Provider string `json:"provider"`
}

type CreatePurchaseResponse struct {
	PurchaseID     int64  `json:"purchase_id"`
	SKU            string `json:"sku"`
	Provider       string `json:"provider"`
	AmountPatinhas int64  `json:"amount_patinhas"`
	Status         string `json:"status"`
}

type PurchaseWebhookRequest struct {
	PurchaseID   int64  `json:"purchase_id"`
	Provider     string `json:"provider"`
	ProviderTxID string `json:"provider_tx_id"`
}

type PurchaseWebhookResponse struct {
	PurchaseID       int64 `json:"purchase_id"`
	AmountPatinhas   int64 `json:"amount_patinhas"`
	AlreadyProcessed bool  `json:"already_processed"`
}
