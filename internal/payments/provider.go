package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// PixCharge is the provider's view of a PIX payment, flattened to the
// fields the front end and the bridge consume.
type PixCharge struct {
	ID           string
	Status       string
	StatusDetail string
	QRCode       string
	QRCodeBase64 string
	ExpiresIn    int
	Raw          json.RawMessage
}

type CreatePixRequest struct {
	AmountCents   int
	Description   string
	ReservationID uuid.UUID
	PayerEmail    string
	PayerName     string
}

// Provider issues PIX charges and reports their status.
type Provider interface {
	CreatePixPayment(ctx context.Context, req CreatePixRequest) (PixCharge, error)
	GetPayment(ctx context.Context, id string) (PixCharge, error)
}

// MercadoPago talks to the Mercado Pago payments API.
type MercadoPago struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewMercadoPago(baseURL, token string) *MercadoPago {
	return &MercadoPago{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: 8 * time.Second},
	}
}

type mpPayer struct {
	Email     string `json:"email,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

type mpCreateBody struct {
	TransactionAmount float64 `json:"transaction_amount"`
	Description       string  `json:"description"`
	PaymentMethodID   string  `json:"payment_method_id"`
	Payer             mpPayer `json:"payer"`
}

type mpPaymentResponse struct {
	ID                 json.Number `json:"id"`
	Status             string      `json:"status"`
	StatusDetail       string      `json:"status_detail"`
	PointOfInteraction struct {
		TransactionData struct {
			QRCode       string `json:"qr_code"`
			QRCodeBase64 string `json:"qr_code_base64"`
			ExpiresIn    *int   `json:"expires_in"`
		} `json:"transaction_data"`
	} `json:"point_of_interaction"`
}

func (mp *MercadoPago) CreatePixPayment(ctx context.Context, req CreatePixRequest) (PixCharge, error) {
	first, last := splitName(req.PayerName)
	body := mpCreateBody{
		TransactionAmount: float64(req.AmountCents) / 100,
		Description:       req.Description,
		PaymentMethodID:   "pix",
		Payer: mpPayer{
			Email:     req.PayerEmail,
			FirstName: first,
			LastName:  last,
		},
	}

	jsonData, err := json.Marshal(body)
	if err != nil {
		return PixCharge{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, mp.baseURL+"/v1/payments", bytes.NewBuffer(jsonData))
	if err != nil {
		return PixCharge{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+mp.token)
	httpReq.Header.Set("X-Idempotency-Key", fmt.Sprintf("pix-%s-%d", req.ReservationID, time.Now().UnixMilli()))

	return mp.do(httpReq)
}

func (mp *MercadoPago) GetPayment(ctx context.Context, id string) (PixCharge, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, mp.baseURL+"/v1/payments/"+id, nil)
	if err != nil {
		return PixCharge{}, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+mp.token)

	return mp.do(httpReq)
}

func (mp *MercadoPago) do(req *http.Request) (PixCharge, error) {
	resp, err := mp.client.Do(req)
	if err != nil {
		return PixCharge{}, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return PixCharge{}, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return PixCharge{}, fmt.Errorf("provider returned %d: %s", resp.StatusCode, raw)
	}

	var payment mpPaymentResponse
	if err = json.Unmarshal(raw, &payment); err != nil {
		return PixCharge{}, fmt.Errorf("failed to decode response: %w", err)
	}

	td := payment.PointOfInteraction.TransactionData
	expiresIn := 30 * 60
	if td.ExpiresIn != nil {
		expiresIn = *td.ExpiresIn
	}

	return PixCharge{
		ID:           payment.ID.String(),
		Status:       payment.Status,
		StatusDetail: payment.StatusDetail,
		QRCode:       td.QRCode,
		QRCodeBase64: td.QRCodeBase64,
		ExpiresIn:    expiresIn,
		Raw:          raw,
	}, nil
}

func splitName(name string) (first, last string) {
	for i, r := range name {
		if r == ' ' {
			return name[:i], name[i+1:]
		}
	}
	return name, ""
}
