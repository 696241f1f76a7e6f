package paystack

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

const baseURL = "https://api.paystack.co"

var ErrNotSuccessful = errors.New("paystack request not successful")

// VerifyData is the subset of the transaction verification payload the
// checkout flow needs.
type VerifyData struct {
	Status    string  `json:"status"` // "success", "failed", "abandoned"
	Reference string  `json:"reference"`
	Amount    float64 `json:"amount"` // subunits (kobo)
	Currency  string  `json:"currency"`
	Channel   string  `json:"channel"`
	PaidAt    string  `json:"paid_at"`
}

type Subaccount struct {
	SubaccountCode   string  `json:"subaccount_code"`
	BusinessName     string  `json:"business_name"`
	AccountNumber    string  `json:"account_number"`
	PercentageCharge float64 `json:"percentage_charge"`
}

type SubaccountRequest struct {
	BusinessName     string  `json:"business_name"`
	BankCode         string  `json:"settlement_bank"`
	AccountNumber    string  `json:"account_number"`
	PercentageCharge float64 `json:"percentage_charge"`
}

type Bank struct {
	Name string `json:"name"`
	Code string `json:"code"`
}

type ResolvedAccount struct {
	AccountNumber string `json:"account_number"`
	AccountName   string `json:"account_name"`
}

// Gateway is the payment provider surface the handlers depend on. Tests
// substitute a fake; Client talks to the live Paystack API.
type Gateway interface {
	VerifyTransaction(ctx context.Context, reference string) (*VerifyData, error)
	CreateSubaccount(ctx context.Context, req SubaccountRequest) (*Subaccount, error)
	UpdateSubaccount(ctx context.Context, code string, req SubaccountRequest) (*Subaccount, error)
	ListBanks(ctx context.Context) ([]Bank, error)
	ResolveAccount(ctx context.Context, accountNumber, bankCode string) (*ResolvedAccount, error)
}

type Client struct {
	http *resty.Client
}

func NewClient(secretKey string) *Client {
	return &Client{
		http: resty.New().
			SetBaseURL(baseURL).
			SetAuthToken(secretKey).
			SetTimeout(15*time.Second).
			SetHeader("Content-Type", "application/json"),
	}
}

// envelope is Paystack's standard response wrapper.
type envelope[T any] struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

func (c *Client) VerifyTransaction(ctx context.Context, reference string) (*VerifyData, error) {
	var out envelope[VerifyData]
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/transaction/verify/" + reference)
	if err != nil {
		return nil, fmt.Errorf("failed to verify transaction: %w", err)
	}
	if resp.IsError() || !out.Status {
		return nil, fmt.Errorf("%w: %s", ErrNotSuccessful, out.Message)
	}
	return &out.Data, nil
}

func (c *Client) CreateSubaccount(ctx context.Context, req SubaccountRequest) (*Subaccount, error) {
	var out envelope[Subaccount]
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&out).
		Post("/subaccount")
	if err != nil {
		return nil, fmt.Errorf("failed to create subaccount: %w", err)
	}
	if resp.IsError() || !out.Status {
		return nil, fmt.Errorf("%w: %s", ErrNotSuccessful, out.Message)
	}
	return &out.Data, nil
}

func (c *Client) UpdateSubaccount(ctx context.Context, code string, req SubaccountRequest) (*Subaccount, error) {
	var out envelope[Subaccount]
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&out).
		Put("/subaccount/" + code)
	if err != nil {
		return nil, fmt.Errorf("failed to update subaccount: %w", err)
	}
	if resp.IsError() || !out.Status {
		return nil, fmt.Errorf("%w: %s", ErrNotSuccessful, out.Message)
	}
	return &out.Data, nil
}

func (c *Client) ListBanks(ctx context.Context) ([]Bank, error) {
	var out envelope[[]Bank]
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/bank")
	if err != nil {
		return nil, fmt.Errorf("failed to list banks: %w", err)
	}
	if resp.IsError() || !out.Status {
		return nil, fmt.Errorf("%w: %s", ErrNotSuccessful, out.Message)
	}
	return out.Data, nil
}

func (c *Client) ResolveAccount(ctx context.Context, accountNumber, bankCode string) (*ResolvedAccount, error) {
	var out envelope[ResolvedAccount]
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"account_number": accountNumber,
			"bank_code":      bankCode,
		}).
		SetResult(&out).
		Get("/bank/resolve")
	if err != nil {
		return nil, fmt.Errorf("failed to resolve account: %w", err)
	}
	if resp.IsError() || !out.Status {
		return nil, fmt.Errorf("%w: %s", ErrNotSuccessful, out.Message)
	}
	return &out.Data, nil
}
