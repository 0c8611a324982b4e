package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/bookserve/settlement/internal/domain"
)

// RegistryClient queries the corporate affairs registry for business
// registration lookups.
type RegistryClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewRegistryClient(baseURL, apiKey string) *RegistryClient {
	return &RegistryClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

type registryVerifyRequest struct {
	RegistrationNumber string `json:"registration_number"`
	BusinessName       string `json:"business_name"`
}

type registryVerifyResponse struct {
	Status bool `json:"status"`
	Data   struct {
		Found          bool   `json:"found"`
		RegisteredName string `json:"registered_name"`
		Reason         string `json:"reason"`
	} `json:"data"`
	Message string `json:"message"`
}

func (c *RegistryClient) VerifyBusiness(ctx context.Context, registrationNum, businessName string) (*CheckOutcome, error) {
	payload := registryVerifyRequest{
		RegistrationNumber: registrationNum,
		BusinessName:       businessName,
	}

	var resp registryVerifyResponse
	if err := postJSON(ctx, c.httpClient, c.baseURL+"/v1/business/verify", c.apiKey, payload, &resp); err != nil {
		return nil, fmt.Errorf("VerifyBusiness: %w", err)
	}
	if !resp.Status {
		return nil, fmt.Errorf("VerifyBusiness: %s: %w", resp.Message, domain.ErrProvider)
	}

	if !resp.Data.Found {
		reason := resp.Data.Reason
		if reason == "" {
			reason = "registration number not found"
		}
		return &CheckOutcome{Passed: false, Reason: reason}, nil
	}
	return &CheckOutcome{Passed: true, MatchedAs: resp.Data.RegisteredName}, nil
}

// NINClient resolves national identification numbers against the
// identity lookup service.
type NINClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewNINClient(baseURL, apiKey string) *NINClient {
	return &NINClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

type ninLookupRequest struct {
	NIN string `json:"nin"`
}

type ninLookupResponse struct {
	Status bool `json:"status"`
	Data   struct {
		Valid    bool   `json:"valid"`
		FullName string `json:"full_name"`
		Reason   string `json:"reason"`
	} `json:"data"`
	Message string `json:"message"`
}

func (c *NINClient) VerifyNIN(ctx context.Context, nin string) (*CheckOutcome, error) {
	var resp ninLookupResponse
	if err := postJSON(ctx, c.httpClient, c.baseURL+"/v1/nin/lookup", c.apiKey, ninLookupRequest{NIN: nin}, &resp); err != nil {
		return nil, fmt.Errorf("VerifyNIN: %w", err)
	}
	if !resp.Status {
		return nil, fmt.Errorf("VerifyNIN: %s: %w", resp.Message, domain.ErrProvider)
	}

	if !resp.Data.Valid {
		reason := resp.Data.Reason
		if reason == "" {
			reason = "nin not recognized"
		}
		return &CheckOutcome{Passed: false, Reason: reason}, nil
	}
	return &CheckOutcome{Passed: true, MatchedAs: resp.Data.FullName}, nil
}

// AuthAdminClient calls the auth backend's admin surface; the KYC
// orchestrator uses it to delete identities created during a failed
// onboarding.
type AuthAdminClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewAuthAdminClient(baseURL, apiKey string) *AuthAdminClient {
	return &AuthAdminClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *AuthAdminClient) DeleteIdentity(ctx context.Context, identityID uuid.UUID) error {
	url := c.baseURL + "/admin/identities/" + identityID.String()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return fmt.Errorf("DeleteIdentity: build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("DeleteIdentity: %w: %v", domain.ErrProvider, err)
	}
	defer resp.Body.Close()

	// Already gone counts as deleted.
	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("DeleteIdentity: status %d: %s: %w", resp.StatusCode, body, domain.ErrProvider)
	}
	return nil
}

func postJSON(ctx context.Context, client *http.Client, url, apiKey string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("postJSON: marshal: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("postJSON: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+apiKey)
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("postJSON: %w: %v", domain.ErrProvider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("postJSON: status %d: %s: %w", resp.StatusCode, respBody, domain.ErrProvider)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("postJSON: decode: %w", err)
	}
	return nil
}
