package contentstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"agentsend/internal/utils/log"
)

const (
	pinataPinURL      = "https://api.pinata.cloud/pinning/pinJSONToIPFS"
	pinataPinByHash   = "https://api.pinata.cloud/pinning/pinByHash"
	defaultGatewayURL = "https://gateway.pinata.cloud/ipfs/"
)

// Pinata publishes payloads to IPFS through the Pinata pinning service.
type Pinata struct {
	jwt     string
	gateway string
	client  *http.Client
}

func NewPinata(jwt, gateway string) *Pinata {
	if gateway == "" {
		gateway = defaultGatewayURL
	}
	return &Pinata{
		jwt:     jwt,
		gateway: gateway,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

type pinRequest struct {
	PinataContent  Payload        `json:"pinataContent"`
	PinataMetadata pinataMetadata `json:"pinataMetadata"`
}

type pinataMetadata struct {
	Name string `json:"name"`
}

type pinResponse struct {
	IpfsHash string `json:"IpfsHash"`
}

func (p *Pinata) Publish(ctx context.Context, payload Payload) (string, error) {
	body, err := json.Marshal(pinRequest{
		PinataContent: payload,
		PinataMetadata: pinataMetadata{
			Name: fmt.Sprintf("message-%d", payload.Timestamp.UnixMilli()),
		},
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrPublishFailed, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, pinataPinURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrPublishFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.jwt)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrPublishFailed, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("%w: pinata replied %d: %s", ErrPublishFailed, resp.StatusCode, msg)
	}

	var pin pinResponse
	if err := json.NewDecoder(resp.Body).Decode(&pin); err != nil {
		return "", fmt.Errorf("%w: %v", ErrPublishFailed, err)
	}
	return pin.IpfsHash, nil
}

func (p *Pinata) Fetch(ctx context.Context, ref string) (Payload, error) {
	var payload Payload
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.gateway+ref, nil)
	if err != nil {
		return payload, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return payload, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return payload, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return payload, fmt.Errorf("gateway replied %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return payload, err
	}
	return payload, nil
}

// Pin re-pins content published by someone else so it stays available.
// Failure is logged, not returned: pinning is best effort.
func (p *Pinata) Pin(ctx context.Context, ref string) {
	body, _ := json.Marshal(map[string]string{"hashToPin": ref})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, pinataPinByHash, bytes.NewReader(body))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.jwt)
	resp, err := p.client.Do(req)
	if err != nil {
		log.Warn("pin by hash failed", zap.String("ref", ref), zap.Error(err))
		return
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		log.Warn("pin by hash rejected", zap.String("ref", ref), zap.Int("status", resp.StatusCode))
	}
}
