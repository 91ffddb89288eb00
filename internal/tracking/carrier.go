package tracking

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/huangsam/callstat/internal/contract"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// Endpoints are the OAuth token and tracking URLs of a carrier API.
type Endpoints struct {
	TokenURL string
	TrackURL string
}

// Carrier API endpoints.
var (
	UPSEndpoints = Endpoints{
		TokenURL: "https://onlinetools.ups.com/security/v1/oauth/token",
		TrackURL: "https://onlinetools.ups.com/api/track/v1/details",
	}
	FedExProduction = Endpoints{
		TokenURL: "https://apis.fedex.com/oauth/token",
		TrackURL: "https://apis.fedex.com/track/v1/trackingnumbers",
	}
	FedExSandbox = Endpoints{
		TokenURL: "https://apis-sandbox.fedex.com/oauth/token",
		TrackURL: "https://apis-sandbox.fedex.com/track/v1/trackingnumbers",
	}
)

const transactionSource = "callstat"

// oauthClient returns an HTTP client that fetches and refreshes client-credentials
// tokens. Every request, including token requests, is bounded by timeout.
func oauthClient(ctx context.Context, cfg *clientcredentials.Config, timeout time.Duration) *http.Client {
	base := &http.Client{Timeout: timeout}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, base)
	client := cfg.Client(ctx)
	client.Timeout = timeout
	return client
}

// describe formats a carrier status as "description (code)".
func describe(description, code string) string {
	if description == "" {
		return ""
	}
	if code == "" {
		return description
	}
	return fmt.Sprintf("%s (%s)", description, code)
}

// doJSON sends the request and decodes a 2xx JSON body into out.
func doJSON(client *http.Client, req *http.Request, out any) error {
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// UPSClient queries the UPS tracking API.
type UPSClient struct {
	http     *http.Client
	trackURL string
}

var _ contract.CarrierClient = &UPSClient{} // Compile-time check

// NewUPSClient creates a UPS client authenticating with HTTP basic client credentials.
func NewUPSClient(ctx context.Context, clientID, clientSecret string, ep Endpoints, timeout time.Duration) *UPSClient {
	cfg := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     ep.TokenURL,
		AuthStyle:    oauth2.AuthStyleInHeader,
	}
	return &UPSClient{http: oauthClient(ctx, cfg, timeout), trackURL: ep.TrackURL}
}

// Name implements the CarrierClient interface.
func (c *UPSClient) Name() string { return "UPS" }

// Handles implements the CarrierClient interface.
func (c *UPSClient) Handles(trackingNumber string) bool { return IsUPS(trackingNumber) }

type upsResponse struct {
	Errors []struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
	TrackResponse struct {
		Shipment []struct {
			Package []struct {
				Activity []struct {
					Status struct {
						Description string `json:"description"`
						Code        string `json:"code"`
					} `json:"status"`
					Description string `json:"description"`
				} `json:"activity"`
				CurrentStatus struct {
					Description string `json:"description"`
				} `json:"currentStatus"`
			} `json:"package"`
		} `json:"shipment"`
	} `json:"trackResponse"`
}

// status returns the most recent activity of the first package.
func (r upsResponse) status() string {
	if len(r.Errors) > 0 {
		return "Error: " + describe(r.Errors[0].Message, r.Errors[0].Code)
	}
	if len(r.TrackResponse.Shipment) == 0 || len(r.TrackResponse.Shipment[0].Package) == 0 {
		return ""
	}
	pkg := r.TrackResponse.Shipment[0].Package[0]
	if len(pkg.Activity) > 0 {
		latest := pkg.Activity[0]
		if s := describe(latest.Status.Description, latest.Status.Code); s != "" {
			return s
		}
		if latest.Description != "" {
			return latest.Description
		}
	}
	return pkg.CurrentStatus.Description
}

// Status implements the CarrierClient interface.
func (c *UPSClient) Status(ctx context.Context, trackingNumber string) (string, error) {
	q := url.Values{
		"locale":           {"en_US"},
		"returnSignature":  {"false"},
		"returnMilestones": {"false"},
		"returnPOD":        {"false"},
	}
	endpoint := c.trackURL + "/" + url.PathEscape(trackingNumber) + "?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("transId", uuid.NewString())
	req.Header.Set("transactionSrc", transactionSource)

	var out upsResponse
	if err := doJSON(c.http, req, &out); err != nil {
		return "", fmt.Errorf("ups lookup of %s failed: %w", trackingNumber, err)
	}
	return out.status(), nil
}

// FedExClient queries the FedEx tracking API.
type FedExClient struct {
	http     *http.Client
	trackURL string
}

var _ contract.CarrierClient = &FedExClient{} // Compile-time check

// NewFedExClient creates a FedEx client sending its credentials in the token request body.
func NewFedExClient(ctx context.Context, apiKey, apiSecret string, ep Endpoints, timeout time.Duration) *FedExClient {
	cfg := &clientcredentials.Config{
		ClientID:     apiKey,
		ClientSecret: apiSecret,
		TokenURL:     ep.TokenURL,
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	return &FedExClient{http: oauthClient(ctx, cfg, timeout), trackURL: ep.TrackURL}
}

// Name implements the CarrierClient interface.
func (c *FedExClient) Name() string { return "FedEx" }

// Handles implements the CarrierClient interface.
func (c *FedExClient) Handles(trackingNumber string) bool { return IsFedEx(trackingNumber) }

type fedexAlert struct {
	Message string `json:"message"`
}

type fedexResponse struct {
	Output struct {
		Alerts               json.RawMessage `json:"alerts"`
		CompleteTrackResults []struct {
			TrackResults []struct {
				LatestStatusDetail struct {
					Description string `json:"description"`
					Code        string `json:"code"`
				} `json:"latestStatusDetail"`
				ScanEvents []struct {
					EventDescription string `json:"eventDescription"`
				} `json:"scanEvents"`
			} `json:"trackResults"`
		} `json:"completeTrackResults"`
	} `json:"output"`
}

// alert returns the first alert message; FedEx sends either a list or a single object.
func (r fedexResponse) alert() (string, bool) {
	raw := bytes.TrimSpace(r.Output.Alerts)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", false
	}
	var list []fedexAlert
	if err := json.Unmarshal(raw, &list); err == nil {
		if len(list) == 0 {
			return "", true
		}
		return alertMessage(list[0]), true
	}
	var one fedexAlert
	if err := json.Unmarshal(raw, &one); err == nil {
		return alertMessage(one), true
	}
	return "", true
}

func alertMessage(a fedexAlert) string {
	if a.Message == "" {
		return "Alert received"
	}
	return a.Message
}

func (r fedexResponse) status() string {
	if msg, ok := r.alert(); ok {
		return msg
	}
	for _, result := range r.Output.CompleteTrackResults {
		for _, track := range result.TrackResults {
			if s := describe(track.LatestStatusDetail.Description, track.LatestStatusDetail.Code); s != "" {
				return s
			}
			if len(track.ScanEvents) > 0 && track.ScanEvents[0].EventDescription != "" {
				return track.ScanEvents[0].EventDescription
			}
		}
	}
	return ""
}

// Status implements the CarrierClient interface.
func (c *FedExClient) Status(ctx context.Context, trackingNumber string) (string, error) {
	payload := map[string]any{
		"includeDetailedScans": true,
		"trackingInfo": []map[string]any{
			{"trackingNumberInfo": map[string]string{"trackingNumber": trackingNumber}},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.trackURL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-locale", "en_US")

	var out fedexResponse
	if err := doJSON(c.http, req, &out); err != nil {
		return "", fmt.Errorf("fedex lookup of %s failed: %w", trackingNumber, err)
	}
	return out.status(), nil
}
