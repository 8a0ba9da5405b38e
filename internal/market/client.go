// Package market resolves monetary values for item lookup keys from the
// Steam Community Market, fronted by a TTL cache with stale fallback.
package market

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	priceOverviewURL = "https://steamcommunity.com/market/priceoverview/"
	listingsURL      = "https://steamcommunity.com/market/listings/730/"
	userAgent        = "case-engine/1.0 (+https://example.invalid)"
)

// Quote is one price sub-lookup result. Fields are nil when the source
// omitted them.
type Quote struct {
	PriceCents  *int64
	LowestPrice *string
	MedianPrice *string
	Volume      *int64
}

// Fetcher is the external price source collaborator. Both lookups may
// independently fail; the resolver merges whatever succeeded.
type Fetcher interface {
	// PriceOverview fetches the lightweight price summary for a lookup key.
	PriceOverview(ctx context.Context, key string) (*Quote, error)
	// ListingImage fetches a display image URL for a lookup key.
	ListingImage(ctx context.Context, key string) (*string, error)
}

// SteamClient implements Fetcher against the public Steam Community Market
// endpoints. Steam throttles aggressively; callers must cache.
type SteamClient struct {
	httpClient *http.Client
	currency   int
	country    string
}

// NewSteamClient constructs a client with a per-request timeout.
func NewSteamClient(timeout time.Duration, currency int, country string) *SteamClient {
	if timeout <= 0 {
		timeout = 7 * time.Second
	}
	return &SteamClient{
		httpClient: &http.Client{Timeout: timeout},
		currency:   currency,
		country:    country,
	}
}

var priceRe = regexp.MustCompile(`([0-9]+(?:[.,][0-9]{1,2})?)`)

// ParsePriceCents extracts integer cents from market price strings such as
// "$1.23", "US$ 1.23" or "1.23 USD". Returns nil when nothing parses.
func ParsePriceCents(s string) *int64 {
	cleaned := strings.ReplaceAll(strings.TrimSpace(s), " ", " ")
	m := priceRe.FindStringSubmatch(strings.ReplaceAll(cleaned, ",", "."))
	if m == nil {
		return nil
	}
	n, err := strconv.ParseFloat(m[1], 64)
	if err != nil || n < 0 {
		return nil
	}
	v := int64(n*100 + 0.5)
	return &v
}

// EconomyImageURL expands a bare icon path into a sized economy image URL.
func EconomyImageURL(icon string, size int) string {
	if icon == "" {
		return ""
	}
	if strings.HasPrefix(icon, "http://") || strings.HasPrefix(icon, "https://") {
		return icon
	}
	return fmt.Sprintf("https://community.akamai.steamstatic.com/economy/image/%s/%dfx%df", icon, size, size)
}

func (c *SteamClient) getJSON(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", userAgent)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("market: http %d for %s", resp.StatusCode, rawURL)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// PriceOverview fetches lowest/median price and volume for one lookup key.
func (c *SteamClient) PriceOverview(ctx context.Context, key string) (*Quote, error) {
	q := url.Values{}
	q.Set("appid", "730")
	q.Set("currency", strconv.Itoa(c.currency))
	q.Set("market_hash_name", key)

	var body struct {
		Success     bool   `json:"success"`
		LowestPrice string `json:"lowest_price"`
		MedianPrice string `json:"median_price"`
		Volume      string `json:"volume"`
	}
	if err := c.getJSON(ctx, priceOverviewURL+"?"+q.Encode(), &body); err != nil {
		return nil, err
	}
	if !body.Success {
		return nil, fmt.Errorf("market: priceoverview unsuccessful for %q", key)
	}

	out := &Quote{}
	if body.LowestPrice != "" {
		out.LowestPrice = &body.LowestPrice
	}
	if body.MedianPrice != "" {
		out.MedianPrice = &body.MedianPrice
	}
	if v, err := strconv.ParseInt(strings.ReplaceAll(body.Volume, ",", ""), 10, 64); err == nil {
		out.Volume = &v
	}
	out.PriceCents = ParsePriceCents(body.LowestPrice)
	if out.PriceCents == nil {
		out.PriceCents = ParsePriceCents(body.MedianPrice)
	}
	return out, nil
}

// ListingImage fetches an item image via the listings render endpoint.
func (c *SteamClient) ListingImage(ctx context.Context, key string) (*string, error) {
	q := url.Values{}
	q.Set("query", "")
	q.Set("start", "0")
	q.Set("count", "1")
	q.Set("currency", strconv.Itoa(c.currency))
	q.Set("language", "english")
	q.Set("country", c.country)

	var body struct {
		Success bool                                             `json:"success"`
		Assets  map[string]map[string]map[string]json.RawMessage `json:"assets"`
	}
	u := listingsURL + url.PathEscape(key) + "/render/?" + q.Encode()
	if err := c.getJSON(ctx, u, &body); err != nil {
		return nil, err
	}
	if !body.Success {
		return nil, fmt.Errorf("market: listing render unsuccessful for %q", key)
	}
	assets, ok := body.Assets["730"]["2"]
	if !ok || len(assets) == 0 {
		return nil, nil
	}
	for _, raw := range assets {
		var asset struct {
			IconURL string `json:"icon_url"`
		}
		if err := json.Unmarshal(raw, &asset); err != nil || asset.IconURL == "" {
			continue
		}
		img := EconomyImageURL(asset.IconURL, 360)
		return &img, nil
	}
	return nil, nil
}
