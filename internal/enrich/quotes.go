package enrich

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"momentumwatch/internal/catalyst"
)

type searchResponse struct {
	News []struct {
		Title               string `json:"title"`
		ProviderPublishTime int64  `json:"providerPublishTime"`
	} `json:"news"`
}

// Headlines fetches recent news for a symbol. No news is an empty slice;
// only transport and upstream failures return an error.
func (c *Client) Headlines(ctx context.Context, symbol string) ([]catalyst.Headline, error) {
	query := url.Values{
		"q":           {symbol},
		"newsCount":   {strconv.Itoa(c.newsCount)},
		"quotesCount": {"0"},
	}

	var resp searchResponse
	if err := c.get(ctx, "/v8/finance/search", query, &resp); err != nil {
		return nil, err
	}

	headlines := make([]catalyst.Headline, 0, len(resp.News))
	for _, item := range resp.News {
		h := catalyst.Headline{Title: item.Title}
		if item.ProviderPublishTime > 0 {
			h.PublishedAt = time.Unix(item.ProviderPublishTime, 0)
		}
		headlines = append(headlines, h)
	}
	return headlines, nil
}

// Profile is company reference data for a symbol.
type Profile struct {
	Name        string
	Sector      string
	Industry    string
	FloatShares *float64
	ShortPct    *float64
	AvgVolume   *int64
}

// rawValue is the endpoint's number wrapper; fmt strings ride alongside raw.
type rawValue struct {
	Raw *float64 `json:"raw"`
}

type quoteSummaryResponse struct {
	QuoteSummary struct {
		Result []struct {
			Price struct {
				ShortName                string   `json:"shortName"`
				AverageDailyVolume3Month rawValue `json:"averageDailyVolume3Month"`
			} `json:"price"`
			SummaryProfile struct {
				Sector   string `json:"sector"`
				Industry string `json:"industry"`
			} `json:"summaryProfile"`
			DefaultKeyStatistics struct {
				FloatShares         rawValue `json:"floatShares"`
				ShortPercentOfFloat rawValue `json:"shortPercentOfFloat"`
			} `json:"defaultKeyStatistics"`
		} `json:"result"`
	} `json:"quoteSummary"`
}

// FetchProfile fetches company profile data for a symbol.
func (c *Client) FetchProfile(ctx context.Context, symbol string) (Profile, error) {
	query := url.Values{
		"modules": {"summaryProfile,defaultKeyStatistics,price"},
	}

	var resp quoteSummaryResponse
	if err := c.get(ctx, "/v10/finance/quoteSummary/"+url.PathEscape(symbol), query, &resp); err != nil {
		return Profile{}, err
	}
	if len(resp.QuoteSummary.Result) == 0 {
		return Profile{}, nil
	}

	r := resp.QuoteSummary.Result[0]
	p := Profile{
		Name:        r.Price.ShortName,
		Sector:      r.SummaryProfile.Sector,
		Industry:    r.SummaryProfile.Industry,
		FloatShares: r.DefaultKeyStatistics.FloatShares.Raw,
		ShortPct:    r.DefaultKeyStatistics.ShortPercentOfFloat.Raw,
	}
	if raw := r.Price.AverageDailyVolume3Month.Raw; raw != nil {
		v := int64(*raw)
		p.AvgVolume = &v
	}
	return p, nil
}
