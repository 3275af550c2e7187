package jobsearch

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const (
	apiURL    = "https://indeed-scraper-api.p.rapidapi.com"
	apiHost   = "indeed-scraper-api.p.rapidapi.com"
	userAgent = "cgruenke/jobrank (job search student project)"
	// Allowed values for the fromDays scraper parameter.
	defaultFromDays = "7"
	defaultMaxRows  = 15
)

type Client struct {
	// ctx used only for http requests right now
	ctx        context.Context
	key        string
	logger     *zap.Logger
	HTTPClient *http.Client
	UserAgent  string
	APIURL     string
	APIHost    string
}

func New(ctx context.Context, logger *zap.Logger, key string) *Client {
	return &Client{
		ctx:    ctx,
		key:    key,
		APIURL: apiURL,
		HTTPClient: &http.Client{
			Timeout: 20 * time.Second,
		},
		logger:    logger,
		UserAgent: userAgent,
		APIHost:   apiHost,
	}
}

func (c *Client) Search(params *SearchParams) (*Postings, error) {
	return c.search(params)
}
