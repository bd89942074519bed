package translation

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

const (
	DefaultGoogleBaseURL = "https://translate.google.com"
	// MaxTextLength is the longest input the web endpoint accepts.
	MaxTextLength = 5000
)

var (
	ErrTextTooLong  = fmt.Errorf("text exceeds %d characters", MaxTextLength)
	ErrEmptyResult  = errors.New("no translation in response")
	ErrNoTargetCode = errors.New("target language required")
)

// Provider translates text between language codes. source may be "auto".
type Provider interface {
	Translate(ctx context.Context, text, source, target string) (string, error)
}

// GoogleProvider reads the mobile Google Translate page.
type GoogleProvider struct {
	baseURL string
	client  *http.Client
}

func NewGoogleProvider(baseURL string, client *http.Client) *GoogleProvider {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultGoogleBaseURL
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &GoogleProvider{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

// Translate implements Provider.
func (p *GoogleProvider) Translate(ctx context.Context, text, source, target string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return text, nil
	}
	if utf8.RuneCountInString(text) > MaxTextLength {
		return "", ErrTextTooLong
	}
	if target == "" {
		return "", ErrNoTargetCode
	}
	if source == "" {
		source = "auto"
	}

	query := url.Values{}
	query.Set("sl", source)
	query.Set("tl", target)
	query.Set("q", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/m?"+query.Encode(), nil)
	if err != nil {
		return "", err
	}
	// 不带浏览器 UA 时返回的页面结构不同
	req.Header.Set("User-Agent", "Mozilla/5.0 (Linux; Android 10) AppleWebKit/537.36 Mobile Safari/537.36")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("http status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("parse translation page: %w", err)
	}

	result := doc.Find("div.result-container").First()
	if result.Length() == 0 {
		return "", ErrEmptyResult
	}
	return strings.TrimSpace(result.Text()), nil
}
