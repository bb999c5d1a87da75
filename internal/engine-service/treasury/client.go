// Cliente HTTP do serviço de custódia de colateral (treasury-simulator em
// ambiente local). O motor trata cada transferência como primitiva atômica:
// ou o valor inteiro se move, ou nada.
package treasury

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func New(base string) *Client {
	return &Client{
		BaseURL: base,
		HTTP:    &http.Client{Timeout: 2 * time.Second},
	}
}

type transferRequest struct {
	Account string `json:"account"`
	Amount  uint64 `json:"amount"`
	Ref     string `json:"ref"` // idempotência do lado da tesouraria
}

func (c *Client) Debit(ctx context.Context, account string, amount uint64, ref string) error {
	return c.post(ctx, "/treasury/debit", transferRequest{Account: account, Amount: amount, Ref: ref})
}

func (c *Client) Credit(ctx context.Context, account string, amount uint64, ref string) error {
	return c.post(ctx, "/treasury/credit", transferRequest{Account: account, Amount: amount, Ref: ref})
}

func (c *Client) post(ctx context.Context, path string, payload transferRequest) error {
	body, _ := json.Marshal(payload)
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	res, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		return fmt.Errorf("treasury %s http %d", path, res.StatusCode)
	}
	return nil
}
