package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/gorilla/websocket"

	"agentsend/internal/model"
)

// publishKey registers the public key locally and with the relay's
// directory so counterparts can resolve it.
func (c *App) publishKey(ctx context.Context, kp model.KeyPair) error {
	if err := c.dir.Publish(ctx, c.identity, kp.PublicKey); err != nil {
		return err
	}

	u := url.URL{
		Scheme: "http",
		Host:   c.host,
		Path:   fmt.Sprintf("/keys/%s", c.identity),
	}
	body, err := json.Marshal(model.PublicKeyResponse{
		Identity:  c.identity,
		PublicKey: kp.PublicKeyString(),
	})
	if err != nil {
		return err
	}

	resp, err := http.Post(u.String(), "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	defer io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("relay rejected key: %d", resp.StatusCode)
	}
	return nil
}

// resolveRecipientKey fetches the counterpart's published key from the
// relay and caches it in the local directory.
func (c *App) resolveRecipientKey(ctx context.Context, name string) error {
	u := url.URL{
		Scheme: "http",
		Host:   c.host,
		Path:   fmt.Sprintf("/keys/%s", name),
	}

	resp, err := http.Get(u.String())
	if err != nil {
		return err
	}

	defer resp.Body.Close()
	defer io.Copy(io.Discard, resp.Body)

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s has not published an encryption key", name)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("key lookup failed: %d", resp.StatusCode)
	}

	var pk model.PublicKeyResponse
	err = json.NewDecoder(resp.Body).Decode(&pk)
	if err != nil {
		return err
	}

	pub, err := model.ParsePublicKey(pk.PublicKey)
	if err != nil {
		return err
	}
	return c.dir.Publish(ctx, name, pub)
}

func (c *App) initWebhook(identity string) (*websocket.Conn, error) {
	params := url.Values{
		"identity": []string{identity},
	}

	u := url.URL{
		Scheme:   "ws",
		Host:     c.host,
		Path:     "/init",
		RawQuery: params.Encode(),
	}

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, err
	}

	return conn, nil
}
