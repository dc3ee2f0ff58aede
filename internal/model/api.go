package model

// Wire types shared by the relay server and its clients.

type (
	FundRequest struct {
		Amount *Amount `json:"amount"`
	}

	TransferRequest struct {
		Recipient  string  `json:"recipient"`
		Amount     *Amount `json:"amount"`
		PayloadRef string  `json:"payload_ref"`
	}

	TxResponse struct {
		TxRef string `json:"tx_ref"`
	}

	PublicKeyResponse struct {
		Identity  string `json:"identity"`
		PublicKey string `json:"public_key"`
	}

	// RelayMessage is the envelope forwarded between participants over the
	// relay's websocket.
	RelayMessage struct {
		From        string `json:"from"`
		To          string `json:"to"`
		ContentRef  string `json:"content_ref"`
		TransferRef string `json:"transfer_ref,omitempty"`
	}
)
