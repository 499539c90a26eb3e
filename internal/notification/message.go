package notification

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrBadNotification = errors.New("malformed mailbox notification")

// GmailNotification is the payload Gmail publishes on every mailbox change.
type GmailNotification struct {
	EmailAddress string `json:"emailAddress"`
	HistoryID    uint64 `json:"historyId"`
}

// UnmarshalJSON accepts historyId both as a number and as a string.
func (n *GmailNotification) UnmarshalJSON(data []byte) error {
	var aux struct {
		EmailAddress string      `json:"emailAddress"`
		HistoryID    json.Number `json:"historyId"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	n.EmailAddress = strings.TrimSpace(aux.EmailAddress)
	if aux.HistoryID == "" {
		n.HistoryID = 0
		return nil
	}
	id, err := strconv.ParseUint(aux.HistoryID.String(), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid historyId %q: %w", aux.HistoryID, err)
	}
	n.HistoryID = id
	return nil
}

// DecodeNotification parses the data of a Pub/Sub message.
func DecodeNotification(data []byte) (*GmailNotification, error) {
	var n GmailNotification
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadNotification, err)
	}
	if n.EmailAddress == "" || n.HistoryID == 0 {
		return nil, fmt.Errorf("%w: missing emailAddress or historyId", ErrBadNotification)
	}
	return &n, nil
}

// PushEnvelope is the body Pub/Sub POSTs to a push subscription endpoint.
type PushEnvelope struct {
	Message struct {
		Data        string            `json:"data"`
		MessageID   string            `json:"messageId"`
		PublishTime string            `json:"publishTime"`
		Attributes  map[string]string `json:"attributes"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

// DecodePushEnvelope unwraps the base64 payload of a push request.
func DecodePushEnvelope(body []byte) (*GmailNotification, error) {
	var env PushEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadNotification, err)
	}
	data, err := base64.StdEncoding.DecodeString(env.Message.Data)
	if err != nil {
		// Some publishers use the URL alphabet.
		data, err = base64.URLEncoding.DecodeString(env.Message.Data)
		if err != nil {
			return nil, fmt.Errorf("%w: data is not base64", ErrBadNotification)
		}
	}
	return DecodeNotification(data)
}
