package webhooks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/muhamadhazim/fishit-marketplace/api/responses"
	ipaymuwebhook "github.com/muhamadhazim/fishit-marketplace/internal/webhooks/ipaymu"
	"github.com/muhamadhazim/fishit-marketplace/pkg/logger"
)

const maxCallbackBody = 64 << 10

var errReconcilerMissing = errors.New("callback reconciler not configured")

type callbackHandler interface {
	Handle(ctx context.Context, n ipaymuwebhook.Notification) (*ipaymuwebhook.Result, error)
}

// IPaymuCallback acknowledges every notification with 200 so the gateway does
// not retry; failures are logged and reported in the ack body.
func IPaymuCallback(rec callbackHandler, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if logg == nil {
			logg = logger.Nop()
		}
		if rec == nil {
			logg.Error(ctx, "callback.unavailable", errReconcilerMissing)
			ack(w, "error")
			return
		}

		payload, err := io.ReadAll(io.LimitReader(r.Body, maxCallbackBody))
		if err != nil {
			logg.Error(logg.WithField(ctx, "event", "callback.read_failed"), "read callback body", err)
			ack(w, "error")
			return
		}

		n, err := decodeNotification(r.Header.Get("Content-Type"), payload)
		if err != nil {
			logg.Warn(logg.WithFields(ctx, map[string]any{
				"event": "callback.decode_failed",
				"error": err.Error(),
			}), "callback payload could not be decoded")
			ack(w, string(ipaymuwebhook.OutcomeRejected))
			return
		}

		result, err := rec.Handle(ctx, n)
		if err != nil {
			logg.Error(logg.WithField(ctx, "event", "callback.failed"), "reconcile callback", err)
			ack(w, "error")
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// decodeNotification accepts the gateway's form posts as well as JSON.
func decodeNotification(contentType string, payload []byte) (ipaymuwebhook.Notification, error) {
	var n ipaymuwebhook.Notification
	mediaType, _, _ := mime.ParseMediaType(contentType)
	if mediaType == "application/json" || (mediaType == "" && strings.HasPrefix(strings.TrimSpace(string(payload)), "{")) {
		var raw map[string]any
		dec := json.NewDecoder(bytes.NewReader(payload))
		dec.UseNumber()
		if err := dec.Decode(&raw); err != nil {
			return n, err
		}
		return fromValues(func(key string) string { return stringify(raw[key]) }), nil
	}

	values, err := url.ParseQuery(string(payload))
	if err != nil {
		return n, err
	}
	return fromValues(values.Get), nil
}

func fromValues(get func(string) string) ipaymuwebhook.Notification {
	return ipaymuwebhook.Notification{
		TrxID:       get("trx_id"),
		SessionID:   get("sid"),
		Status:      get("status"),
		StatusCode:  get("status_code"),
		Via:         get("via"),
		Channel:     get("channel"),
		ReferenceID: get("reference_id"),
	}
}

// stringify keeps numeric ids such as trx_id intact whether they arrive as
// JSON numbers or strings.
func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	default:
		b, _ := json.Marshal(t)
		return strings.Trim(string(b), `"`)
	}
}

func ack(w http.ResponseWriter, outcome string) {
	responses.WriteSuccess(w, map[string]string{"outcome": outcome})
}
